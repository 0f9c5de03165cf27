package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parkwise/parking-service/internal/config"
)

// ErrRedisDisabled is returned by Ping when no REDIS_ADDR is configured.
var ErrRedisDisabled = errors.New("redis disabled")

// Redis carries the session event channel. Parking never depends on it:
// when the server is down at startup or later, the client is kept, event
// publishes fail and are logged by the worker, and readiness reports
// redis as degraded. go-redis reconnects on its own once the server is back.
type Redis struct {
	client *redis.Client
}

// NewRedis builds the client and checks the server once, within the
// configured timeout. An empty address turns event fan-out off.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Warn("REDIS_ADDR not provided; session events stay in-process")
		return &Redis{}
	}

	timeout := cfg.Timeout()
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable; session events degraded until it recovers", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("redis ready for session events", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}

	return &Redis{client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.client != nil {
		_ = r.client.Close()
	}
}

// Ping verifies Redis connectivity for the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrRedisDisabled
	}
	return r.client.Ping(ctx).Err()
}

// Handle returns the client, nil when Redis is disabled.
func (r *Redis) Handle() *redis.Client {
	if r == nil {
		return nil
	}
	return r.client
}
