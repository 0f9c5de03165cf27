package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parkwise/parking-service/internal/config"
	"github.com/parkwise/parking-service/internal/events"
	"github.com/parkwise/parking-service/internal/observability"
)

// NotificationService fans session events out to logs and a Redis channel.
type NotificationService struct {
	dispatcher events.Dispatcher
	redis      *redis.Client
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. A nil Redis client limits
// delivery to the log.
func NewNotificationService(dispatcher events.Dispatcher, client *redis.Client, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		redis:      client,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// SessionEvents lists the event types the service delivers.
var SessionEvents = []events.EventType{events.EventSessionCheckedIn, events.EventSessionCheckedOut}

// RegisterHandlers subscribes Handle to session events on the publisher's
// goroutine.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(n.Handle, SessionEvents...)
}

// Handle records, logs and forwards one session event.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	n.metrics.RecordEvent(string(event.Type))
	n.logger.Info("session event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("receipt", event.Receipt),
		zap.Any("payload", event.Payload),
	)
	return n.publishToRedis(ctx, event)
}

func (n *NotificationService) publishToRedis(ctx context.Context, event events.Event) error {
	if n.redis == nil || n.cfg.RedisChannel == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.redis.Publish(ctx, n.cfg.RedisChannel, body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", n.cfg.RedisChannel, err)
	}
	return nil
}
