package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/parkwise/parking-service/internal/pricing"
)

// DevJWTSecret is the signing secret used outside production when no key is
// configured. It is rejected when APP_ENV is production.
const DevJWTSecret = "dev-secret"

// DefaultKeyID names the key built from AUTH_JWT_SECRET.
const DefaultKeyID = "default"

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Parking      ParkingConfig
	Pricing      PricingConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string   `env:"APP_NAME" envDefault:"parking-service"`
	Env                   string   `env:"APP_ENV" envDefault:"development"`
	Host                  string   `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port                  string   `env:"APP_PORT" envDefault:"8080"`
	Version               string   `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int      `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
	CORSOrigins           []string `env:"HTTP_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS" envDefault:"300"`
	ConnectRetries int    `env:"POSTGRES_CONNECT_RETRIES" envDefault:"5"`
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	// TimeoutMS bounds dialing and each command so an unreachable Redis
	// cannot stall event delivery or the readiness probe.
	TimeoutMS int `env:"REDIS_TIMEOUT_MS" envDefault:"500"`
}

// Timeout returns the per-operation Redis timeout.
func (r RedisConfig) Timeout() time.Duration {
	if r.TimeoutMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// AuthConfig defines authentication parameters.
//
// Signing keys come from AUTH_JWT_KEYS ("kid:secret,kid2:secret2") and the
// single legacy AUTH_JWT_SECRET, which is registered under DefaultKeyID. New
// tokens are signed with AUTH_JWT_ACTIVE_KEY; every configured key verifies.
// Secrets must not contain ':' or ','.
type AuthConfig struct {
	JWTSecret              string            `env:"AUTH_JWT_SECRET"`
	JWTKeys                map[string]string `env:"AUTH_JWT_KEYS" envSeparator:"," envKeyValSeparator:":"`
	JWTActiveKey           string            `env:"AUTH_JWT_ACTIVE_KEY"`
	AccessTokenTTLMinutes  int               `env:"AUTH_ACCESS_TOKEN_TTL_MINUTES" envDefault:"30"`
	ClockSkewSeconds       int               `env:"AUTH_CLOCK_SKEW_SECONDS" envDefault:"0"`
	RejectInvalidTokens    bool              `env:"AUTH_REJECT_INVALID_TOKENS" envDefault:"false"`
	Realm                  string            `env:"AUTH_REALM" envDefault:"/auth"`
	BcryptCost             int               `env:"AUTH_BCRYPT_COST" envDefault:"12"`
	BootstrapAdminUsername string            `env:"AUTH_BOOTSTRAP_ADMIN_USERNAME"`
	BootstrapAdminPassword string            `env:"AUTH_BOOTSTRAP_ADMIN_PASSWORD"`
}

// ParkingConfig tunes the session lifecycle.
type ParkingConfig struct {
	TimeZone        string `env:"PARKING_TIMEZONE" envDefault:"America/Sao_Paulo"`
	ReceiptAttempts int    `env:"PARKING_RECEIPT_ATTEMPTS" envDefault:"5"`
}

// PricingConfig overrides the reference tariff.
type PricingConfig struct {
	FirstBlockMinutes int64  `env:"PRICING_FIRST_BLOCK_MINUTES" envDefault:"15"`
	FirstBlockPrice   string `env:"PRICING_FIRST_BLOCK_PRICE" envDefault:"5.00"`
	BaseMinutes       int64  `env:"PRICING_BASE_MINUTES" envDefault:"60"`
	BasePrice         string `env:"PRICING_BASE_PRICE" envDefault:"9.25"`
	ExtraBlockMinutes int64  `env:"PRICING_EXTRA_BLOCK_MINUTES" envDefault:"15"`
	ExtraBlockPrice   string `env:"PRICING_EXTRA_BLOCK_PRICE" envDefault:"1.75"`
	DiscountRate      string `env:"PRICING_DISCOUNT_RATE" envDefault:"0.30"`
	DiscountEvery     int64  `env:"PRICING_DISCOUNT_EVERY" envDefault:"10"`
}

// RateLimitConfig limits login attempts per client IP.
type RateLimitConfig struct {
	LoginPerMinute int `env:"RATE_LIMIT_LOGIN_PER_MINUTE" envDefault:"5"`
	LoginBurst     int `env:"RATE_LIMIT_LOGIN_BURST" envDefault:"5"`
}

// NotificationConfig controls event fan-out.
type NotificationConfig struct {
	RedisChannel string `env:"NOTIFY_REDIS_CHANNEL" envDefault:"parking.events"`
	QueueSize    int    `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
}

// Load reads configuration from the environment (and a .env file when
// present), applying defaults and validating the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.Auth.SigningKeys()) == 0 && !cfg.App.IsProduction() {
		cfg.Auth.JWTSecret = DevJWTSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	keys := c.Auth.SigningKeys()
	if len(keys) == 0 {
		return errors.New("config: no JWT signing key configured")
	}
	if _, ok := keys[c.Auth.ActiveKeyID()]; !ok {
		return fmt.Errorf("config: active JWT key %q is not configured", c.Auth.ActiveKeyID())
	}
	if c.App.IsProduction() {
		for kid, secret := range keys {
			if string(secret) == DevJWTSecret {
				return fmt.Errorf("config: JWT key %q uses the development secret", kid)
			}
		}
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		return errors.New("config: AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive")
	}
	if c.Auth.ClockSkewSeconds < 0 {
		return errors.New("config: AUTH_CLOCK_SKEW_SECONDS must not be negative")
	}
	if c.Parking.ReceiptAttempts < 1 {
		return errors.New("config: PARKING_RECEIPT_ATTEMPTS must be at least 1")
	}
	if _, err := c.Parking.Location(); err != nil {
		return fmt.Errorf("config: PARKING_TIMEZONE: %w", err)
	}
	tariff, err := c.Pricing.Tariff()
	if err != nil {
		return fmt.Errorf("config: pricing: %w", err)
	}
	if err := tariff.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether the service runs in production.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SigningKeys returns every verification key by key id.
func (a AuthConfig) SigningKeys() map[string][]byte {
	keys := make(map[string][]byte, len(a.JWTKeys)+1)
	for kid, secret := range a.JWTKeys {
		kid = strings.TrimSpace(kid)
		if kid == "" || secret == "" {
			continue
		}
		keys[kid] = []byte(secret)
	}
	if a.JWTSecret != "" {
		if _, taken := keys[DefaultKeyID]; !taken {
			keys[DefaultKeyID] = []byte(a.JWTSecret)
		}
	}
	return keys
}

// ActiveKeyID returns the key id used to sign new tokens.
func (a AuthConfig) ActiveKeyID() string {
	if kid := strings.TrimSpace(a.JWTActiveKey); kid != "" {
		return kid
	}
	return DefaultKeyID
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// ClockSkew returns the tolerated clock skew for token expiry.
func (a AuthConfig) ClockSkew() time.Duration {
	return time.Duration(a.ClockSkewSeconds) * time.Second
}

// Location returns the lot time zone receipts and timestamps are expressed in.
func (p ParkingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(p.TimeZone)
}

// Tariff builds the pricing table.
func (p PricingConfig) Tariff() (pricing.Tariff, error) {
	prices := map[string]string{
		"first block price": p.FirstBlockPrice,
		"base price":        p.BasePrice,
		"extra block price": p.ExtraBlockPrice,
		"discount rate":     p.DiscountRate,
	}
	parsed := make(map[string]decimal.Decimal, len(prices))
	for name, raw := range prices {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return pricing.Tariff{}, fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		parsed[name] = value
	}
	return pricing.Tariff{
		FirstBlockMinutes: p.FirstBlockMinutes,
		FirstBlockPrice:   parsed["first block price"],
		BaseMinutes:       p.BaseMinutes,
		BasePrice:         parsed["base price"],
		ExtraBlockMinutes: p.ExtraBlockMinutes,
		ExtraBlockPrice:   parsed["extra block price"],
		DiscountRate:      parsed["discount rate"],
		DiscountEvery:     p.DiscountEvery,
	}, nil
}
