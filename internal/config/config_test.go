package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, time.Duration(0), cfg.Auth.ClockSkew())
	assert.Equal(t, DefaultKeyID, cfg.Auth.ActiveKeyID())
	assert.Equal(t, []byte(DevJWTSecret), cfg.Auth.SigningKeys()[DefaultKeyID])
	assert.False(t, cfg.Auth.RejectInvalidTokens)
	assert.Equal(t, "/auth", cfg.Auth.Realm)
	assert.Equal(t, 5, cfg.Parking.ReceiptAttempts)

	loc, err := cfg.Parking.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())

	tariff, err := cfg.Pricing.Tariff()
	require.NoError(t, err)
	assert.Equal(t, "9.25", tariff.BasePrice.StringFixed(2))
}

func TestLoadRotatingKeys(t *testing.T) {
	t.Setenv("AUTH_JWT_KEYS", "k1:first-secret,k2:second-secret")
	t.Setenv("AUTH_JWT_ACTIVE_KEY", "k2")

	cfg, err := Load()
	require.NoError(t, err)

	keys := cfg.Auth.SigningKeys()
	assert.Len(t, keys, 2)
	assert.Equal(t, []byte("first-secret"), keys["k1"])
	assert.Equal(t, []byte("second-secret"), keys["k2"])
	assert.Equal(t, "k2", cfg.Auth.ActiveKeyID())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown active key", map[string]string{"AUTH_JWT_ACTIVE_KEY": "missing"}},
		{"dev secret in production", map[string]string{"APP_ENV": "production", "AUTH_JWT_SECRET": DevJWTSecret}},
		{"no keys in production", map[string]string{"APP_ENV": "production"}},
		{"non positive ttl", map[string]string{"AUTH_ACCESS_TOKEN_TTL_MINUTES": "0"}},
		{"negative skew", map[string]string{"AUTH_CLOCK_SKEW_SECONDS": "-1"}},
		{"no receipt attempts", map[string]string{"PARKING_RECEIPT_ATTEMPTS": "0"}},
		{"bad timezone", map[string]string{"PARKING_TIMEZONE": "Mars/Olympus"}},
		{"bad price", map[string]string{"PRICING_BASE_PRICE": "nine"}},
		{"bad tariff", map[string]string{"PRICING_EXTRA_BLOCK_MINUTES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestProductionWithRealSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_KEYS", "2024-10:0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_JWT_ACTIVE_KEY", "2024-10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.App.IsProduction())
}

func TestAccessorsReportInvalidValues(t *testing.T) {
	_, err := ParkingConfig{TimeZone: "Mars/Olympus"}.Location()
	assert.Error(t, err)

	_, err = PricingConfig{FirstBlockPrice: "5.00", BasePrice: "nine", ExtraBlockPrice: "1.75", DiscountRate: "0.30"}.Tariff()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base price")

	assert.Equal(t, 500*time.Millisecond, RedisConfig{}.Timeout())
	assert.Equal(t, 100*time.Millisecond, RedisConfig{TimeoutMS: 100}.Timeout())
}
