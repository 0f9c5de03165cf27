package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/parkwise/parking-service/pkg/util"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/slots/:code", http.MethodGet, 200, 10*time.Millisecond)
	m.RecordRequest("/slots/:code", http.MethodGet, 200, 30*time.Millisecond)
	m.RecordError("/slots/A-01", http.MethodGet, apperrors.CodeNotFound)
	m.RecordEvent("session.checked_in")

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.Requests["/slots/:code|GET|200"])
	assert.EqualValues(t, 20, snap.AvgLatencyMillis["/slots/:code|GET|200"])
	assert.EqualValues(t, 1, snap.Errors["/slots/A-01|GET|NOT_FOUND"])
	assert.EqualValues(t, 1, snap.Events["session.checked_in"])

	var nilMetrics *Metrics
	nilMetrics.RecordRequest("/", http.MethodGet, 200, time.Millisecond)
	assert.Empty(t, nilMetrics.Snapshot().Requests)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/slots/:code", func(c *fiber.Ctx) error {
		if c.Params("code") == "ZZ99" {
			return apperrors.NewNotFound("slot", nil)
		}
		return c.SendString("ok")
	})

	for _, path := range []string{"/slots/A-01", "/slots/ZZ99"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	}

	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.Requests["/slots/:code|GET|200"])
	assert.EqualValues(t, 1, snap.Requests["/slots/:code|GET|404"])

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusNotFound, entries[1].ContextMap()["status"])
}
