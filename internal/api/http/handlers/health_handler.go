package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/parkwise/parking-service/internal/api/dto"
	"github.com/parkwise/parking-service/internal/observability"
	"github.com/parkwise/parking-service/internal/persistence"
	"github.com/parkwise/parking-service/internal/service"
)

// HealthDependencies bundles what the probes inspect.
type HealthDependencies struct {
	ServiceName string
	Version     string
	Postgres    *persistence.Postgres
	Redis       *persistence.Redis
	Metrics     *observability.Metrics
	Slots       *service.SlotService
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.deps.ServiceName,
		"version": h.deps.Version,
	})
}

// Ready reports service readiness by checking dependencies. Postgres is
// required when configured; Redis only carries event fan-out and is
// reported without failing the probe.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	switch {
	case h.deps.Postgres.PoolHandle() == nil:
		depStatus["postgres"] = "disabled (in-memory store)"
	default:
		if err := h.deps.Postgres.Ping(ctx); err != nil {
			depStatus["postgres"] = err.Error()
			ready = false
		} else {
			depStatus["postgres"] = "ok"
		}
	}

	switch {
	case h.deps.Redis.Handle() == nil:
		depStatus["redis"] = "disabled"
	default:
		if err := h.deps.Redis.Ping(ctx); err != nil {
			depStatus["redis"] = "degraded: " + err.Error()
		} else {
			depStatus["redis"] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

// Metrics reports request counters and slot occupancy.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	body := fiber.Map{"requests": h.deps.Metrics.Snapshot()}
	if h.deps.Slots != nil {
		occupancy, err := h.deps.Slots.Occupancy(c.UserContext())
		if err != nil {
			return err
		}
		body["occupancy"] = dto.OccupancyResponse{Free: occupancy.Free, Occupied: occupancy.Occupied}
	}
	if stats, ok := h.deps.Postgres.Stats(); ok {
		body["postgres_pool"] = stats
	}
	return c.JSON(fiber.Map{"data": body})
}
