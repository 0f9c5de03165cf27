package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/parkwise/parking-service/internal/api/http/handlers"
	"github.com/parkwise/parking-service/internal/auth"
	"github.com/parkwise/parking-service/internal/domain"
)

// APIPrefix is the mount point of the versioned API.
const APIPrefix = "/api/v1"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Customers      *handlers.CustomersHandler
	Slots          *handlers.SlotsHandler
	Parking        *handlers.ParkingHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         *auth.Policy
	LoginLimiter   *RateLimiter
}

var (
	adminOnly    = []domain.Role{domain.RoleAdmin}
	customerOnly = []domain.Role{domain.RoleCustomer}
	anyRole      = []domain.Role{domain.RoleAdmin, domain.RoleCustomer}
)

// AccessRules is the route policy of the API. Routes not listed require an
// authenticated caller of any role.
func AccessRules() []auth.Rule {
	return []auth.Rule{
		{Method: fiber.MethodPost, Pattern: APIPrefix + "/auth", Public: true},
		{Method: fiber.MethodPost, Pattern: APIPrefix + "/users", Public: true},
		{Method: fiber.MethodGet, Pattern: APIPrefix + "/users", Roles: adminOnly},
		{Method: fiber.MethodGet, Pattern: APIPrefix + "/users/:id", Roles: anyRole},
		{Method: fiber.MethodPatch, Pattern: APIPrefix + "/users/:id", Roles: anyRole},
		{Method: fiber.MethodPost, Pattern: APIPrefix + "/customers", Roles: customerOnly},
		{Method: fiber.MethodGet, Pattern: APIPrefix + "/customers", Roles: adminOnly},
		{Method: fiber.MethodGet, Pattern: APIPrefix + "/customers/details", Roles: customerOnly},
		{Pattern: APIPrefix + "/slots/*", Roles: adminOnly},
		{Method: fiber.MethodPost, Pattern: APIPrefix + "/parking/check-in", Roles: adminOnly},
		{Method: fiber.MethodGet, Pattern: APIPrefix + "/parking/check-in/*", Roles: anyRole},
		{Method: fiber.MethodPut, Pattern: APIPrefix + "/parking/check-out/:receipt", Roles: adminOnly},
		{Method: fiber.MethodGet, Pattern: APIPrefix + "/parking/national-id/:nationalId", Roles: adminOnly},
		{Method: fiber.MethodGet, Pattern: APIPrefix + "/parking", Roles: customerOnly},
	}
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	health := app.Group("/health")
	health.Get("/live", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)
	health.Get("/metrics", cfg.Health.Metrics)

	api := app.Group(APIPrefix, cfg.AuthMiddleware.Handle, cfg.Policy.Enforce())

	login := []fiber.Handler{cfg.Auth.Login}
	if cfg.LoginLimiter != nil {
		login = append([]fiber.Handler{cfg.LoginLimiter.Limit()}, login...)
	}
	api.Post("/auth", login...)

	users := api.Group("/users")
	users.Post("", cfg.Users.Register)
	users.Get("", cfg.Users.List)
	users.Get("/:id", cfg.Users.Get)
	users.Patch("/:id", cfg.Users.ChangePassword)

	customers := api.Group("/customers")
	customers.Post("", cfg.Customers.Create)
	customers.Get("", cfg.Customers.List)
	customers.Get("/details", cfg.Customers.Details)

	slots := api.Group("/slots")
	slots.Post("", cfg.Slots.Create)
	slots.Get("/:code", cfg.Slots.Get)

	parking := api.Group("/parking")
	parking.Get("", cfg.Parking.ListMine)
	parking.Post("/check-in", cfg.Parking.CheckIn)
	parking.Get("/check-in/:receipt", cfg.Parking.Get)
	parking.Get("/check-in/:receipt/qrcode", cfg.Parking.QRCode)
	parking.Put("/check-out/:receipt", cfg.Parking.CheckOut)
	parking.Get("/national-id/:nationalId", cfg.Parking.ListByNationalID)
}
