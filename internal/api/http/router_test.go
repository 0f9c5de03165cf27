package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/parkwise/parking-service/internal/api/http/handlers"
	"github.com/parkwise/parking-service/internal/auth"
	"github.com/parkwise/parking-service/internal/observability"
	"github.com/parkwise/parking-service/internal/repository/memstore"
	"github.com/parkwise/parking-service/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type envOptions struct {
	rejectInvalid bool
	limiter       *RateLimiter
}

type testEnv struct {
	app   *fiber.App
	clock *testClock
}

type response struct {
	status int
	header nethttp.Header
	body   map[string]any
	raw    []byte
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2024, time.March, 7, 9, 5, 3, 0, time.UTC)}
	store := memstore.New()
	metrics := observability.NewMetrics()

	tokens, err := auth.NewTokenManager(map[string][]byte{"k1": []byte("test-secret")}, "k1", 30*time.Minute, auth.WithClock(clock.Now))
	require.NoError(t, err)
	authService := service.NewAuthService(store.Users(), tokens, bcrypt.MinCost, nil)
	customers := service.NewCustomerService(store.Customers(), nil)
	slots := service.NewSlotService(store.Slots(), nil)
	parking := service.NewParkingService(service.ParkingDependencies{
		Customers: store.Customers(),
		Sessions:  store.Sessions(),
		Slots:     slots,
	}, service.ParkingSettings{Location: time.UTC, Now: clock.Now})
	require.NoError(t, authService.EnsureAdmin(context.Background(), "admin@mail.com", "admin12"))

	policy, err := auth.NewPolicy(AccessRules()...)
	require.NoError(t, err)
	if opts.limiter == nil {
		opts.limiter = NewRateLimiter(6000, 1000)
	}

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{Metrics: metrics, Realm: "/auth", CORSOrigins: []string{"*"}})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(handlers.HealthDependencies{ServiceName: "parking-service", Version: "test", Metrics: metrics, Slots: slots}),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService),
		Customers:      handlers.NewCustomersHandler(customers),
		Slots:          handlers.NewSlotsHandler(slots),
		Parking:        handlers.NewParkingHandler(parking),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users(), nil, opts.rejectInvalid),
		Policy:         policy,
		LoginLimiter:   opts.limiter,
	})
	return &testEnv{app: app, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, header: resp.Header, raw: raw}
	if len(raw) > 0 && resp.Header.Get(fiber.HeaderContentType) == fiber.MIMEApplicationJSON {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.do(t, fiber.MethodPost, "/api/v1/auth", "", map[string]string{"username": username, "password": password})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.raw))
	return resp.data()["token"].(string)
}

func (e *testEnv) customer(t *testing.T, username, nationalID string) string {
	t.Helper()
	resp := e.do(t, fiber.MethodPost, "/api/v1/users", "", map[string]string{"username": username, "password": "secret1"})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.raw))
	token := e.login(t, username, "secret1")
	resp = e.do(t, fiber.MethodPost, "/api/v1/customers", token, map[string]string{"name": "Ana Souza", "national_id": nationalID})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.raw))
	return token
}

func (r response) data() map[string]any {
	data, _ := r.body["data"].(map[string]any)
	return data
}

func (r response) errorCode() string {
	errBody, _ := r.body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestHealthRoutes(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp := env.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "alive", resp.body["status"])

	resp = env.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = env.do(t, fiber.MethodGet, "/health/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, resp.data(), "occupancy")
}

func TestAccessControl(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := env.login(t, "admin@mail.com", "admin12")
	customer := env.customer(t, "ana@mail.com", "52998224725")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{name: "anonymous list users", method: fiber.MethodGet, path: "/api/v1/users", status: fiber.StatusUnauthorized},
		{name: "customer list users", method: fiber.MethodGet, path: "/api/v1/users", token: customer, status: fiber.StatusForbidden},
		{name: "admin list users", method: fiber.MethodGet, path: "/api/v1/users", token: admin, status: fiber.StatusOK},
		{name: "customer creates slot", method: fiber.MethodPost, path: "/api/v1/slots", token: customer, status: fiber.StatusForbidden},
		{name: "admin reads own customer profile", method: fiber.MethodGet, path: "/api/v1/customers/details", token: admin, status: fiber.StatusForbidden},
		{name: "customer reads own profile", method: fiber.MethodGet, path: "/api/v1/customers/details", token: customer, status: fiber.StatusOK},
		{name: "customer checks out", method: fiber.MethodPut, path: "/api/v1/parking/check-out/20240307-090503", token: customer, status: fiber.StatusForbidden},
		{name: "anonymous unknown route", method: fiber.MethodGet, path: "/api/v1/unknown", status: fiber.StatusUnauthorized},
		{name: "admin unknown route", method: fiber.MethodGet, path: "/api/v1/unknown", token: admin, status: fiber.StatusNotFound},
		{name: "customer list users upper case", method: fiber.MethodGet, path: "/api/v1/USERS", token: customer, status: fiber.StatusForbidden},
		{name: "customer list customers mixed case", method: fiber.MethodGet, path: "/api/v1/Customers", token: customer, status: fiber.StatusForbidden},
		{name: "customer creates slot mixed case", method: fiber.MethodPost, path: "/api/v1/Slots", token: customer, status: fiber.StatusForbidden},
		{name: "customer checks out mixed case", method: fiber.MethodPut, path: "/API/V1/PARKING/CHECK-OUT/20240307-090503", token: customer, status: fiber.StatusForbidden},
		{name: "customer head users", method: fiber.MethodHead, path: "/api/v1/users", token: customer, status: fiber.StatusForbidden},
		{name: "admin list users upper case", method: fiber.MethodGet, path: "/api/v1/USERS", token: admin, status: fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, resp.status, string(resp.raw))
			if tt.status == fiber.StatusUnauthorized {
				assert.Equal(t, "Bearer realm='/auth'", resp.header.Get(fiber.HeaderWWWAuthenticate))
			}
		})
	}
}

func TestInvalidTokenHandling(t *testing.T) {
	t.Run("fail open", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})

		resp := env.do(t, fiber.MethodPost, "/api/v1/users", "garbage", map[string]string{"username": "ana@mail.com", "password": "secret1"})
		assert.Equal(t, fiber.StatusCreated, resp.status)

		resp = env.do(t, fiber.MethodGet, "/api/v1/users", "garbage", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
		assert.Equal(t, "UNAUTHORIZED", resp.errorCode())
	})

	t.Run("reject invalid", func(t *testing.T) {
		env := newTestEnv(t, envOptions{rejectInvalid: true})

		resp := env.do(t, fiber.MethodPost, "/api/v1/users", "garbage", map[string]string{"username": "ana@mail.com", "password": "secret1"})
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
		assert.Equal(t, "Bearer realm='/auth'", resp.header.Get(fiber.HeaderWWWAuthenticate))
	})

	t.Run("expired token", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		admin := env.login(t, "admin@mail.com", "admin12")
		env.clock.Advance(30 * time.Minute)

		resp := env.do(t, fiber.MethodGet, "/api/v1/users", admin, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	})
}

func TestUserEndpoints(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp := env.do(t, fiber.MethodPost, "/api/v1/users", "", map[string]string{"username": "not-an-email", "password": "123"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.status)
	details := resp.body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "username")
	assert.Contains(t, details, "password")

	resp = env.do(t, fiber.MethodPost, "/api/v1/users", "", map[string]string{"username": "ana@mail.com", "password": "secret1"})
	require.Equal(t, fiber.StatusCreated, resp.status)
	id := resp.data()["id"].(string)
	assert.Equal(t, "CUSTOMER", resp.data()["role"])
	assert.NotContains(t, resp.data(), "password_hash")

	resp = env.do(t, fiber.MethodPost, "/api/v1/users", "", map[string]string{"username": "ana@mail.com", "password": "secret1"})
	assert.Equal(t, fiber.StatusConflict, resp.status)

	resp = env.do(t, fiber.MethodPost, "/api/v1/auth", "", map[string]string{"username": "ana@mail.com", "password": "wrong12"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "INVALID_CREDENTIALS", resp.errorCode())

	token := env.login(t, "ana@mail.com", "secret1")
	resp = env.do(t, fiber.MethodGet, "/api/v1/users/"+id, token, nil)
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = env.do(t, fiber.MethodPatch, "/api/v1/users/"+id, token, map[string]string{
		"current_password": "secret1",
		"new_password":     "secret9",
		"confirm_password": "secret9",
	})
	assert.Equal(t, fiber.StatusNoContent, resp.status)
	env.login(t, "ana@mail.com", "secret9")

	admin := env.login(t, "admin@mail.com", "admin12")
	resp = env.do(t, fiber.MethodGet, "/api/v1/users?page=0&size=1", admin, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.body["data"], 1)
	assert.EqualValues(t, 2, resp.body["meta"].(map[string]any)["total"])
}

func TestParkingFlow(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := env.login(t, "admin@mail.com", "admin12")
	customer := env.customer(t, "ana@mail.com", "52998224725")
	stranger := env.customer(t, "bob@mail.com", "11144477735")

	resp := env.do(t, fiber.MethodPost, "/api/v1/slots", admin, map[string]string{"code": "A-01"})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.raw))
	assert.Equal(t, "/api/v1/slots/A-01", resp.header.Get(fiber.HeaderLocation))

	checkIn := map[string]string{"national_id": "52998224725", "plate": "ABC-1234", "brand": "Fiat", "model": "Uno", "color": "Red"}
	resp = env.do(t, fiber.MethodPost, "/api/v1/parking/check-in", admin, checkIn)
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.raw))
	receipt := resp.data()["receipt"].(string)
	assert.Equal(t, "20240307-090503", receipt)
	assert.Equal(t, "A-01", resp.data()["slot_code"])
	assert.NotContains(t, resp.data(), "fee")

	resp = env.do(t, fiber.MethodPost, "/api/v1/parking/check-in", admin, checkIn)
	assert.Equal(t, fiber.StatusNotFound, resp.status, "no free slot left")

	resp = env.do(t, fiber.MethodGet, "/api/v1/parking/check-in/"+receipt, customer, nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	resp = env.do(t, fiber.MethodGet, "/api/v1/parking/check-in/"+receipt, stranger, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	resp = env.do(t, fiber.MethodGet, "/api/v1/parking/check-in/"+receipt+"/qrcode?size=128", customer, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "image/png", resp.header.Get(fiber.HeaderContentType))
	assert.Equal(t, []byte("\x89PNG"), resp.raw[:4])

	env.clock.Advance(61 * time.Minute)
	resp = env.do(t, fiber.MethodPut, "/api/v1/parking/check-out/"+receipt, admin, nil)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.raw))
	assert.Equal(t, "11.00", resp.data()["fee"])
	assert.Equal(t, "0.00", resp.data()["discount"])
	assert.Equal(t, "11.00", resp.data()["total"])

	resp = env.do(t, fiber.MethodPut, "/api/v1/parking/check-out/"+receipt, admin, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	resp = env.do(t, fiber.MethodGet, "/api/v1/parking", customer, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.body["data"], 1)

	resp = env.do(t, fiber.MethodGet, "/api/v1/parking/national-id/52998224725", admin, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.body["data"], 1)
}

func TestCheckInValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := env.login(t, "admin@mail.com", "admin12")

	resp := env.do(t, fiber.MethodPost, "/api/v1/parking/check-in", admin, map[string]string{"national_id": "123", "plate": "abc1234"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.status)
	assert.Equal(t, "VALIDATION_FAILED", resp.errorCode())

	resp = env.do(t, fiber.MethodPost, "/api/v1/parking/check-in", admin, map[string]string{
		"national_id": "52998224725", "plate": "ABC-1234", "brand": "Fiat", "model": "Uno", "color": "Red",
	})
	assert.Equal(t, fiber.StatusNotFound, resp.status, "unknown customer")
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, envOptions{limiter: NewRateLimiter(1, 2)})
	creds := map[string]string{"username": "admin@mail.com", "password": "admin12"}

	for i := 0; i < 2; i++ {
		resp := env.do(t, fiber.MethodPost, "/api/v1/auth", "", creds)
		require.Equal(t, fiber.StatusOK, resp.status)
	}
	resp := env.do(t, fiber.MethodPost, "/api/v1/auth", "", creds)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.status)
	assert.Equal(t, "TOO_MANY_REQUESTS", resp.errorCode())
}
