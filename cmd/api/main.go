package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/parkwise/parking-service/internal/api/http"
	"github.com/parkwise/parking-service/internal/api/http/handlers"
	"github.com/parkwise/parking-service/internal/auth"
	"github.com/parkwise/parking-service/internal/config"
	"github.com/parkwise/parking-service/internal/events"
	"github.com/parkwise/parking-service/internal/observability"
	"github.com/parkwise/parking-service/internal/persistence"
	"github.com/parkwise/parking-service/internal/repository"
	"github.com/parkwise/parking-service/internal/repository/memstore"
	"github.com/parkwise/parking-service/internal/service"
	"github.com/parkwise/parking-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type repositories struct {
	users     repository.UserRepository
	customers repository.CustomerRepository
	slots     repository.SlotRepository
	sessions  repository.SessionRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	repos := newRepositories(pg)
	metrics := observability.NewMetrics()

	location, err := cfg.Parking.Location()
	if err != nil {
		logger.Fatal("invalid parking time zone", zap.Error(err))
	}
	tariff, err := cfg.Pricing.Tariff()
	if err != nil {
		logger.Fatal("invalid pricing tariff", zap.Error(err))
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.SigningKeys(), cfg.Auth.ActiveKeyID(), cfg.Auth.AccessTokenTTL(), auth.WithLeeway(cfg.Auth.ClockSkew()))
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	policy, err := auth.NewPolicy(httptransport.AccessRules()...)
	if err != nil {
		logger.Fatal("invalid route policy", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	authService := service.NewAuthService(repos.users, tokens, cfg.Auth.BcryptCost, logger)
	customerService := service.NewCustomerService(repos.customers, logger)
	slotService := service.NewSlotService(repos.slots, logger)
	parkingService := service.NewParkingService(service.ParkingDependencies{
		Customers:  repos.customers,
		Sessions:   repos.sessions,
		Slots:      slotService,
		Dispatcher: dispatcher,
		Logger:     logger,
	}, service.ParkingSettings{
		Tariff:          tariff,
		Location:        location,
		ReceiptAttempts: cfg.Parking.ReceiptAttempts,
	})
	notificationService := service.NewNotificationService(dispatcher, redis.Handle(), logger, metrics, cfg.Notification)
	notifier := worker.StartNotificationWorker(ctx, dispatcher, notificationService.Handle, logger, cfg.Notification.QueueSize, service.SessionEvents...)

	if err := authService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminUsername, cfg.Auth.BootstrapAdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Timeout:     cfg.App.RequestTimeout(),
		Realm:       cfg.Auth.Realm,
		CORSOrigins: cfg.App.CORSOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Postgres:    pg,
			Redis:       redis,
			Metrics:     metrics,
			Slots:       slotService,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService),
		Customers:      handlers.NewCustomersHandler(customerService),
		Slots:          handlers.NewSlotsHandler(slotService),
		Parking:        handlers.NewParkingHandler(parkingService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.users, logger, cfg.Auth.RejectInvalidTokens),
		Policy:         policy,
		LoginLimiter:   httptransport.NewRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	notifier.Stop()
}

func newRepositories(pg *persistence.Postgres) repositories {
	pool := pg.PoolHandle()
	if pool == nil {
		store := memstore.New()
		return repositories{
			users:     store.Users(),
			customers: store.Customers(),
			slots:     store.Slots(),
			sessions:  store.Sessions(),
		}
	}
	return repositories{
		users:     repository.NewUserRepository(pool),
		customers: repository.NewCustomerRepository(pool),
		slots:     repository.NewSlotRepository(pool),
		sessions:  repository.NewSessionRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
