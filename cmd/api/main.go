package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/escalation-service/internal/api/http"
	"github.com/spec-kit/escalation-service/internal/api/http/handlers"
	"github.com/spec-kit/escalation-service/internal/auth"
	"github.com/spec-kit/escalation-service/internal/config"
	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/observability"
	"github.com/spec-kit/escalation-service/internal/persistence"
	"github.com/spec-kit/escalation-service/internal/repository"
	"github.com/spec-kit/escalation-service/internal/service"
	"github.com/spec-kit/escalation-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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

	var store repository.Store
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.PoolHandle())
	} else {
		store = repository.NewMemoryStore()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartTransitionWorker(dispatcher, worker.NewTransitionRecorder(metrics, logger))

	engine := service.NewTransitionEngine(service.EngineDependencies{
		Store:             store,
		Locker:            persistence.NewLocker(redis, cfg.Tickets.LockTTL(), logger),
		Dispatcher:        dispatcher,
		Logger:            logger,
		DefaultCompletion: cfg.Tickets.DefaultCompletion(),
		LockWait:          cfg.Tickets.LockWait(),
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:            store,
		Engine:           engine,
		DefaultPageLimit: cfg.Tickets.DefaultPageLimit,
		MaxPageLimit:     cfg.Tickets.MaxPageLimit,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	if cfg.Tickets.SeedDevUsers {
		if err := cfg.ValidateDevSeeding(); err != nil {
			logger.Fatal("refusing to seed development users", zap.Error(err))
		}
		if _, err := seedDevUsers(ctx, store.Users(), tokens, logger); err != nil {
			logger.Fatal("failed to seed development users", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.Bool("postgres", pg.Enabled()), zap.Bool("redis", redis.Enabled()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
