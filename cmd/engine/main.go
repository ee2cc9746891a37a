// Package main is the entry point for the achievement evaluation engine.
//
// The engine listens for progress triggers (lesson completed, quiz
// submitted), re-evaluates the user's unearned achievements against
// fresh progress data, and awards idempotently. Triggers are accepted
// fire-and-forget: evaluation failures never propagate to the caller.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: achievement catalog, criteria, progress - no external deps
// - Application: evaluation runs (Commands/Queries/Sagas)
// - Infrastructure: PostgreSQL repositories, Redis cache, event bus
// - Interface: HTTP trigger intake and read endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// Application layer
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/command"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/eventhandler"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/query"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/application/saga"

	// Infrastructure layer
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/infrastructure/messaging"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/infrastructure/persistence/postgres"
	rediscache "github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/interface/http"

	// Packages
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/config"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/shared"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. LOAD CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. SET UP LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	slogger := setupSlog(cfg)
	log.Info("starting achievement engine",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. CONNECT TO DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. RUN MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.Migrate {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. INITIALIZE REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	var catalogRepo achievement.CatalogRepository = postgres.NewCatalogRepository(dbConn)
	awardRepo := postgres.NewAwardRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. INITIALIZE REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *rediscache.Cache
	var cachedCatalog *rediscache.CachedCatalogRepository

	cacheEnabled := !cfg.Redis.Disabled &&
		cfg.Features.IsEnabledGlobal(config.FeatureCatalogCache)

	if cacheEnabled {
		log.Info("connecting to Redis...")
		redisCfg := rediscache.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err = rediscache.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		} else {
			defer cache.Close()
			cachedCatalog = rediscache.NewCachedCatalogRepository(
				catalogRepo, cache, log, cfg.Redis.CatalogTTL, cfg.Redis.EarnedTTL)
			catalogRepo = cachedCatalog
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. INITIALIZE EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = slogger
	busConfig.WorkerPoolSize = cfg.Engine.EventWorkers

	var eventBus shared.EventBus
	useRedisBus := cache != nil &&
		cfg.Features.IsEnabledGlobal(config.FeatureRedisEventBus)

	if useRedisBus {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(cache.Client()),
			LocalBusConfig: busConfig,
			Logger:         slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to create Redis event bus: %w", err)
		}
		eventBus = redisBus
		defer func() {
			log.Info("closing event bus...")
			_ = redisBus.Close()
		}()
	} else {
		memBus := messaging.NewInMemoryEventBus(busConfig)
		eventBus = memBus
		defer func() {
			log.Info("closing event bus...")
			_ = memBus.Close()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. REGISTER EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	if cachedCatalog != nil && cfg.Features.IsEnabledGlobal(config.FeatureEarnedCache) {
		log.Info("registering event handlers...")
		awardedHandler := eventhandler.NewOnAchievementAwardedHandler(cachedCatalog, slogger)
		if err := eventBus.Subscribe(shared.EventAchievementAwarded, awardedHandler.Handle); err != nil {
			return fmt.Errorf("failed to subscribe award handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. INITIALIZE APPLICATION LAYER (Commands, Queries, Sagas)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	aggregator := query.NewProgressAggregator(progressRepo)
	evaluator := saga.NewCriteriaEvaluator(aggregator, log)
	writer := saga.NewAwardWriter(awardRepo, cfg.Features, log)

	flowConfig := saga.DefaultAwardFlowConfig()
	flowConfig.MaxAwardsPerRun = cfg.Engine.MaxAwardsPerRun
	awardFlow := saga.NewAwardFlowSaga(catalogRepo, evaluator, writer, eventBus, log, flowConfig)

	dispatcher := command.NewTriggerDispatcher(awardFlow, log, command.DispatcherConfig{
		MaxConcurrentRuns: cfg.Engine.MaxConcurrentRuns,
		RunTimeout:        cfg.Engine.RunTimeout,
		FailureLogSize:    cfg.Engine.FailureLogSize,
	})

	achievementsQuery := query.NewGetUserAchievementsHandler(catalogRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. CREATE HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.EnableMetrics = cfg.HTTP.EnableMetrics
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	httpDeps := httpserver.Dependencies{
		Dispatcher:                 dispatcher,
		GetUserAchievementsHandler: achievementsQuery,
		Logger:                     log,
		HealthChecker:              &healthChecker{db: dbConn, cache: cache},
		Features:                   cfg.Features,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. START SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting services...")

	errCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", logger.String("address", httpServer.Address()))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("achievement engine is running",
		logger.String("http_address", httpServer.Address()),
		logger.Bool("cache_enabled", cachedCatalog != nil),
		logger.Bool("redis_event_bus", useRedisBus),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	}

	log.Info("starting graceful shutdown...",
		logger.String("timeout", cfg.App.ShutdownTimeout.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Stop accepting triggers
	log.Info("stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		shutdownErr = err
	}

	// 2. Drain in-flight evaluation runs
	log.Info("draining evaluation runs...")
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error("failed to drain evaluation runs", logger.Err(err))
		shutdownErr = err
	}

	// 3. Event bus, Redis, and the database close via defers

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures the structured application logger.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}

	return logger.New(opts)
}

// setupSlog configures the slog logger used by the messaging layer.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" && !cfg.IsProduction() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// ══════════════════════════════════════════════════════════════════════════════
// ADAPTERS
// ══════════════════════════════════════════════════════════════════════════════

// healthChecker reports component health for the HTTP probes.
type healthChecker struct {
	db    *postgres.Connection
	cache *rediscache.Cache
}

// Check implements httpserver.HealthChecker.
func (h *healthChecker) Check(ctx context.Context) httpserver.HealthStatus {
	status := httpserver.HealthStatus{
		Healthy:    true,
		Ready:      true,
		Components: make(map[string]string),
	}

	if err := h.db.Ping(ctx); err != nil {
		status.Healthy = false
		status.Ready = false
		status.Message = "database unreachable"
		status.Components["postgres"] = err.Error()
	} else {
		status.Components["postgres"] = "ok"
	}

	// Redis is optional: a dead cache degrades performance, not correctness
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			status.Components["redis"] = err.Error()
		} else {
			status.Components["redis"] = "ok"
		}
	}

	return status
}
