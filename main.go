// Package main provides the main entry point for the fuel pricing configuration service
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/handlers"
	"github.com/amirphl/fuel-pricing-config/app/router"
	"github.com/amirphl/fuel-pricing-config/app/scheduler"
	"github.com/amirphl/fuel-pricing-config/app/services"
	businessflow "github.com/amirphl/fuel-pricing-config/business_flow"
	"github.com/amirphl/fuel-pricing-config/config"
	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/repository"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router        router.Router
	config        *config.ProductionConfig
	metricsServer *http.Server
	logger        *log.Logger

	// Flows are exposed for embedding callers; the ops server only serves probes.
	Configurations businessflow.ConfigurationFlow
	FeatureFlags   businessflow.FeatureFlagFlow
	StationTypes   businessflow.StationTypeFlow
	Buildups       businessflow.PriceBuildupFlow
	Prices         businessflow.PriceCalculationFlow
	Imports        businessflow.PriceImportFlow

	stopFuncs []func()
}

func main() {
	log.Println("Starting fuel pricing configuration service...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			app.logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	if app.metricsServer != nil {
		go func() {
			app.logger.Printf("Metrics listening on %s%s", app.metricsServer.Addr, cfg.Metrics.Path)
			if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	<-sigChan
	app.logger.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.Shutdown(shutdownCtx); err != nil {
		app.logger.Printf("Error during shutdown: %v", err)
	}
	if app.metricsServer != nil {
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			app.logger.Printf("Error stopping metrics server: %v", err)
		}
	}

	// Background workers stop last so in-flight requests can still track reads
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	app.logger.Println("Server stopped")
}

// initializeLogger builds the process logger, rotating to a file when configured
func initializeLogger(cfg config.LoggingConfig) *log.Logger {
	var out io.Writer = os.Stdout
	if cfg.Output == "file" || cfg.Output == "both" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if cfg.Output == "file" {
			out = rotator
		} else {
			out = io.MultiWriter(os.Stdout, rotator)
		}
	}
	logger := log.New(out, "fuel-pricing ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	log.SetOutput(out)
	return logger
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *log.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.SchemaModels()...); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		logger.Println("Database schema migrated")
	}

	logger.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeRedis connects to Redis when the cache or the event sink needs it
func initializeRedis(cfg *config.ProductionConfig, logger *log.Logger) (*redis.Client, error) {
	if cfg.Cache.Provider != "redis" && cfg.Events.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.Cache.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Printf("Redis connection established (db=%d)", cfg.Cache.RedisDB)
	return rc, nil
}

func initializeCache(cfg config.CacheConfig, rc *redis.Client, logger *log.Logger) (services.Cache, func()) {
	if cfg.Provider == "redis" {
		return services.NewRedisCache(rc, cfg.RedisPrefix), func() {}
	}
	mc := services.NewMemoryCache(utils.SystemClock{})
	stop := mc.StartJanitor(context.Background(), cfg.CleanupInterval, logger)
	return mc, stop
}

func initializeEvents(cfg config.EventsConfig, rc *redis.Client, logger *log.Logger) (services.EventPublisher, func(), error) {
	switch cfg.Provider {
	case "redis":
		return services.NewRedisEventPublisher(rc, cfg.ChannelPrefix, logger), func() {}, nil
	case "kafka":
		p, err := services.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaClientID, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Printf("kafka publisher close: %v", err)
			}
		}, nil
	case "none":
		return services.NoopEventPublisher{}, func() {}, nil
	default:
		return services.NewLogEventPublisher(logger), func() {}, nil
	}
}

func initializeEncryptor(cfg *config.ProductionConfig, logger *log.Logger) (services.Encryptor, error) {
	if cfg.Encryption.Key == "" {
		logger.Println("CONFIG_ENCRYPTION_KEY not set; sensitive configurations cannot be written")
		return nil, nil
	}
	enc, err := services.NewAESEncryptor(cfg.Encryption.Key, cfg.Encryption.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}
	return enc, nil
}

func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()
	logger := initializeLogger(cfg.Logging)

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeRedis(cfg, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	cache, stopCache := initializeCache(cfg.Cache, rc, logger)
	stopFuncs = append(stopFuncs, stopCache)

	events, stopEvents, err := initializeEvents(cfg.Events, rc, logger)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, stopEvents)

	encryptor, err := initializeEncryptor(cfg, logger)
	if err != nil {
		return nil, err
	}

	configRepo := repository.NewConfigurationRepository(db)
	versionRepo := repository.NewPriceBuildupVersionRepository(db)
	componentRepo := repository.NewPriceComponentRepository(db)
	pricingRepo := repository.NewStationTypePricingRepository(db)
	auditRepo := repository.NewPriceBuildupAuditTrailRepository(db)
	transactor := repository.NewTransactor(db)

	tracker := services.NewAccessTracker(configRepo, cfg.Tracker.QueueSize, cfg.Tracker.Workers, cfg.Store.Timeout, logger)
	stopFuncs = append(stopFuncs, tracker.Close)

	clock := utils.SystemClock{}

	configurationFlow := businessflow.NewConfigurationFlow(
		configRepo,
		cache,
		encryptor,
		events,
		tracker,
		cfg.Cache,
		cfg.Store,
		clock,
		logger,
	)

	featureFlagFlow := businessflow.NewFeatureFlagFlow(configRepo, configurationFlow, encryptor, cfg.Store, clock)

	stationTypeFlow := businessflow.NewStationTypeFlow(configurationFlow)

	buildupFlow := businessflow.NewPriceBuildupFlow(
		versionRepo,
		componentRepo,
		pricingRepo,
		auditRepo,
		transactor,
		cache,
		events,
		cfg.Store,
		clock,
		logger,
	)

	priceFlow := businessflow.NewPriceCalculationFlow(versionRepo, cache, cfg.Cache, cfg.Store, clock, logger)

	importFlow := businessflow.NewPriceImportFlow(buildupFlow, versionRepo, cfg.Store)

	if cfg.Scheduler.CacheRefreshEnabled {
		sched := scheduler.NewConfigRefreshScheduler(configurationFlow, cfg.Scheduler.CacheRefreshInterval, 0, logger)
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
	}

	checkers := map[string]handlers.Checker{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		checkers["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}
	healthHandler := handlers.NewHealthHandler(cfg.Deployment.Version, 2*time.Second, checkers, logger)

	appRouter := router.NewFiberRouter(healthHandler, cfg.Server)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return &Application{
		router:         appRouter,
		config:         cfg,
		metricsServer:  metricsServer,
		logger:         logger,
		Configurations: configurationFlow,
		FeatureFlags:   featureFlagFlow,
		StationTypes:   stationTypeFlow,
		Buildups:       buildupFlow,
		Prices:         priceFlow,
		Imports:        importFlow,
		stopFuncs:      stopFuncs,
	}, nil
}
