// Package main provides the entry point for the tenant host service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/devrev/tenantsync/internal/config"
	"github.com/devrev/tenantsync/internal/health"
	"github.com/devrev/tenantsync/internal/metrics"
	"github.com/devrev/tenantsync/internal/server"
	"github.com/devrev/tenantsync/internal/service"
	"github.com/devrev/tenantsync/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := initLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	logger.Info("starting tenant host")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Rebuild the logger with the configured level and format
	logger = initLogger(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.String("default_tenant", cfg.Host.DefaultTenant),
	)

	ctx := context.Background()

	// Initialize metrics
	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize settings store
	settingsStore, err := store.NewPostgresSettingsStore(ctx, cfg.Database.ConnString(),
		cfg.Database.MaxConnections, cfg.Database.MinConnections, logger)
	if err != nil {
		logger.Fatal("failed to create settings store", zap.Error(err))
	}
	defer settingsStore.Close()

	if err := settingsStore.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure database schema", zap.Error(err))
	}

	// Initialize token store
	var tokenStore store.TokenStore
	if cfg.Redis.Enabled {
		tokenStore, err = store.NewRedisTokenStore(cfg.Redis.Addr(), cfg.Redis.Password,
			cfg.Redis.DB, cfg.Redis.KeyPrefix, logger)
		if err != nil {
			logger.Fatal("failed to create token store", zap.Error(err))
		}
	} else {
		tokenStore = store.NewMemoryTokenStore()
		logger.Warn("redis disabled, cross-instance sync is dormant")
	}
	defer tokenStore.Close()

	// Seed tenants on an empty settings store
	if cfg.Host.SeedPath != "" {
		if err := seedTenants(ctx, cfg.Host.SeedPath, settingsStore, logger); err != nil {
			logger.Fatal("failed to seed tenants", zap.Error(err))
		}
	}

	// Wire the tenant host and sync service
	builder := service.NewContextBuilder(tokenStore, m, logger)
	host := service.NewTenantHost(settingsStore, builder, m, logger)
	syncService := service.NewSyncService(host, settingsStore, cfg.Host.DefaultTenant,
		cfg.Sync.IdleInterval, cfg.Sync.BusyBudget, m, logger)
	host.Subscribe(syncService)

	if err := host.Start(ctx); err != nil {
		logger.Fatal("failed to start tenant host", zap.Error(err))
	}

	healthChecker := health.NewHealthChecker(settingsStore, tokenStore, syncService, logger)

	// Start metrics server if enabled
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	// Start the sync loop
	syncCtx, cancelSync := context.WithCancel(context.Background())
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		if err := syncService.Run(syncCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sync loop error", zap.Error(err))
		}
	}()

	// Start HTTP server
	httpServer := server.NewServer(cfg, host, settingsStore, healthChecker, m, logger)
	httpServer.SetupRoutes()

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	// The sync loop finishes its in-flight cycle before stopping
	cancelSync()
	<-syncDone

	host.Shutdown()

	logger.Info("tenant host shutdown complete")
}

// seedTenants applies the seed manifest when the settings store is empty.
func seedTenants(ctx context.Context, path string, settingsStore store.SettingsStore, logger *zap.Logger) error {
	names, err := settingsStore.ListNames(ctx)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		logger.Debug("settings store not empty, skipping seed")
		return nil
	}

	manifest, err := config.LoadSeedManifest(path)
	if err != nil {
		return err
	}

	for _, settings := range manifest.Settings() {
		if err := settingsStore.Save(ctx, settings); err != nil {
			return err
		}
	}

	logger.Info("seeded tenants", zap.Int("count", len(manifest.Tenants)))
	return nil
}

// initLogger initializes the zap logger.
func initLogger(logLevel, logFormat string) *zap.Logger {
	var level zapcore.Level
	switch logLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "info", "":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var cfg zap.Config
	if logFormat == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
