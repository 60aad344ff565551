package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"finwatch/internal/api"
	"finwatch/internal/api/handlers"
	"finwatch/internal/banner"
	"finwatch/internal/config"
	"finwatch/internal/database"
	"finwatch/internal/database/repositories"
	"finwatch/internal/discovery"
	"finwatch/internal/enrichment"
	"finwatch/internal/ingestion"

	"github.com/pterm/pterm"
)

func main() {
	// Initialize logger with INFO level as a sensible default.
	// Reconfigured after loading the configuration (LOG_LEVEL).
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo)

	// Print banner
	banner.Print()

	logger.Info("Initializing FinWatch - Inventory & Security Event Ingestion...")

	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		logger.WithCaller().Fatal("Failed to load configuration", logger.Args("error", err))
	}

	// Apply configured log level (trace, debug, info, warn, error, fatal)
	lvl := strings.ToLower(cfg.LogLevel)
	var ptermLevel pterm.LogLevel
	switch lvl {
	case "trace":
		ptermLevel = pterm.LogLevelTrace
	case "debug":
		ptermLevel = pterm.LogLevelDebug
	case "info":
		ptermLevel = pterm.LogLevelInfo
	case "warn", "warning":
		ptermLevel = pterm.LogLevelWarn
	case "error":
		ptermLevel = pterm.LogLevelError
	case "fatal":
		ptermLevel = pterm.LogLevelFatal
	default:
		ptermLevel = pterm.LogLevelInfo
	}
	logger = pterm.DefaultLogger.WithLevel(ptermLevel)
	logger.Debug("Log level set", logger.Args("level", lvl))

	logger.Debug("Configuration loaded",
		logger.Args(
			"db_path", cfg.Database.Path,
			"server_port", cfg.Server.Port,
			"data_dir", cfg.Sources.DataDir,
		))

	// Initialize database connection with configured settings
	db, err := database.NewConnection(&database.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnMaxLife:  cfg.Database.ConnMaxLife,
	}, logger)
	if err != nil {
		logger.WithCaller().Fatal("Failed to connect to database", logger.Args("error", err))
	}

	// Initialize repositories
	logger.Debug("Initializing repositories...")
	deviceRepo := repositories.NewDeviceRepository(db, logger)
	eventRepo := repositories.NewSecurityEventRepository(db, logger)
	statsRepo := repositories.NewStatsRepository(db, logger)

	// Initialize GeoIP enricher (optional - works without a GeoIP database)
	var geoIP *enrichment.GeoIPEnricher
	if cfg.GeoIP.Enabled {
		logger.Debug("Initializing GeoIP enricher...")
		geoIP, err = enrichment.NewGeoIPEnricher(cfg.GeoIP.CityDBPath, logger)
		if err != nil {
			logger.Warn("GeoIP enricher initialization failed, continuing without GeoIP",
				logger.Args("error", err))
			geoIP = nil
		} else if !geoIP.IsEnabled() {
			geoIP = nil
		}
	} else {
		logger.Info("GeoIP enrichment disabled by configuration")
	}

	// Resolve source paths: explicit configuration wins, discovery fills gaps
	devicePath := cfg.Sources.DeviceInventoryPath
	eventPath := cfg.Sources.EventLogPath
	if cfg.Sources.AutoDiscover && (devicePath == "" || eventPath == "") {
		logger.Debug("Running source discovery...", logger.Args("data_dir", cfg.Sources.DataDir))
		sources := discovery.NewEngine(cfg.Sources.DataDir, logger).Discover()
		if devicePath == "" {
			devicePath = discovery.Find(sources, discovery.KindDeviceInventory)
		}
		if eventPath == "" {
			eventPath = discovery.Find(sources, discovery.KindEventLog)
		}
	}
	logger.Info("Data sources resolved",
		logger.Args("device_inventory", devicePath, "event_log", eventPath))

	// Initialize ingestion pipeline
	logger.Debug("Initializing ingestion pipeline...")
	classifier := ingestion.NewClassifier(ingestion.DefaultRules())
	pipeline := ingestion.NewPipeline(deviceRepo, eventRepo, classifier, geoIP, logger, ingestion.Config{
		Delimiter:    cfg.Sources.DelimiterRune(),
		BatchSize:    cfg.Ingestion.BatchSize,
		MaxEventRows: cfg.Ingestion.MaxEventRows,
	})

	// Run initial ingestion. Missing sources are reported, not fatal.
	logger.Info("Running initial ingestion...")
	pipeline.Run(context.Background(), devicePath, eventPath)

	// Watch source files for changes and re-ingest
	var watcher *ingestion.Watcher
	if cfg.Sources.WatchEnabled && (devicePath != "" || eventPath != "") {
		watcher = ingestion.NewWatcher(pipeline, devicePath, eventPath, logger)
		if err := watcher.Start(); err != nil {
			logger.Warn("Failed to start source watcher, continuing without it",
				logger.Args("error", err))
			watcher = nil
		}
	}

	// Initialize event retention cleanup service
	logger.Debug("Initializing event cleanup service...")
	cleanupService := database.NewCleanupService(
		db,
		logger,
		cfg.Database.RetentionDays,
		cfg.Database.CleanupInterval,
		cfg.Database.CleanupTime,
		cfg.Database.VacuumEnabled,
	)
	cleanupService.Start()

	// Initialize web server with configured settings
	logger.Info("Initializing web server...")
	dashboardHandler := handlers.NewDashboardHandler(statsRepo, deviceRepo, eventRepo, logger)
	ingestionHandler := handlers.NewIngestionHandler(pipeline, devicePath, eventPath, logger)
	webServer := api.NewServer(&api.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		Production: cfg.Server.Production,
	}, dashboardHandler, ingestionHandler, logger)

	// Start web server in goroutine
	go func() {
		if err := webServer.Run(); err != nil {
			logger.WithCaller().Error("Web server error", logger.Args("error", err))
		}
	}()

	logger.Info("FinWatch is running",
		logger.Args("url", pterm.Sprintf("http://localhost:%d", cfg.Server.Port)))

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan

	logger.Info("Shutdown signal received, stopping services...")

	// Stop the watcher first (prevents new ingestion runs)
	if watcher != nil {
		logger.Debug("Stopping source watcher...")
		watcher.Stop()
	}

	// Stop cleanup service
	logger.Debug("Stopping cleanup service...")
	cleanupService.Stop()

	// Stop web server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Debug("Stopping web server...")
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.WithCaller().Error("Web server shutdown error", logger.Args("error", err))
	} else {
		logger.Info("Web server stopped successfully")
	}

	// Close GeoIP
	if geoIP != nil {
		geoIP.Close()
	}

	logger.Info("FinWatch stopped gracefully")
}
