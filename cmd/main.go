package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"healthpredict/config"
	"healthpredict/db"
	qhttp "healthpredict/http"
	"healthpredict/logging"
	"healthpredict/monitoring"
	"healthpredict/predictor"
	"healthpredict/render"
)

func main() {
	configPath := flag.String("config", "", "config file (default $HEALTHPREDICT_CONFIG or ./config.yaml)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize database
	if cfg.Database.Path != "" {
		if err := db.InitDB(cfg.Database.Path); err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Database initialized", zap.String("path", cfg.Database.Path))
	}

	// 3. Load artifacts; the server starts either way and reports what is missing
	service, err := predictor.NewService(cfg.Predictor(), logger.Named("predictor"))
	if err != nil {
		logger.Fatal("Failed to create predictor", zap.Error(err))
	}
	if err := service.Load(); err != nil {
		logger.Warn("Prediction disabled until artifacts are available", zap.Error(err))
	}
	if cfg.Artifacts.Watch {
		if err := service.Watch(ctx, cfg.Artifacts.Debounce); err != nil {
			logger.Warn("Artifact watcher not started", zap.Error(err))
		}
	}

	renderer, err := render.NewRenderer(render.NewFormatter(cfg.UI.Locale))
	if err != nil {
		logger.Fatal("Failed to parse templates", zap.Error(err))
	}

	collector := monitoring.NewMetricsCollector()
	collector.Start(ctx, 10*time.Second)

	qhttp.SetLogger(logger.Named("http"))
	qhttp.SetPredictor(service)
	qhttp.SetRenderer(renderer)
	qhttp.SetMetrics(monitoring.NewPredictionMetrics(collector))

	// 4. Start HTTP server
	serverCfg := qhttp.DefaultServerConfig()
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.Timeout = cfg.HTTP.Timeout
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	server := qhttp.NewServer(serverCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Handle graceful shutdown
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Exiting")
}
