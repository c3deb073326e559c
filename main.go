package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"futuresGuard/config"
	"futuresGuard/internal/adapters/binanceclient"
	"futuresGuard/internal/adapters/httpapi"
	"futuresGuard/internal/adapters/logger"
	"futuresGuard/internal/adapters/metrics"
	"futuresGuard/internal/adapters/sqlite"
	"futuresGuard/internal/app"
	"futuresGuard/internal/ports"
)

func newLogger(cfg *config.Config) ports.Logger {
	if cfg.LogFormat == "json" {
		return logger.NewZapLogger(cfg.LogLevel)
	}
	return logger.NewStdLogger(cfg.LogLevel)
}

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := newLogger(cfg)
	if zl, ok := appLogger.(*logger.ZapLogger); ok {
		defer zl.Sync()
	}
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Journal (Database Adapter)
	journal, err := sqlite.NewJournal(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize journal")
		log.Fatalf("FATAL: Failed to initialize journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing journal")
		}
	}()

	// 4. Initialize Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics := metrics.New(registry)

	// 5. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:         cfg.APIKey,
		SecretKey:      cfg.SecretKey,
		UseTestnet:     cfg.IsTestnet,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         appLogger,
		Metrics:        promMetrics,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.Ping(context.Background()); err != nil {
		appLogger.Warn(context.Background(), "Exchange ping failed at startup; continuing", map[string]interface{}{"error": err.Error()})
	}

	// 6. Initialize Portfolio
	portfolio, err := app.New(cfg, appLogger, binanceClient, journal, promMetrics)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize portfolio")
		log.Fatalf("FATAL: Failed to initialize portfolio: %v", err)
	}

	// 7. Control surface
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(portfolio, promMetrics.Handler(), appLogger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		appLogger.Info(context.Background(), "HTTP control surface listening", map[string]interface{}{"addr": cfg.HTTPAddr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(context.Background(), err, "HTTP server failed")
		}
	}()

	// 8. Run until signalled
	runErr := portfolio.Start(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(context.Background(), err, "HTTP server shutdown failed")
	}

	if runErr != nil {
		appLogger.Error(context.Background(), runErr, "Portfolio exited with error")
		log.Fatalf("FATAL: Portfolio exited with error: %v", runErr)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
