package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/hacbridge/internal"
	"github.com/DukeRupert/hacbridge/internal/handler"
	"github.com/DukeRupert/hacbridge/internal/metrics"
	"github.com/DukeRupert/hacbridge/internal/middleware"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Database, backend clients, storage and tool catalog
	bridge, err := internal.NewBridge(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer bridge.Close()

	// Background tasks
	bgWorker, err := bridge.NewWorker(cfg, logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	bgWorker.Start(workerCtx)

	if cfg.APITokenHash == "" {
		logger.Warn("API_TOKEN_HASH not set, command surface is unauthenticated")
	}

	// Initialize middleware
	isSecure := cfg.IsProduction()
	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, logger)
	defer limiter.Close()
	authFailures := middleware.NewRateLimiter(10, 15*time.Minute, logger)
	defer authFailures.Close()

	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)
	tokenMw := middleware.NewAPITokenMiddleware(cfg.APITokenHash, authFailures, logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, authFailures, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)

	protect := middleware.Stack(rateLimitMw.Limit, tokenMw.RequireToken)

	// Initialize handlers
	toolHandler := handler.NewToolHandler(bridge.Registry, bridge.Recorder, logger)
	sessionHandler := handler.NewSessionHandler(bridge.Auth, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.Handle("GET /health", handler.NewHealthHandler(bridge.DB))

	// Prometheus scrape endpoint
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Exported artifacts (local storage only; R2 hands out its own links)
	if bridge.Local != nil {
		files := http.StripPrefix("/files/", http.FileServer(http.Dir(bridge.Local.BasePath())))
		mux.Handle("GET /files/", protect(files))
	}

	// Command surface
	toolHandler.RegisterRoutes(mux, protect)
	sessionHandler.RegisterRoutes(mux, protect)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	// Metrics innermost so it sees the pattern the mux matched.
	root := middleware.Stack(securityMw.Handler, loggingMw.Handler, metrics.Middleware)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "backend", cfg.HACURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	bgWorker.Stop()

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
