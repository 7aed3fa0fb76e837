package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/audit"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/config"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/scope"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger := log.New(os.Stdout, cfg.Logging.Prefix, log.LstdFlags|log.Lshortfile)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	logger.Printf("Configuration loaded (env=%s)", cfg.Environment)

	pipeline, err := server.BuildPipeline(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize pipeline: %v", err)
	}
	logger.Printf("Loaded %s", pipeline.Rules)

	// Initialize scope validator
	validator, err := scope.NewValidator(cfg.Scope.PolicyFile, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize scope validator: %v", err)
	}
	if cfg.Scope.Watch {
		if err := validator.StartHotReload(); err != nil {
			logger.Fatalf("Failed to watch scope policy: %v", err)
		}
		defer validator.StopHotReload()
	}

	var auditLog *audit.Logger
	if cfg.Audit.Enabled {
		auditLog, err = audit.NewLogger(cfg.Audit.File)
		if err != nil {
			logger.Fatalf("Failed to open audit log: %v", err)
		}
		defer auditLog.Close()
	}

	limiter := server.NewRateLimiter(server.RateLimitConfig{
		Enabled:           cfg.Server.RateLimitEnabled,
		RequestsPerMinute: cfg.Server.RateLimitPerMinute,
		RequestsPerHour:   cfg.Server.RateLimitPerHour,
		KeyBy:             cfg.Server.RateLimitKeyBy,
	})

	hc := &server.HandlerConfig{
		Analyzer:       pipeline.Analyzer,
		Scope:          validator,
		Audit:          auditLog,
		Metrics:        pipeline.Metrics,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		RateLimiter:    limiter,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	}
	srv := server.New(cfg.Server, server.NewMux(hc, cfg.Metrics.Enabled))

	logger.Println("=================================")
	logger.Println("K.A.O.S. Brain Starting")
	logger.Println("=================================")
	logger.Printf("Server:   http://%s", srv.Addr)
	logger.Printf("LLM:      %s (%s %s)", pipeline.Provider.Name(), cfg.LLM.URL, cfg.LLM.Model)
	logger.Printf("Budget:   %d attempts x %v, delay %v", cfg.LLM.MaxAttempts, cfg.LLM.Timeout, cfg.LLM.RetryDelay)
	logger.Printf("Scope:    policy %s", validator.PolicyVersion())
	logger.Println("=================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("[ERROR] Shutdown: %v", err)
		}
	}
}
