// Package cli holds the start-up steps shared by cmd/bmeutil and
// cmd/bme-report.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bmeutil/internal/backend"
	"bmeutil/internal/cache"
	"bmeutil/internal/config"
	"bmeutil/internal/core"
	applog "bmeutil/internal/log"
	"bmeutil/internal/metrics"
	"bmeutil/internal/reference"
	"bmeutil/internal/services"
	"bmeutil/internal/timeline"
)

// SetupLogger builds the process logger at the given LOG_LEVEL and installs it
// as the slog default.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Service is a DeviceService wired to its backend. Close releases the
// backend's connections.
type Service struct {
	*services.DeviceService
	Backend *backend.Result
}

func (s *Service) Close() error {
	return s.Backend.Close()
}

// BuildService opens the configured backend and assembles the loader, both
// caches and the aggregator. m may be nil.
func BuildService(ctx context.Context, cfg *config.Config, logger *applog.Logger, m *metrics.Metrics) (*Service, error) {
	res, err := backend.New(ctx, backend.FromAppConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}

	loader := reference.NewLoader(res.Source,
		reference.WithTimeout(cfg.LoadTimeout),
		reference.WithLogger(logger),
		reference.WithMetrics(m),
	)
	svc := services.NewDeviceService(
		cache.NewLookupCache(loader, logger, m),
		cache.NewResultCache[*core.DeviceResponse](m),
		timeline.New(cfg.TimelineFutureMonths, cfg.TimelineMaxMonths),
		services.WithFallbackRatio(cfg.CostFallbackRatio),
		services.WithLogger(logger),
		services.WithMetrics(m),
	)
	return &Service{DeviceService: svc, Backend: res}, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
