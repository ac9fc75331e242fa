package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bmeutil/internal/amqp"
	"bmeutil/internal/cli"
	apphttp "bmeutil/internal/http"
	applog "bmeutil/internal/log"
	"bmeutil/internal/metrics"
	"bmeutil/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	svc, err := cli.BuildService(context.Background(), cfg, logger, m)
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer svc.Close()

	opts := []apphttp.Option{apphttp.WithLogger(logger)}
	if m != nil {
		opts = append(opts, apphttp.WithMetrics(m))
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, opts...)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	// The server answers /healthz while the reference tables load; device
	// requests issued meanwhile wait for the same load.
	go func() {
		start := time.Now()
		if err := svc.Preload(ctx); err != nil {
			logger.Warn("Reference preload failed, requests will retry",
				applog.NewFields().WithOperation(applog.OpStartup).WithError(err, applog.ErrorTypeLoad).ToSlice()...)
			return
		}
		logger.Info("Reference data preloaded",
			applog.FieldOperation, applog.OpStartup,
			applog.FieldDuration, time.Since(start).Milliseconds())
	}()

	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReloadKey, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without reload notifications", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			reloadWorker := worker.NewReloadWorker(svc, logger)
			go func() {
				if err := reloadWorker.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Reload consumer stopped", applog.FieldError, err)
				}
			}()
			logger.Info("Listening for reload messages", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPReloadKey)
		}
	}

	logger.Info("Starting bmeutil server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"metrics_enabled", m != nil,
		"amqp_enabled", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		svc.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
