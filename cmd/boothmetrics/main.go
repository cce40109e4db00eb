package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"boothmetrics/internal/amqp"
	"boothmetrics/internal/app"
	"boothmetrics/internal/cli"
	apphttp "boothmetrics/internal/http"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/monitor"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentApp)

	ctx, stop := cli.ShutdownContext()
	defer stop()

	// Alerts are published when a broker is configured; the dashboard works without one.
	var notifier monitor.Notifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(amqp.Config{
			URL:             cfg.AMQPURL,
			Exchange:        cfg.AMQPExchange,
			AlertRoutingKey: cfg.AlertRoutingKey,
		}, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, alerts will not be published", applog.FieldError, err)
		} else {
			defer client.Close()
			notifier = client
		}
	}

	application := cli.InitApp(ctx, cfg, logger, app.Options{Notifier: notifier})
	defer application.Close()

	srv, err := apphttp.NewServer(":"+cfg.Port, application.Dashboard, apphttp.Options{
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger,
		Metrics:        application.Metrics,
		Gatherer:       application.Registry,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", applog.FieldError, err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting boothmetrics server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
