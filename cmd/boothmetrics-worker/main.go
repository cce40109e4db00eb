package main

import (
	"context"
	"errors"
	"os"
	"time"

	"boothmetrics/internal/amqp"
	"boothmetrics/internal/app"
	"boothmetrics/internal/cli"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentWorker)
	logger.Info("Starting boothmetrics-worker")

	if err := cfg.RequireAMQP(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.ShutdownContext()
	defer cancel()

	amqpClient, err := amqp.NewClient(amqp.Config{
		URL:             cfg.AMQPURL,
		Exchange:        cfg.AMQPExchange,
		IngestQueue:     cfg.IngestQueue,
		AlertRoutingKey: cfg.AlertRoutingKey,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	application := cli.InitApp(ctx, cfg, logger, app.Options{Notifier: amqpClient})
	defer application.Close()

	scheduler, err := worker.NewMonitorScheduler(cfg.MonitorSchedule, application.Monitor, cfg.StoreTimeout, logger)
	if err != nil {
		logger.Error("Failed to schedule threshold checks", applog.FieldError, err)
		os.Exit(1)
	}
	// Catch up on anything ingested while the worker was down.
	scheduler.RunOnce()
	scheduler.Start()

	ingestWorker := worker.NewIngestWorker(application.Dashboard, logger)
	go func() {
		defer cancel()
		err := amqpClient.ConsumeTransactions(ctx, ingestWorker.HandleTransactionMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	scheduler.Stop(shutdownCtx)
	logger.Info("Worker shutdown complete")
}
