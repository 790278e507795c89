package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	"github.com/tuanvumaihuynh/inventory-count/internal/event"
	"github.com/tuanvumaihuynh/inventory-count/internal/log"
	"github.com/tuanvumaihuynh/inventory-count/internal/relay"
	"github.com/tuanvumaihuynh/inventory-count/internal/repository"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/mq"
	"github.com/tuanvumaihuynh/inventory-count/internal/telemetry"
	"github.com/tuanvumaihuynh/inventory-count/pkg/cmdutil"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("error running relay application: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	time.Local = time.UTC

	type Config struct {
		Log      config.Log
		Postgres config.Postgres
		Relay    config.Relay
		Kafka    config.Kafka
		Otel     config.Otel
		// AuditLog also consumes the feed and logs every event.
		AuditLog bool `env:"RELAY_AUDIT_LOG" envDefault:"false"`
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.NewSlogLogger(cfg.Log)

	cleanupTracer, err := telemetry.InitTracer(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("error initializing tracer: %w", err)
	}
	defer func() {
		if err := cleanupTracer(ctx); err != nil {
			logger.ErrorContext(ctx, "error cleaning up tracer", slog.Any("error", err))
		}
	}()

	pgxPool, err := db.NewPgxPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("error creating pgx pool: %w", err)
	}
	defer pgxPool.Close()

	dbClient := db.NewClient(pgxPool)

	kafkaProducer, err := mq.NewKafkaProducer(ctx, cfg.Kafka)
	if err != nil {
		return fmt.Errorf("error creating kafka producer: %w", err)
	}
	defer kafkaProducer.Close()

	outboxMsgRepository := repository.NewOutboxMsgRepository(dbClient)

	interruptChan := cmdutil.InterruptChan()
	var wg sync.WaitGroup

	if cfg.AuditLog {
		kafkaConsumer, err := mq.NewKafkaConsumer(ctx, cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("error creating kafka consumer: %w", err)
		}

		svc := event.New(logger, kafkaConsumer)
		cleanupEvents, err := svc.Run(ctx)
		if err != nil {
			kafkaConsumer.Close()
			return fmt.Errorf("error running event service: %w", err)
		}
		logger.InfoContext(ctx, "event service started")

		wg.Go(func() {
			<-interruptChan

			logger.InfoContext(ctx, "event service is shutting down")
			cleanupEvents()

			logger.InfoContext(ctx, "event service is stopped")
		})
	}

	wg.Go(func() {
		svc := relay.NewService(cfg.Relay, logger, dbClient, outboxMsgRepository, kafkaProducer)
		cleanup := svc.Run(ctx)
		logger.InfoContext(ctx, "relay service started")

		<-interruptChan

		logger.InfoContext(ctx, "relay service is shutting down")
		cleanup()

		logger.InfoContext(ctx, "relay service is stopped")
	})

	wg.Wait()

	return nil
}
