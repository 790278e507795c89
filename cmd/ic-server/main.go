package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	"github.com/tuanvumaihuynh/inventory-count/internal/http"
	"github.com/tuanvumaihuynh/inventory-count/internal/log"
	"github.com/tuanvumaihuynh/inventory-count/internal/relay"
	"github.com/tuanvumaihuynh/inventory-count/internal/repository"
	"github.com/tuanvumaihuynh/inventory-count/internal/service"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/mq"
	"github.com/tuanvumaihuynh/inventory-count/internal/telemetry"
	"github.com/tuanvumaihuynh/inventory-count/pkg/cmdutil"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("error running server application: %v\n", err)
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
		HTTP     config.HTTP
		Catalog  config.Catalog
		Export   config.Export
		Outbox   config.Outbox
		Relay    config.Relay
		Otel     config.Otel
		// MigrateOnStart applies pending migrations before serving.
		MigrateOnStart bool `env:"MIGRATE_ON_START" envDefault:"true"`
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

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pgxPool); err != nil {
			return fmt.Errorf("error migrating database: %w", err)
		}
	}

	dbClient := db.NewClient(pgxPool)

	productRepository := repository.NewProductRepository(dbClient)
	lineRepository := repository.NewLineRepository(dbClient)
	metaRepository := repository.NewMetaRepository(dbClient)
	outboxMsgRepository := repository.NewOutboxMsgRepository(dbClient)

	catalogService := service.NewCatalogService(
		cfg.Catalog, cfg.Outbox, logger, dbClient,
		productRepository, metaRepository, outboxMsgRepository,
	)
	ledgerService := service.NewLedgerService(
		cfg.Outbox, logger, dbClient,
		lineRepository, outboxMsgRepository, catalogService,
	)

	interruptChan := cmdutil.InterruptChan()
	var wg sync.WaitGroup

	httpService, err := http.New(
		cfg.HTTP, cfg.Catalog, cfg.Export, logger, dbClient,
		catalogService, ledgerService,
	)
	if err != nil {
		return fmt.Errorf("error creating http service: %w", err)
	}
	cleanupHTTP, err := httpService.Run(ctx)
	if err != nil {
		return fmt.Errorf("error running http service: %w", err)
	}
	logger.InfoContext(ctx, "http service started", slog.Uint64("port", uint64(cfg.HTTP.Port)))

	wg.Go(func() {
		<-interruptChan

		logger.InfoContext(ctx, "http service is shutting down")
		if err := cleanupHTTP(ctx); err != nil {
			logger.ErrorContext(ctx, "error shutting down http service", slog.Any("error", err))
		}

		logger.InfoContext(ctx, "http service is stopped")
	})

	if cfg.Relay.Enabled {
		kafkaCfg, err := config.New[config.Kafka]()
		if err != nil {
			return fmt.Errorf("error loading kafka config: %w", err)
		}

		kafkaProducer, err := mq.NewKafkaProducer(ctx, kafkaCfg)
		if err != nil {
			return fmt.Errorf("error creating kafka producer: %w", err)
		}
		defer kafkaProducer.Close()

		wg.Go(func() {
			svc := relay.NewService(cfg.Relay, logger, dbClient, outboxMsgRepository, kafkaProducer)
			cleanup := svc.Run(ctx)
			logger.InfoContext(ctx, "relay service started")

			<-interruptChan

			logger.InfoContext(ctx, "relay service is shutting down")
			cleanup()

			logger.InfoContext(ctx, "relay service is stopped")
		})
	}

	wg.Wait()

	return nil
}
