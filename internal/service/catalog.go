package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/inventory-count/internal/apperr"
	"github.com/tuanvumaihuynh/inventory-count/internal/catalog"
	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	"github.com/tuanvumaihuynh/inventory-count/internal/event"
	"github.com/tuanvumaihuynh/inventory-count/internal/log"
	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/internal/repository"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
	"github.com/tuanvumaihuynh/inventory-count/pkg/validator"
)

type CatalogService interface {
	// Import replaces the catalog with the records parsed from text. The
	// previous catalog stays in place if parsing or storing fails.
	Import(ctx context.Context, text string) (model.ImportResult, error)
	// ImportBytes decodes data with the given encoding label and imports it.
	ImportBytes(ctx context.Context, data []byte, encoding string) (model.ImportResult, error)
	// Resolve looks identifier up as a barcode or key first and as a short
	// code second. ok is false for non-numeric input and for unknown codes.
	Resolve(ctx context.Context, identifier string) (product model.Product, ok bool, err error)
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
	Search(ctx context.Context, query string) ([]model.Product, error)
	Stats(ctx context.Context) (model.CatalogStats, error)
}

type parseFunc func(text string) ([]model.Product, catalog.Stats)

type catalogService struct {
	cfg         config.Catalog
	logger      *slog.Logger
	db          db.DB
	productRepo repository.ProductRepository
	metaRepo    repository.MetaRepository
	publisher   publisher

	parse parseFunc
	now   func() time.Time
}

func NewCatalogService(
	cfg config.Catalog,
	outboxCfg config.Outbox,
	logger *slog.Logger,
	db db.DB,
	productRepo repository.ProductRepository,
	metaRepo repository.MetaRepository,
	outboxMsgRepo repository.OutboxMsgRepository,
) CatalogService {
	return &catalogService{
		cfg:         cfg,
		logger:      logger.With(slog.String("service", "catalog")),
		db:          db,
		productRepo: productRepo,
		metaRepo:    metaRepo,
		publisher: publisher{
			enabled:       outboxCfg.Enabled,
			outboxMsgRepo: outboxMsgRepo,
		},
		parse: catalog.ParseWithStats,
		now:   time.Now,
	}
}

func (s *catalogService) Import(ctx context.Context, text string) (model.ImportResult, error) {
	importID, err := uuid.NewV7()
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("generate uuid v7: %w", err)
	}
	ctx = log.ContextWith(ctx, slog.String("import_id", importID.String()))

	records, stats, err := s.safeParse(text)
	if err != nil {
		s.logger.ErrorContext(ctx, "catalog parse failed", slog.Any("error", err))
		return model.ImportResult{}, apperr.ImportFailedErr.WrapParent(err)
	}

	now := s.now().UTC()

	var count int64
	if err := s.db.WithTx(ctx, func(tx db.DB) error {
		n, err := s.productRepo.
			WithDB(tx).
			ReplaceAll(ctx, records)
		if err != nil {
			return fmt.Errorf("product repository replace all: %w", err)
		}
		count = n

		if err := s.metaRepo.
			WithDB(tx).
			Set(ctx, map[string]string{
				repository.MetaKeyProductCount: strconv.FormatInt(n, 10),
				repository.MetaKeyLastImportID: importID.String(),
				repository.MetaKeyLastImportAt: now.Format(time.RFC3339Nano),
			}); err != nil {
			return fmt.Errorf("meta repository set: %w", err)
		}

		return s.publisher.publish(ctx, tx, event.TopicCatalogImported, nil, event.CatalogImportedEvent{
			ImportID:   importID,
			Count:      n,
			Blocks:     stats.Blocks,
			Dropped:    stats.Dropped,
			ImportedAt: now,
		})
	}); err != nil {
		return model.ImportResult{}, persistenceErr(fmt.Errorf("db with tx: %w", err))
	}

	s.logger.InfoContext(ctx, "catalog imported",
		slog.Int("lines", stats.Lines),
		slog.Int("blocks", stats.Blocks),
		slog.Int("dropped", stats.Dropped),
		slog.Int64("count", count),
	)

	return model.ImportResult{
		ImportID: importID,
		Count:    count,
		Blocks:   stats.Blocks,
		Dropped:  stats.Dropped,
	}, nil
}

// safeParse runs the parser and turns a panic into an error so that a parser
// fault never reaches the store.
func (s *catalogService) safeParse(text string) (records []model.Product, stats catalog.Stats, err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			records, stats = nil, catalog.Stats{}
			err = fmt.Errorf("parse catalog: panic: %v", rvr)
		}
	}()

	records, stats = s.parse(text)
	return records, stats, nil
}

func (s *catalogService) ImportBytes(ctx context.Context, data []byte, encoding string) (model.ImportResult, error) {
	if s.cfg.MaxImportBytes > 0 && int64(len(data)) > s.cfg.MaxImportBytes {
		return model.ImportResult{}, apperr.ImportTooLargeErr
	}

	if encoding == "" {
		encoding = s.cfg.ImportEncoding
	}
	if !catalog.KnownEncoding(encoding) {
		return model.ImportResult{}, apperr.ValidationErr.WithMsg(fmt.Sprintf("unknown encoding %q", encoding))
	}

	return s.Import(ctx, catalog.Decode(data, encoding))
}

func (s *catalogService) Resolve(ctx context.Context, identifier string) (model.Product, bool, error) {
	if !validator.IsDigits(identifier) {
		return model.Product{}, false, nil
	}

	product, ok, err := s.productRepo.FindByIdentifier(ctx, identifier)
	if err != nil {
		return model.Product{}, false, persistenceErr(fmt.Errorf("product repository find by identifier: %w", err))
	}
	if ok {
		return product, true, nil
	}

	product, ok, err = s.productRepo.FindByShortCode(ctx, identifier)
	if err != nil {
		return model.Product{}, false, persistenceErr(fmt.Errorf("product repository find by short code: %w", err))
	}
	return product, ok, nil
}

func (s *catalogService) Count(ctx context.Context) (int64, error) {
	n, err := s.productRepo.Count(ctx)
	if err != nil {
		return 0, persistenceErr(fmt.Errorf("product repository count: %w", err))
	}
	return n, nil
}

func (s *catalogService) Clear(ctx context.Context) error {
	now := s.now().UTC()

	if err := s.db.WithTx(ctx, func(tx db.DB) error {
		if err := s.productRepo.
			WithDB(tx).
			DeleteAll(ctx); err != nil {
			return fmt.Errorf("product repository delete all: %w", err)
		}

		if err := s.metaRepo.
			WithDB(tx).
			Set(ctx, map[string]string{
				repository.MetaKeyProductCount: "0",
			}); err != nil {
			return fmt.Errorf("meta repository set: %w", err)
		}

		return s.publisher.publish(ctx, tx, event.TopicCatalogCleared, nil, event.CatalogClearedEvent{
			ClearedAt: now,
		})
	}); err != nil {
		return persistenceErr(fmt.Errorf("db with tx: %w", err))
	}

	s.logger.InfoContext(ctx, "catalog cleared")
	return nil
}

// Search returns products whose name starts with query, ignoring case the
// way Turkish does. Short queries return nothing.
func (s *catalogService) Search(ctx context.Context, query string) ([]model.Product, error) {
	folded := catalog.FoldName(query)
	if len([]rune(folded)) < s.cfg.SearchMinLen {
		return []model.Product{}, nil
	}

	limit := s.cfg.SearchLimit
	if limit <= 0 {
		limit = 50
	}

	products, err := s.productRepo.SearchByFoldedName(ctx, folded, limit)
	if err != nil {
		return nil, persistenceErr(fmt.Errorf("product repository search by folded name: %w", err))
	}
	return products, nil
}

func (s *catalogService) Stats(ctx context.Context) (model.CatalogStats, error) {
	values, err := s.metaRepo.GetMany(ctx,
		repository.MetaKeyProductCount,
		repository.MetaKeyLastImportID,
		repository.MetaKeyLastImportAt,
	)
	if err != nil {
		return model.CatalogStats{}, persistenceErr(fmt.Errorf("meta repository get many: %w", err))
	}

	var stats model.CatalogStats
	if v, ok := values[repository.MetaKeyProductCount]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return model.CatalogStats{}, fmt.Errorf("parse product count %q: %w", v, err)
		}
		stats.ProductCount = n
	}
	if v, ok := values[repository.MetaKeyLastImportID]; ok {
		id, err := uuid.Parse(v)
		if err != nil {
			return model.CatalogStats{}, fmt.Errorf("parse last import id %q: %w", v, err)
		}
		stats.LastImportID = &id
	}
	if v, ok := values[repository.MetaKeyLastImportAt]; ok {
		at, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return model.CatalogStats{}, fmt.Errorf("parse last import time %q: %w", v, err)
		}
		stats.LastImportAt = &at
	}

	distinct, err := s.productRepo.CountProducts(ctx)
	if err != nil {
		return model.CatalogStats{}, persistenceErr(fmt.Errorf("product repository count products: %w", err))
	}
	stats.DistinctProducts = distinct

	return stats, nil
}
