package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tuanvumaihuynh/inventory-count/internal/apperr"
	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	"github.com/tuanvumaihuynh/inventory-count/internal/event"
	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/internal/repository"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
	"github.com/tuanvumaihuynh/inventory-count/pkg/ptr"
)

// LedgerService owns the count ledger of the active session. Append and
// UndoLast must be serialized by the caller.
type LedgerService interface {
	// Append stores line as given. Only the quantity is validated.
	Append(ctx context.Context, line model.NewLine) (model.Line, error)
	// Count resolves code, snapshots the product and appends qty of it.
	// ok is false when code is not numeric or not in the catalog.
	Count(ctx context.Context, code string, qty int) (line model.Line, ok bool, err error)
	// UndoLast removes the most recent line. ok is false on an empty ledger.
	UndoLast(ctx context.Context) (line model.Line, ok bool, err error)
	// Remove deletes exactly the line with the given id.
	Remove(ctx context.Context, id int64) (model.Line, error)
	List(ctx context.Context) ([]model.Line, error)
	Clear(ctx context.Context) (int64, error)
	Summary(ctx context.Context) (model.LedgerSummary, error)
}

type ledgerService struct {
	logger     *slog.Logger
	db         db.DB
	lineRepo   repository.LineRepository
	catalogSvc CatalogService
	publisher  publisher

	now func() time.Time
}

func NewLedgerService(
	outboxCfg config.Outbox,
	logger *slog.Logger,
	db db.DB,
	lineRepo repository.LineRepository,
	outboxMsgRepo repository.OutboxMsgRepository,
	catalogSvc CatalogService,
) LedgerService {
	return &ledgerService{
		logger:     logger.With(slog.String("service", "ledger")),
		db:         db,
		lineRepo:   lineRepo,
		catalogSvc: catalogSvc,
		publisher: publisher{
			enabled:       outboxCfg.Enabled,
			outboxMsgRepo: outboxMsgRepo,
		},
		now: time.Now,
	}
}

func (s *ledgerService) Append(ctx context.Context, line model.NewLine) (model.Line, error) {
	if line.Qty < 1 {
		return model.Line{}, apperr.InvalidQuantityErr
	}

	var created model.Line
	if err := s.db.WithTx(ctx, func(tx db.DB) error {
		l, err := s.lineRepo.
			WithDB(tx).
			Append(ctx, line)
		if err != nil {
			return fmt.Errorf("line repository append: %w", err)
		}
		created = l

		return s.publisher.publish(ctx, tx, event.TopicLedgerLineAppended, ptr.New(l.Code), lineEvent(l))
	}); err != nil {
		return model.Line{}, persistenceErr(fmt.Errorf("db with tx: %w", err))
	}

	s.logger.DebugContext(ctx, "ledger line appended",
		slog.Int64("id", created.ID),
		slog.String("code", created.Code),
		slog.Int("qty", created.Qty),
	)
	return created, nil
}

func (s *ledgerService) Count(ctx context.Context, code string, qty int) (model.Line, bool, error) {
	if qty < 1 {
		return model.Line{}, false, apperr.InvalidQuantityErr
	}

	product, ok, err := s.catalogSvc.Resolve(ctx, code)
	if err != nil {
		return model.Line{}, false, fmt.Errorf("catalog service resolve: %w", err)
	}
	if !ok {
		return model.Line{}, false, nil
	}

	line, err := s.Append(ctx, model.NewLine{
		Code:  code,
		Name:  product.Name,
		Price: product.Price,
		Qty:   qty,
	})
	if err != nil {
		return model.Line{}, false, err
	}
	return line, true, nil
}

func (s *ledgerService) UndoLast(ctx context.Context) (model.Line, bool, error) {
	var (
		removed model.Line
		found   bool
	)
	if err := s.db.WithTx(ctx, func(tx db.DB) error {
		l, ok, err := s.lineRepo.
			WithDB(tx).
			DeleteLast(ctx)
		if err != nil {
			return fmt.Errorf("line repository delete last: %w", err)
		}
		removed, found = l, ok
		if !ok {
			return nil
		}

		return s.publisher.publish(ctx, tx, event.TopicLedgerLineRemoved, ptr.New(l.Code), event.LedgerLineRemovedEvent{
			LedgerLineEvent: lineEvent(l),
			Undo:            true,
		})
	}); err != nil {
		return model.Line{}, false, persistenceErr(fmt.Errorf("db with tx: %w", err))
	}

	if found {
		s.logger.InfoContext(ctx, "ledger line undone", slog.Int64("id", removed.ID))
	}
	return removed, found, nil
}

func (s *ledgerService) Remove(ctx context.Context, id int64) (model.Line, error) {
	var (
		removed model.Line
		found   bool
	)
	if err := s.db.WithTx(ctx, func(tx db.DB) error {
		l, ok, err := s.lineRepo.
			WithDB(tx).
			Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("line repository delete: %w", err)
		}
		removed, found = l, ok
		if !ok {
			return nil
		}

		return s.publisher.publish(ctx, tx, event.TopicLedgerLineRemoved, ptr.New(l.Code), event.LedgerLineRemovedEvent{
			LedgerLineEvent: lineEvent(l),
		})
	}); err != nil {
		return model.Line{}, persistenceErr(fmt.Errorf("db with tx: %w", err))
	}

	if !found {
		return model.Line{}, apperr.LineNotFoundErr
	}

	s.logger.InfoContext(ctx, "ledger line removed", slog.Int64("id", removed.ID))
	return removed, nil
}

func (s *ledgerService) List(ctx context.Context) ([]model.Line, error) {
	lines, err := s.lineRepo.List(ctx)
	if err != nil {
		return nil, persistenceErr(fmt.Errorf("line repository list: %w", err))
	}
	return lines, nil
}

func (s *ledgerService) Clear(ctx context.Context) (int64, error) {
	now := s.now().UTC()

	var removed int64
	if err := s.db.WithTx(ctx, func(tx db.DB) error {
		n, err := s.lineRepo.
			WithDB(tx).
			DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("line repository delete all: %w", err)
		}
		removed = n

		return s.publisher.publish(ctx, tx, event.TopicLedgerCleared, nil, event.LedgerClearedEvent{
			Removed:   n,
			ClearedAt: now,
		})
	}); err != nil {
		return 0, persistenceErr(fmt.Errorf("db with tx: %w", err))
	}

	s.logger.InfoContext(ctx, "ledger cleared", slog.Int64("removed", removed))
	return removed, nil
}

func (s *ledgerService) Summary(ctx context.Context) (model.LedgerSummary, error) {
	summary, err := s.lineRepo.Summary(ctx)
	if err != nil {
		return model.LedgerSummary{}, persistenceErr(fmt.Errorf("line repository summary: %w", err))
	}
	return summary, nil
}

func lineEvent(l model.Line) event.LedgerLineEvent {
	return event.LedgerLineEvent{
		ID:    l.ID,
		Code:  l.Code,
		Name:  l.Name,
		Price: l.Price,
		Qty:   l.Qty,
		TS:    l.TS,
	}
}
