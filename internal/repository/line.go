package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
)

type LineRepository interface {
	WithDB(db db.DB) LineRepository
	// Append stores a line, assigning a fresh id and a timestamp that is never
	// earlier than any stored timestamp.
	Append(ctx context.Context, line model.NewLine) (model.Line, error)
	// DeleteLast removes the line with the greatest (ts, id).
	DeleteLast(ctx context.Context) (model.Line, bool, error)
	Delete(ctx context.Context, id int64) (model.Line, bool, error)
	// List returns all lines ordered by (ts, id).
	List(ctx context.Context) ([]model.Line, error)
	DeleteAll(ctx context.Context) (int64, error)
	Summary(ctx context.Context) (model.LedgerSummary, error)
}

type lineRepository struct {
	db db.DB
}

func NewLineRepository(db db.DB) LineRepository {
	return &lineRepository{db: db}
}

func (r lineRepository) WithDB(db db.DB) LineRepository {
	return &lineRepository{db: db}
}

const lineColumns = `id, code, name, price::text, qty, ts`

func (r lineRepository) Append(ctx context.Context, line model.NewLine) (model.Line, error) {
	var price pgtype.Numeric
	if err := price.Scan(line.Price.String()); err != nil {
		return model.Line{}, fmt.Errorf("scan price: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO ledger_lines (code, name, price, qty, ts)
		SELECT @code, @name, @price, @qty,
			GREATEST(clock_timestamp(), COALESCE((SELECT MAX(ts) FROM ledger_lines), '-infinity'::timestamptz))
		RETURNING `+lineColumns,
		pgx.NamedArgs{
			"code":  line.Code,
			"name":  line.Name,
			"price": price,
			"qty":   line.Qty,
		})

	created, err := scanLine(row)
	if err != nil {
		return model.Line{}, fmt.Errorf("insert ledger line: %w", err)
	}

	return created, nil
}

func (r lineRepository) DeleteLast(ctx context.Context) (model.Line, bool, error) {
	row := r.db.QueryRow(ctx, `
		DELETE FROM ledger_lines
		WHERE id = (
			SELECT id FROM ledger_lines
			ORDER BY ts DESC, id DESC
			LIMIT 1
			FOR UPDATE
		)
		RETURNING `+lineColumns)

	return deleted(row, "delete last ledger line")
}

func (r lineRepository) Delete(ctx context.Context, id int64) (model.Line, bool, error) {
	row := r.db.QueryRow(ctx, `
		DELETE FROM ledger_lines
		WHERE id = $1
		RETURNING `+lineColumns, id)

	return deleted(row, "delete ledger line")
}

func (r lineRepository) List(ctx context.Context) ([]model.Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+lineColumns+`
		FROM ledger_lines
		ORDER BY ts, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list ledger lines: %w", err)
	}

	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Line, error) {
		return scanLine(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect ledger lines: %w", err)
	}

	return lines, nil
}

func (r lineRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM ledger_lines`)
	if err != nil {
		return 0, fmt.Errorf("delete ledger lines: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r lineRepository) Summary(ctx context.Context) (model.LedgerSummary, error) {
	var (
		lines int64
		qty   int64
	)
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(qty), 0)
		FROM ledger_lines
	`).Scan(&lines, &qty); err != nil {
		return model.LedgerSummary{}, fmt.Errorf("summarize ledger lines: %w", err)
	}

	return model.LedgerSummary{Lines: int(lines), TotalQty: int(qty)}, nil
}

func deleted(row pgx.Row, op string) (model.Line, bool, error) {
	line, err := scanLine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Line{}, false, nil
	}
	if err != nil {
		return model.Line{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return line, true, nil
}

func scanLine(row pgx.Row) (model.Line, error) {
	var (
		l     model.Line
		price string
	)
	if err := row.Scan(&l.ID, &l.Code, &l.Name, &price, &l.Qty, &l.TS); err != nil {
		return model.Line{}, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return model.Line{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	l.Price = d

	return l, nil
}
