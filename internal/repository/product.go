package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/inventory-count/internal/catalog"
	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
)

const (
	identifierKindBarcode   = "barcode"
	identifierKindShortCode = "short_code"
)

type ProductRepository interface {
	WithDB(db db.DB) ProductRepository
	// ReplaceAll drops the current catalog and installs records. It returns the
	// number of keyed entries stored.
	ReplaceAll(ctx context.Context, records []model.Product) (int64, error)
	FindByIdentifier(ctx context.Context, identifier string) (model.Product, bool, error)
	// FindByShortCode returns the most recently written product whose short
	// code equals code. Short codes are not unique.
	FindByShortCode(ctx context.Context, code string) (model.Product, bool, error)
	SearchByFoldedName(ctx context.Context, prefix string, limit int) ([]model.Product, error)
	Count(ctx context.Context) (int64, error)
	CountProducts(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}

type productRepository struct {
	db db.DB
}

func NewProductRepository(db db.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r productRepository) WithDB(db db.DB) ProductRepository {
	return &productRepository{db: db}
}

// ReplaceAll stores one row per logical product and one identifier row per
// keyed record. Records that differ only in Code are the same product. When
// records repeat a Code the last one wins.
func (r productRepository) ReplaceAll(ctx context.Context, records []model.Product) (int64, error) {
	if err := r.DeleteAll(ctx); err != nil {
		return 0, err
	}
	records = lastByCode(records)

	var (
		productRows    [][]any
		identifierRows [][]any
		ids            = make(map[string]int64)
	)
	for _, rec := range records {
		key := fingerprint(rec)
		id, ok := ids[key]
		if !ok {
			id = int64(len(ids) + 1)
			ids[key] = id

			var price pgtype.Numeric
			if err := price.Scan(rec.Price.String()); err != nil {
				return 0, fmt.Errorf("scan price: %w", err)
			}
			productRows = append(productRows, []any{
				id, rec.Name, catalog.FoldName(rec.Name), price, rec.ShortCode, rec.Barcodes,
			})
		}

		kind := identifierKindBarcode
		if rec.ShortCode != nil && *rec.ShortCode == rec.Code && !contains(rec.Barcodes, rec.Code) {
			kind = identifierKindShortCode
		}
		identifierRows = append(identifierRows, []any{rec.Code, id, kind})
	}

	if _, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"products"},
		[]string{"id", "name", "name_folded", "price", "short_code", "barcodes"},
		pgx.CopyFromRows(productRows),
	); err != nil {
		return 0, fmt.Errorf("copy products: %w", err)
	}

	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"product_identifiers"},
		[]string{"identifier", "product_id", "kind"},
		pgx.CopyFromRows(identifierRows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy product identifiers: %w", err)
	}

	return n, nil
}

func (r productRepository) FindByIdentifier(ctx context.Context, identifier string) (model.Product, bool, error) {
	row := r.db.QueryRow(ctx, `
		SELECT p.name, p.price::text, p.short_code, p.barcodes
		FROM product_identifiers AS i
		JOIN products AS p ON p.id = i.product_id
		WHERE i.identifier = $1
	`, identifier)

	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Product{}, false, nil
	}
	if err != nil {
		return model.Product{}, false, fmt.Errorf("find product by identifier: %w", err)
	}

	product.Code = identifier
	return product, true, nil
}

func (r productRepository) FindByShortCode(ctx context.Context, code string) (model.Product, bool, error) {
	row := r.db.QueryRow(ctx, `
		SELECT name, price::text, short_code, barcodes
		FROM products
		WHERE short_code = $1
		ORDER BY id DESC
		LIMIT 1
	`, code)

	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Product{}, false, nil
	}
	if err != nil {
		return model.Product{}, false, fmt.Errorf("find product by short code: %w", err)
	}

	product.Code = code
	return product, true, nil
}

func (r productRepository) SearchByFoldedName(ctx context.Context, prefix string, limit int) ([]model.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, price::text, short_code, barcodes
		FROM products
		WHERE name_folded LIKE @pattern ESCAPE '!'
		ORDER BY name_folded, id
		LIMIT @limit
	`, pgx.NamedArgs{
		"pattern": escapeLike(prefix) + "%",
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Product, error) {
		p, err := scanProduct(row)
		if err != nil {
			return model.Product{}, err
		}
		p.Code = p.SelectCode()
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect products: %w", err)
	}

	return products, nil
}

func (r productRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM product_identifiers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count product identifiers: %w", err)
	}
	return n, nil
}

func (r productRepository) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r productRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM product_identifiers`); err != nil {
		return fmt.Errorf("delete product identifiers: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p     model.Product
		price string
	)
	if err := row.Scan(&p.Name, &price, &p.ShortCode, &p.Barcodes); err != nil {
		return model.Product{}, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return model.Product{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d

	return p, nil
}

// fingerprint identifies the logical product a keyed record was expanded from.
func fingerprint(p model.Product) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(p.Barcodes, ","))
	sb.WriteByte('|')
	if p.ShortCode != nil {
		sb.WriteString(*p.ShortCode)
	}
	sb.WriteByte('|')
	sb.WriteString(p.Price.String())
	sb.WriteByte('|')
	sb.WriteString(p.Name)
	return sb.String()
}

// lastByCode keeps the last record for every Code, in first-seen order.
func lastByCode(records []model.Product) []model.Product {
	pos := make(map[string]int, len(records))
	out := make([]model.Product, 0, len(records))
	for _, rec := range records {
		if i, ok := pos[rec.Code]; ok {
			out[i] = rec
			continue
		}
		pos[rec.Code] = len(out)
		out = append(out, rec)
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
