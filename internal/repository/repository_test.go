package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
)

// newTestDB connects to TEST_POSTGRES_URL, migrates, and wipes all tables.
// Tests are skipped when the variable is unset.
func newTestDB(t *testing.T) *db.Client {
	t.Helper()

	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := db.NewPgxPoolFromURL(ctx, url, func(c *pgxpool.Config) {
		c.MaxConns = 4
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))

	_, err = pool.Exec(ctx, `DELETE FROM product_identifiers; DELETE FROM products; DELETE FROM ledger_lines; DELETE FROM meta; DELETE FROM outbox_messages;`)
	require.NoError(t, err)

	return db.NewClient(pool)
}
