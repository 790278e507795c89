package repository_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/internal/repository"
)

func appendLines(t *testing.T, repo repository.LineRepository, codes ...string) []model.Line {
	t.Helper()

	lines := make([]model.Line, 0, len(codes))
	for i, code := range codes {
		l, err := repo.Append(context.Background(), model.NewLine{
			Code:  code,
			Name:  "item " + code,
			Price: decimal.RequireFromString("2.50"),
			Qty:   i + 1,
		})
		require.NoError(t, err)
		lines = append(lines, l)
	}
	return lines
}

func TestLineRepository(t *testing.T) {
	client := newTestDB(t)
	ctx := context.Background()
	repo := repository.NewLineRepository(client)

	t.Run("Should assign increasing ids and non-decreasing timestamps", func(t *testing.T) {
		lines := appendLines(t, repo, "1", "2", "3")

		for i := 1; i < len(lines); i++ {
			assert.Greater(t, lines[i].ID, lines[i-1].ID)
			assert.False(t, lines[i].TS.Before(lines[i-1].TS))
		}

		listed, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, lines, listed)

		again, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, listed, again)

		_, err = repo.DeleteAll(ctx)
		require.NoError(t, err)
	})

	t.Run("Should undo only the most recent line", func(t *testing.T) {
		lines := appendLines(t, repo, "10", "20", "30")

		undone, ok, err := repo.DeleteLast(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, lines[2].ID, undone.ID)

		listed, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, lines[:2], listed)

		_, err = repo.DeleteAll(ctx)
		require.NoError(t, err)
	})

	t.Run("Should remove a middle line without touching the others", func(t *testing.T) {
		lines := appendLines(t, repo, "10", "20", "30")

		removed, ok, err := repo.Delete(ctx, lines[1].ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, lines[1], removed)

		listed, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Line{lines[0], lines[2]}, listed)

		_, ok, err = repo.Delete(ctx, lines[1].ID)
		require.NoError(t, err)
		assert.False(t, ok)

		// The next undo still targets the newest surviving line.
		undone, ok, err := repo.DeleteLast(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, lines[2].ID, undone.ID)

		_, err = repo.DeleteAll(ctx)
		require.NoError(t, err)
	})

	t.Run("Should never reuse ids after clear", func(t *testing.T) {
		before := appendLines(t, repo, "1")
		_, err := repo.DeleteAll(ctx)
		require.NoError(t, err)

		after := appendLines(t, repo, "1")
		assert.Greater(t, after[0].ID, before[0].ID)

		summary, err := repo.Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.LedgerSummary{Lines: 1, TotalQty: 1}, summary)

		_, err = repo.DeleteAll(ctx)
		require.NoError(t, err)
	})

	t.Run("Should store prices without range or scale loss", func(t *testing.T) {
		for _, price := range []string{"12345678901", "15.123456"} {
			_, err := repo.Append(ctx, model.NewLine{
				Code:  "111",
				Name:  "item 111",
				Price: decimal.RequireFromString(price),
				Qty:   1,
			})
			require.NoError(t, err)
		}

		listed, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, "12345678901", listed[0].Price.String())
		assert.Equal(t, "15.123456", listed[1].Price.String())

		_, err = repo.DeleteAll(ctx)
		require.NoError(t, err)
	})

	t.Run("Should report nothing to undo on empty ledger", func(t *testing.T) {
		_, ok, err := repo.DeleteLast(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
