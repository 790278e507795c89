package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/inventory-count/internal/apperr"
	"github.com/tuanvumaihuynh/inventory-count/internal/catalog"
	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	"github.com/tuanvumaihuynh/inventory-count/internal/event"
	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/internal/repository"
)

const milkText = "1;100;Milk 1L\n3;100;8690000000017\n4;0;100;1;15,50;15,50;0\n"

type catalogFixture struct {
	svc      *catalogService
	db       *fakeDB
	products *fakeProductRepo
	meta     *fakeMetaRepo
	outbox   *fakeOutboxRepo
}

func newCatalogFixture(outboxEnabled bool) catalogFixture {
	f := catalogFixture{
		db:       &fakeDB{},
		products: newFakeProductRepo(),
		meta:     newFakeMetaRepo(),
		outbox:   &fakeOutboxRepo{},
	}
	svc := NewCatalogService(
		config.Catalog{ImportEncoding: catalog.DefaultEncoding, MaxImportBytes: 1024, SearchLimit: 2, SearchMinLen: 2},
		config.Outbox{Enabled: outboxEnabled},
		discardLogger(),
		f.db, f.products, f.meta, f.outbox,
	).(*catalogService)
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	f.svc = svc
	return f
}

func TestCatalogServiceImport(t *testing.T) {
	ctx := context.Background()

	t.Run("Should install records and persist the count", func(t *testing.T) {
		f := newCatalogFixture(false)

		res, err := f.svc.Import(ctx, milkText)
		require.NoError(t, err)
		assert.EqualValues(t, 2, res.Count)
		assert.Equal(t, 1, res.Blocks)
		assert.Zero(t, res.Dropped)
		assert.Equal(t, "2", f.meta.values[repository.MetaKeyProductCount])
		assert.Equal(t, res.ImportID.String(), f.meta.values[repository.MetaKeyLastImportID])
		assert.Empty(t, f.outbox.msgs)
	})

	t.Run("Should report dropped blocks", func(t *testing.T) {
		f := newCatalogFixture(false)

		res, err := f.svc.Import(ctx, milkText+"1;200;Bread\n4;0;200;1;abc;abc;0\n")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Blocks)
		assert.Equal(t, 1, res.Dropped)
	})

	t.Run("Should be idempotent", func(t *testing.T) {
		f := newCatalogFixture(false)

		_, err := f.svc.Import(ctx, milkText)
		require.NoError(t, err)
		first := f.products.byIdentifier

		_, err = f.svc.Import(ctx, milkText)
		require.NoError(t, err)
		assert.Equal(t, first, f.products.byIdentifier)
	})

	t.Run("Should keep previous catalog when parser panics", func(t *testing.T) {
		f := newCatalogFixture(false)
		_, err := f.svc.Import(ctx, milkText)
		require.NoError(t, err)

		f.svc.parse = func(string) ([]model.Product, catalog.Stats) { panic("boom") }
		_, err = f.svc.Import(ctx, "anything")
		require.ErrorIs(t, err, apperr.ImportFailedErr)

		assert.Equal(t, 1, f.products.replaced)
		assert.Equal(t, 1, f.db.txs)
		_, ok, err := f.svc.Resolve(ctx, "8690000000017")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should surface storage failures as persistence errors", func(t *testing.T) {
		f := newCatalogFixture(false)
		f.db.txErr = errStorage

		_, err := f.svc.Import(ctx, milkText)
		require.ErrorIs(t, err, apperr.PersistenceErr)
		require.ErrorIs(t, err, errStorage)
	})

	t.Run("Should write an audit event when enabled", func(t *testing.T) {
		f := newCatalogFixture(true)

		_, err := f.svc.Import(ctx, milkText)
		require.NoError(t, err)
		assert.Equal(t, []string{event.TopicCatalogImported}, f.outbox.topics())
		assert.JSONEq(t, `{"import_id":"`+f.meta.values[repository.MetaKeyLastImportID]+`","count":2,"blocks":1,"dropped":0,"imported_at":"2026-03-04T05:06:07Z"}`,
			string(f.outbox.msgs[0].Payload))
	})
}

func TestCatalogServiceImportBytes(t *testing.T) {
	ctx := context.Background()

	t.Run("Should decode windows-1254 by default", func(t *testing.T) {
		f := newCatalogFixture(false)

		// "Şeker" in windows-1254.
		data := []byte("1;X;\xdeeker\n3;X;111\n4;0;X;1;2\n")
		_, err := f.svc.ImportBytes(ctx, data, "")
		require.NoError(t, err)

		p, ok, err := f.svc.Resolve(ctx, "111")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Şeker", p.Name)
	})

	t.Run("Should reject oversized files", func(t *testing.T) {
		f := newCatalogFixture(false)

		_, err := f.svc.ImportBytes(ctx, make([]byte, 1025), "")
		require.ErrorIs(t, err, apperr.ImportTooLargeErr)
		assert.Zero(t, f.db.txs)
	})

	t.Run("Should reject unknown encodings", func(t *testing.T) {
		f := newCatalogFixture(false)

		_, err := f.svc.ImportBytes(ctx, []byte(milkText), "klingon")
		require.ErrorIs(t, err, apperr.ValidationErr)
	})
}

func TestCatalogServiceResolve(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(false)
	_, err := f.svc.Import(ctx, milkText+"1;X;Tea\n3;X;555\n4;0;X;1;3\n4;0;X;1;4,25;7777\n")
	require.NoError(t, err)

	t.Run("Should resolve barcode", func(t *testing.T) {
		p, ok, err := f.svc.Resolve(ctx, "8690000000017")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Milk 1L", p.Name)
		assert.Equal(t, "15.5", p.Price.String())
	})

	t.Run("Should resolve short code", func(t *testing.T) {
		p, ok, err := f.svc.Resolve(ctx, "7777")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Tea", p.Name)
		assert.Equal(t, "4.25", p.Price.String())
	})

	t.Run("Should not find unknown code", func(t *testing.T) {
		_, ok, err := f.svc.Resolve(ctx, "99999")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should reject non numeric input without lookup", func(t *testing.T) {
		f.products.err = errStorage
		defer func() { f.products.err = nil }()

		for _, in := range []string{"", "12a", " 123", "-1"} {
			_, ok, err := f.svc.Resolve(ctx, in)
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("Should wrap lookup failures", func(t *testing.T) {
		f.products.err = errStorage
		defer func() { f.products.err = nil }()

		_, _, err := f.svc.Resolve(ctx, "123")
		require.ErrorIs(t, err, apperr.PersistenceErr)
	})
}

func TestCatalogServiceSearch(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(false)
	_, err := f.svc.Import(ctx, "1;X;milk a\n3;X;1\n4;0;X;1;1\n1;X;milk b\n3;X;2\n4;0;X;1;1\n1;X;milk c\n3;X;3\n4;0;X;1;1\n")
	require.NoError(t, err)

	t.Run("Should ignore short queries", func(t *testing.T) {
		products, err := f.svc.Search(ctx, "m")
		require.NoError(t, err)
		assert.Empty(t, products)
	})

	t.Run("Should cap results", func(t *testing.T) {
		products, err := f.svc.Search(ctx, " Milk")
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, "1", products[0].Code)
		assert.Equal(t, "2", products[1].Code)
	})
}

func TestCatalogServiceClearAndStats(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(true)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CatalogStats{}, stats)

	res, err := f.svc.Import(ctx, milkText)
	require.NoError(t, err)

	stats, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.ProductCount)
	assert.EqualValues(t, 1, stats.DistinctProducts)
	require.NotNil(t, stats.LastImportID)
	assert.Equal(t, res.ImportID, *stats.LastImportID)
	require.NotNil(t, stats.LastImportAt)
	assert.True(t, stats.LastImportAt.Equal(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)))

	require.NoError(t, f.svc.Clear(ctx))

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ProductCount)
	assert.Zero(t, stats.DistinctProducts)
	assert.Equal(t, []string{event.TopicCatalogImported, event.TopicCatalogCleared}, f.outbox.topics())
}

func TestCatalogServiceStatsWrapsCountFailure(t *testing.T) {
	f := newCatalogFixture(false)
	f.products.err = errStorage

	_, err := f.svc.Stats(context.Background())
	require.ErrorIs(t, err, apperr.PersistenceErr)
}
