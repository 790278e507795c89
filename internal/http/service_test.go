package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/inventory-count/internal/apperr"
	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	ichttp "github.com/tuanvumaihuynh/inventory-count/internal/http"
	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/pkg/correlationid"
)

var milk = model.Product{
	Code:     "8690000000017",
	Name:     "Milk 1L",
	Price:    decimal.RequireFromString("15.5"),
	Barcodes: []string{"8690000000017"},
}

type fakeCatalog struct {
	imported   []byte
	encoding   string
	importErr  error
	cleared    bool
	lastSearch string
}

func (f *fakeCatalog) Import(context.Context, string) (model.ImportResult, error) {
	return model.ImportResult{}, nil
}

func (f *fakeCatalog) ImportBytes(_ context.Context, data []byte, encoding string) (model.ImportResult, error) {
	if f.importErr != nil {
		return model.ImportResult{}, f.importErr
	}
	f.imported, f.encoding = data, encoding
	return model.ImportResult{ImportID: uuid.MustParse("0198f1d2-0000-7000-8000-000000000001"), Count: 2, Blocks: 1}, nil
}

func (f *fakeCatalog) Resolve(_ context.Context, identifier string) (model.Product, bool, error) {
	if identifier == milk.Code {
		return milk, true, nil
	}
	return model.Product{}, false, nil
}

func (f *fakeCatalog) Count(context.Context) (int64, error) { return 2, nil }

func (f *fakeCatalog) Clear(context.Context) error {
	f.cleared = true
	return nil
}

func (f *fakeCatalog) Search(_ context.Context, query string) ([]model.Product, error) {
	f.lastSearch = query
	return []model.Product{milk}, nil
}

func (f *fakeCatalog) Stats(context.Context) (model.CatalogStats, error) {
	return model.CatalogStats{ProductCount: 2, DistinctProducts: 1}, nil
}

type fakeLedger struct {
	lines []model.Line
	err   error
}

func (f *fakeLedger) Append(_ context.Context, nl model.NewLine) (model.Line, error) {
	l := model.Line{
		ID:    int64(len(f.lines) + 1),
		Code:  nl.Code,
		Name:  nl.Name,
		Price: nl.Price,
		Qty:   nl.Qty,
		TS:    time.Date(2026, 1, 1, 0, 0, len(f.lines), 0, time.UTC),
	}
	f.lines = append(f.lines, l)
	return l, nil
}

func (f *fakeLedger) Count(ctx context.Context, code string, qty int) (model.Line, bool, error) {
	if f.err != nil {
		return model.Line{}, false, f.err
	}
	if code != milk.Code {
		return model.Line{}, false, nil
	}
	l, err := f.Append(ctx, model.NewLine{Code: code, Name: milk.Name, Price: milk.Price, Qty: qty})
	return l, true, err
}

func (f *fakeLedger) UndoLast(context.Context) (model.Line, bool, error) {
	if len(f.lines) == 0 {
		return model.Line{}, false, nil
	}
	l := f.lines[len(f.lines)-1]
	f.lines = f.lines[:len(f.lines)-1]
	return l, true, nil
}

func (f *fakeLedger) Remove(_ context.Context, id int64) (model.Line, error) {
	for i, l := range f.lines {
		if l.ID == id {
			f.lines = append(f.lines[:i:i], f.lines[i+1:]...)
			return l, nil
		}
	}
	return model.Line{}, apperr.LineNotFoundErr
}

func (f *fakeLedger) List(context.Context) ([]model.Line, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

func (f *fakeLedger) Clear(context.Context) (int64, error) {
	n := int64(len(f.lines))
	f.lines = nil
	return n, nil
}

func (f *fakeLedger) Summary(context.Context) (model.LedgerSummary, error) {
	s := model.LedgerSummary{Lines: len(f.lines)}
	for _, l := range f.lines {
		s.TotalQty += l.Qty
	}
	return s, nil
}

type fakeHealth struct{ ok bool }

func (f fakeHealth) IsHealthy(context.Context) (bool, error) { return f.ok, nil }

type fixture struct {
	handler http.Handler
	catalog *fakeCatalog
	ledger  *fakeLedger
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	f := fixture{catalog: &fakeCatalog{}, ledger: &fakeLedger{}}
	svc, err := ichttp.New(
		config.HTTP{Swagger: true, AllowedOrigins: []string{"*"}},
		config.Catalog{MaxImportBytes: 64},
		config.Export{FilePrefix: "sayim"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		fakeHealth{ok: true},
		f.catalog,
		f.ledger,
	)
	require.NoError(t, err)
	f.handler = svc.Handler()
	return f
}

func (f fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func decodeBody[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v))
	return v
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t)

	t.Run("Should import raw body with encoding", func(t *testing.T) {
		resp := f.do(http.MethodPost, "/api/v1/catalog/import?encoding=utf-8", "1;X;Tea\n")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "1;X;Tea\n", string(f.catalog.imported))
		assert.Equal(t, "utf-8", f.catalog.encoding)
		assert.EqualValues(t, 2, decodeBody[model.ImportResult](t, resp).Count)
		assert.NotEmpty(t, resp.Header().Get(correlationid.Header))
	})

	t.Run("Should pass at most one byte over the limit", func(t *testing.T) {
		f.do(http.MethodPost, "/api/v1/catalog/import", strings.Repeat("x", 1000))
		assert.Len(t, f.catalog.imported, 65)
	})

	t.Run("Should map import failures", func(t *testing.T) {
		f.catalog.importErr = apperr.ImportTooLargeErr
		defer func() { f.catalog.importErr = nil }()

		resp := f.do(http.MethodPost, "/api/v1/catalog/import", "x")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Contains(t, resp.Body.String(), apperr.ImportTooLargeCode)
	})

	t.Run("Should resolve product", func(t *testing.T) {
		resp := f.do(http.MethodGet, "/api/v1/catalog/products/8690000000017", "")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "Milk 1L", decodeBody[model.Product](t, resp).Name)
	})

	t.Run("Should return not found for unknown and invalid codes", func(t *testing.T) {
		for _, code := range []string{"99999", "abc"} {
			resp := f.do(http.MethodGet, "/api/v1/catalog/products/"+code, "")
			assert.Equal(t, http.StatusNotFound, resp.Code)
			assert.Contains(t, resp.Body.String(), apperr.ProductNotFoundCode)
		}
	})

	t.Run("Should search by name", func(t *testing.T) {
		resp := f.do(http.MethodGet, "/api/v1/catalog/products?q=mil", "")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "mil", f.catalog.lastSearch)
		assert.Contains(t, resp.Body.String(), `"products":[`)
	})

	t.Run("Should report stats", func(t *testing.T) {
		resp := f.do(http.MethodGet, "/api/v1/catalog/stats", "")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"product_count":2,"distinct_products":1}`, resp.Body.String())
	})

	t.Run("Should clear catalog", func(t *testing.T) {
		resp := f.do(http.MethodDelete, "/api/v1/catalog", "")

		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.True(t, f.catalog.cleared)
	})
}

func TestLedgerRoutes(t *testing.T) {
	f := newFixture(t)

	t.Run("Should count with default quantity", func(t *testing.T) {
		resp := f.do(http.MethodPost, "/api/v1/ledger/lines", `{"code":"8690000000017"}`)

		require.Equal(t, http.StatusCreated, resp.Code)
		line := decodeBody[model.Line](t, resp)
		assert.Equal(t, 1, line.Qty)
		assert.Equal(t, "Milk 1L", line.Name)
	})

	t.Run("Should count with explicit quantity", func(t *testing.T) {
		resp := f.do(http.MethodPost, "/api/v1/ledger/lines", `{"code":"8690000000017","qty":4}`)

		require.Equal(t, http.StatusCreated, resp.Code)
		assert.Equal(t, 4, decodeBody[model.Line](t, resp).Qty)
	})

	t.Run("Should reject invalid requests", func(t *testing.T) {
		for _, body := range []string{`{"code":"12a"}`, `{"code":"1","qty":0}`, `{}`, `not json`, ``} {
			resp := f.do(http.MethodPost, "/api/v1/ledger/lines", body)
			assert.Equal(t, http.StatusBadRequest, resp.Code, body)
		}
	})

	t.Run("Should return not found for unknown code", func(t *testing.T) {
		resp := f.do(http.MethodPost, "/api/v1/ledger/lines", `{"code":"99999"}`)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("Should list export and summarize", func(t *testing.T) {
		resp := f.do(http.MethodGet, "/api/v1/ledger/lines", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, decodeBody[struct {
			Lines []model.Line `json:"lines"`
		}](t, resp).Lines, 2)

		resp = f.do(http.MethodGet, "/api/v1/ledger/export.txt", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "8690000000017;1\n8690000000017;4", resp.Body.String())
		assert.Contains(t, resp.Header().Get("Content-Disposition"), `filename="sayim-`)

		resp = f.do(http.MethodGet, "/api/v1/ledger/report", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"grand_total":"77.5"`)

		resp = f.do(http.MethodGet, "/api/v1/ledger/report.txt", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), "77.50")

		resp = f.do(http.MethodGet, "/api/v1/ledger/summary", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"lines":2,"total_qty":5}`, resp.Body.String())
	})

	t.Run("Should remove by id", func(t *testing.T) {
		resp := f.do(http.MethodDelete, "/api/v1/ledger/lines/1", "")
		require.Equal(t, http.StatusOK, resp.Code)

		resp = f.do(http.MethodDelete, "/api/v1/ledger/lines/1", "")
		assert.Equal(t, http.StatusNotFound, resp.Code)

		resp = f.do(http.MethodDelete, "/api/v1/ledger/lines/abc", "")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("Should undo until empty", func(t *testing.T) {
		resp := f.do(http.MethodPost, "/api/v1/ledger/undo", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"undone":true`)

		resp = f.do(http.MethodPost, "/api/v1/ledger/undo", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"undone":false}`, resp.Body.String())
	})

	t.Run("Should clear lines", func(t *testing.T) {
		f.do(http.MethodPost, "/api/v1/ledger/lines", `{"code":"8690000000017"}`)

		resp := f.do(http.MethodDelete, "/api/v1/ledger/lines", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"removed":1}`, resp.Body.String())
	})

	t.Run("Should map persistence failures", func(t *testing.T) {
		f.ledger.err = apperr.PersistenceErr
		defer func() { f.ledger.err = nil }()

		resp := f.do(http.MethodGet, "/api/v1/ledger/lines", "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	})
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/healthz", "/metrics", "/docs", "/docs/openapi.yml"} {
		t.Run("Should serve "+path, func(t *testing.T) {
			assert.Equal(t, http.StatusOK, f.do(http.MethodGet, path, "").Code)
		})
	}
}
