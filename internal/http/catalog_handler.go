package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tuanvumaihuynh/inventory-count/internal/apperr"
	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/internal/service"
)

type catalogHandler struct {
	s          *Service
	catalogSvc service.CatalogService
}

func newCatalogHandler(s *Service) *catalogHandler {
	return &catalogHandler{
		s:          s,
		catalogSvc: s.catalogSvc,
	}
}

// Import takes the raw supplier file as the request body. The optional
// encoding query parameter overrides the configured charset.
func (h *catalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = r.Body
	if limit := h.s.catalogCfg.MaxImportBytes; limit > 0 {
		// One byte past the limit is enough for the service to reject it.
		body = io.LimitReader(r.Body, limit+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		h.s.handleRequestError(w, r, fmt.Errorf("read request body: %w", err))
		return
	}

	res, err := h.catalogSvc.ImportBytes(r.Context(), data, r.URL.Query().Get("encoding"))
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("catalog service import bytes: %w", err))
		return
	}

	h.s.metrics.ImportedRecords.Set(float64(res.Count))
	h.s.writeJSON(w, r, http.StatusOK, res)
}

func (h *catalogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalogSvc.Stats(r.Context())
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("catalog service stats: %w", err))
		return
	}

	h.s.writeJSON(w, r, http.StatusOK, stats)
}

func (h *catalogHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.catalogSvc.Clear(r.Context()); err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("catalog service clear: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *catalogHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	product, ok, err := h.catalogSvc.Resolve(r.Context(), code)
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("catalog service resolve: %w", err))
		return
	}
	if !ok {
		h.s.handleResponseError(w, r, apperr.ProductNotFoundErr)
		return
	}

	h.s.writeJSON(w, r, http.StatusOK, product)
}

type searchResponse struct {
	Query    string          `json:"query"`
	Products []model.Product `json:"products"`
}

func (h *catalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	products, err := h.catalogSvc.Search(r.Context(), q)
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("catalog service search: %w", err))
		return
	}

	h.s.logger.DebugContext(r.Context(), "catalog search",
		slog.String("query", q),
		slog.Int("hits", len(products)),
	)
	h.s.writeJSON(w, r, http.StatusOK, searchResponse{Query: q, Products: products})
}
