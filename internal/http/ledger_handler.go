package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tuanvumaihuynh/inventory-count/internal/apperr"
	"github.com/tuanvumaihuynh/inventory-count/internal/export"
	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/internal/service"
	"github.com/tuanvumaihuynh/inventory-count/pkg/ptr"
)

type ledgerHandler struct {
	s         *Service
	ledgerSvc service.LedgerService
	now       func() time.Time
}

func newLedgerHandler(s *Service) *ledgerHandler {
	return &ledgerHandler{
		s:         s,
		ledgerSvc: s.ledgerSvc,
		now:       time.Now,
	}
}

type countRequest struct {
	Code string `json:"code" validate:"required,digits"`
	Qty  *int   `json:"qty" validate:"omitempty,gte=1"`
}

// Count resolves the code and appends a line. qty defaults to 1.
func (h *ledgerHandler) Count(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if err := h.s.decodeJSON(w, r, &req); err != nil {
		h.s.handleRequestError(w, r, err)
		return
	}

	qty := 1
	if req.Qty != nil {
		qty = ptr.Value(req.Qty)
	}

	line, ok, err := h.ledgerSvc.Count(r.Context(), req.Code, qty)
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("ledger service count: %w", err))
		return
	}
	if !ok {
		h.s.metrics.ScansTotal.WithLabelValues("not_found").Inc()
		h.s.handleResponseError(w, r, apperr.ProductNotFoundErr)
		return
	}

	h.s.metrics.ScansTotal.WithLabelValues("counted").Inc()
	h.s.writeJSON(w, r, http.StatusCreated, line)
}

type linesResponse struct {
	Lines []model.Line `json:"lines"`
}

func (h *ledgerHandler) List(w http.ResponseWriter, r *http.Request) {
	lines, err := h.ledgerSvc.List(r.Context())
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("ledger service list: %w", err))
		return
	}

	h.s.writeJSON(w, r, http.StatusOK, linesResponse{Lines: lines})
}

type clearResponse struct {
	Removed int64 `json:"removed"`
}

func (h *ledgerHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.ledgerSvc.Clear(r.Context())
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("ledger service clear: %w", err))
		return
	}

	h.s.writeJSON(w, r, http.StatusOK, clearResponse{Removed: n})
}

func (h *ledgerHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		h.s.handleRequestError(w, r, fmt.Errorf("invalid line id %q", chi.URLParam(r, "id")))
		return
	}

	line, err := h.ledgerSvc.Remove(r.Context(), id)
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("ledger service remove: %w", err))
		return
	}

	h.s.writeJSON(w, r, http.StatusOK, line)
}

type undoResponse struct {
	Undone bool        `json:"undone"`
	Line   *model.Line `json:"line,omitempty"`
}

func (h *ledgerHandler) Undo(w http.ResponseWriter, r *http.Request) {
	line, ok, err := h.ledgerSvc.UndoLast(r.Context())
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("ledger service undo last: %w", err))
		return
	}

	res := undoResponse{Undone: ok}
	if ok {
		res.Line = &line
	}
	h.s.writeJSON(w, r, http.StatusOK, res)
}

func (h *ledgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledgerSvc.Summary(r.Context())
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("ledger service summary: %w", err))
		return
	}

	h.s.writeJSON(w, r, http.StatusOK, summary)
}

func (h *ledgerHandler) ExportText(w http.ResponseWriter, r *http.Request) {
	lines, err := h.ledgerSvc.List(r.Context())
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("ledger service list: %w", err))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteText(&buf, lines); err != nil {
		h.s.handleResponseError(w, r, err)
		return
	}

	h.s.writeText(w, r, export.FileName(h.s.exportCfg.FilePrefix, "txt", h.now()), buf.Bytes())
}

func (h *ledgerHandler) Report(w http.ResponseWriter, r *http.Request) {
	lines, err := h.ledgerSvc.List(r.Context())
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("ledger service list: %w", err))
		return
	}

	h.s.writeJSON(w, r, http.StatusOK, export.BuildReport(lines))
}

func (h *ledgerHandler) ReportText(w http.ResponseWriter, r *http.Request) {
	lines, err := h.ledgerSvc.List(r.Context())
	if err != nil {
		h.s.handleResponseError(w, r, fmt.Errorf("ledger service list: %w", err))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReport(&buf, export.BuildReport(lines)); err != nil {
		h.s.handleResponseError(w, r, err)
		return
	}

	h.s.writeText(w, r, export.FileName(h.s.exportCfg.FilePrefix+"-report", "txt", h.now()), buf.Bytes())
}
