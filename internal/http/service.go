package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	"github.com/tuanvumaihuynh/inventory-count/internal/http/apierr"
	"github.com/tuanvumaihuynh/inventory-count/internal/http/metric"
	"github.com/tuanvumaihuynh/inventory-count/internal/http/middleware"
	"github.com/tuanvumaihuynh/inventory-count/internal/http/swagger"
	"github.com/tuanvumaihuynh/inventory-count/internal/service"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
	"github.com/tuanvumaihuynh/inventory-count/pkg/validator"
)

var tracer = otel.Tracer("inventory-count/internal/http")

// Service represents the HTTP service.
type Service struct {
	cfg        config.HTTP
	catalogCfg config.Catalog
	exportCfg  config.Export
	logger     *slog.Logger
	metrics    *metric.Metrics
	validator  validator.Validator
	health     db.HealthChecker

	catalogSvc service.CatalogService
	ledgerSvc  service.LedgerService
}

type CleanupFunc func(ctx context.Context) error

func New(
	cfg config.HTTP,
	catalogCfg config.Catalog,
	exportCfg config.Export,
	log *slog.Logger,
	health db.HealthChecker,
	catalogSvc service.CatalogService,
	ledgerSvc service.LedgerService,
) (*Service, error) {
	v, err := validator.NewDefaultValidator()
	if err != nil {
		return nil, fmt.Errorf("new validator: %w", err)
	}

	return &Service{
		cfg:        cfg,
		catalogCfg: catalogCfg,
		exportCfg:  exportCfg,
		logger:     log.With(slog.String("service", "http")),
		metrics:    metric.New(),
		validator:  v,
		health:     health,
		catalogSvc: catalogSvc,
		ledgerSvc:  ledgerSvc,
	}, nil
}

// Handler builds the router with middlewares and every route.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	s.RegisterMiddlewares(r)

	if s.cfg.Swagger {
		if err := swagger.Register(r); err != nil {
			s.logger.Error("error registering api docs", slog.Any("error", err))
		}
	}

	s.RegisterHandlers(r)
	return r
}

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	return s.RunWithServer(ctx, s.Handler())
}

func (s *Service) RunWithServer(ctx context.Context, handler http.Handler) (CleanupFunc, error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           handler,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64 KB
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", srv.Addr, err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	s.logger.InfoContext(ctx, "http server listening", slog.String("addr", ln.Addr().String()))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}, nil
}

func (s *Service) RegisterMiddlewares(r chi.Router) {
	r.Use(
		middleware.Recoverer(s.logger),
		middleware.CorrelationID(),
		middleware.Trace(tracer),
		middleware.Metrics(s.metrics),
		middleware.Cors(s.cfg.AllowedOrigins),
		middleware.Logging(s.logger),
	)
}

func (s *Service) RegisterHandlers(r chi.Router) {
	catalog := newCatalogHandler(s)
	ledger := newLedgerHandler(s)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Post("/import", catalog.Import)
			r.Get("/stats", catalog.Stats)
			r.Delete("/", catalog.Clear)
			r.Get("/products", catalog.Search)
			r.Get("/products/{code}", catalog.Resolve)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Post("/lines", ledger.Count)
			r.Get("/lines", ledger.List)
			r.Delete("/lines", ledger.Clear)
			r.Delete("/lines/{id}", ledger.Remove)
			r.Post("/undo", ledger.Undo)
			r.Get("/summary", ledger.Summary)
			r.Get("/export.txt", ledger.ExportText)
			r.Get("/report", ledger.Report)
			r.Get("/report.txt", ledger.ReportText)
		})
	})

	r.Get(middleware.HealthPath, s.healthz)

	r.Handle(middleware.MetricsPath, promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{
		ErrorLog: log.Default(),
	}))
}

func (s *Service) healthz(w http.ResponseWriter, r *http.Request) {
	ok, err := s.health.IsHealthy(r.Context())
	if err != nil || !ok {
		s.logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
		s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleRequestError(w http.ResponseWriter, r *http.Request, err error) {
	s.handleResponseError(w, r, apiValidationErr(err))
}

func (s *Service) handleResponseError(w http.ResponseWriter, r *http.Request, err error) {
	res := apierr.New(err)

	logLevel := slog.LevelInfo
	if res.StatusCode >= 500 {
		logLevel = slog.LevelError
	} else if res.StatusCode >= 400 {
		logLevel = slog.LevelWarn
	}
	s.logger.Log(r.Context(), logLevel, "http response error", slog.Any("error", err))

	s.writeJSON(w, r, res.StatusCode, res)
}

func (s *Service) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.ErrorContext(r.Context(), "error encoding response",
			slog.Any("error", err))
	}
}

func (s *Service) writeText(w http.ResponseWriter, r *http.Request, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		s.logger.WarnContext(r.Context(), "error writing text response",
			slog.Any("error", err))
	}
}
