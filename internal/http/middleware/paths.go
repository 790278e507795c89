package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const (
	MetricsPath = "/metrics"
	HealthPath  = "/healthz"
	DocsPath    = "/docs"
)

// isInfraPath reports whether r targets an endpoint polled by tooling rather
// than by operators. Such requests are neither traced, measured nor logged.
func isInfraPath(r *http.Request) bool {
	switch r.URL.Path {
	case MetricsPath, HealthPath, DocsPath, DocsPath + "/openapi.yml":
		return true
	}
	return false
}

// routePattern keeps label cardinality bounded by using the chi route
// instead of the raw path.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "<unknown>"
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "<unknown>"
}
