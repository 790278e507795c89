package http_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apicontract "github.com/tuanvumaihuynh/inventory-count/api-contract"
)

func TestRoutesAreDocumented(t *testing.T) {
	doc, err := openapi3.NewLoader().LoadFromData(apicontract.GetSpecBytes())
	require.NoError(t, err)

	routes, ok := newFixture(t).handler.(chi.Routes)
	require.True(t, ok)

	var checked int
	err = chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if !strings.HasPrefix(route, "/api/") && route != "/healthz" {
			return nil
		}
		route = strings.TrimSuffix(route, "/")

		item := doc.Paths.Find(route)
		if assert.NotNil(t, item, "undocumented route %s", route) {
			assert.NotNil(t, item.GetOperation(method), "undocumented %s %s", method, route)
		}
		checked++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 15, checked)
}
