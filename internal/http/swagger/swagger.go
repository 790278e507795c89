// Package swagger serves the embedded OpenAPI document and a Swagger UI page
// for it.
package swagger

import (
	"html/template"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	apicontract "github.com/tuanvumaihuynh/inventory-count/api-contract"
)

const (
	docsURL = "/docs"
	specURL = "/docs/openapi.yml"

	uiVersion = "5.29.3"
)

var page = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Title}} {{.Version}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@{{.UIVersion}}/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@{{.UIVersion}}/swagger-ui-bundle.js" crossorigin></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({ url: {{.SpecURL}}, dom_id: '#swagger-ui', deepLinking: true });
  };
</script>
</body>
</html>
`))

type pageData struct {
	Title     string
	Version   string
	UIVersion string
	SpecURL   string
}

// Register mounts the docs page and the raw document on r.
func Register(r chi.Router) error {
	specBytes := apicontract.GetSpecBytes()

	doc, err := openapi3.NewLoader().LoadFromData(specBytes)
	if err != nil {
		return err
	}

	data := pageData{
		Title:     doc.Info.Title,
		Version:   doc.Info.Version,
		UIVersion: uiVersion,
		SpecURL:   specURL,
	}

	r.Get(docsURL, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		page.Execute(w, data)
	})

	r.Get(specURL, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		w.Write(specBytes)
	})

	return nil
}
