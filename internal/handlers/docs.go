// docs.go serves the OpenAPI document and a Swagger UI page for it.
//
// The document is hand-written YAML rather than generated from annotations,
// so there's no code generation step in the build.
package handlers

import (
	_ "embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Go Pattern: `//go:embed` pulls the file into the binary at build time, so
// the server needs nothing on disk to serve its own docs.
//
//go:embed openapi.yaml
var openAPISpec []byte

// ServeOpenAPISpec returns the raw OpenAPI YAML document.
// GET /api/docs/openapi.yaml
func (h *Handler) ServeOpenAPISpec(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openAPISpec)
}

var swaggerPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>ReelForge API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body { margin: 0; } .swagger-ui .topbar { display: none; }</style>
</head>
<body>
  <div id="docs"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: '#docs',
      presets: [SwaggerUIBundle.presets.apis],
      persistAuthorization: true,
      tryItOutEnabled: true,
      docExpansion: 'none',
      filter: true,
    });
  </script>
</body>
</html>`))

// ServeSwaggerUI renders Swagger UI pointed at the embedded document.
// GET /api/docs
//
// Bearer tokens entered under "Authorize" survive a reload, which keeps
// trying the session endpoints by hand tolerable.
func (h *Handler) ServeSwaggerUI(c *gin.Context) {
	specURL := strings.TrimSuffix(c.Request.URL.Path, "/") + "/openapi.yaml"
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := swaggerPage.Execute(c.Writer, struct{ SpecURL string }{specURL}); err != nil {
		h.Log.Error().Err(err).Msg("render docs page")
	}
}
