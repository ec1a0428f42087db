package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestDocs(t *testing.T) {
	env := newTestEnv(t, nil)
	r := gin.New()
	r.GET("/api/docs", env.h.ServeSwaggerUI)
	r.GET("/api/docs/openapi.yaml", env.h.ServeOpenAPISpec)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `openapi.yaml`) {
		t.Errorf("docs page = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.yaml", nil))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "openapi: 3.0") {
		t.Errorf("openapi.yaml = %d %.40q", w.Code, w.Body.String())
	}
}
