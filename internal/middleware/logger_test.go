package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusBadGateway, "error"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			r := gin.New()
			r.Use(Logger(zerolog.New(&buf)))
			r.GET("/x", func(c *gin.Context) {
				SetIdentity(c, &Identity{UserID: "user_1"})
				c.Status(tt.status)
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

			var line map[string]any
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("log line %q: %v", buf.String(), err)
			}
			if line["level"] != tt.wantLevel || line["path"] != "/x" || line["user_id"] != "user_1" {
				t.Errorf("log line = %v", line)
			}
			if int(line["status"].(float64)) != tt.status {
				t.Errorf("status = %v, want %d", line["status"], tt.status)
			}
		})
	}
}
