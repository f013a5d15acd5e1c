package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-1")
		c.Next()
	})
	r.Use(ContextLogger(logger), LoggerMiddleware(logger))
	r.GET("/missing", func(c *gin.Context) {
		FromContext(c, logger).Info("Handling")
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %s", len(lines), buf.String())
	}
	var handled, done map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &handled); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &done); err != nil {
		t.Fatal(err)
	}
	if handled["request_id"] != "req-1" {
		t.Errorf("handler log request_id = %v", handled["request_id"])
	}
	if done["level"] != "WARN" || done["status"] != float64(404) || done["path"] != "/missing" {
		t.Errorf("request log = %v", done)
	}
}

func TestFromContextFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := NewSlogLogger(nil)
	if FromContext(c, fallback) != fallback {
		t.Error("expected fallback logger")
	}
}
