package httpapi_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/duty-duck/uptimeengine/internal/httpapi"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(httptest.NewRecorder().Body, nil))
}

func TestHealthz_AlwaysReportsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := httpapi.New(discardLogger(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v body=%s", err, w.Body.String())
	}
	if body["status"] != "ok" {
		t.Fatalf("got status %q, want ok", body["status"])
	}
}

func TestReadyz_ShuttingDown_Returns503WithoutTouchingThePool(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := httpapi.New(discardLogger(), nil, nil, func() bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v body=%s", err, w.Body.String())
	}
	if body["status"] != "shutting_down" {
		t.Fatalf("got status %q, want shutting_down", body["status"])
	}
}

func TestHealthz_RequestIDHeaderIsEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := httpapi.New(discardLogger(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "test-request-id")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "test-request-id" {
		t.Fatalf("got request id %q, want it echoed back unchanged", got)
	}
}
