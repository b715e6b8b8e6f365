package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	blog "budgetintel/internal/log"
)

func TestMiddlewarePropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := blog.New(blog.Config{Format: "json", Output: &buf, Component: "http"})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if blog.FromContext(r.Context()) == nil {
			t.Error("no logger in context")
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ledgers", nil)
	req.Header.Set("X-Request-ID", "req_given")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req_given" {
		t.Fatalf("request id = %q", seen)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "req_given" {
		t.Fatalf("response header = %q", got)
	}
	if !strings.Contains(buf.String(), `"status_code":500`) {
		t.Fatalf("completion not logged: %s", buf.String())
	}
	if got := m.GetMetrics(); got.TotalRequests != 1 || got.ServerErrors != 1 {
		t.Fatalf("metrics = %+v", got)
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if !strings.HasPrefix(a, "req_") || a == b {
		t.Fatalf("ids %q %q", a, b)
	}
}
