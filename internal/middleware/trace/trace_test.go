package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"finpulse/internal/log"

	"github.com/google/uuid"
)

func TestMiddleware(t *testing.T) {
	m := NewMiddleware(log.Discard(), func(r *http.Request) string { return "10.0.0.1" })

	var seen string
	var ctxLogger *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		ctxLogger = log.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics", nil))

		if _, err := uuid.Parse(seen); err != nil {
			t.Errorf("request id %q is not a uuid", seen)
		}
		if rec.Header().Get(HeaderRequestID) != seen {
			t.Errorf("response header = %q, want %q", rec.Header().Get(HeaderRequestID), seen)
		}
		if rec.Code != http.StatusTeapot {
			t.Errorf("status = %d", rec.Code)
		}
		if ctxLogger == nil || ctxLogger.Component() != log.ComponentHTTP {
			t.Errorf("context logger not installed")
		}
	})

	t.Run("reuses caller id", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, id)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen != id {
			t.Errorf("request id = %q, want %q", seen, id)
		}
	})

	t.Run("rejects malformed caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "<script>")
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == "<script>" {
			t.Error("malformed id propagated")
		}
	})

	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Errorf("total requests = %d, want 3", got)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("id = %q", id)
	}
}
