package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/storefront/customizer/internal/platform/requestctx"
)

func TestRequestLoggerMiddlewareLogsRouteAndStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(logger))
	router.Use(TraceMiddleware())
	router.Use(RequestLoggerMiddleware())
	router.Get("/carts/{cartID}", func(w http.ResponseWriter, r *http.Request) {
		if requestctx.SessionID(r.Context()) != "sess-9" {
			t.Errorf("expected session id on context")
		}
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/carts/abc", nil)
	req.Header.Set(SessionHeader, "sess-9")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rr.Code)
	}
	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/carts/{cartID}" {
		t.Fatalf("expected route pattern, got %v", fields["route"])
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("expected status 418, got %v", fields["status"])
	}
	if fields["session_id"] != "sess-9" {
		t.Fatalf("expected session id field, got %v", fields["session_id"])
	}
}

func TestRecoveryMiddlewareWritesJSON(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := sanitizeString("a\nb\x00c", 0); got != "abc" {
		t.Fatalf("expected control characters removed, got %q", got)
	}
	if got := sanitizeString("abcdef", 3); got != "abc" {
		t.Fatalf("expected truncation, got %q", got)
	}
	if SanitizeRoute("") != "/" {
		t.Fatalf("expected root route for empty input")
	}
}
