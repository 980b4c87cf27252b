package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewRouter_DefaultMounts(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(WithHealthClock(func() time.Time { return now }))))

	t.Run("healthz", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected content-type application/json, got %s", ct)
		}
	})

	t.Run("readyz", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("default not implemented group", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/carts/cart-1", nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected status 501, got %d", rr.Code)
		}
		body := decodeBody[errorBody](t, rr)
		if body.Error != "not_implemented" {
			t.Fatalf("expected not_implemented code, got %s", body.Error)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rr.Code)
		}
		body := decodeBody[errorBody](t, rr)
		if body.Error != errorNotFoundCode {
			t.Fatalf("expected %s, got %s", errorNotFoundCode, body.Error)
		}
	})
}

func TestNewRouter_MethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodDelete, "/api/v1/customizations/validate", nil)
	expectStatus(t, rr, http.StatusMethodNotAllowed)
}

func TestNewRouter_RequestIDOnErrors(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodGet, "/api/v1/products/unknown", nil)
	expectStatus(t, rr, http.StatusNotFound)

	body := decodeBody[map[string]any](t, rr)
	if id, _ := body["request_id"].(string); id == "" {
		t.Fatalf("expected request_id in error payload, got %v", body)
	}
}
