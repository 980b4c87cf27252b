package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/storefront/customizer/internal/catalog"
	"github.com/storefront/customizer/internal/repositories/memory"
	"github.com/storefront/customizer/internal/services"
)

type testAPI struct {
	router         chi.Router
	customizations services.CustomizationService
	sessions       services.ProductSessionService
	carts          services.CartService
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestAPI(t *testing.T, opts ...Option) testAPI {
	t.Helper()
	now := time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	customizations := services.NewCustomizationService(services.CustomizationServiceDeps{Meter: noop.Meter{}})
	sessions, err := services.NewProductSessionService(services.ProductSessionServiceDeps{
		Catalog:       cat,
		Customization: customizations,
		Clock:         clock,
		IDGenerator:   sequence("sess"),
	})
	if err != nil {
		t.Fatalf("NewProductSessionService: %v", err)
	}
	carts, err := services.NewCartService(services.CartServiceDeps{
		Repository:    memory.NewCartRepository(clock),
		Catalog:       cat,
		Customization: customizations,
		Meter:         noop.Meter{},
		Clock:         clock,
		IDGenerator:   sequence("line"),
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	router := NewRouter(append([]Option{
		WithCustomizationRoutes(NewCustomizationHandlers(customizations).Routes),
		WithProductRoutes(NewProductHandlers(cat, sessions).Routes),
		WithSessionRoutes(NewSessionHandlers(sessions).Routes),
		WithCartRoutes(NewCartHandlers(carts, sessions).Routes),
	}, opts...)...)
	return testAPI{router: router, customizations: customizations, sessions: sessions, carts: carts}
}

func (api testAPI) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  []string          `json:"fields"`
	Errors  map[string]string `json:"errors"`
	Kinds   map[string]string `json:"kinds"`
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}
