package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/storefront/customizer/internal/customization"
	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/productstate"
	"github.com/storefront/customizer/internal/repositories"
	"github.com/storefront/customizer/internal/repositories/memory"
)

type conflictingCartRepository struct {
	repositories.CartRepository
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (r *conflictingCartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	r.mu.Lock()
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return domain.Cart{}, repositories.NewConflictError("carts.save", cart.ID)
	}
	r.mu.Unlock()
	return r.CartRepository.SaveCart(ctx, cart)
}

type unavailableCartRepository struct{}

func (unavailableCartRepository) GetCart(context.Context, string) (domain.Cart, error) {
	return domain.Cart{}, repositories.NewUnavailableError("carts.get", "backend down")
}

func (unavailableCartRepository) SaveCart(context.Context, domain.Cart) (domain.Cart, error) {
	return domain.Cart{}, repositories.NewUnavailableError("carts.save", "backend down")
}

type stubLineItemPublisher struct {
	mu     sync.Mutex
	events []LineItemEvent
	err    error
}

func (p *stubLineItemPublisher) PublishLineItemAdded(_ context.Context, event LineItemEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "msg-1", nil
}

type recordedLog struct {
	event  string
	fields map[string]any
}

type logRecorder struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *logRecorder) log(_ context.Context, event string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, recordedLog{event: event, fields: fields})
}

func (l *logRecorder) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.event == event {
			return true
		}
	}
	return false
}

type cartFixture struct {
	svc       CartService
	repo      repositories.CartRepository
	publisher *stubLineItemPublisher
	meter     *recordingMeter
	logs      *logRecorder
	now       time.Time
}

func newCartFixture(t *testing.T, repo repositories.CartRepository) cartFixture {
	t.Helper()
	now := time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)
	if repo == nil {
		repo = memory.NewCartRepository(func() time.Time { return now })
	}
	publisher := &stubLineItemPublisher{}
	meter := newRecordingMeter()
	logs := &logRecorder{}
	svc, err := NewCartService(CartServiceDeps{
		Repository:    repo,
		Catalog:       mustDefaultCatalog(t),
		Customization: NewCustomizationService(CustomizationServiceDeps{Meter: noop.Meter{}}),
		Publisher:     publisher,
		Meter:         meter,
		Clock:         func() time.Time { return now },
		Logger:        logs.log,
		IDGenerator:   sequentialIDs("line"),
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return cartFixture{svc: svc, repo: repo, publisher: publisher, meter: meter, logs: logs, now: now}
}

func hatState(color, style string, text *domain.TextCustomization) productstate.State {
	return productstate.New(map[string]string{"color": color, "style": style}, text)
}

func TestNewCartServiceRequiresDependencies(t *testing.T) {
	if _, err := NewCartService(CartServiceDeps{}); !errors.Is(err, errCartRepositoryRequired) {
		t.Fatalf("expected repository required, got %v", err)
	}
	repo := memory.NewCartRepository(time.Now)
	if _, err := NewCartService(CartServiceDeps{Repository: repo}); !errors.Is(err, errCartCatalogRequired) {
		t.Fatalf("expected catalog required, got %v", err)
	}
	cat := mustDefaultCatalog(t)
	if _, err := NewCartService(CartServiceDeps{Repository: repo, Catalog: cat}); !errors.Is(err, errCartCustomizationRequired) {
		t.Fatalf("expected customization required, got %v", err)
	}
	custom := NewCustomizationService(CustomizationServiceDeps{Meter: noop.Meter{}})
	if _, err := NewCartService(CartServiceDeps{Repository: repo, Catalog: cat, Customization: custom}); !errors.Is(err, errCartClockRequired) {
		t.Fatalf("expected clock required, got %v", err)
	}
}

func TestCartServiceGetCartReturnsEmptyCart(t *testing.T) {
	fx := newCartFixture(t, nil)

	cart, err := fx.svc.GetCart(context.Background(), "cart-1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if cart.ID != "cart-1" || cart.Currency != "USD" || len(cart.Items) != 0 {
		t.Fatalf("unexpected empty cart %#v", cart)
	}
	if _, err := fx.svc.GetCart(context.Background(), " "); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCartServiceAddCustomizedItem(t *testing.T) {
	fx := newCartFixture(t, nil)
	ctx := context.Background()

	text := &domain.TextCustomization{Line1: "Team Blue", Line2: "Go!"}
	cart, err := fx.svc.AddItem(ctx, AddCartItemCommand{
		CartID:        "cart-1",
		ProductHandle: "customizable-hat",
		State:         hatState("Blue", "Trucker", text),
		Quantity:      1,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(cart.Items))
	}
	item := cart.Items[0]
	want := domain.CartItem{
		ID:            "line-1",
		ProductID:     "prod_customizable_hat",
		ProductHandle: "customizable-hat",
		VariantID:     "var_hat_blue_trucker",
		SKU:           "HAT-BLU-TRK",
		Title:         "Customizable Hat - Blue / Trucker",
		Quantity:      1,
		UnitPrice:     2900,
		Currency:      "USD",
		Attributes: domain.Attributes{
			{Key: customization.AttributeLine1, Value: "Team Blue"},
			{Key: customization.AttributeLine2, Value: "Go!"},
		},
		AddedAt: fx.now,
	}
	if diff := cmp.Diff(want, item); diff != "" {
		t.Fatalf("unexpected item (-want +got):\n%s", diff)
	}
	if est := cart.Estimate(); est.Subtotal != 2900 || est.ItemCount != 1 {
		t.Fatalf("unexpected estimate %#v", est)
	}

	if len(fx.publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(fx.publisher.events))
	}
	event := fx.publisher.events[0]
	if event.Type != LineItemAddedEvent || event.CartID != "cart-1" || event.ItemID != "line-1" {
		t.Fatalf("unexpected event %#v", event)
	}
	if diff := cmp.Diff(map[string]string{"line1_text": "Team Blue", "line2_text": "Go!"}, event.Attributes); diff != "" {
		t.Fatalf("unexpected event attributes (-want +got):\n%s", diff)
	}
	if counter := fx.meter.counter("cart.items_added"); counter == nil || counter.total() != 1 {
		t.Fatalf("expected items_added counter to record 1 unit")
	}
}

func TestCartServiceMergesIdenticalLines(t *testing.T) {
	fx := newCartFixture(t, nil)
	ctx := context.Background()

	add := func(text string, qty int) Cart {
		t.Helper()
		cart, err := fx.svc.AddItem(ctx, AddCartItemCommand{
			CartID:        "cart-1",
			ProductHandle: "customizable-hat",
			State:         hatState("Red", "Beanie", &domain.TextCustomization{Line1: text}),
			Quantity:      qty,
		})
		if err != nil {
			t.Fatalf("AddItem(%s): %v", text, err)
		}
		return cart
	}

	add("Alpha", 1)
	cart := add("Alpha", 2)
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("expected merged line with quantity 3, got %#v", cart.Items)
	}
	if cart.Items[0].UpdatedAt == nil {
		t.Fatalf("expected merged line to carry updatedAt")
	}
	if cart.Items[0].UnitPrice != 2500 {
		t.Fatalf("expected beanie price 2500, got %d", cart.Items[0].UnitPrice)
	}

	cart = add("Bravo", 1)
	if len(cart.Items) != 2 {
		t.Fatalf("expected distinct text to create a second line, got %d", len(cart.Items))
	}
	if counter := fx.meter.counter("cart.items_added"); counter.total() != 4 {
		t.Fatalf("expected 4 units counted, got %d", counter.total())
	}
}

func TestCartServiceAddItemRejections(t *testing.T) {
	tests := []struct {
		name    string
		cmd     AddCartItemCommand
		wantErr error
	}{
		{
			name:    "missing cart id",
			cmd:     AddCartItemCommand{ProductHandle: "classic-tee", Quantity: 1},
			wantErr: ErrCartInvalidInput,
		},
		{
			name:    "zero quantity",
			cmd:     AddCartItemCommand{CartID: "c", ProductHandle: "classic-tee", Quantity: 0},
			wantErr: ErrCartInvalidInput,
		},
		{
			name:    "quantity over limit",
			cmd:     AddCartItemCommand{CartID: "c", ProductHandle: "classic-tee", Quantity: maxLineQuantity + 1},
			wantErr: ErrCartInvalidInput,
		},
		{
			name:    "unknown product",
			cmd:     AddCartItemCommand{CartID: "c", ProductHandle: "mug", Quantity: 1},
			wantErr: ErrProductNotFound,
		},
		{
			name: "variant not selected",
			cmd: AddCartItemCommand{
				CartID:        "c",
				ProductHandle: "customizable-hat",
				State:         productstate.New(map[string]string{"color": "Red"}, &domain.TextCustomization{Line1: "Hi"}),
				Quantity:      1,
			},
			wantErr: ErrCartVariantRequired,
		},
		{
			name: "variant unavailable",
			cmd: AddCartItemCommand{
				CartID:        "c",
				ProductHandle: "customizable-hat",
				State:         hatState("White", "Trucker", &domain.TextCustomization{Line1: "Hi"}),
				Quantity:      1,
			},
			wantErr: ErrCartProductUnavailable,
		},
		{
			name: "customization missing",
			cmd: AddCartItemCommand{
				CartID:        "c",
				ProductHandle: "customizable-hat",
				State:         hatState("Red", "Classic", nil),
				Quantity:      1,
			},
			wantErr: ErrCustomizationRequired,
		},
		{
			name: "customization invalid",
			cmd: AddCartItemCommand{
				CartID:        "c",
				ProductHandle: "customizable-hat",
				State:         hatState("Red", "Classic", &domain.TextCustomization{Line1: "Hi", Line2: "@home"}),
				Quantity:      1,
			},
			wantErr: customization.ErrFieldConstraintViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newCartFixture(t, nil)
			_, err := fx.svc.AddItem(context.Background(), tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(fx.publisher.events) != 0 {
				t.Fatalf("expected no events on rejection")
			}
			if cartID := tt.cmd.CartID; cartID != "" {
				if _, err := fx.repo.GetCart(context.Background(), cartID); err == nil {
					t.Fatalf("expected nothing persisted on rejection")
				}
			}
		})
	}
}

func TestCartServiceSingleVariantProduct(t *testing.T) {
	fx := newCartFixture(t, nil)

	cart, err := fx.svc.AddItem(context.Background(), AddCartItemCommand{
		CartID:        "cart-9",
		ProductHandle: "sticker-pack",
		Quantity:      2,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	item := cart.Items[0]
	if item.VariantID != "var_sticker_pack" || item.Title != "Sticker Pack" || len(item.Attributes) != 0 {
		t.Fatalf("unexpected sticker line %#v", item)
	}
	if fx.publisher.events[0].Attributes != nil {
		t.Fatalf("expected no attributes on plain product event")
	}
}

func TestCartServiceRetriesConflicts(t *testing.T) {
	now := time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)
	repo := &conflictingCartRepository{
		CartRepository: memory.NewCartRepository(func() time.Time { return now }),
		conflicts:      2,
	}
	fx := newCartFixture(t, repo)

	cart, err := fx.svc.AddItem(context.Background(), AddCartItemCommand{
		CartID:        "cart-1",
		ProductHandle: "classic-tee",
		State:         productstate.New(map[string]string{"size": "M"}, nil),
		Quantity:      1,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].VariantID != "var_tee_m" {
		t.Fatalf("unexpected cart %#v", cart)
	}
	if repo.saves != 3 {
		t.Fatalf("expected 3 save attempts, got %d", repo.saves)
	}
	if !fx.logs.has("cart.save_conflict_retry") {
		t.Fatalf("expected retry to be logged")
	}

	repo.conflicts = maxCartSaveAttempts
	_, err = fx.svc.AddItem(context.Background(), AddCartItemCommand{
		CartID:        "cart-1",
		ProductHandle: "classic-tee",
		State:         productstate.New(map[string]string{"size": "L"}, nil),
		Quantity:      1,
	})
	if !errors.Is(err, ErrCartConflict) {
		t.Fatalf("expected conflict after exhausting retries, got %v", err)
	}
}

func TestCartServiceUnavailableRepository(t *testing.T) {
	fx := newCartFixture(t, unavailableCartRepository{})

	if _, err := fx.svc.GetCart(context.Background(), "cart-1"); !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	_, err := fx.svc.AddItem(context.Background(), AddCartItemCommand{
		CartID:        "cart-1",
		ProductHandle: "sticker-pack",
		Quantity:      1,
	})
	if !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestCartServicePublishFailureIsLogged(t *testing.T) {
	fx := newCartFixture(t, nil)
	fx.publisher.err = errors.New("pubsub down")

	if _, err := fx.svc.AddItem(context.Background(), AddCartItemCommand{
		CartID:        "cart-1",
		ProductHandle: "sticker-pack",
		Quantity:      1,
	}); err != nil {
		t.Fatalf("AddItem should succeed when publishing fails: %v", err)
	}
	if !fx.logs.has("cart.publish_failed") {
		t.Fatalf("expected publish failure to be logged")
	}
}

func TestCartServiceRemoveItem(t *testing.T) {
	fx := newCartFixture(t, nil)
	ctx := context.Background()

	if _, err := fx.svc.RemoveItem(ctx, "cart-1", "line-1"); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected not found for missing cart, got %v", err)
	}

	if _, err := fx.svc.AddItem(ctx, AddCartItemCommand{CartID: "cart-1", ProductHandle: "sticker-pack", Quantity: 1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := fx.svc.RemoveItem(ctx, "cart-1", "line-9"); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected not found for missing item, got %v", err)
	}

	cart, err := fx.svc.RemoveItem(ctx, "cart-1", "line-1")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %#v", cart.Items)
	}
	if _, err := fx.svc.RemoveItem(ctx, "cart-1", ""); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
