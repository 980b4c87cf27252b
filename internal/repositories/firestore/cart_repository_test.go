package firestore

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	domain "github.com/storefront/customizer/internal/domain"
)

func TestCartDocumentRoundTrip(t *testing.T) {
	added := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	updated := added.Add(time.Minute)
	cart := domain.Cart{
		ID:        "cart-1",
		Currency:  "usd",
		CreatedAt: added,
		Items: []domain.CartItem{{
			ID:            "line-1",
			ProductID:     "prod_customizable_hat",
			ProductHandle: "customizable-hat",
			VariantID:     "var_hat_red_classic",
			SKU:           "HAT-RED-CLS",
			Title:         "Customizable Hat - Red / Classic",
			Quantity:      2,
			UnitPrice:     2900,
			Currency:      "USD",
			Attributes: domain.Attributes{
				{Key: "line1_text", Value: "Go Team"},
				{Key: "line2_text", Value: "2024"},
			},
			AddedAt:   added,
			UpdatedAt: &updated,
		}},
	}

	doc := toDocument(cart)
	if doc.ItemsCount != 1 || doc.Currency != "USD" {
		t.Fatalf("unexpected document header %#v", doc)
	}
	got := fromDocument("cart-1", doc)

	want := cart
	want.Currency = "USD"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected cart (-want +got):\n%s", diff)
	}
}

func TestFromDocumentEmptyItems(t *testing.T) {
	got := fromDocument("cart-2", cartDocument{Currency: "EUR"})
	if got.Items == nil || len(got.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", got.Items)
	}
}

func TestNewCartRepositoryRequiresProvider(t *testing.T) {
	if _, err := NewCartRepository(nil); err == nil {
		t.Fatalf("expected error without provider")
	}
}
