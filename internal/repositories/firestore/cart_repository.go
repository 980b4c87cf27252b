// Package firestore persists repository state in Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/storefront/customizer/internal/domain"
	pfirestore "github.com/storefront/customizer/internal/platform/firestore"
	"github.com/storefront/customizer/internal/repositories"
)

const cartCollection = "carts"

// CartRepository stores one document per cart in the carts collection, with
// line items embedded in the document.
type CartRepository struct {
	carts    *pfirestore.Collection[cartDocument]
	provider *pfirestore.Provider
	now      func() time.Time
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		carts:    pfirestore.NewCollection[cartDocument](provider, cartCollection),
		provider: provider,
		now:      time.Now,
	}, nil
}

type cartDocument struct {
	Currency   string             `firestore:"currency"`
	Items      []cartItemDocument `firestore:"items"`
	ItemsCount int                `firestore:"itemsCount"`
	CreatedAt  time.Time          `firestore:"createdAt"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID            string              `firestore:"id"`
	ProductID     string              `firestore:"productId"`
	ProductHandle string              `firestore:"productHandle"`
	VariantID     string              `firestore:"variantId"`
	SKU           string              `firestore:"sku,omitempty"`
	Title         string              `firestore:"title,omitempty"`
	Quantity      int                 `firestore:"quantity"`
	UnitPrice     int64               `firestore:"unitPrice"`
	Currency      string              `firestore:"currency"`
	Attributes    []attributeDocument `firestore:"attributes,omitempty"`
	AddedAt       time.Time           `firestore:"addedAt"`
	UpdatedAt     *time.Time          `firestore:"updatedAt,omitempty"`
}

type attributeDocument struct {
	Key   string `firestore:"key"`
	Value string `firestore:"value"`
}

// GetCart loads the cart document. UpdatedAt carries the document update time,
// which SaveCart uses as the version precondition.
func (r *CartRepository) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	id := strings.TrimSpace(cartID)
	doc, err := r.carts.Get(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	cart := fromDocument(id, doc.Data)
	cart.UpdatedAt = doc.UpdateTime
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = doc.CreateTime
	}
	return cart, nil
}

// SaveCart creates the cart when UpdatedAt is zero, otherwise replaces it
// guarded by the document's last update time.
func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	id := strings.TrimSpace(cart.ID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	now := r.now().UTC()
	doc := toDocument(cart)
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	var (
		version time.Time
		err     error
	)
	if cart.UpdatedAt.IsZero() {
		version, err = r.carts.Create(ctx, id, doc)
	} else {
		version, err = r.carts.Replace(ctx, id, doc, cart.UpdatedAt)
	}
	if err != nil {
		return domain.Cart{}, err
	}

	saved := fromDocument(id, doc)
	saved.UpdatedAt = version
	return saved, nil
}

// Ping verifies a client can be obtained.
func (r *CartRepository) Ping(ctx context.Context) error {
	_, err := r.provider.Client(ctx)
	return err
}

func toDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		Currency:   strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:      make([]cartItemDocument, 0, len(cart.Items)),
		ItemsCount: len(cart.Items),
		CreatedAt:  cart.CreatedAt.UTC(),
	}
	for _, item := range cart.Items {
		entry := cartItemDocument{
			ID:            item.ID,
			ProductID:     item.ProductID,
			ProductHandle: item.ProductHandle,
			VariantID:     item.VariantID,
			SKU:           item.SKU,
			Title:         item.Title,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Currency:      item.Currency,
			AddedAt:       item.AddedAt.UTC(),
		}
		for _, attr := range item.Attributes {
			entry.Attributes = append(entry.Attributes, attributeDocument{Key: attr.Key, Value: attr.Value})
		}
		if item.UpdatedAt != nil {
			ts := item.UpdatedAt.UTC()
			entry.UpdatedAt = &ts
		}
		doc.Items = append(doc.Items, entry)
	}
	return doc
}

func fromDocument(id string, doc cartDocument) domain.Cart {
	cart := domain.Cart{
		ID:        id,
		Currency:  doc.Currency,
		Items:     make([]domain.CartItem, 0, len(doc.Items)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, entry := range doc.Items {
		item := domain.CartItem{
			ID:            entry.ID,
			ProductID:     entry.ProductID,
			ProductHandle: entry.ProductHandle,
			VariantID:     entry.VariantID,
			SKU:           entry.SKU,
			Title:         entry.Title,
			Quantity:      entry.Quantity,
			UnitPrice:     entry.UnitPrice,
			Currency:      entry.Currency,
			AddedAt:       entry.AddedAt,
		}
		for _, attr := range entry.Attributes {
			item.Attributes = append(item.Attributes, domain.Attribute{Key: attr.Key, Value: attr.Value})
		}
		if entry.UpdatedAt != nil {
			ts := *entry.UpdatedAt
			item.UpdatedAt = &ts
		}
		cart.Items = append(cart.Items, item)
	}
	return cart
}
