package services

import (
	"context"
	"net/url"
	"time"

	"github.com/storefront/customizer/internal/customization"
	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/preview"
	"github.com/storefront/customizer/internal/productstate"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product           = domain.Product
	ProductOption     = domain.ProductOption
	ProductVariant    = domain.ProductVariant
	Cart              = domain.Cart
	CartItem          = domain.CartItem
	CartEstimate      = domain.CartEstimate
	TextCustomization = domain.TextCustomization
	Attributes        = domain.Attributes
)

// CustomizationService validates and normalises customer-entered text.
type CustomizationService interface {
	Validate(ctx context.Context, c TextCustomization) customization.ValidationResult
	Sanitize(ctx context.Context, text string) string
	Attributes(ctx context.Context, c TextCustomization) (Attributes, error)
	MaxLength() int
}

// ProductSessionService tracks the selection state of one shopper viewing one product.
type ProductSessionService interface {
	Open(ctx context.Context, cmd OpenSessionCommand) (ProductSession, error)
	Get(ctx context.Context, sessionID string) (ProductSession, error)
	Update(ctx context.Context, sessionID string, update productstate.Update) (ProductSession, error)
	SelectOption(ctx context.Context, sessionID, name, value string) (ProductSession, error)
	SelectImage(ctx context.Context, sessionID, index string) (ProductSession, error)
	UpdateCustomization(ctx context.Context, sessionID string, c TextCustomization) (ProductSession, error)
	Confirm(ctx context.Context, sessionID string) (ProductSession, error)
}

// CartService runs the add-to-cart flow.
type CartService interface {
	GetCart(ctx context.Context, cartID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cartID, itemID string) (Cart, error)
}

// ProductCatalog looks products up by handle.
type ProductCatalog interface {
	ProductByHandle(ctx context.Context, handle string) (Product, error)
}

// LineItemPublisher announces cart changes to downstream consumers.
type LineItemPublisher interface {
	PublishLineItemAdded(ctx context.Context, event LineItemEvent) (string, error)
}

// OpenSessionCommand starts a product session. Query seeds the state the same
// way a product page URL does; Seed is merged on top.
type OpenSessionCommand struct {
	ProductHandle string
	Query         url.Values
	Seed          productstate.Update
}

// ProductSession is the read model of a product session.
type ProductSession struct {
	ID            string
	ProductHandle string
	State         productstate.State
	Confirmed     productstate.State
	Pending       int
	Query         string
	Variant       *ProductVariant
	Customizable  bool
	Preview       preview.Descriptor
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AddCartItemCommand adds quantity units of the variant selected by State.
type AddCartItemCommand struct {
	CartID        string
	ProductHandle string
	State         productstate.State
	Quantity      int
}

// LineItemEvent is published after a line item is added or its quantity grows.
type LineItemEvent struct {
	Type          string            `json:"type"`
	CartID        string            `json:"cartId"`
	ItemID        string            `json:"itemId"`
	ProductHandle string            `json:"productHandle"`
	VariantID     string            `json:"variantId"`
	SKU           string            `json:"sku,omitempty"`
	Quantity      int               `json:"quantity"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// LineItemAddedEvent is the LineItemEvent type for cart additions.
const LineItemAddedEvent = "cart.line_item_added"
