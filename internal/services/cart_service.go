package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/storefront/customizer/internal/catalog"
	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/repositories"
)

var (
	errCartRepositoryRequired    = errors.New("cart service: repository is required")
	errCartCatalogRequired       = errors.New("cart service: catalog is required")
	errCartCustomizationRequired = errors.New("cart service: customization service is required")
	errCartClockRequired         = errors.New("cart service: clock is required")
)

const (
	defaultCartCurrency = "USD"
	maxCartSaveAttempts = 3
	maxLineQuantity     = 99
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart or line item does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartVariantRequired indicates the selection does not identify a single purchasable variant.
var ErrCartVariantRequired = errors.New("cart service: variant selection required")

// ErrCartProductUnavailable indicates the product or selected variant is not available for sale.
var ErrCartProductUnavailable = errors.New("cart service: product unavailable")

// ErrCustomizationRequired indicates a customizable product was added without customization text.
var ErrCustomizationRequired = errors.New("cart service: customization required")

// CartServiceDeps wires the repository, catalog and customization dependencies for cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Catalog         ProductCatalog
	Customization   CustomizationService
	Publisher       LineItemPublisher
	Meter           metric.Meter
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type cartService struct {
	repo          repositories.CartRepository
	catalog       ProductCatalog
	customization CustomizationService
	publisher     LineItemPublisher
	itemsAdded    metric.Int64Counter
	newID         func() string
	now           func() time.Time
	currency      string
	logger        func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Customization == nil {
		return nil, errCartCustomizationRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	defaultCurrency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = defaultCartCurrency
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	var counter metric.Int64Counter = noop.Int64Counter{}
	if c, err := meter.Int64Counter("cart.items_added",
		metric.WithDescription("Units added to carts"),
		metric.WithUnit("{item}"),
	); err == nil {
		counter = c
	} else {
		logger(context.Background(), "cart.metric_registration_failed", map[string]any{"error": err.Error()})
	}

	return &cartService{
		repo:          deps.Repository,
		catalog:       deps.Catalog,
		customization: deps.Customization,
		publisher:     deps.Publisher,
		itemsAdded:    counter,
		newID:         idGen,
		now:           func() time.Time { return deps.Clock().UTC() },
		currency:      defaultCurrency,
		logger:        logger,
	}, nil
}

// GetCart loads the cart, returning an empty unsaved cart when none exists yet.
func (s *cartService) GetCart(ctx context.Context, cartID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	id := strings.TrimSpace(cartID)
	if id == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return s.newCart(id), nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(cart, id), nil
}

// AddItem resolves the selected variant, validates the customization for
// customizable products and adds the line, merging with an identical line.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	ctx, span := tracer.Start(ctx, "cart.AddItem")
	defer span.End()

	cartID := strings.TrimSpace(cmd.CartID)
	if cartID == "" {
		return Cart{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	handle := strings.TrimSpace(cmd.ProductHandle)
	if handle == "" {
		return Cart{}, fmt.Errorf("%w: product is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}
	if cmd.Quantity > maxLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be %d or less", ErrCartInvalidInput, maxLineQuantity)
	}

	product, err := s.catalog.ProductByHandle(ctx, handle)
	if err != nil {
		return Cart{}, translateCatalogError(err)
	}
	if !product.AvailableForSale {
		return Cart{}, ErrCartProductUnavailable
	}

	variant, ok := catalog.ResolveVariant(product, cmd.State)
	if !ok {
		return Cart{}, ErrCartVariantRequired
	}
	if !variant.AvailableForSale {
		return Cart{}, ErrCartProductUnavailable
	}
	span.SetAttributes(
		attribute.String("product.handle", product.Handle),
		attribute.String("product.variant_id", variant.ID),
	)

	var attrs Attributes
	if product.Customizable {
		text, ok := cmd.State.Customization()
		if !ok {
			return Cart{}, ErrCustomizationRequired
		}
		attrs, err = s.customization.Attributes(ctx, text)
		if err != nil {
			span.SetStatus(codes.Error, "customization invalid")
			return Cart{}, err
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(product.Currency))
	if currency == "" {
		currency = s.currency
	}
	unitPrice := variant.Price
	if unitPrice <= 0 {
		unitPrice = product.Price
	}

	var target CartItem
	saved, err := s.mutate(ctx, cartID, true, func(cart *domain.Cart) error {
		if !strings.EqualFold(cart.Currency, currency) {
			return fmt.Errorf("%w: item currency must match cart currency", ErrCartInvalidInput)
		}

		now := s.now()
		items := cloneCartItems(cart.Items)
		idx := indexOfMatchingLine(items, variant.ID, attrs)
		if idx >= 0 {
			quantity := items[idx].Quantity + cmd.Quantity
			if quantity > maxLineQuantity {
				return fmt.Errorf("%w: quantity must be %d or less", ErrCartInvalidInput, maxLineQuantity)
			}
			items[idx].Quantity = quantity
			items[idx].UnitPrice = unitPrice
			ts := now
			items[idx].UpdatedAt = &ts
		} else {
			newID := strings.TrimSpace(s.newID())
			if newID == "" {
				newID = fmt.Sprintf("item-%d", now.UnixNano())
			}
			items = append(items, domain.CartItem{
				ID:            newID,
				ProductID:     product.ID,
				ProductHandle: product.Handle,
				VariantID:     variant.ID,
				SKU:           variant.SKU,
				Title:         lineTitle(product, variant),
				Quantity:      cmd.Quantity,
				UnitPrice:     unitPrice,
				Currency:      currency,
				Attributes:    attrs.Clone(),
				AddedAt:       now,
			})
			idx = len(items) - 1
		}
		target = items[idx]
		cart.Items = items
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Cart{}, err
	}

	s.itemsAdded.Add(ctx, int64(cmd.Quantity), metric.WithAttributes(
		attribute.String("product.handle", product.Handle),
		attribute.Bool("customized", len(attrs) > 0),
	))
	s.publishLineItemAdded(ctx, saved.ID, target, cmd.Quantity)

	return saved, nil
}

// RemoveItem deletes a line item from an existing cart.
func (s *cartService) RemoveItem(ctx context.Context, cartID, itemID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	id := strings.TrimSpace(cartID)
	if id == "" {
		return Cart{}, ErrCartInvalidInput
	}
	lineID := strings.TrimSpace(itemID)
	if lineID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	return s.mutate(ctx, id, false, func(cart *domain.Cart) error {
		items := cloneCartItems(cart.Items)
		idx := indexOfCartItem(items, lineID)
		if idx < 0 {
			return ErrCartNotFound
		}
		cart.Items = append(items[:idx], items[idx+1:]...)
		return nil
	})
}

// mutate loads the cart, applies fn and saves it, retrying when another
// writer updated the cart in between.
func (s *cartService) mutate(ctx context.Context, cartID string, createIfMissing bool, fn func(*domain.Cart) error) (Cart, error) {
	for attempt := 1; ; attempt++ {
		cart, err := s.repo.GetCart(ctx, cartID)
		if err != nil {
			if !isRepoNotFound(err) {
				return Cart{}, s.translateRepoError(err)
			}
			if !createIfMissing {
				return Cart{}, ErrCartNotFound
			}
			cart = s.newCart(cartID)
		}
		cart = s.normaliseCart(cart, cartID)

		if err := fn(&cart); err != nil {
			return Cart{}, err
		}

		saved, err := s.repo.SaveCart(ctx, cart)
		if err == nil {
			return s.normaliseCart(saved, cartID), nil
		}
		if !isRepoConflict(err) || attempt >= maxCartSaveAttempts {
			return Cart{}, s.translateRepoError(err)
		}
		s.logger(ctx, "cart.save_conflict_retry", map[string]any{
			"cartID":  cartID,
			"attempt": attempt,
		})
		if err := ctx.Err(); err != nil {
			return Cart{}, err
		}
	}
}

func (s *cartService) publishLineItemAdded(ctx context.Context, cartID string, item CartItem, added int) {
	if s.publisher == nil {
		return
	}
	event := LineItemEvent{
		Type:          LineItemAddedEvent,
		CartID:        cartID,
		ItemID:        item.ID,
		ProductHandle: item.ProductHandle,
		VariantID:     item.VariantID,
		SKU:           item.SKU,
		Quantity:      added,
		OccurredAt:    s.now(),
	}
	if len(item.Attributes) > 0 {
		event.Attributes = make(map[string]string, len(item.Attributes))
		for _, attr := range item.Attributes {
			event.Attributes[attr.Key] = attr.Value
		}
	}
	messageID, err := s.publisher.PublishLineItemAdded(ctx, event)
	if err != nil {
		s.logger(ctx, "cart.publish_failed", map[string]any{
			"cartID": cartID,
			"itemID": item.ID,
			"error":  err.Error(),
		})
		return
	}
	s.logger(ctx, "cart.line_item_published", map[string]any{
		"cartID":    cartID,
		"itemID":    item.ID,
		"messageID": messageID,
	})
}

func (s *cartService) newCart(cartID string) domain.Cart {
	return domain.Cart{
		ID:       cartID,
		Currency: s.currency,
		Items:    []domain.CartItem{},
	}
}

func (s *cartService) normaliseCart(cart domain.Cart, cartID string) domain.Cart {
	if strings.TrimSpace(cart.ID) == "" {
		cart.ID = cartID
	}
	cart.Currency = strings.ToUpper(strings.TrimSpace(cart.Currency))
	if cart.Currency == "" {
		cart.Currency = s.currency
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return cart
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
		return ErrCartUnavailable
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}

func lineTitle(product Product, variant ProductVariant) string {
	if len(product.Variants) <= 1 || strings.TrimSpace(variant.Title) == "" {
		return product.Title
	}
	return product.Title + " - " + variant.Title
}

func indexOfMatchingLine(items []domain.CartItem, variantID string, attrs Attributes) int {
	for i := range items {
		if items[i].VariantID == variantID && items[i].Attributes.Equal(attrs) {
			return i
		}
	}
	return -1
}

func indexOfCartItem(items []domain.CartItem, itemID string) int {
	for i := range items {
		if strings.EqualFold(strings.TrimSpace(items[i].ID), itemID) {
			return i
		}
	}
	return -1
}

func cloneCartItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return []domain.CartItem{}
	}
	out := make([]domain.CartItem, len(items))
	for i, item := range items {
		item.Attributes = item.Attributes.Clone()
		if item.UpdatedAt != nil {
			ts := *item.UpdatedAt
			item.UpdatedAt = &ts
		}
		out[i] = item
	}
	return out
}
