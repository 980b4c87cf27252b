// Package memory keeps repository state in process memory. Data is lost on restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/repositories"
)

// CartRepository stores carts in a map guarded by a mutex.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
	now   func() time.Time
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs an empty repository. A nil clock uses time.Now.
func NewCartRepository(clock func() time.Time) *CartRepository {
	if clock == nil {
		clock = time.Now
	}
	return &CartRepository{carts: make(map[string]domain.Cart), now: clock}
}

// GetCart returns a copy of the stored cart.
func (r *CartRepository) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}
	id := strings.TrimSpace(cartID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	cart, ok := r.carts[id]
	if !ok {
		return domain.Cart{}, repositories.NewNotFoundError("carts.get", id)
	}
	return cloneCart(cart), nil
}

// SaveCart writes the cart when its UpdatedAt matches the stored version.
func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}
	id := strings.TrimSpace(cart.ID)
	if id == "" {
		return domain.Cart{}, repositories.NewNotFoundError("carts.save", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.carts[id]
	switch {
	case ok && cart.UpdatedAt.IsZero():
		return domain.Cart{}, repositories.NewConflictError("carts.save", id)
	case ok && !existing.UpdatedAt.Equal(cart.UpdatedAt):
		return domain.Cart{}, repositories.NewConflictError("carts.save", id)
	case !ok && !cart.UpdatedAt.IsZero():
		return domain.Cart{}, repositories.NewNotFoundError("carts.save", id)
	}

	now := r.now().UTC()
	if ok && !now.After(existing.UpdatedAt) {
		now = existing.UpdatedAt.Add(time.Nanosecond)
	}
	saved := cloneCart(cart)
	saved.ID = id
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now
	r.carts[id] = saved
	return cloneCart(saved), nil
}

// Ping reports readiness.
func (r *CartRepository) Ping(context.Context) error {
	return nil
}

func cloneCart(cart domain.Cart) domain.Cart {
	out := cart
	if cart.Items != nil {
		out.Items = make([]domain.CartItem, len(cart.Items))
		for i, item := range cart.Items {
			item.Attributes = item.Attributes.Clone()
			if item.UpdatedAt != nil {
				ts := *item.UpdatedAt
				item.UpdatedAt = &ts
			}
			out.Items[i] = item
		}
	}
	return out
}
