package repositories

import (
	"context"

	domain "github.com/storefront/customizer/internal/domain"
)

// CartRepository persists carts with optimistic concurrency. SaveCart treats
// cart.UpdatedAt as the version the caller read: zero creates a new cart and
// conflicts when one exists; otherwise the stored cart must still carry that
// timestamp. The returned cart holds the new version.
type CartRepository interface {
	GetCart(ctx context.Context, cartID string) (domain.Cart, error)
	SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
}

// HealthRepository probes backing dependencies for readiness endpoints.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}

// RepositoryError classifies persistence failures for services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}
