package domain

import "time"

// Product describes a catalog entry as exposed to the storefront.
type Product struct {
	ID               string
	Handle           string
	Title            string
	Description      string
	DescriptionHTML  string
	Price            int64
	Currency         string
	AvailableForSale bool
	Customizable     bool
	Options          []ProductOption
	Variants         []ProductVariant
}

// ProductOption is a selectable option dimension such as Color or Size.
type ProductOption struct {
	Name   string
	Values []string
}

// ProductVariant is a purchasable combination of option values.
type ProductVariant struct {
	ID               string
	SKU              string
	Title            string
	Price            int64
	AvailableForSale bool
	SelectedOptions  []SelectedOption
}

// SelectedOption pins a single option value on a variant.
type SelectedOption struct {
	Name  string
	Value string
}

// Cart groups line items for a shopper.
type Cart struct {
	ID        string
	Currency  string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is a single variant entry within a cart, optionally carrying customization attributes.
type CartItem struct {
	ID            string
	ProductID     string
	ProductHandle string
	VariantID     string
	SKU           string
	Title         string
	Quantity      int
	UnitPrice     int64
	Currency      string
	Attributes    Attributes
	AddedAt       time.Time
	UpdatedAt     *time.Time
}

// CartEstimate summarizes totals calculated for the cart.
type CartEstimate struct {
	Subtotal  int64
	ItemCount int
	Total     int64
}

// Estimate totals the cart lines.
func (c Cart) Estimate() CartEstimate {
	var est CartEstimate
	for _, item := range c.Items {
		est.Subtotal += item.UnitPrice * int64(item.Quantity)
		est.ItemCount += item.Quantity
	}
	est.Total = est.Subtotal
	return est
}

// Health statuses reported by readiness checks.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// HealthCheck describes the outcome of one dependency probe.
type HealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency status for readiness endpoints.
type HealthReport struct {
	Status      string
	Checks      map[string]HealthCheck
	GeneratedAt time.Time
}
