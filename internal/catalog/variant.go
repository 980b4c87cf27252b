package catalog

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/productstate"
)

// StateKey returns the state key holding the selection for an option name.
func StateKey(optionName string) string {
	return cases.Lower(language.Und).String(optionName)
}

// ResolveVariant finds the variant whose selected options all match the state,
// comparing each option value with the state entry under the lower-cased
// option name. A product with exactly one variant always resolves to it.
func ResolveVariant(product domain.Product, state productstate.State) (domain.ProductVariant, bool) {
	for _, variant := range product.Variants {
		if variantMatches(variant, state) {
			return variant, true
		}
	}
	if len(product.Variants) == 1 {
		return product.Variants[0], true
	}
	return domain.ProductVariant{}, false
}

func variantMatches(variant domain.ProductVariant, state productstate.State) bool {
	for _, opt := range variant.SelectedOptions {
		value, ok := state.Value(StateKey(opt.Name))
		if !ok || value != opt.Value {
			return false
		}
	}
	return true
}

// DefaultState selects the first value of every option.
func DefaultState(product domain.Product) productstate.State {
	values := make(map[string]string, len(product.Options))
	for _, opt := range product.Options {
		if len(opt.Values) > 0 {
			values[StateKey(opt.Name)] = opt.Values[0]
		}
	}
	return productstate.New(values, nil)
}
