// Package productstate holds the flattened selection snapshot for one product
// view: option values, the selected image and the text customization.
package productstate

import (
	"sort"

	domain "github.com/storefront/customizer/internal/domain"
)

const (
	// KeyImage is the reserved key holding the selected image index.
	KeyImage = "image"
	// KeyCustomization is the reserved key holding the text customization.
	KeyCustomization = "customization"
	// KeyLine1 and KeyLine2 carry the customization lines in query strings.
	KeyLine1 = "line1"
	KeyLine2 = "line2"
)

// State is an immutable snapshot. Free-form keys map to string values; the
// customization lives in its own typed slot and is never stored as a string.
type State struct {
	values        map[string]string
	customization *domain.TextCustomization
}

// New builds a snapshot from free-form values and an optional customization.
// A raw "customization" entry in values is ignored.
func New(values map[string]string, customization *domain.TextCustomization) State {
	return State{
		values:        copyValues(values),
		customization: cloneCustomization(customization),
	}
}

// Value returns the free-form value stored under key.
func (s State) Value(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Option returns the selected value for an option name, or "" when unset.
func (s State) Option(name string) string {
	return s.values[name]
}

// Image returns the selected image index.
func (s State) Image() (string, bool) {
	return s.Value(KeyImage)
}

// Customization returns the text customization when one has been set.
func (s State) Customization() (domain.TextCustomization, bool) {
	if s.customization == nil {
		return domain.TextCustomization{}, false
	}
	return *s.customization, true
}

// Values returns a copy of every free-form key/value pair.
func (s State) Values() map[string]string {
	out := copyValues(s.values)
	if out == nil {
		out = map[string]string{}
	}
	return out
}

// Keys returns the free-form keys in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of keys, counting the customization slot when set.
func (s State) Len() int {
	n := len(s.values)
	if s.customization != nil {
		n++
	}
	return n
}

// Equal reports whether two snapshots hold the same keys and values.
func (s State) Equal(other State) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for k, v := range s.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	switch {
	case s.customization == nil && other.customization == nil:
		return true
	case s.customization == nil || other.customization == nil:
		return false
	}
	return *s.customization == *other.customization
}

// Update is a partial snapshot. Every key present replaces the previous value;
// a nil Customization leaves the previous customization untouched.
type Update struct {
	Values        map[string]string
	Customization *domain.TextCustomization
}

// OptionUpdate selects value for option name.
func OptionUpdate(name, value string) Update {
	return Update{Values: map[string]string{name: value}}
}

// ImageUpdate selects the image at index.
func ImageUpdate(index string) Update {
	return Update{Values: map[string]string{KeyImage: index}}
}

// CustomizationUpdate replaces the customization wholesale.
func CustomizationUpdate(c domain.TextCustomization) Update {
	return Update{Customization: &c}
}

// FoldLines moves flat line1/line2 values onto the customization slot,
// overlaying them on base. When u already carries a customization the flat
// lines are dropped. Updates without line keys are returned unchanged.
func (u Update) FoldLines(base *domain.TextCustomization) Update {
	line1, has1 := u.Values[KeyLine1]
	line2, has2 := u.Values[KeyLine2]
	if !has1 && !has2 {
		return u
	}

	out := Update{Customization: cloneCustomization(u.Customization)}
	for k, v := range u.Values {
		if k == KeyLine1 || k == KeyLine2 {
			continue
		}
		if out.Values == nil {
			out.Values = make(map[string]string, len(u.Values))
		}
		out.Values[k] = v
	}
	if out.Customization != nil {
		return out
	}

	c := domain.TextCustomization{}
	if base != nil {
		c = *base
	}
	if has1 {
		c.Line1 = line1
	}
	if has2 {
		c.Line2 = line2
	}
	out.Customization = &c
	return out
}

// IsEmpty reports whether the update carries no keys.
func (u Update) IsEmpty() bool {
	return len(u.Values) == 0 && u.Customization == nil
}

// Merge returns prev with every key present in u overwritten by u's value.
// prev is never modified.
func Merge(prev State, u Update) State {
	next := State{
		values:        copyValues(prev.values),
		customization: prev.customization,
	}
	if len(u.Values) > 0 {
		if next.values == nil {
			next.values = make(map[string]string, len(u.Values))
		}
		for k, v := range u.Values {
			if k == KeyCustomization {
				continue
			}
			next.values[k] = v
		}
	}
	if u.Customization != nil {
		next.customization = cloneCustomization(u.Customization)
	}
	return next
}

func copyValues(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if k == KeyCustomization {
			continue
		}
		out[k] = v
	}
	return out
}

func cloneCustomization(c *domain.TextCustomization) *domain.TextCustomization {
	if c == nil {
		return nil
	}
	dup := *c
	return &dup
}
