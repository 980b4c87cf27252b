package domain

// TextCustomization is the personalization text printed on a product.
// Line2 is optional; the empty string means the line is absent.
type TextCustomization struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2,omitempty"`
}

// HasLine2 reports whether the optional second line carries any text.
func (c TextCustomization) HasLine2() bool {
	return c.Line2 != ""
}

// Attribute is a single key/value pair attached to a cart line item.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Attributes is an ordered line item attribute list. Order is significant.
type Attributes []Attribute

// Value returns the value stored under key.
func (a Attributes) Value(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Equal reports whether both lists hold the same pairs in the same order.
func (a Attributes) Equal(other Attributes) bool {
	if len(a) != len(other) {
		return false
	}
	for i := range a {
		if a[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the list.
func (a Attributes) Clone() Attributes {
	if len(a) == 0 {
		return nil
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}
