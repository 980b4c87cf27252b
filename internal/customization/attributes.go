package customization

import domain "github.com/storefront/customizer/internal/domain"

const (
	// AttributeLine1 is the line item attribute key carrying the first line.
	AttributeLine1 = "line1_text"
	// AttributeLine2 is the line item attribute key carrying the optional second line.
	AttributeLine2 = "line2_text"
)

// ToAttributes converts a customization into ordered line item attributes.
// line1_text is always first; line2_text follows only when Line2 is non-empty.
func ToAttributes(c domain.TextCustomization) domain.Attributes {
	attrs := domain.Attributes{
		{Key: AttributeLine1, Value: c.Line1},
	}
	if c.HasLine2() {
		attrs = append(attrs, domain.Attribute{Key: AttributeLine2, Value: c.Line2})
	}
	return attrs
}

// FromAttributes recovers a customization from line item attributes produced by ToAttributes.
func FromAttributes(attrs domain.Attributes) (domain.TextCustomization, bool) {
	line1, ok := attrs.Value(AttributeLine1)
	if !ok {
		return domain.TextCustomization{}, false
	}
	line2, _ := attrs.Value(AttributeLine2)
	return domain.TextCustomization{Line1: line1, Line2: line2}, true
}
