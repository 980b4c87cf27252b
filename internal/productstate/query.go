package productstate

import (
	"net/url"

	domain "github.com/storefront/customizer/internal/domain"
)

// FromQuery initialises a snapshot from query-string pairs. When a key repeats
// the last value wins. A non-empty line1 seeds the customization slot, with
// line2 included only when non-empty.
func FromQuery(query url.Values) State {
	values := make(map[string]string, len(query))
	for key, vals := range query {
		if len(vals) == 0 {
			continue
		}
		values[key] = vals[len(vals)-1]
	}

	return New(values, seedCustomization(values))
}

// seedCustomization builds a customization from flat line1/line2 values. It
// returns nil unless line1 is non-empty.
func seedCustomization(values map[string]string) *domain.TextCustomization {
	line1 := values[KeyLine1]
	if line1 == "" {
		return nil
	}
	return &domain.TextCustomization{Line1: line1, Line2: values[KeyLine2]}
}

// ToQuery writes s onto a copy of base. Every free-form key is set; when a
// customization exists line1 is set and line2 is set or removed.
func ToQuery(base url.Values, s State) url.Values {
	out := url.Values{}
	for k, v := range base {
		out[k] = append([]string(nil), v...)
	}
	for _, key := range s.Keys() {
		out.Set(key, s.values[key])
	}
	if c, ok := s.Customization(); ok {
		out.Set(KeyLine1, c.Line1)
		if c.HasLine2() {
			out.Set(KeyLine2, c.Line2)
		} else {
			out.Del(KeyLine2)
		}
	}
	return out
}
