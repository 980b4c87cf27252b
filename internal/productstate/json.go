package productstate

import (
	"encoding/json"
	"fmt"

	domain "github.com/storefront/customizer/internal/domain"
)

// MarshalJSON encodes the snapshot as a flat object with customization nested.
func (s State) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, s.Len())
	for k, v := range s.values {
		payload[k] = v
	}
	if s.customization != nil {
		payload[KeyCustomization] = *s.customization
	}
	return json.Marshal(payload)
}

// UnmarshalJSON decodes the flat object produced by MarshalJSON. Without a
// "customization" object, flat line1/line2 values seed the customization the
// same way FromQuery does.
func (s *State) UnmarshalJSON(data []byte) error {
	var u Update
	if err := u.UnmarshalJSON(data); err != nil {
		return err
	}
	customization := u.Customization
	if customization == nil {
		customization = seedCustomization(u.Values)
	}
	*s = New(u.Values, customization)
	return nil
}

// UnmarshalJSON decodes a partial snapshot. String values populate Values and
// a "customization" object populates Customization; null values are skipped.
func (u *Update) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("productstate: state must be a JSON object: %w", err)
	}

	out := Update{}
	for key, value := range raw {
		if string(value) == "null" {
			continue
		}
		if key == KeyCustomization {
			var c domain.TextCustomization
			if err := json.Unmarshal(value, &c); err != nil {
				return fmt.Errorf("productstate: customization must be an object with line1/line2: %w", err)
			}
			out.Customization = &c
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("productstate: value for %q must be a string", key)
		}
		if out.Values == nil {
			out.Values = make(map[string]string, len(raw))
		}
		out.Values[key] = s
	}
	*u = out
	return nil
}
