// Package preview describes and renders the hat mock-up shown next to the
// customization form.
package preview

import (
	"strings"

	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/productstate"
)

// Hat styles.
const (
	StyleClassic = "classic"
	StyleTrucker = "trucker"
	StyleBeanie  = "beanie"
)

// Text anchors, expressed as a fraction of the hat height.
const (
	PositionUpperThird = "top-1/3"
	PositionCenter     = "top-1/2"
)

// Crown shapes.
const (
	ShapeDome     = "rounded-t-full"
	ShapePanel    = "rounded-t-lg"
	ShapeRibbed   = "rounded-b-full"
	DefaultColour = "#CCCCCC"
)

// State keys read by FromState.
const (
	KeyColor = "color"
	KeyStyle = "style"
)

var colours = map[string]string{
	"red":   "#FF5555",
	"blue":  "#5555FF",
	"black": "#333333",
	"white": "#FFFFFF",
	"gray":  "#AAAAAA",
}

// Descriptor is the resolved visual description of a hat.
type Descriptor struct {
	Style           string   `json:"style"`
	Shape           string   `json:"shape"`
	TextPosition    string   `json:"text_position"`
	BackgroundColor string   `json:"background_color"`
	Lines           []string `json:"lines"`
}

// Describe resolves colour and style names plus the customization text.
// Unknown colours fall back to DefaultColour; an empty style means classic.
func Describe(color, style string, text domain.TextCustomization) Descriptor {
	style = strings.ToLower(strings.TrimSpace(style))
	if style == "" {
		style = StyleClassic
	}

	d := Descriptor{
		Style:           style,
		Shape:           ShapeDome,
		TextPosition:    PositionCenter,
		BackgroundColor: DefaultColour,
		Lines:           []string{},
	}
	switch style {
	case StyleTrucker:
		d.Shape = ShapePanel
		d.TextPosition = PositionUpperThird
	case StyleBeanie:
		d.Shape = ShapeRibbed
	}
	if hex, ok := colours[strings.ToLower(strings.TrimSpace(color))]; ok {
		d.BackgroundColor = hex
	}
	for _, line := range []string{text.Line1, text.Line2} {
		if line != "" {
			d.Lines = append(d.Lines, line)
		}
	}
	return d
}

// FromState reads colour, style and customization from a product state.
func FromState(s productstate.State) Descriptor {
	text, _ := s.Customization()
	return Describe(s.Option(KeyColor), s.Option(KeyStyle), text)
}
