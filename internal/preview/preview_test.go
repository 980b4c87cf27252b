package preview

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/productstate"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		color string
		style string
		text  domain.TextCustomization
		want  Descriptor
	}{
		{
			name: "defaults",
			text: domain.TextCustomization{Line1: "Go Team"},
			want: Descriptor{Style: StyleClassic, Shape: ShapeDome, TextPosition: PositionCenter, BackgroundColor: DefaultColour, Lines: []string{"Go Team"}},
		},
		{
			name:  "trucker",
			color: "Blue",
			style: "Trucker",
			text:  domain.TextCustomization{Line1: "A", Line2: "B"},
			want:  Descriptor{Style: StyleTrucker, Shape: ShapePanel, TextPosition: PositionUpperThird, BackgroundColor: "#5555FF", Lines: []string{"A", "B"}},
		},
		{
			name:  "beanie",
			color: "black",
			style: "BEANIE",
			want:  Descriptor{Style: StyleBeanie, Shape: ShapeRibbed, TextPosition: PositionCenter, BackgroundColor: "#333333", Lines: []string{}},
		},
		{
			name:  "unknown style and colour",
			color: "teal",
			style: "bucket",
			want:  Descriptor{Style: "bucket", Shape: ShapeDome, TextPosition: PositionCenter, BackgroundColor: DefaultColour, Lines: []string{}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Describe(tc.color, tc.style, tc.text)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("unexpected descriptor (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromState(t *testing.T) {
	state := productstate.New(map[string]string{"color": "Gray", "style": "Classic"}, &domain.TextCustomization{Line1: "Hi"})
	got := FromState(state)
	if got.BackgroundColor != "#AAAAAA" || got.Style != StyleClassic {
		t.Fatalf("unexpected descriptor %#v", got)
	}
	if diff := cmp.Diff([]string{"Hi"}, got.Lines); diff != "" {
		t.Fatalf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestRenderSVG(t *testing.T) {
	svg := RenderSVG(Describe("red", "trucker", domain.TextCustomization{Line1: "Go & Win", Line2: "2024"}))

	for _, fragment := range []string{
		`<svg xmlns="http://www.w3.org/2000/svg"`,
		`fill="#FF5555"`,
		`Go &amp; Win</text>`,
		`2024</text>`,
		`</svg>`,
	} {
		if !strings.Contains(svg, fragment) {
			t.Fatalf("expected %q in %s", fragment, svg)
		}
	}
	if strings.Count(svg, "<text") != 2 {
		t.Fatalf("expected two text elements, got %s", svg)
	}
}

func TestRenderSVGEscapesMarkup(t *testing.T) {
	svg := RenderSVG(Descriptor{
		Style:           `classic"><script>alert(1)</script>`,
		Shape:           ShapeDome,
		TextPosition:    PositionCenter,
		BackgroundColor: `red" onload="alert(1)`,
		Lines:           []string{`<script>alert(1)</script>`},
	})
	if strings.Contains(svg, "<script") {
		t.Fatalf("script element survived: %s", svg)
	}
	if strings.Contains(svg, "onload") {
		t.Fatalf("event handler survived: %s", svg)
	}
	if !strings.Contains(svg, `fill="#CCCCCC"`) {
		t.Fatalf("expected invalid colour to fall back, got %s", svg)
	}
}

func TestTextBaseline(t *testing.T) {
	if got := textBaseline(PositionCenter, 1); got != 128 {
		t.Fatalf("expected centre baseline 128, got %d", got)
	}
	if got := textBaseline(PositionUpperThird, 1); got != 96 {
		t.Fatalf("expected upper third baseline 96, got %d", got)
	}
	if got := textBaseline(PositionCenter, 2); got != 114 {
		t.Fatalf("expected two-line baseline 114, got %d", got)
	}
}
