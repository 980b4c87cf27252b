package preview

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

const (
	canvasSize = 256
	lineHeight = 28
)

var (
	svgPolicyOnce sync.Once
	svgPolicy     *bluemonday.Policy
)

func svgSanitizer() *bluemonday.Policy {
	svgPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("svg", "g", "rect", "path", "text", "title")
		policy.AllowAttrs("xmlns", "width", "height", "role", "aria-label").OnElements("svg")
		policy.AllowAttrs("x", "y", "width", "height", "rx", "fill").OnElements("rect")
		policy.AllowAttrs("d", "fill", "stroke", "stroke-width").OnElements("path")
		policy.AllowAttrs("x", "y", "fill", "font-family", "font-size", "font-weight", "text-anchor").OnElements("text")
		svgPolicy = policy
	})
	return svgPolicy
}

// RenderSVG draws the descriptor as a standalone SVG document. Customer text
// is escaped and the markup passes through an SVG allow-list before it is returned.
func RenderSVG(d Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" role="img" aria-label="%s hat preview">`,
		canvasSize, canvasSize, html.EscapeString(d.Style))
	fmt.Fprintf(&b, `<title>%s</title>`, html.EscapeString(strings.Join(d.Lines, " ")))
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" rx="8" fill="%s"/>`, canvasSize, canvasSize, safeColour(d.BackgroundColor))
	fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="#000000" stroke-width="3"/>`, crownPath(d.Shape))

	y := textBaseline(d.TextPosition, len(d.Lines))
	for _, line := range d.Lines {
		fmt.Fprintf(&b, `<text x="128" y="%d" fill="#000000" font-family="sans-serif" font-size="20" font-weight="bold" text-anchor="middle">%s</text>`,
			y, html.EscapeString(line))
		y += lineHeight
	}
	b.WriteString(`</svg>`)
	return strings.TrimSpace(svgSanitizer().Sanitize(b.String()))
}

// crownPath outlines a 192px hat centred on the canvas.
func crownPath(shape string) string {
	switch shape {
	case ShapePanel:
		return "M32 224 L32 56 Q32 32 56 32 L200 32 Q224 32 224 56 L224 224 Z"
	case ShapeRibbed:
		return "M32 32 L224 32 L224 128 A96 96 0 0 1 32 128 Z"
	default:
		return "M32 224 L32 128 A96 96 0 0 1 224 128 L224 224 Z"
	}
}

func textBaseline(position string, lines int) int {
	anchor := 32 + 192/2
	if position == PositionUpperThird {
		anchor = 32 + 192/3
	}
	return anchor - (lines-1)*lineHeight/2
}

func safeColour(value string) string {
	if len(value) != 7 || value[0] != '#' {
		return DefaultColour
	}
	for _, r := range value[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return DefaultColour
		}
	}
	return value
}
