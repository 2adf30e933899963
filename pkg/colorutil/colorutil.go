// Package colorutil provides shared color utilities for the slide editor.
package colorutil

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Editor chrome colors.
var (
	Black     = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Primary   = color.RGBA{R: 0x3B, G: 0x82, B: 0xF6, A: 255} // selection stroke
	Accent    = color.RGBA{R: 0xF5, G: 0x9E, B: 0x0B, A: 255} // selected overlay
	Workspace = color.RGBA{R: 0x1E, G: 0x29, B: 0x3B, A: 255}
)

// ParseHex parses #rgb, #rrggbb or #rrggbbaa (the leading # is optional).
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]}) + "ff"
	case 6:
		h += "ff"
	case 8:
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ParseHexOr parses s, returning fallback when s is not a valid hex color.
func ParseHexOr(s string, fallback color.RGBA) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		return fallback
	}
	return c
}

// Hex formats c as #rrggbb, ignoring alpha.
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// Premultiplied returns c as a premultiplied color.RGBA suitable for image/draw.
func Premultiplied(c color.RGBA) color.RGBA {
	if c.A == 255 {
		return c
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

// WithAlpha returns c with its alpha replaced, premultiplied.
func WithAlpha(c color.RGBA, a uint8) color.RGBA {
	c.A = a
	return Premultiplied(c)
}

// Luminance returns the Rec. 601 luma of an 8-bit RGB triple (0-255).
func Luminance(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

// Distance returns the Euclidean RGB distance between two colors.
func Distance(a, b color.RGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
