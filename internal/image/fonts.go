package image

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FontBook resolves CSS-style family lists to fonts. Families that are not
// registered fall back to the bundled Go fonts. Parsed fonts are shared; faces
// are not, since a font.Face must not be used from two goroutines at once.
type FontBook struct {
	mu         sync.Mutex
	registered map[string][2]*opentype.Font // [regular, bold]
	fallback   map[string][2]*opentype.Font
}

// NewFontBook returns a book holding the Go sans and mono families.
func NewFontBook() (*FontBook, error) {
	parse := func(regular, bold []byte) ([2]*opentype.Font, error) {
		r, err := opentype.Parse(regular)
		if err != nil {
			return [2]*opentype.Font{}, err
		}
		b, err := opentype.Parse(bold)
		if err != nil {
			return [2]*opentype.Font{}, err
		}
		return [2]*opentype.Font{r, b}, nil
	}
	sans, err := parse(goregular.TTF, gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse go sans: %w", err)
	}
	mono, err := parse(gomono.TTF, gomonobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse go mono: %w", err)
	}
	return &FontBook{
		registered: make(map[string][2]*opentype.Font),
		fallback:   map[string][2]*opentype.Font{"sans-serif": sans, "monospace": mono},
	}, nil
}

// Register adds a TrueType/OpenType font under family. A bold font registered
// without a regular one is used for both weights, and vice versa.
func (b *FontBook) Register(family string, bold bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %q: %w", family, err)
	}
	key := normalizeFamily(family)

	b.mu.Lock()
	defer b.mu.Unlock()
	pair := b.registered[key]
	if bold {
		pair[1] = f
	} else {
		pair[0] = f
	}
	b.registered[key] = pair
	return nil
}

// RegisterFile reads and registers a font file.
func (b *FontBook) RegisterFile(family string, bold bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return b.Register(family, bold, data)
}

// Font returns the font for a family list such as "Noto Sans KR, sans-serif".
// The first registered or generic family wins; anything else falls back to
// sans-serif.
func (b *FontBook) Font(families string, bold bool) *opentype.Font {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, pair := b.resolve(families)
	if bold && pair[1] != nil {
		return pair[1]
	}
	if pair[0] != nil {
		return pair[0]
	}
	return pair[1]
}

// Face returns a new sized face for a family list. The caller owns the face
// and must not share it between goroutines.
func (b *FontBook) Face(families string, bold bool, size float64) font.Face {
	src := b.Font(families, bold)
	face, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		// size <= 0 is the only failure for a parsed font
		face, _ = opentype.NewFace(src, &opentype.FaceOptions{Size: 1, DPI: 72})
	}
	return face
}

func (b *FontBook) resolve(families string) (string, [2]*opentype.Font) {
	for _, part := range strings.Split(families, ",") {
		name := normalizeFamily(part)
		if name == "" {
			continue
		}
		if pair, ok := b.registered[name]; ok {
			return name, pair
		}
		switch {
		case name == "monospace" || strings.Contains(name, "mono") ||
			strings.Contains(name, "courier") || strings.Contains(name, "consol"):
			return "monospace", b.fallback["monospace"]
		case name == "sans-serif" || name == "serif" || name == "system-ui":
			return "sans-serif", b.fallback["sans-serif"]
		}
	}
	return "sans-serif", b.fallback["sans-serif"]
}

func normalizeFamily(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.ToLower(s)
}

// MeasureString returns the advance width of s in pixels.
func MeasureString(face font.Face, s string) float64 {
	return fixedToFloat(font.MeasureString(face, s))
}

// Ascent returns the face's ascent in pixels.
func Ascent(face font.Face) float64 {
	return fixedToFloat(face.Metrics().Ascent)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}
