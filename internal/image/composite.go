package image

import (
	"image"
	"image/draw"
	"log/slog"
	"strings"

	"slide-editor/internal/document"
	"slide-editor/pkg/colorutil"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
)

// LineHeightFactor scales the font size into the line advance.
const LineHeightFactor = 1.2

// Line is one laid-out text line of an overlay, in model coordinates.
type Line struct {
	Text    string
	AnchorX float64 // x of the alignment anchor
	Left    float64 // x where drawing starts after alignment
	Top     float64 // top of the line box
	Width   float64
}

// Layout places the lines of o's text. measure returns the advance width of
// a string at o's font; text is never clipped to the rect.
func Layout(o document.Overlay, measure func(string) float64) []Line {
	lines := strings.Split(o.NewText, "\n")
	lineHeight := o.FontSize * LineHeightFactor
	blockHeight := float64(len(lines)) * lineHeight
	r := o.Rect

	var anchorX float64
	switch o.HAlign {
	case document.AlignLeft:
		anchorX = r.X
	case document.AlignRight:
		anchorX = r.X + r.Width
	default:
		anchorX = r.X + r.Width/2
	}

	var anchorY float64
	switch o.VAlign {
	case document.AlignTop:
		anchorY = r.Y
	case document.AlignBottom:
		anchorY = r.Y + r.Height - blockHeight
	default:
		anchorY = r.Y + (r.Height-blockHeight)/2
	}

	out := make([]Line, len(lines))
	for i, text := range lines {
		w := 0.0
		if measure != nil {
			w = measure(text)
		}
		left := anchorX
		switch o.HAlign {
		case document.AlignLeft:
		case document.AlignRight:
			left = anchorX - w
		default:
			left = anchorX - w/2
		}
		out[i] = Line{
			Text:    text,
			AnchorX: anchorX,
			Left:    left,
			Top:     anchorY + float64(i)*lineHeight,
			Width:   w,
		}
	}
	return out
}

// Backgrounds looks up the decoded background image of an overlay. A nil
// result means "fill with the background color".
type Backgrounds interface {
	Background(o document.Overlay) image.Image
}

// Compositor paints overlays onto slide rasters. The same code path serves
// the live preview and both exporters.
type Compositor struct {
	fonts  *FontBook
	cache  *BackgroundCache
	logger *slog.Logger
}

// NewCompositor creates a compositor with its own background cache.
func NewCompositor(fonts *FontBook, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{
		fonts:  fonts,
		cache:  NewBackgroundCache(logger),
		logger: logger,
	}
}

// Preload decodes every background referenced by overlays. It is safe to
// call from any goroutine and may be called repeatedly.
func (c *Compositor) Preload(overlays document.Overlays) {
	c.cache.Ensure(overlays)
}

// Forget drops cached backgrounds of overlays not in keep.
func (c *Compositor) Forget(keep document.Overlays) {
	c.cache.Prune(keep)
}

// Render returns a new raster holding base with overlays painted on top. It is
// safe to call from several goroutines at once.
func (c *Compositor) Render(base image.Image, overlays document.Overlays) *image.RGBA {
	c.cache.Ensure(overlays)
	b := base.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), base, b.Min, draw.Src)
	Composite(dst, overlays, c.cache, c.fonts)
	return dst
}

// Composite paints overlays onto dst in list order; later overlays cover
// earlier ones.
func Composite(dst draw.Image, overlays document.Overlays, bgs Backgrounds, fonts *FontBook) {
	for _, o := range overlays {
		DrawOverlay(dst, o, bgs, fonts)
	}
}

// DrawOverlay paints one overlay: background, then text.
func DrawOverlay(dst draw.Image, o document.Overlay, bgs Backgrounds, fonts *FontBook) {
	r := o.Rect.Image()
	if r.Empty() {
		return
	}

	var bg image.Image
	if bgs != nil {
		bg = bgs.Background(o)
	}
	if bg != nil {
		xdraw.BiLinear.Scale(dst, r, bg, bg.Bounds(), xdraw.Over, nil)
	} else {
		fill := colorutil.Premultiplied(colorutil.ParseHexOr(o.BackgroundColor, colorutil.White))
		draw.Draw(dst, r, image.NewUniform(fill), image.Point{}, draw.Over)
	}

	if o.NewText == "" || o.FontSize <= 0 || fonts == nil {
		return
	}
	face := fonts.Face(o.FontFamily, o.FontWeight == document.WeightBold, o.FontSize)
	ascent := Ascent(face)
	ink := colorutil.Premultiplied(colorutil.ParseHexOr(o.FontColor, colorutil.Black))
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(ink), Face: face}
	for _, line := range Layout(o, func(s string) float64 { return MeasureString(face, s) }) {
		if line.Text == "" {
			continue
		}
		d.Dot.X = floatToFixed(line.Left)
		d.Dot.Y = floatToFixed(line.Top + ascent)
		d.DrawString(line.Text)
	}
}
