package canvas

import (
	"image"
	"image/color"
	"math"

	"slide-editor/pkg/colorutil"
	"slide-editor/pkg/geometry"
)

var (
	selectionStroke = colorutil.Primary
	selectionFill   = colorutil.WithAlpha(colorutil.Primary, 0x30)
	overlayStroke   = colorutil.Accent
	handleFill      = colorutil.White
)

// frame is the editor chrome drawn over the slide: the working selection
// with its handles and the outline of the selected overlay. Rects are in
// model space.
type frame struct {
	vp         *geometry.Viewport
	handleSize float64
	selection  *geometry.Rect
	overlay    *geometry.Rect
}

func (f frame) draw(output *image.RGBA) {
	if f.overlay != nil {
		x1, y1, x2, y2 := f.screenBounds(*f.overlay)
		drawDashedRect(output, x1-1, y1-1, x2+1, y2+1, overlayStroke)
	}
	if f.selection != nil {
		x1, y1, x2, y2 := f.screenBounds(*f.selection)
		fillRect(output, x1, y1, x2, y2, selectionFill)
		strokeRect(output, x1, y1, x2, y2, selectionStroke, 2)
		// handles keep a fixed screen size
		half := int(math.Round(f.handleSize / 2))
		for _, h := range geometry.Handles() {
			p := f.vp.ModelToScreen(geometry.HandlePoint(*f.selection, h))
			cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
			fillRect(output, cx-half, cy-half, cx+half, cy+half, handleFill)
			strokeRect(output, cx-half, cy-half, cx+half, cy+half, selectionStroke, 1)
		}
	}
}

func (f frame) screenBounds(r geometry.Rect) (x1, y1, x2, y2 int) {
	s := f.vp.RectToScreen(r.Normalize())
	return int(math.Round(s.X)), int(math.Round(s.Y)),
		int(math.Round(s.X + s.Width)), int(math.Round(s.Y + s.Height))
}

// fillRect blends col (premultiplied) over the rectangle [x1,x2)x[y1,y2).
func fillRect(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	r := image.Rect(x1, y1, x2, y2).Intersect(output.Bounds())
	inv := 255 - uint32(col.A)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := output.PixOffset(x, y)
			p := output.Pix[i : i+4 : i+4]
			p[0] = uint8(uint32(col.R) + uint32(p[0])*inv/255)
			p[1] = uint8(uint32(col.G) + uint32(p[1])*inv/255)
			p[2] = uint8(uint32(col.B) + uint32(p[2])*inv/255)
			p[3] = uint8(uint32(col.A) + uint32(p[3])*inv/255)
		}
	}
}

// strokeRect draws a solid outline of the given thickness inside the rect.
func strokeRect(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	fillRect(output, x1, y1, x2, y1+thickness, col)
	fillRect(output, x1, y2-thickness, x2, y2, col)
	fillRect(output, x1, y1, x1+thickness, y2, col)
	fillRect(output, x2-thickness, y1, x2, y2, col)
}

// drawDashedRect draws a 1px outline with 4px dashes.
func drawDashedRect(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	bounds := output.Bounds()
	set := func(x, y int) {
		if image.Pt(x, y).In(bounds) {
			output.SetRGBA(x, y, col)
		}
	}
	for x := x1; x <= x2; x++ {
		if (x-x1)%8 < 4 {
			set(x, y1)
			set(x, y2)
		}
	}
	for y := y1; y <= y2; y++ {
		if (y-y1)%8 < 4 {
			set(x1, y)
			set(x2, y)
		}
	}
}
