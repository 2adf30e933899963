package geometry

import "math"

// Default zoom bounds.
const (
	DefaultMinZoom = 0.1
	DefaultMaxZoom = 10.0
)

// Viewport maps between screen space and model (slide) space:
//
//	model = (screen - offset) / zoom
//
// Offset is unrestricted, so content may be panned out of view.
type Viewport struct {
	Zoom    float64
	Offset  Point2D
	MinZoom float64
	MaxZoom float64
}

// NewViewport returns an identity viewport with the given zoom bounds.
func NewViewport(minZoom, maxZoom float64) *Viewport {
	if minZoom <= 0 {
		minZoom = DefaultMinZoom
	}
	if maxZoom < minZoom {
		maxZoom = minZoom
	}
	return &Viewport{Zoom: 1, MinZoom: minZoom, MaxZoom: maxZoom}
}

// ScreenToModel converts a screen point into model coordinates.
func (v *Viewport) ScreenToModel(p Point2D) Point2D {
	return Point2D{
		X: (p.X - v.Offset.X) / v.Zoom,
		Y: (p.Y - v.Offset.Y) / v.Zoom,
	}
}

// ModelToScreen converts a model point into screen coordinates.
func (v *Viewport) ModelToScreen(p Point2D) Point2D {
	return Point2D{
		X: p.X*v.Zoom + v.Offset.X,
		Y: p.Y*v.Zoom + v.Offset.Y,
	}
}

// RectToScreen converts a model rectangle into screen coordinates.
func (v *Viewport) RectToScreen(r Rect) Rect {
	tl := v.ModelToScreen(r.TopLeft())
	return Rect{X: tl.X, Y: tl.Y, Width: r.Width * v.Zoom, Height: r.Height * v.Zoom}
}

// Transform returns the model-to-screen transform.
func (v *Viewport) Transform() AffineTransform {
	return AffineTransform{A: v.Zoom, D: v.Zoom, TX: v.Offset.X, TY: v.Offset.Y}
}

// ClampZoom limits z to the viewport's zoom bounds.
func (v *Viewport) ClampZoom(z float64) float64 {
	return math.Max(v.MinZoom, math.Min(v.MaxZoom, z))
}

// SetZoom sets the zoom level, clamped to bounds, without moving the offset.
func (v *Viewport) SetZoom(z float64) {
	v.Zoom = v.ClampZoom(z)
}

// FitToViewport scales the image to fit inside the viewport less margin and
// centers it.
func (v *Viewport) FitToViewport(image, viewport Size, margin float64) {
	if image.Width <= 0 || image.Height <= 0 || viewport.Width <= 0 || viewport.Height <= 0 {
		return
	}
	scale := math.Min((viewport.Width-margin)/image.Width, (viewport.Height-margin)/image.Height)
	v.Zoom = v.ClampZoom(scale)
	v.Offset = Point2D{
		X: (viewport.Width - image.Width*v.Zoom) / 2,
		Y: (viewport.Height - image.Height*v.Zoom) / 2,
	}
}

// ZoomAt multiplies the zoom by factor around a screen-space pivot. The model
// point under the pivot stays under it unless the zoom hits a bound.
func (v *Viewport) ZoomAt(pivot Point2D, factor float64) {
	world := v.ScreenToModel(pivot)
	v.Zoom = v.ClampZoom(v.Zoom * factor)
	v.Offset = Point2D{
		X: pivot.X - world.X*v.Zoom,
		Y: pivot.Y - world.Y*v.Zoom,
	}
}

// Pan moves the offset by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.Offset.X += dx
	v.Offset.Y += dy
}
