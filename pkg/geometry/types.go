// Package geometry provides the point, rectangle and transform types shared by
// the editor, the compositor and the UI.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Rect is an axis-aligned rectangle. Width and Height may be negative while a
// resize gesture is in progress; Normalize folds them back.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// RectBetween returns the rectangle spanned by two corners, with non-negative size.
func RectBetween(a, b Point2D) Rect {
	x, y := math.Min(a.X, b.X), math.Min(a.Y, b.Y)
	return Rect{X: x, Y: y, Width: math.Max(a.X, b.X) - x, Height: math.Max(a.Y, b.Y) - y}
}

// Contains returns true if the point is inside the rectangle, edges included.
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point2D {
	return Point2D{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// TopLeft returns the top-left corner.
func (r Rect) TopLeft() Point2D {
	return Point2D{X: r.X, Y: r.Y}
}

// BottomRight returns the bottom-right corner.
func (r Rect) BottomRight() Point2D {
	return Point2D{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Translate returns the rectangle moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Normalize returns an equivalent rectangle with non-negative width and height.
func (r Rect) Normalize() Rect {
	return RectBetween(r.TopLeft(), r.BottomRight())
}

// AtLeast reports whether both dimensions are at least min.
func (r Rect) AtLeast(min float64) bool {
	return r.Width >= min && r.Height >= min
}

// Scale returns the rectangle with origin and size multiplied by (sx, sy).
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, Width: r.Width * sx, Height: r.Height * sy}
}

// Image returns the integer pixel rectangle covering r, with edges rounded to
// the nearest pixel.
func (r Rect) Image() image.Rectangle {
	n := r.Normalize()
	return image.Rect(
		int(math.Round(n.X)), int(math.Round(n.Y)),
		int(math.Round(n.X+n.Width)), int(math.Round(n.Y+n.Height)),
	)
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// SizeOf returns the size of an image rectangle.
func SizeOf(b image.Rectangle) Size {
	return Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Matrix returns the transform as the six coefficients expected by
// golang.org/x/image/math/f64.Aff3.
func (t AffineTransform) Matrix() [6]float64 {
	return [6]float64{t.A, t.B, t.TX, t.C, t.D, t.TY}
}
