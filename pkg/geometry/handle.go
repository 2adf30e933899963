package geometry

import "math"

// Handle names one of the eight resize handles of a rectangle.
type Handle string

// Handle values. HandleNone means no handle was hit.
const (
	HandleNone Handle = ""
	HandleNW   Handle = "nw"
	HandleN    Handle = "n"
	HandleNE   Handle = "ne"
	HandleE    Handle = "e"
	HandleSE   Handle = "se"
	HandleS    Handle = "s"
	HandleSW   Handle = "sw"
	HandleW    Handle = "w"
)

// handleGrid lays the handles out on a 3x3 grid; the center cell is empty.
var handleGrid = [3][3]Handle{
	{HandleNW, HandleN, HandleNE},
	{HandleW, HandleNone, HandleE},
	{HandleSW, HandleS, HandleSE},
}

// Handles returns every handle in grid order.
func Handles() []Handle {
	return []Handle{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}
}

// HandlePoint returns the model-space position of h on r.
func HandlePoint(r Rect, h Handle) Point2D {
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if handleGrid[row][col] == h && h != HandleNone {
				return Point2D{
					X: r.X + r.Width*float64(col)/2,
					Y: r.Y + r.Height*float64(row)/2,
				}
			}
		}
	}
	return r.Center()
}

// HitTestHandle returns the handle of r within handleSize screen pixels of p.
// p and r are in model space; the tolerance is divided by zoom so it stays
// constant on screen.
func HitTestHandle(p Point2D, r Rect, zoom, handleSize float64) Handle {
	if zoom <= 0 {
		return HandleNone
	}
	tol := handleSize / zoom
	for row := 0; row < 3; row++ {
		hy := r.Y + r.Height*float64(row)/2
		if math.Abs(p.Y-hy) >= tol {
			continue
		}
		for col := 0; col < 3; col++ {
			h := handleGrid[row][col]
			if h == HandleNone {
				continue
			}
			hx := r.X + r.Width*float64(col)/2
			if math.Abs(p.X-hx) < tol {
				return h
			}
		}
	}
	return HandleNone
}

// Resize moves the edges named by h by (dx, dy). The result is not
// normalized, so dragging an edge across its opposite yields a negative size.
func (h Handle) Resize(r Rect, dx, dy float64) Rect {
	switch h {
	case HandleE, HandleNE, HandleSE:
		r.Width += dx
	case HandleW, HandleNW, HandleSW:
		r.X += dx
		r.Width -= dx
	}
	switch h {
	case HandleS, HandleSE, HandleSW:
		r.Height += dy
	case HandleN, HandleNE, HandleNW:
		r.Y += dy
		r.Height -= dy
	}
	return r
}
