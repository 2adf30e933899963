package ocr

import (
	"image"
	"image/color"
	"math"
	"sort"

	"slide-editor/internal/analysis"
	"slide-editor/pkg/colorutil"

	"gonum.org/v1/gonum/stat"
)

// Estimation thresholds. Luma and RGB distances are in 8-bit units.
const (
	solidStdDev     = 6.0  // border luma spread below this is a flat fill
	gradientStepMax = 3.0  // mean neighbour step along the border for a smooth ramp
	inkDistance     = 60.0 // RGB distance from the background that counts as ink
	boldInkRatio    = 0.28 // ink coverage of line boxes above which text reads as bold
)

// CalculateBackgroundColor samples the border pixels of an RGBA image and
// returns their average color.
func CalculateBackgroundColor(img *image.RGBA) color.RGBA {
	var r, g, b float64
	samples := borderSamples(img)
	if len(samples) == 0 {
		return color.RGBA{A: 255}
	}
	for _, c := range samples {
		r += float64(c.R)
		g += float64(c.G)
		b += float64(c.B)
	}
	n := float64(len(samples))
	return color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 255}
}

// borderSamples walks the border clockwise from the top-left corner so
// neighbouring samples are adjacent pixels.
func borderSamples(img *image.RGBA) []color.RGBA {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	var out []color.RGBA
	for x := b.Min.X; x < b.Max.X; x++ {
		out = append(out, img.RGBAAt(x, b.Min.Y))
	}
	for y := b.Min.Y + 1; y < b.Max.Y; y++ {
		out = append(out, img.RGBAAt(b.Max.X-1, y))
	}
	if b.Dy() > 1 {
		for x := b.Max.X - 2; x >= b.Min.X; x-- {
			out = append(out, img.RGBAAt(x, b.Max.Y-1))
		}
	}
	if b.Dx() > 1 {
		for y := b.Max.Y - 2; y > b.Min.Y; y-- {
			out = append(out, img.RGBAAt(b.Min.X, y))
		}
	}
	return out
}

// ClassifyBackground decides whether the region's border is a flat fill, a
// smooth gradient or something busier such as a photo.
func ClassifyBackground(img *image.RGBA) analysis.BackgroundType {
	samples := borderSamples(img)
	if len(samples) < 2 {
		return analysis.BackgroundSolid
	}
	luma := make([]float64, len(samples))
	for i, c := range samples {
		luma[i] = colorutil.Luminance(float64(c.R), float64(c.G), float64(c.B))
	}
	if stat.StdDev(luma, nil) < solidStdDev {
		return analysis.BackgroundSolid
	}

	steps := make([]float64, len(luma)-1)
	for i := 1; i < len(luma); i++ {
		steps[i-1] = math.Abs(luma[i] - luma[i-1])
	}
	if stat.Mean(steps, nil) <= gradientStepMax {
		return analysis.BackgroundGradient
	}
	return analysis.BackgroundComplex
}

// inkStats returns the mean color of pixels inside boxes that differ from
// bg, and the fraction of box area they cover.
func inkStats(img *image.RGBA, boxes []image.Rectangle, bg color.RGBA) (color.RGBA, float64, bool) {
	if len(boxes) == 0 {
		boxes = []image.Rectangle{img.Bounds()}
	}
	var r, g, b []float64
	area := 0
	for _, box := range boxes {
		box = box.Intersect(img.Bounds())
		area += box.Dx() * box.Dy()
		for y := box.Min.Y; y < box.Max.Y; y++ {
			for x := box.Min.X; x < box.Max.X; x++ {
				c := img.RGBAAt(x, y)
				if colorutil.Distance(c, bg) < inkDistance {
					continue
				}
				r = append(r, float64(c.R))
				g = append(g, float64(c.G))
				b = append(b, float64(c.B))
			}
		}
	}
	if len(r) == 0 || area == 0 {
		return color.RGBA{}, 0, false
	}
	ink := color.RGBA{
		R: uint8(math.Round(stat.Mean(r, nil))),
		G: uint8(math.Round(stat.Mean(g, nil))),
		B: uint8(math.Round(stat.Mean(b, nil))),
		A: 255,
	}
	return ink, float64(len(r)) / float64(area), true
}

// EstimateFontSize converts text line box heights into a font size in
// pixels. The median is used so one merged or clipped line does not skew it.
func EstimateFontSize(lineHeights []float64) float64 {
	if len(lineHeights) == 0 {
		return 0
	}
	h := append([]float64(nil), lineHeights...)
	sort.Float64s(h)
	med := stat.Quantile(0.5, stat.Empirical, h, nil)
	// Tesseract line boxes span ascender to descender, about 1.15em.
	return math.Max(1, math.Round(med/1.15))
}

// InkMask marks pixels inside region whose color is far from the region's
// border average. The mask covers img's bounds; pixels outside region stay 0.
func InkMask(img *image.RGBA, region image.Rectangle) *image.Gray {
	mask := image.NewGray(img.Bounds())
	region = region.Intersect(img.Bounds())
	if region.Empty() {
		return mask
	}
	bg := CalculateBackgroundColor(img.SubImage(region).(*image.RGBA))
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			if colorutil.Distance(img.RGBAAt(x, y), bg) >= inkDistance {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return mask
}
