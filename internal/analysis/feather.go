package analysis

import (
	"image"
	"math"

	slideimage "slide-editor/internal/image"
	"slide-editor/pkg/geometry"
)

// CropScaled cuts sel out of a reconstructed slide that may have been
// produced at a different resolution than the original slide size.
func CropScaled(full image.Image, sel geometry.Rect, slide geometry.Size) *image.RGBA {
	if slide.Width <= 0 || slide.Height <= 0 {
		return nil
	}
	fb := full.Bounds()
	sx := float64(fb.Dx()) / slide.Width
	sy := float64(fb.Dy()) / slide.Height
	r := sel.Scale(sx, sy).Image().Add(fb.Min).Intersect(fb)
	if r.Empty() {
		return nil
	}
	return slideimage.Crop(full, r)
}

// Feather fades the outer px pixels of img to transparent with a linear
// ramp, so the patch blends into the slide underneath.
func Feather(img *image.RGBA, px int) {
	if px <= 0 {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := min(x, y, w-1-x, h-1-y)
			if d >= px {
				continue
			}
			f := float64(d) / float64(px)
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			// premultiplied: scale every channel
			for c := 0; c < 4; c++ {
				img.Pix[i+c] = uint8(math.Round(float64(img.Pix[i+c]) * f))
			}
		}
	}
}
