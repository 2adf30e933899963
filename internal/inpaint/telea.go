// Package inpaint removes text from a slide region with OpenCV inpainting.
package inpaint

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"slide-editor/internal/analysis"
	slideimage "slide-editor/internal/image"
	"slide-editor/internal/ocr"
	"slide-editor/pkg/geometry"

	"gocv.io/x/gocv"
)

// Method selects the OpenCV inpainting algorithm.
type Method string

const (
	MethodTelea Method = "telea"
	MethodNS    Method = "ns"
)

// Options tune a Reconstructor.
type Options struct {
	Method Method
	Radius float64 // neighbourhood radius in pixels
	Dilate int     // mask growth in pixels, covers anti-aliased glyph edges
	Logger *slog.Logger
}

// Reconstructor implements analysis.Reconstructor with gocv.Inpaint.
type Reconstructor struct {
	opts Options
}

var _ analysis.Reconstructor = (*Reconstructor)(nil)

// New creates a Reconstructor.
func New(opts Options) *Reconstructor {
	if opts.Method != MethodNS {
		opts.Method = MethodTelea
	}
	if opts.Radius <= 0 {
		opts.Radius = 5
	}
	if opts.Dilate < 0 {
		opts.Dilate = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reconstructor{opts: opts}
}

// Reconstruct returns slide with the text inside region painted over. The
// result has the slide's resolution.
func (r *Reconstructor) Reconstruct(ctx context.Context, slide image.Image, region geometry.Rect) (image.Image, error) {
	rgba := slideimage.ToRGBA(slide)
	rect := region.Image().Intersect(rgba.Bounds())
	if rect.Empty() {
		return nil, nil
	}
	maskImg := ocr.InkMask(rgba, rect)

	src, err := gocv.ImageToMatRGB(rgba)
	if err != nil {
		return nil, fmt.Errorf("failed to convert slide: %w", err)
	}
	defer src.Close()

	mask, err := gocv.ImageGrayToMatGray(maskImg)
	if err != nil {
		return nil, fmt.Errorf("failed to convert mask: %w", err)
	}
	defer mask.Close()
	if gocv.CountNonZero(mask) == 0 {
		r.opts.Logger.Debug("inpaint: no ink found in region", "region", rect)
		return nil, nil
	}

	if r.opts.Dilate > 0 {
		k := 2*r.opts.Dilate + 1
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k, k))
		defer kernel.Close()
		gocv.Dilate(mask, &mask, kernel)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	method := gocv.Telea
	if r.opts.Method == MethodNS {
		method = gocv.NS
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Inpaint(src, mask, &dst, float32(r.opts.Radius), method)

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert result: %w", err)
	}
	r.opts.Logger.Debug("inpaint: reconstructed region", "region", rect, "method", r.opts.Method)
	return out, nil
}
