// Package tesseract reads text lines with Tesseract through gosseract, after
// OpenCV preprocessing. It requires cgo with libtesseract and OpenCV.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"slide-editor/internal/ocr"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// minOCRDim is the height or width small regions are upscaled to.
const minOCRDim = 150

// Engine is an ocr.Reader backed by a single Tesseract client.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

var _ ocr.Reader = (*Engine)(nil)

// NewEngine creates a Tesseract client for languages, a "+" separated list
// such as "kor+eng". A non-empty dataPath overrides TESSDATA_PREFIX.
func NewEngine(languages, dataPath string) (*Engine, error) {
	client := gosseract.NewClient()
	if dataPath != "" {
		if err := client.SetTessdataPrefix(dataPath); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(strings.Split(languages, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	// Slide copy is prose, keep the dictionaries but preserve spacing.
	_ = client.SetVariable("preserve_interword_spaces", "1")
	return &Engine{client: client}, nil
}

// Close releases the Tesseract client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

// ReadLines implements ocr.Reader. Boxes are returned in the coordinates of img.
func (e *Engine) ReadLines(ctx context.Context, img image.Image) ([]ocr.TextLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	processed, scale := preprocessForOCR(mat)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("engine closed")
	}
	// PSM 6: a single uniform block, which is what a selection usually holds.
	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	origin := img.Bounds().Min
	lines := make([]ocr.TextLine, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		lines = append(lines, ocr.TextLine{
			Text:       text,
			Box:        unscale(box.Box, scale).Add(origin),
			Confidence: box.Confidence,
		})
	}
	return lines, nil
}

func unscale(r image.Rectangle, scale float64) image.Rectangle {
	if scale == 1 {
		return r
	}
	return image.Rect(
		int(float64(r.Min.X)/scale), int(float64(r.Min.Y)/scale),
		int(float64(r.Max.X)/scale+0.5), int(float64(r.Max.Y)/scale+0.5),
	)
}

// preprocessForOCR upscales small regions, equalizes contrast and binarizes
// so Tesseract sees dark text on a light background. It returns the scale
// applied to the input.
func preprocessForOCR(region gocv.Mat) (gocv.Mat, float64) {
	h, w := region.Rows(), region.Cols()

	scale := 1.0
	var scaled gocv.Mat
	if minDim := min(h, w); minDim < minOCRDim {
		scale = float64(minOCRDim) / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = region.Clone()
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	scaled.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{8, 8})
	defer clahe.Close()

	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// Text is the minority class; a mostly black result means light text on a dark fill.
	whiteRatio := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if whiteRatio < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()

	return result, scale
}
