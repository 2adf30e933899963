// Package analysis defines the recognition and reconstruction collaborators
// and runs the analyze flow for a selected region.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"slide-editor/internal/document"
	slideimage "slide-editor/internal/image"
	"slide-editor/pkg/geometry"
)

// BackgroundType classifies the area behind recognized text.
type BackgroundType string

const (
	BackgroundSolid    BackgroundType = "solid"
	BackgroundGradient BackgroundType = "gradient"
	BackgroundComplex  BackgroundType = "complex"
)

// NeedsReconstruction reports whether a flat fill would look wrong.
func (t BackgroundType) NeedsReconstruction() bool {
	return t == BackgroundGradient || t == BackgroundComplex
}

// Recognition is the recognizer's estimate for a region.
type Recognition struct {
	Text            string
	FontSize        float64
	FontWeight      document.FontWeight
	FontColor       string
	FontFamily      string
	BackgroundColor string
	BackgroundType  BackgroundType
	Language        string
}

// WithDefaults fills fields the recognizer left empty.
func (r Recognition) WithDefaults() Recognition {
	if r.FontSize <= 0 {
		r.FontSize = document.DefaultFontSize
	}
	if r.FontWeight != document.WeightBold {
		r.FontWeight = document.WeightNormal
	}
	if r.FontColor == "" {
		r.FontColor = document.DefaultFontColor
	}
	if r.FontFamily == "" {
		r.FontFamily = document.DefaultFontFamily
	}
	if r.BackgroundColor == "" {
		r.BackgroundColor = document.DefaultBackground
	}
	switch r.BackgroundType {
	case BackgroundSolid, BackgroundGradient, BackgroundComplex:
	default:
		r.BackgroundType = BackgroundSolid
	}
	if r.Language == "" {
		r.Language = "ko"
	}
	return r
}

// Recognizer reads text and typography from a cropped region.
type Recognizer interface {
	Recognize(ctx context.Context, region image.Image) (Recognition, error)
}

// Reconstructor returns the slide with text inside region removed. A nil
// image with a nil error means "no reconstruction available".
type Reconstructor interface {
	Reconstruct(ctx context.Context, slide image.Image, region geometry.Rect) (image.Image, error)
}

var (
	// ErrRecognition wraps recognizer failures.
	ErrRecognition = errors.New("text recognition failed")
	// ErrEmptyRegion is returned when the selection lies outside the slide.
	ErrEmptyRegion = errors.New("selection does not cover the slide")
)

// Result is the outcome of analyzing one selection.
type Result struct {
	Recognition Recognition
	// Background is a PNG of the reconstructed region with feathered edges,
	// or nil when the background is solid or reconstruction gave nothing.
	Background []byte
}

// Draft builds the overlay the result describes, placed at rect. The id is
// left empty for the caller to assign.
func (r Result) Draft(rect geometry.Rect) document.Overlay {
	rec := r.Recognition
	return document.Overlay{
		Rect:            rect,
		OriginalText:    rec.Text,
		NewText:         rec.Text,
		FontSize:        rec.FontSize,
		FontWeight:      rec.FontWeight,
		FontColor:       rec.FontColor,
		FontFamily:      rec.FontFamily,
		BackgroundColor: rec.BackgroundColor,
		BackgroundImage: r.Background,
		VAlign:          document.AlignMiddle,
		HAlign:          document.AlignCenter,
	}
}

// Config configures a Service.
type Config struct {
	Recognizer    Recognizer
	Reconstructor Reconstructor // optional
	Feather       int           // edge fade in pixels
	Logger        *slog.Logger
}

func (c *Config) defaults() {
	if c.Feather < 0 {
		c.Feather = 0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service runs the analyze flow.
type Service struct {
	cfg Config
}

// NewService creates a Service. A recognizer is required.
func NewService(cfg Config) (*Service, error) {
	if cfg.Recognizer == nil {
		return nil, errors.New("analysis: recognizer is required")
	}
	cfg.defaults()
	return &Service{cfg: cfg}, nil
}

// Analyze recognizes the text inside sel and, for non-solid backgrounds,
// reconstructs the area behind it. Reconstruction problems are logged and
// leave Background nil; only recognition failures are returned.
func (s *Service) Analyze(ctx context.Context, slide image.Image, sel geometry.Rect) (Result, error) {
	region := sel.Image().Intersect(slide.Bounds())
	if region.Empty() {
		return Result{}, ErrEmptyRegion
	}
	crop := slideimage.Crop(slide, region)

	rec, err := s.cfg.Recognizer.Recognize(ctx, crop)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	rec = rec.WithDefaults()
	rec.Text = strings.TrimSpace(rec.Text)

	res := Result{Recognition: rec}
	if !rec.BackgroundType.NeedsReconstruction() || s.cfg.Reconstructor == nil {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	full, err := s.cfg.Reconstructor.Reconstruct(ctx, slide, sel)
	if err != nil {
		s.cfg.Logger.Warn("background reconstruction failed, using fill color", "error", err)
		return res, nil
	}
	if full == nil {
		s.cfg.Logger.Info("no background reconstruction available")
		return res, nil
	}

	patch := CropScaled(full, sel, geometry.SizeOf(slide.Bounds()))
	if patch == nil {
		return res, nil
	}
	Feather(patch, s.cfg.Feather)
	bg, err := slideimage.EncodePNG(patch)
	if err != nil {
		s.cfg.Logger.Warn("encode reconstructed background", "error", err)
		return res, nil
	}
	res.Background = bg
	return res, nil
}
