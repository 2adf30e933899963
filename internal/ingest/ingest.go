// Package ingest validates uploaded files and turns them into slides.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"slide-editor/internal/document"
	slideimage "slide-editor/internal/image"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultMaxFileSize is the upload limit when none is configured.
const DefaultMaxFileSize = 50 << 20

// MIME types accepted by Validate.
const (
	TypePDF  = "application/pdf"
	TypePNG  = "image/png"
	TypeJPEG = "image/jpeg"
	TypeWebP = "image/webp"
	TypeGIF  = "image/gif"
)

var allowedTypes = map[string]bool{
	TypePDF: true, TypePNG: true, TypeJPEG: true, TypeWebP: true, TypeGIF: true,
}

var (
	ErrFileTooLarge      = errors.New("file exceeds the size limit")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file is empty")
	ErrNoPages           = errors.New("document has no pages")
	ErrRasterizerMissing = errors.New("no PDF rasterizer available")
)

// Rasterizer renders every page of a PDF to an image, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]image.Image, error)
}

// Options configure an Ingester.
type Options struct {
	MaxFileSize int64
	Rasterizer  Rasterizer // required for PDFs only
	Logger      *slog.Logger
}

// Ingester turns files into slides.
type Ingester struct {
	opts Options
}

// New creates an Ingester.
func New(opts Options) *Ingester {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Ingester{opts: opts}
}

// Validate checks size and sniffed content type and returns the MIME type.
func (in *Ingester) Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if int64(len(data)) > in.opts.MaxFileSize {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(data), in.opts.MaxFileSize)
	}
	mime := http.DetectContentType(data)
	if !allowedTypes[mime] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}
	return mime, nil
}

// LoadFile reads path and ingests it.
func (in *Ingester) LoadFile(ctx context.Context, path string) ([]document.Slide, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > in.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, filepath.Base(path), info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return in.Load(ctx, data)
}

// Load validates data and converts it to slides: one per PDF page, or a
// single slide for an image.
func (in *Ingester) Load(ctx context.Context, data []byte) ([]document.Slide, error) {
	mime, err := in.Validate(data)
	if err != nil {
		return nil, err
	}
	if mime != TypePDF {
		img, err := slideimage.DecodeBytes(data)
		if err != nil {
			return nil, err
		}
		in.opts.Logger.Info("ingested image", "type", mime, "size", img.Bounds().Size())
		return []document.Slide{document.NewSlide(0, img)}, nil
	}

	pages, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if pages == 0 {
		return nil, ErrNoPages
	}
	if in.opts.Rasterizer == nil {
		return nil, ErrRasterizerMissing
	}
	imgs, err := in.opts.Rasterizer.Rasterize(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("rasterize pdf: %w", err)
	}
	if len(imgs) != pages {
		in.opts.Logger.Warn("rasterizer page count differs", "expected", pages, "got", len(imgs))
	}
	if len(imgs) == 0 {
		return nil, ErrNoPages
	}
	slides := make([]document.Slide, len(imgs))
	for i, img := range imgs {
		slides[i] = document.NewSlide(i, img)
	}
	in.opts.Logger.Info("ingested pdf", "pages", len(slides))
	return slides, nil
}

// PageCount validates a PDF with pdfcpu and returns its page count.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: pdf: %w", slideimage.ErrDecode, err)
	}
	return ctx.PageCount, nil
}
