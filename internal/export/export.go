// Package export writes edited slides as a ZIP of PNGs or a PDF.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strings"

	"slide-editor/internal/document"
	slideimage "slide-editor/internal/image"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Format is an export container.
type Format string

const (
	FormatZIP Format = "zip"
	FormatPDF Format = "pdf"
)

// DefaultJPEGQuality is used for PDF pages.
const DefaultJPEGQuality = 95

// Default file names offered by the save dialogs.
const (
	DefaultZIPName = "edited_slides.zip"
	DefaultPDFName = "edited_slides.pdf"
)

var (
	ErrNoSlides      = errors.New("nothing to export")
	ErrUnknownFormat = errors.New("unknown export format")
)

// Renderer composites a slide's overlays onto its image.
type Renderer interface {
	Render(base image.Image, overlays document.Overlays) *image.RGBA
}

// Progress is called after each slide is rendered.
type Progress func(done, total int)

// Options configure an export run.
type Options struct {
	Format      Format
	JPEGQuality int
	Progress    Progress
	Logger      *slog.Logger
}

// ParseFormat accepts "zip" or "pdf", case-insensitively, or a file name
// with one of those extensions.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(s)
	switch {
	case s == "zip" || strings.HasSuffix(s, ".zip"):
		return FormatZIP, nil
	case s == "pdf" || strings.HasSuffix(s, ".pdf"):
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FileName is the archive entry name for the zero-based slide index.
func FileName(index int) string {
	return fmt.Sprintf("slide_%02d.png", index+1)
}

// Write renders slides in order and writes them to w. Rendering stops at
// the first failure and no partial result is usable.
func Write(ctx context.Context, w io.Writer, slides []document.Slide, r Renderer, opts Options) error {
	if len(slides) == 0 {
		return ErrNoSlides
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch opts.Format {
	case FormatZIP:
		return writeZIP(ctx, w, slides, r, opts)
	case FormatPDF:
		return writePDF(ctx, w, slides, r, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

// WriteFile exports to path, removing the file if the export fails.
func WriteFile(ctx context.Context, path string, slides []document.Slide, r Renderer, opts Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return Write(ctx, f, slides, r, opts)
}

func writeZIP(ctx context.Context, w io.Writer, slides []document.Slide, r Renderer, opts Options) error {
	zw := zip.NewWriter(w)
	for i, s := range slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		img := r.Render(s.Image, s.Overlays)
		data, err := slideimage.EncodePNG(img)
		if err != nil {
			return fmt.Errorf("slide %d: %w", i+1, err)
		}
		fw, err := zw.Create(FileName(i))
		if err != nil {
			return err
		}
		if _, err := fw.Write(data); err != nil {
			return err
		}
		report(opts, i+1, len(slides))
	}
	if err := zw.Close(); err != nil {
		return err
	}
	opts.Logger.Info("exported zip", "slides", len(slides))
	return nil
}

func writePDF(ctx context.Context, w io.Writer, slides []document.Slide, r Renderer, opts Options) error {
	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	pages := make([]io.Reader, 0, len(slides))
	for i, s := range slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		img := r.Render(s.Image, s.Overlays)
		var buf bytes.Buffer
		if err := slideimage.EncodeJPEG(&buf, img, quality); err != nil {
			return fmt.Errorf("slide %d: %w", i+1, err)
		}
		pages = append(pages, &buf)
		report(opts, i+1, len(slides))
	}

	// pos:full sizes each page to its image.
	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full
	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, w, pages, imp, conf); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	opts.Logger.Info("exported pdf", "slides", len(slides), "quality", quality)
	return nil
}

func report(opts Options, done, total int) {
	if opts.Progress != nil {
		opts.Progress(done, total)
	}
}
