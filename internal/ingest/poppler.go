package ingest

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	slideimage "slide-editor/internal/image"
)

// PopplerRasterizer renders PDF pages with poppler's pdftoppm.
type PopplerRasterizer struct {
	Binary string // defaults to "pdftoppm"
	DPI    int    // defaults to 144
	Logger *slog.Logger
}

// Available reports whether the pdftoppm binary can be found.
func (p PopplerRasterizer) Available() bool {
	_, err := exec.LookPath(p.binary())
	return err == nil
}

func (p PopplerRasterizer) binary() string {
	if p.Binary == "" {
		return "pdftoppm"
	}
	return p.Binary
}

// Rasterize implements Rasterizer.
func (p PopplerRasterizer) Rasterize(ctx context.Context, pdf []byte) ([]image.Image, error) {
	bin, err := exec.LookPath(p.binary())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRasterizerMissing, err)
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 144
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := os.MkdirTemp("", "slide-editor-pdf-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return nil, err
	}

	outputPrefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, bin,
		"-png",
		"-r", fmt.Sprintf("%d", dpi),
		pdfPath,
		outputPrefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := pageFiles(dir)
	if err != nil {
		return nil, err
	}
	imgs := make([]image.Image, 0, len(pages))
	for _, path := range pages {
		img, err := slideimage.Load(path)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	logger.Debug("rasterized pdf", "pages", len(imgs), "dpi", dpi)
	return imgs, nil
}

// pageFiles returns the page-N.png files in dir ordered by page number.
// pdftoppm zero-pads N to the width of the page count.
func pageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type page struct {
		num  int
		path string
	}
	var pages []page
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "page-") || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		namePart := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "page-"), ".png")
		var num int
		if _, err := fmt.Sscanf(namePart, "%d", &num); err != nil {
			continue
		}
		pages = append(pages, page{num, filepath.Join(dir, entry.Name())})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}
