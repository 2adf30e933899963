package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"slide-editor/internal/document"
	"slide-editor/internal/export"
	slideimage "slide-editor/internal/image"
)

type passthrough struct{}

func (passthrough) Render(base image.Image, _ document.Overlays) *image.RGBA {
	return slideimage.ToRGBA(base)
}

type stubRasterizer struct {
	pages int
	err   error
}

func (s stubRasterizer) Rasterize(context.Context, []byte) ([]image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]image.Image, s.pages)
	for i := range out {
		out[i] = image.NewRGBA(image.Rect(0, 0, 80, 60))
	}
	return out, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{1, 2, 3, 255})
	data, err := slideimage.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func pdfBytes(t *testing.T, pages int) []byte {
	t.Helper()
	slides := make([]document.Slide, pages)
	for i := range slides {
		slides[i] = document.NewSlide(i, image.NewRGBA(image.Rect(0, 0, 80, 60)))
	}
	var buf bytes.Buffer
	if err := export.Write(context.Background(), &buf, slides, passthrough{}, export.Options{Format: export.FormatPDF}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	in := New(Options{MaxFileSize: 1024})
	tests := []struct {
		name string
		data []byte
		want error
		mime string
	}{
		{"png", pngBytes(t, 4, 4), nil, TypePNG},
		{"empty", nil, ErrEmptyFile, ""},
		{"text", []byte("hello, world"), ErrUnsupportedFormat, ""},
		{"too large", make([]byte, 2048), ErrFileTooLarge, ""},
	}
	for _, tt := range tests {
		mime, err := in.Validate(tt.data)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
		if mime != tt.mime {
			t.Errorf("%s: mime = %q, want %q", tt.name, mime, tt.mime)
		}
	}
}

func TestLoadImage(t *testing.T) {
	slides, err := New(Options{}).Load(context.Background(), pngBytes(t, 32, 24))
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 1 || slides[0].Width != 32 || slides[0].Height != 24 || len(slides[0].Overlays) != 0 {
		t.Fatalf("slides = %+v", slides)
	}
}

func TestLoadPDF(t *testing.T) {
	data := pdfBytes(t, 3)
	if n, err := PageCount(data); err != nil || n != 3 {
		t.Fatalf("PageCount = %d, %v", n, err)
	}
	slides, err := New(Options{Rasterizer: stubRasterizer{pages: 3}}).Load(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 3 {
		t.Fatalf("slides = %d", len(slides))
	}
	for i, s := range slides {
		if s.Index != i {
			t.Errorf("slide %d has index %d", i, s.Index)
		}
	}
}

func TestLoadPDFWithoutRasterizer(t *testing.T) {
	_, err := New(Options{}).Load(context.Background(), pdfBytes(t, 1))
	if !errors.Is(err, ErrRasterizerMissing) {
		t.Fatalf("err = %v", err)
	}
}

func TestCorruptPDF(t *testing.T) {
	data := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("garbage "), 64)...)
	_, err := New(Options{Rasterizer: stubRasterizer{pages: 1}}).Load(context.Background(), data)
	if !errors.Is(err, slideimage.ErrDecode) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadFileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	if err := os.WriteFile(path, pngBytes(t, 64, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Options{MaxFileSize: 10}).LoadFile(context.Background(), path); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v", err)
	}
}

func TestPageFilesOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.png", "page-02.png", "page-1.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := pageFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"page-1.png", "page-02.png", "page-10.png"}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i := range want {
		if filepath.Base(files[i]) != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestPopplerRasterizer(t *testing.T) {
	p := PopplerRasterizer{DPI: 72}
	if !p.Available() {
		t.Skip("pdftoppm not installed")
	}
	imgs, err := p.Rasterize(context.Background(), pdfBytes(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 2 {
		t.Fatalf("pages = %d", len(imgs))
	}
}
