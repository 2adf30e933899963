package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"slide-editor/internal/document"
	slideimage "slide-editor/internal/image"
	"slide-editor/pkg/geometry"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// flatRenderer paints every overlay rect solid red.
type flatRenderer struct{ calls int }

func (f *flatRenderer) Render(base image.Image, overlays document.Overlays) *image.RGBA {
	f.calls++
	out := slideimage.ToRGBA(base)
	for _, o := range overlays {
		r := o.Rect.Image().Intersect(out.Bounds())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				out.SetRGBA(x, y, color.RGBA{255, 0, 0, 255})
			}
		}
	}
	return out
}

func slides(n int) []document.Slide {
	out := make([]document.Slide, n)
	for i := range out {
		img := image.NewRGBA(image.Rect(0, 0, 64+i, 48))
		out[i] = document.NewSlide(i, img)
	}
	return out
}

func TestFileName(t *testing.T) {
	for i, want := range map[int]string{0: "slide_01.png", 9: "slide_10.png", 99: "slide_100.png"} {
		if got := FileName(i); got != want {
			t.Errorf("FileName(%d) = %q, want %q", i, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, _ := ParseFormat("out/Deck.PDF"); f != FormatPDF {
		t.Errorf("pdf = %q", f)
	}
	if f, _ := ParseFormat("zip"); f != FormatZIP {
		t.Errorf("zip = %q", f)
	}
	if _, err := ParseFormat("pptx"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("pptx err = %v", err)
	}
}

func TestWriteZIP(t *testing.T) {
	in := slides(3)
	in[1].Overlays = document.Overlays{{ID: "a", Rect: geometry.NewRect(0, 0, 10, 10)}}

	var progress []int
	r := &flatRenderer{}
	var buf bytes.Buffer
	err := Write(context.Background(), &buf, in, r, Options{
		Format:   FormatZIP,
		Progress: func(done, total int) { progress = append(progress, done*10+total) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.calls != 3 || len(progress) != 3 || progress[2] != 33 {
		t.Fatalf("calls=%d progress=%v", r.calls, progress)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("entries = %d", len(zr.File))
	}
	for i, f := range zr.File {
		if f.Name != FileName(i) {
			t.Errorf("entry %d = %q", i, f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		img, _, err := slideimage.Decode(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if img.Bounds().Dx() != 64+i {
			t.Errorf("entry %d width %d", i, img.Bounds().Dx())
		}
		if i == 1 {
			if r, _, _, _ := img.At(5, 5).RGBA(); r>>8 != 255 {
				t.Error("overlay not rendered into slide 2")
			}
		}
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(context.Background(), &buf, slides(2), &flatRenderer{}, Options{Format: FormatPDF}); err != nil {
		t.Fatal(err)
	}
	n, err := api.PageCount(bytes.NewReader(buf.Bytes()), model.NewDefaultConfiguration())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("pages = %d, want 2", n)
	}
}

func TestWriteStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &flatRenderer{}
	err := Write(ctx, &bytes.Buffer{}, slides(2), r, Options{Format: FormatZIP})
	if !errors.Is(err, context.Canceled) || r.calls != 0 {
		t.Fatalf("err = %v, calls = %d", err, r.calls)
	}
}

func TestWriteFileRemovesPartialOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.zip")
	err := WriteFile(context.Background(), path, slides(1), &flatRenderer{}, Options{Format: "pptx"})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("partial file left behind: %v", err)
	}
}

func TestWriteNoSlides(t *testing.T) {
	if err := Write(context.Background(), &bytes.Buffer{}, nil, &flatRenderer{}, Options{Format: FormatZIP}); !errors.Is(err, ErrNoSlides) {
		t.Fatalf("err = %v", err)
	}
}
