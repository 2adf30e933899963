package image

import (
	"bytes"
	"image"
	"image/color"
	"sync"
	"testing"

	"slide-editor/internal/document"
	"slide-editor/pkg/geometry"
)

func newBook(t *testing.T) *FontBook {
	t.Helper()
	b, err := NewFontBook()
	if err != nil {
		t.Fatalf("NewFontBook: %v", err)
	}
	return b
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func rgbaAt(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestLayoutHelloWorld(t *testing.T) {
	o := document.Overlay{
		Rect:     geometry.NewRect(100, 100, 200, 50),
		NewText:  "Hello\nWorld",
		FontSize: 20,
		VAlign:   document.AlignMiddle,
		HAlign:   document.AlignCenter,
	}
	lines := Layout(o, func(s string) float64 { return float64(len(s)) * 10 })
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	wantTops := []float64{101, 125}
	for i, l := range lines {
		if l.AnchorX != 200 {
			t.Errorf("line %d anchor x = %v, want 200", i, l.AnchorX)
		}
		if l.Top != wantTops[i] {
			t.Errorf("line %d top = %v, want %v", i, l.Top, wantTops[i])
		}
		if l.Left != 175 {
			t.Errorf("line %d left = %v, want 175", i, l.Left)
		}
	}
}

func TestLayoutAnchors(t *testing.T) {
	base := document.Overlay{
		Rect:     geometry.NewRect(10, 20, 100, 60),
		NewText:  "ab",
		FontSize: 10,
	}
	measure := func(s string) float64 { return 20 }
	tests := []struct {
		h         document.HAlign
		v         document.VAlign
		left, top float64
	}{
		{document.AlignLeft, document.AlignTop, 10, 20},
		{document.AlignCenter, document.AlignMiddle, 50, 44},
		{document.AlignRight, document.AlignBottom, 90, 68},
	}
	for _, tt := range tests {
		o := base
		o.HAlign, o.VAlign = tt.h, tt.v
		l := Layout(o, measure)[0]
		if l.Left != tt.left || l.Top != tt.top {
			t.Errorf("%s/%s: left,top = %v,%v want %v,%v", tt.h, tt.v, l.Left, l.Top, tt.left, tt.top)
		}
	}
}

func TestLayoutDoesNotClip(t *testing.T) {
	o := document.Overlay{
		Rect:     geometry.NewRect(0, 0, 10, 10),
		NewText:  "a\nb\nc\nd",
		FontSize: 20,
		VAlign:   document.AlignTop,
		HAlign:   document.AlignLeft,
	}
	lines := Layout(o, nil)
	if len(lines) != 4 || lines[3].Top != 72 {
		t.Fatalf("overflowing lines = %+v", lines)
	}
}

func TestPaintOrderLastWins(t *testing.T) {
	fonts := newBook(t)
	a := document.Overlay{ID: "a", Rect: geometry.NewRect(10, 10, 60, 60), BackgroundColor: "#ff0000"}
	b := document.Overlay{ID: "b", Rect: geometry.NewRect(40, 40, 60, 60), BackgroundColor: "#0000ff"}

	both := solid(120, 120, color.RGBA{255, 255, 255, 255})
	Composite(both, document.Overlays{a, b}, nil, fonts)

	layered := solid(120, 120, color.RGBA{255, 255, 255, 255})
	Composite(layered, document.Overlays{a, b}, nil, fonts)
	Composite(layered, document.Overlays{b}, nil, fonts)

	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			if rgbaAt(both, x, y) != rgbaAt(layered, x, y) {
				t.Fatalf("pixel (%d,%d) differs: %v vs %v", x, y, rgbaAt(both, x, y), rgbaAt(layered, x, y))
			}
		}
	}
	if got := rgbaAt(both, 50, 50); got != (color.RGBA{0, 0, 255, 255}) {
		t.Fatalf("overlap pixel = %v, want blue", got)
	}
	if got := rgbaAt(both, 20, 20); got != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("a-only pixel = %v, want red", got)
	}
}

func TestRenderDrawsText(t *testing.T) {
	c := NewCompositor(newBook(t), nil)
	base := solid(200, 100, color.RGBA{255, 255, 255, 255})
	o := document.Overlay{
		ID:              "t",
		Rect:            geometry.NewRect(0, 0, 200, 100),
		NewText:         "HELLO",
		FontSize:        40,
		FontWeight:      document.WeightBold,
		FontColor:       "#000000",
		BackgroundColor: "#ffffff",
		VAlign:          document.AlignMiddle,
		HAlign:          document.AlignCenter,
	}
	out := c.Render(base, document.Overlays{o})

	dark := 0
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] < 128 {
			dark++
		}
	}
	if dark == 0 {
		t.Fatal("no text pixels rendered")
	}
	if base.Pix[0] != 255 {
		t.Fatal("Render modified the base image")
	}
}

func TestRenderConcurrent(t *testing.T) {
	c := NewCompositor(newBook(t), nil)
	base := solid(240, 120, color.RGBA{255, 255, 255, 255})
	overlays := document.Overlays{
		{ID: "a", Rect: geometry.NewRect(0, 0, 240, 60), NewText: "Quarterly\nresults", FontSize: 22,
			FontColor: "#222222", BackgroundColor: "#ffffff"},
		{ID: "b", Rect: geometry.NewRect(0, 60, 240, 60), NewText: "Revenue 2024", FontSize: 30,
			FontWeight: document.WeightBold, FontColor: "#003366", BackgroundColor: "#eeeeee"},
	}
	want := c.Render(base, overlays)

	var wg sync.WaitGroup
	errs := make(chan string, 4)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if got := c.Render(base, overlays); !bytes.Equal(got.Pix, want.Pix) {
					errs <- "concurrent render differs from serial render"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestBackgroundImageStretched(t *testing.T) {
	c := NewCompositor(newBook(t), nil)
	green, err := EncodePNG(solid(4, 4, color.RGBA{0, 255, 0, 255}))
	if err != nil {
		t.Fatal(err)
	}
	o := document.Overlay{
		ID:              "bg",
		Rect:            geometry.NewRect(10, 10, 40, 20),
		BackgroundColor: "#ff0000",
		BackgroundImage: green,
	}
	out := c.Render(solid(64, 64, color.RGBA{255, 255, 255, 255}), document.Overlays{o})
	if got := rgbaAt(out, 30, 20); got.R > 2 || got.G < 253 || got.B > 2 {
		t.Fatalf("inside pixel = %v, want green", got)
	}
	if got := rgbaAt(out, 5, 5); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("outside pixel = %v, want white", got)
	}
}

func TestBrokenBackgroundFallsBackToFill(t *testing.T) {
	c := NewCompositor(newBook(t), nil)
	o := document.Overlay{
		ID:              "broken",
		Rect:            geometry.NewRect(0, 0, 10, 10),
		BackgroundColor: "#ff0000",
		BackgroundImage: []byte("not an image"),
	}
	out := c.Render(solid(20, 20, color.RGBA{255, 255, 255, 255}), document.Overlays{o})
	if got := rgbaAt(out, 5, 5); got != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("pixel = %v, want fill color", got)
	}
}

func TestBackgroundCacheInvalidatesOnContent(t *testing.T) {
	cache := NewBackgroundCache(nil)
	calls := 0
	cache.decode = func(b []byte) (image.Image, error) {
		calls++
		return DecodeBytes(b)
	}
	red, _ := EncodePNG(solid(2, 2, color.RGBA{255, 0, 0, 255}))
	blue, _ := EncodePNG(solid(2, 2, color.RGBA{0, 0, 255, 255}))

	o := document.Overlay{ID: "same", BackgroundImage: red}
	cache.Ensure(document.Overlays{o})
	cache.Ensure(document.Overlays{o})
	if calls != 1 {
		t.Fatalf("decode calls = %d, want 1", calls)
	}

	stale := document.Overlay{ID: "same", BackgroundImage: blue}
	if cache.Background(stale) != nil {
		t.Fatal("cache returned an image for changed content under the same id")
	}
	cache.Ensure(document.Overlays{stale})
	if calls != 2 {
		t.Fatalf("decode calls = %d, want 2", calls)
	}
	img := cache.Background(stale)
	if img == nil {
		t.Fatal("no image after re-ensure")
	}
	if r, _, b, _ := img.At(0, 0).RGBA(); r != 0 || b == 0 {
		t.Fatal("cached image is not the new content")
	}

	cache.Prune(nil)
	if cache.Len() != 0 {
		t.Fatalf("Len after prune = %d", cache.Len())
	}
}

func TestNegativeRectIsNormalized(t *testing.T) {
	dst := solid(50, 50, color.RGBA{255, 255, 255, 255})
	o := document.Overlay{Rect: geometry.Rect{X: 30, Y: 30, Width: -20, Height: -20}, BackgroundColor: "#000000"}
	DrawOverlay(dst, o, nil, nil)
	if got := rgbaAt(dst, 20, 20); got != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("pixel = %v, want black", got)
	}
}

func TestFontBookFallback(t *testing.T) {
	b := newBook(t)
	sansFont := b.Font("Pretendard, sans-serif", false)
	if sansFont != b.Font("sans-serif", false) {
		t.Fatal("unknown family did not fall back to sans-serif")
	}
	if b.Font("monospace", false) == sansFont {
		t.Fatal("monospace resolved to sans")
	}
	if b.Font("sans-serif", true) == sansFont {
		t.Fatal("bold and regular share a font")
	}
	sans := b.Face("Pretendard, sans-serif", false, 20)
	if sans == b.Face("Pretendard, sans-serif", false, 20) {
		t.Fatal("faces are shared between callers")
	}
	if MeasureString(sans, "WWW") <= MeasureString(sans, "iii") {
		t.Fatal("measure is not proportional")
	}
}
