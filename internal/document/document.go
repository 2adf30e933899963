package document

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

// ErrSlideOutOfRange is returned for an index outside the loaded slides.
var ErrSlideOutOfRange = errors.New("slide index out of range")

// Slide is one page or image of a loaded document.
type Slide struct {
	Index    int
	Image    image.Image
	Width    int
	Height   int
	Overlays Overlays
}

// NewSlide builds a slide from a decoded raster.
func NewSlide(index int, img image.Image) Slide {
	b := img.Bounds()
	return Slide{Index: index, Image: img, Width: b.Dx(), Height: b.Dy()}
}

// Document is the ordered slide set of the loaded file. Every mutation
// replaces a whole list, so slices returned by readers are never written to
// afterwards.
type Document struct {
	mu     sync.RWMutex
	slides []Slide
}

// New returns an empty document.
func New() *Document {
	return &Document{}
}

// ReplaceAll swaps in a new slide set. Slide indexes are reassigned from
// their position.
func (d *Document) ReplaceAll(slides []Slide) {
	next := make([]Slide, len(slides))
	for i, s := range slides {
		s.Index = i
		s.Overlays = s.Overlays.Clone()
		next[i] = s
	}
	d.mu.Lock()
	d.slides = next
	d.mu.Unlock()
}

// Len returns the number of slides.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.slides)
}

// Slide returns a copy of the slide header at index. Its Overlays slice is
// shared and must be treated as read-only.
func (d *Document) Slide(index int) (Slide, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if index < 0 || index >= len(d.slides) {
		return Slide{}, fmt.Errorf("%w: %d", ErrSlideOutOfRange, index)
	}
	return d.slides[index], nil
}

// Slides returns all slide headers in order.
func (d *Document) Slides() []Slide {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Slide, len(d.slides))
	copy(out, d.slides)
	return out
}

// Overlays returns the overlay list of a slide. Treat as read-only.
func (d *Document) Overlays(index int) (Overlays, error) {
	s, err := d.Slide(index)
	if err != nil {
		return nil, err
	}
	return s.Overlays, nil
}

// ReplaceOverlays installs a new overlay list on a slide.
func (d *Document) ReplaceOverlays(index int, overlays Overlays) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.slides) {
		return fmt.Errorf("%w: %d", ErrSlideOutOfRange, index)
	}
	d.slides[index].Overlays = overlays.Clone()
	return nil
}

// AppendOverlay installs a new list consisting of the slide's overlays plus o.
func (d *Document) AppendOverlay(index int, o Overlay) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.slides) {
		return fmt.Errorf("%w: %d", ErrSlideOutOfRange, index)
	}
	cur := d.slides[index].Overlays
	next := make(Overlays, len(cur), len(cur)+1)
	copy(next, cur)
	d.slides[index].Overlays = append(next, o)
	return nil
}
