package editor

import (
	"testing"

	"slide-editor/internal/document"
	"slide-editor/pkg/geometry"
)

type fakeHost struct {
	sel       *geometry.Rect
	overlays  document.Overlays
	selected  string
	commits   []geometry.Rect
	clears    int
	recorded  []string
	moves     int
}

func (h *fakeHost) Selection() (geometry.Rect, bool) {
	if h.sel == nil {
		return geometry.Rect{}, false
	}
	return *h.sel, true
}

func (h *fakeHost) CommitSelection(r geometry.Rect) {
	h.commits = append(h.commits, r)
	h.sel = &r
	h.selected = ""
}

func (h *fakeHost) ClearSelection() {
	h.clears++
	h.sel = nil
}

func (h *fakeHost) Overlays() document.Overlays { return h.overlays }
func (h *fakeHost) SelectedOverlay() string     { return h.selected }

func (h *fakeHost) SelectOverlay(id string) {
	h.selected = id
	if id != "" {
		h.sel = nil
	}
}

func (h *fakeHost) TranslateOverlay(id string, dx, dy float64, record bool) bool {
	next, ok := h.overlays.With(id, func(o document.Overlay) document.Overlay {
		o.Rect = o.Rect.Translate(dx, dy)
		return o
	})
	if !ok {
		return false
	}
	if record {
		h.recorded = append(h.recorded, id)
	}
	h.moves++
	h.overlays = next
	return true
}

func newMachine(h *fakeHost) *Machine {
	vp := geometry.NewViewport(geometry.DefaultMinZoom, geometry.DefaultMaxZoom)
	return New(vp, h, DefaultSettings())
}

func pt(x, y float64) geometry.Point2D { return geometry.Point2D{X: x, Y: y} }

func TestDrawCommitsNormalizedRect(t *testing.T) {
	h := &fakeHost{selected: "old"}
	m := newMachine(h)

	m.PointerDown(pt(100, 80), ButtonPrimary)
	if m.Mode() != ModeDrawing {
		t.Fatalf("mode = %v, want Drawing", m.Mode())
	}
	if h.selected != "" {
		t.Fatal("drawing did not deselect the overlay")
	}
	m.PointerMove(pt(40, 20))
	if r, ok := m.Working(); !ok || r != (geometry.Rect{X: 40, Y: 20, Width: 60, Height: 60}) {
		t.Fatalf("working rect = %+v", r)
	}
	m.PointerUp(pt(30, 30))

	if m.Mode() != ModeIdle {
		t.Fatalf("mode after up = %v", m.Mode())
	}
	if len(h.commits) != 1 {
		t.Fatalf("commits = %d, want 1", len(h.commits))
	}
	if got := h.commits[0]; got != (geometry.Rect{X: 30, Y: 30, Width: 70, Height: 50}) {
		t.Fatalf("committed %+v", got)
	}
}

func TestSmallDrawIsDiscarded(t *testing.T) {
	tests := []struct {
		name string
		end  geometry.Point2D
	}{
		{"narrow", pt(104, 200)},
		{"short", pt(200, 104)},
		{"click", pt(100, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &fakeHost{}
			m := newMachine(h)
			m.PointerDown(pt(100, 100), ButtonPrimary)
			m.PointerMove(tt.end)
			m.PointerUp(tt.end)
			if len(h.commits) != 0 {
				t.Fatalf("commit called with %+v", h.commits)
			}
			if _, ok := h.Selection(); ok {
				t.Fatal("selection survived a discarded draw")
			}
			if m.Mode() != ModeIdle {
				t.Fatalf("mode = %v", m.Mode())
			}
		})
	}
}

func TestMinSizeUsesModelSpace(t *testing.T) {
	h := &fakeHost{}
	m := newMachine(h)
	m.Viewport().Zoom = 4

	// 16 screen px = 4 model px at zoom 4, below the 5px minimum
	m.PointerDown(pt(0, 0), ButtonPrimary)
	m.PointerUp(pt(16, 16))
	if len(h.commits) != 0 {
		t.Fatalf("commit at zoom 4: %+v", h.commits)
	}
}

func TestResizeSelectionSE(t *testing.T) {
	sel := geometry.NewRect(0, 0, 100, 100)
	h := &fakeHost{sel: &sel}
	m := newMachine(h)

	m.PointerDown(pt(100, 100), ButtonPrimary)
	if m.Mode() != ModeResizingSelection {
		t.Fatalf("mode = %v, want ResizingSelection", m.Mode())
	}
	m.PointerMove(pt(110, 95))
	m.PointerUp(pt(120, 90))

	if len(h.commits) != 1 {
		t.Fatalf("commits = %d", len(h.commits))
	}
	if got := h.commits[0]; got != (geometry.Rect{X: 0, Y: 0, Width: 120, Height: 90}) {
		t.Fatalf("resized to %+v", got)
	}
}

func TestResizeWithoutMoveCommitsNothing(t *testing.T) {
	sel := geometry.NewRect(0, 0, 100, 100)
	h := &fakeHost{sel: &sel}
	m := newMachine(h)

	m.PointerDown(pt(100, 100), ButtonPrimary)
	m.PointerUp(pt(100, 100))
	if len(h.commits) != 0 || h.clears != 0 {
		t.Fatalf("commits = %v clears = %d, want none", h.commits, h.clears)
	}
	if r, ok := h.Selection(); !ok || r != sel {
		t.Fatalf("selection = %+v, %v", r, ok)
	}
	if m.Mode() != ModeIdle {
		t.Fatalf("mode = %v", m.Mode())
	}
}

func TestResizeInvertedIsDiscarded(t *testing.T) {
	sel := geometry.NewRect(0, 0, 100, 100)
	h := &fakeHost{sel: &sel}
	m := newMachine(h)

	m.PointerDown(pt(50, 100), ButtonPrimary) // s handle
	m.PointerMove(pt(50, -40))
	if r, _ := m.Working(); r.Height >= 0 {
		t.Fatalf("transient height = %v, want negative", r.Height)
	}
	m.PointerUp(pt(50, -40))
	if len(h.commits) != 0 {
		t.Fatalf("inverted rect committed: %+v", h.commits)
	}
	if _, ok := h.Selection(); ok {
		t.Fatal("selection kept after discard")
	}
}

func TestDragOverlayCommitsEachMoveWithOneHistoryEntry(t *testing.T) {
	h := &fakeHost{overlays: document.Overlays{
		{ID: "a", Rect: geometry.NewRect(0, 0, 50, 50)},
		{ID: "b", Rect: geometry.NewRect(25, 25, 50, 50)},
	}}
	sel := geometry.NewRect(300, 300, 20, 20)
	h.sel = &sel
	m := newMachine(h)

	m.PointerDown(pt(30, 30), ButtonPrimary)
	if m.Mode() != ModeDraggingOverlay || h.selected != "b" {
		t.Fatalf("mode %v selected %q, want DraggingOverlay on topmost b", m.Mode(), h.selected)
	}
	if _, ok := h.Selection(); ok {
		t.Fatal("selecting an overlay kept the selection")
	}

	m.PointerMove(pt(40, 30))
	m.PointerMove(pt(40, 50))
	m.PointerUp(pt(40, 50))

	if len(h.recorded) != 1 || h.recorded[0] != "b" {
		t.Fatalf("recorded = %v, want one entry for b", h.recorded)
	}
	if h.moves != 2 {
		t.Fatalf("moves = %d, want 2", h.moves)
	}
	b, _ := h.overlays.Find("b")
	if b.Rect != geometry.NewRect(35, 45, 50, 50) {
		t.Fatalf("b moved to %+v", b.Rect)
	}
	a, _ := h.overlays.Find("a")
	if a.Rect != geometry.NewRect(0, 0, 50, 50) {
		t.Fatalf("a moved to %+v", a.Rect)
	}
}

func TestClickOverlayWithoutMoveRecordsNothing(t *testing.T) {
	h := &fakeHost{overlays: document.Overlays{{ID: "a", Rect: geometry.NewRect(0, 0, 50, 50)}}}
	m := newMachine(h)
	m.PointerDown(pt(10, 10), ButtonPrimary)
	m.PointerUp(pt(10, 10))
	if len(h.recorded) != 0 || h.moves != 0 {
		t.Fatalf("click recorded history: recorded=%v moves=%d", h.recorded, h.moves)
	}
	if h.selected != "a" {
		t.Fatalf("selected = %q", h.selected)
	}
}

func TestPanPriority(t *testing.T) {
	sel := geometry.NewRect(0, 0, 100, 100)
	h := &fakeHost{sel: &sel, overlays: document.Overlays{{ID: "a", Rect: geometry.NewRect(0, 0, 100, 100)}}}
	m := newMachine(h)

	m.KeyDown(KeySpace, false)
	m.PointerDown(pt(100, 100), ButtonPrimary) // over a handle and an overlay
	if m.Mode() != ModePanning {
		t.Fatalf("mode = %v, want Panning", m.Mode())
	}
	m.PointerMove(pt(130, 90))
	m.PointerUp(pt(130, 90))
	if off := m.Viewport().Offset; off != pt(30, -10) {
		t.Fatalf("offset = %v", off)
	}
	m.KeyUp(KeySpace)

	m.PointerDown(pt(10, 10), ButtonMiddle)
	if m.Mode() != ModePanning {
		t.Fatalf("middle button mode = %v", m.Mode())
	}
	m.PointerLeave()
	if m.Mode() != ModeIdle {
		t.Fatalf("mode after leave = %v", m.Mode())
	}
}

func TestHandleBeatsOverlay(t *testing.T) {
	sel := geometry.NewRect(0, 0, 100, 100)
	h := &fakeHost{sel: &sel, overlays: document.Overlays{{ID: "a", Rect: geometry.NewRect(90, 90, 50, 50)}}}
	m := newMachine(h)
	m.PointerDown(pt(100, 100), ButtonPrimary)
	if m.Mode() != ModeResizingSelection {
		t.Fatalf("mode = %v, want ResizingSelection", m.Mode())
	}
}

func TestPointerLeaveEndsGestures(t *testing.T) {
	h := &fakeHost{}
	m := newMachine(h)
	m.PointerDown(pt(0, 0), ButtonPrimary)
	m.PointerMove(pt(50, 40))
	m.PointerLeave()
	if m.Mode() != ModeIdle {
		t.Fatalf("mode = %v", m.Mode())
	}
	if len(h.commits) != 1 || h.commits[0] != geometry.NewRect(0, 0, 50, 40) {
		t.Fatalf("commits = %+v", h.commits)
	}
}

func TestArrowKeys(t *testing.T) {
	h := &fakeHost{}
	m := newMachine(h)
	tests := []struct {
		k    Key
		want geometry.Point2D
	}{
		{KeyUp, pt(0, 50)},
		{KeyDown, pt(0, 0)},
		{KeyLeft, pt(50, 0)},
		{KeyRight, pt(0, 0)},
	}
	for _, tt := range tests {
		if !m.KeyDown(tt.k, false) {
			t.Fatalf("key %v not handled", tt.k)
		}
		if m.Viewport().Offset != tt.want {
			t.Fatalf("after key %v offset = %v, want %v", tt.k, m.Viewport().Offset, tt.want)
		}
	}
	if m.KeyDown(KeyUp, true) || m.Viewport().Offset != pt(0, 0) {
		t.Fatal("arrow handled while a text input had focus")
	}
	if m.KeyDown(KeySpace, true) || m.PanHeld() {
		t.Fatal("space handled while a text input had focus")
	}
}

func TestArrowKeysIgnoredWhileResizing(t *testing.T) {
	sel := geometry.NewRect(0, 0, 100, 100)
	h := &fakeHost{sel: &sel}
	m := newMachine(h)
	m.PointerDown(pt(100, 50), ButtonPrimary)
	if m.KeyDown(KeyLeft, false) {
		t.Fatal("arrow handled during resize")
	}
	if m.Viewport().Offset != pt(0, 0) {
		t.Fatal("offset moved during resize")
	}
}

func TestWheel(t *testing.T) {
	h := &fakeHost{}
	m := newMachine(h)

	m.Wheel(pt(50, 50), 0, -100, true)
	if z := m.Viewport().Zoom; z < 1.0999 || z > 1.1001 {
		t.Fatalf("zoom in = %v", z)
	}
	if s := m.Viewport().ModelToScreen(pt(50, 50)); s.X < 49.999 || s.X > 50.001 {
		t.Fatalf("pivot moved to %v", s)
	}
	m.Wheel(pt(50, 50), 0, 100, true)
	if z := m.Viewport().Zoom; z < 0.9899 || z > 0.9901 {
		t.Fatalf("zoom out = %v, want 1.1*0.9", z)
	}

	before := m.Viewport().Offset
	m.Wheel(pt(0, 0), 10, 20, false)
	if got := m.Viewport().Offset; got != pt(before.X-10, before.Y-20) {
		t.Fatalf("scroll pan offset = %v", got)
	}

	m.KeyDown(KeySpace, false)
	before = m.Viewport().Offset
	m.Wheel(pt(0, 0), 10, 20, false)
	if m.Viewport().Offset != before {
		t.Fatal("wheel panned while pan key held")
	}
}

func TestCursorHints(t *testing.T) {
	sel := geometry.NewRect(0, 0, 100, 100)
	h := &fakeHost{sel: &sel, overlays: document.Overlays{{ID: "a", Rect: geometry.NewRect(200, 200, 50, 50)}}}
	m := newMachine(h)

	if c := m.Cursor(pt(100, 100)); c != CursorResizeNWSE {
		t.Fatalf("se handle cursor = %v", c)
	}
	if c := m.Cursor(pt(50, 0)); c != CursorResizeNS {
		t.Fatalf("n handle cursor = %v", c)
	}
	if c := m.Cursor(pt(210, 210)); c != CursorMove {
		t.Fatalf("overlay cursor = %v", c)
	}
	if c := m.Cursor(pt(400, 400)); c != CursorCrosshair {
		t.Fatalf("empty cursor = %v", c)
	}
	m.KeyDown(KeySpace, false)
	if c := m.Cursor(pt(400, 400)); c != CursorGrab {
		t.Fatalf("pan-held cursor = %v", c)
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	h := &fakeHost{}
	m := newMachine(h)
	m.PointerDown(pt(0, 0), ButtonPrimary)
	m.Reset()
	if m.Mode() != ModeIdle {
		t.Fatalf("mode = %v", m.Mode())
	}
	m.PointerUp(pt(100, 100))
	if len(h.commits) != 0 {
		t.Fatal("release after reset committed a selection")
	}
}
