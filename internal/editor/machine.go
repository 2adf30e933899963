// Package editor implements the pointer and keyboard state machine of the
// slide canvas: drawing and resizing the selection, dragging overlays and
// panning or zooming the view.
package editor

import (
	"slide-editor/internal/document"
	"slide-editor/pkg/geometry"
)

// Mode is the active gesture.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawing
	ModeResizingSelection
	ModeDraggingOverlay
	ModePanning
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "Idle"
	case ModeDrawing:
		return "Drawing"
	case ModeResizingSelection:
		return "ResizingSelection"
	case ModeDraggingOverlay:
		return "DraggingOverlay"
	case ModePanning:
		return "Panning"
	default:
		return "Unknown"
	}
}

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Key identifies the keys the machine reacts to.
type Key int

const (
	KeyOther Key = iota
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// Settings holds the tunables of the machine.
type Settings struct {
	MinRectSize float64 // smaller selections are discarded on release
	HandleSize  float64 // handle hit tolerance in screen pixels
	PanStep     float64 // arrow key pan distance in screen pixels
	ZoomStep    float64 // wheel zoom factor is 1 ± ZoomStep
}

// DefaultSettings returns the stock editor tunables.
func DefaultSettings() Settings {
	return Settings{MinRectSize: 5, HandleSize: 8, PanStep: 50, ZoomStep: 0.1}
}

// Host is the editing session the machine reads from and commits to. The
// committed selection and the overlay list live in the host; the machine only
// holds the rectangle of a gesture in progress.
type Host interface {
	Selection() (geometry.Rect, bool)
	CommitSelection(r geometry.Rect)
	ClearSelection()

	Overlays() document.Overlays
	SelectedOverlay() string
	// SelectOverlay selects an overlay and clears the selection; "" deselects.
	SelectOverlay(id string)
	// TranslateOverlay moves an overlay by a model-space delta and reports
	// whether it still exists. record is true for the first step of a drag,
	// so the host records history once per gesture.
	TranslateOverlay(id string, dx, dy float64, record bool) bool
}

// gesture is the payload of the active mode. Only the fields of the current
// mode are meaningful.
type gesture struct {
	mode    Mode
	handle  geometry.Handle  // ResizingSelection
	start   geometry.Point2D // model point where Drawing began
	last    geometry.Point2D // previous model point, or screen point when Panning
	rect    geometry.Rect    // Drawing, ResizingSelection
	origin  geometry.Rect    // ResizingSelection: selection before the gesture
	overlay string           // DraggingOverlay
	moved   bool             // DraggingOverlay: history already recorded
}

// Machine dispatches input events for one canvas.
type Machine struct {
	vp       *geometry.Viewport
	host     Host
	settings Settings
	g        gesture
	panHeld  bool
}

// New creates an idle machine driving vp and host.
func New(vp *geometry.Viewport, host Host, settings Settings) *Machine {
	return &Machine{vp: vp, host: host, settings: settings}
}

// Mode returns the active mode.
func (m *Machine) Mode() Mode { return m.g.mode }

// Viewport returns the viewport the machine drives.
func (m *Machine) Viewport() *geometry.Viewport { return m.vp }

// Settings returns the machine's tunables.
func (m *Machine) Settings() Settings { return m.settings }

// PanHeld reports whether the pan modifier key is down.
func (m *Machine) PanHeld() bool { return m.panHeld }

// Working returns the rectangle to draw as the selection: the in-progress
// one during Drawing or ResizingSelection, otherwise the committed one.
func (m *Machine) Working() (geometry.Rect, bool) {
	switch m.g.mode {
	case ModeDrawing, ModeResizingSelection:
		return m.g.rect, true
	}
	return m.host.Selection()
}

// Reset abandons any gesture, e.g. when the slide changes under it.
func (m *Machine) Reset() {
	m.g = gesture{}
}

// PointerDown starts a gesture at a screen position.
func (m *Machine) PointerDown(screen geometry.Point2D, button Button) {
	if m.g.mode != ModeIdle {
		// a second button while a gesture is active is ignored
		return
	}
	if button == ButtonSecondary {
		return
	}
	p := m.vp.ScreenToModel(screen)

	if m.panHeld || button == ButtonMiddle {
		m.g = gesture{mode: ModePanning, last: screen}
		return
	}

	if sel, ok := m.host.Selection(); ok {
		if h := geometry.HitTestHandle(p, sel, m.vp.Zoom, m.settings.HandleSize); h != geometry.HandleNone {
			m.g = gesture{mode: ModeResizingSelection, handle: h, start: p, last: p, rect: sel, origin: sel}
			return
		}
	}

	if o, ok := m.host.Overlays().TopmostAt(p); ok {
		m.host.SelectOverlay(o.ID)
		m.g = gesture{mode: ModeDraggingOverlay, overlay: o.ID, start: p, last: p}
		return
	}

	m.host.SelectOverlay("")
	m.host.ClearSelection()
	m.g = gesture{mode: ModeDrawing, start: p, last: p, rect: geometry.Rect{X: p.X, Y: p.Y}}
}

// PointerMove updates the active gesture.
func (m *Machine) PointerMove(screen geometry.Point2D) {
	switch m.g.mode {
	case ModeDrawing:
		p := m.vp.ScreenToModel(screen)
		m.g.rect = geometry.RectBetween(m.g.start, p)
		m.g.last = p

	case ModeResizingSelection:
		p := m.vp.ScreenToModel(screen)
		d := p.Sub(m.g.last)
		m.g.rect = m.g.handle.Resize(m.g.rect, d.X, d.Y)
		m.g.last = p

	case ModeDraggingOverlay:
		p := m.vp.ScreenToModel(screen)
		d := p.Sub(m.g.last)
		if d.X == 0 && d.Y == 0 {
			return
		}
		if !m.host.TranslateOverlay(m.g.overlay, d.X, d.Y, !m.g.moved) {
			// removed under us (undo during drag); end the gesture
			m.g = gesture{}
			return
		}
		m.g.moved = true
		m.g.last = p

	case ModePanning:
		d := screen.Sub(m.g.last)
		m.vp.Pan(d.X, d.Y)
		m.g.last = screen
	}
}

// PointerUp ends the active gesture. Drawn or resized rectangles smaller than
// the minimum size are dropped; a resize that ends where it began commits
// nothing.
func (m *Machine) PointerUp(screen geometry.Point2D) {
	switch m.g.mode {
	case ModeDrawing, ModeResizingSelection:
		m.PointerMove(screen)
		if m.g.mode == ModeResizingSelection && m.g.rect == m.g.origin {
			break
		}
		if m.g.rect.AtLeast(m.settings.MinRectSize) {
			m.host.CommitSelection(m.g.rect)
		} else {
			m.host.ClearSelection()
		}
	case ModeDraggingOverlay, ModePanning:
		m.PointerMove(screen)
	}
	m.g = gesture{}
}

// PointerLeave ends the gesture as if the button were released at the last
// known position.
func (m *Machine) PointerLeave() {
	switch m.g.mode {
	case ModeIdle:
		return
	case ModePanning:
		m.PointerUp(m.g.last)
	default:
		m.PointerUp(m.vp.ModelToScreen(m.g.last))
	}
}

// KeyDown handles a key press. textFocused reports whether a text input owns
// the keyboard, in which case nothing is handled. It returns true if the key
// was consumed.
func (m *Machine) KeyDown(k Key, textFocused bool) bool {
	if textFocused {
		return false
	}
	switch k {
	case KeySpace:
		m.panHeld = true
		return true
	case KeyUp, KeyDown, KeyLeft, KeyRight:
		if m.g.mode == ModeResizingSelection {
			return false
		}
		step := m.settings.PanStep
		switch k {
		case KeyUp:
			m.vp.Pan(0, step)
		case KeyDown:
			m.vp.Pan(0, -step)
		case KeyLeft:
			m.vp.Pan(step, 0)
		case KeyRight:
			m.vp.Pan(-step, 0)
		}
		return true
	}
	return false
}

// KeyUp handles a key release. Releasing space always clears the pan
// modifier so it cannot stick after focus moves to a text input.
func (m *Machine) KeyUp(k Key) bool {
	if k == KeySpace {
		m.panHeld = false
		return true
	}
	return false
}

// Wheel handles a scroll event. dx and dy follow the browser convention
// (positive dy scrolls down). With zoomModifier the wheel zooms around the
// pointer; otherwise it pans, unless the pan key is held.
func (m *Machine) Wheel(screen geometry.Point2D, dx, dy float64, zoomModifier bool) {
	if zoomModifier {
		if dy == 0 {
			return
		}
		factor := 1 + m.settings.ZoomStep
		if dy > 0 {
			factor = 1 - m.settings.ZoomStep
		}
		m.vp.ZoomAt(screen, factor)
		return
	}
	if m.panHeld {
		return
	}
	m.vp.Pan(-dx, -dy)
}
