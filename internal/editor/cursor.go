package editor

import "slide-editor/pkg/geometry"

// Cursor is a pointer shape hint for the UI.
type Cursor int

const (
	CursorDefault Cursor = iota
	CursorCrosshair
	CursorGrab
	CursorGrabbing
	CursorMove
	CursorResizeNS
	CursorResizeEW
	CursorResizeNWSE
	CursorResizeNESW
)

// Cursor returns the hint for a pointer hovering at a screen position.
func (m *Machine) Cursor(screen geometry.Point2D) Cursor {
	switch m.g.mode {
	case ModePanning:
		return CursorGrabbing
	case ModeDraggingOverlay:
		return CursorMove
	case ModeResizingSelection:
		return handleCursor(m.g.handle)
	case ModeDrawing:
		return CursorCrosshair
	}
	if m.panHeld {
		return CursorGrab
	}

	p := m.vp.ScreenToModel(screen)
	if sel, ok := m.host.Selection(); ok {
		if h := geometry.HitTestHandle(p, sel, m.vp.Zoom, m.settings.HandleSize); h != geometry.HandleNone {
			return handleCursor(h)
		}
	}
	if _, ok := m.host.Overlays().TopmostAt(p); ok {
		return CursorMove
	}
	return CursorCrosshair
}

func handleCursor(h geometry.Handle) Cursor {
	switch h {
	case geometry.HandleN, geometry.HandleS:
		return CursorResizeNS
	case geometry.HandleE, geometry.HandleW:
		return CursorResizeEW
	case geometry.HandleNW, geometry.HandleSE:
		return CursorResizeNWSE
	case geometry.HandleNE, geometry.HandleSW:
		return CursorResizeNESW
	}
	return CursorDefault
}
