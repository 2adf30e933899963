// Package canvas provides the slide editor canvas with pan, zoom, selection
// and overlay dragging.
package canvas

import (
	"image"
	"sync"

	"slide-editor/internal/app"
	"slide-editor/internal/document"
	"slide-editor/internal/editor"
	slideimage "slide-editor/internal/image"
	"slide-editor/pkg/colorutil"
	"slide-editor/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// DefaultFitMargin is the space left around a fitted slide, in screen units.
const DefaultFitMargin = 80

// composite caches the rendered slide so the preview only re-composites
// when the overlay list or slide changes.
type composite struct {
	slide    int
	base     image.Image
	overlays document.Overlays
	img      *image.RGBA
}

// EditorCanvas shows the active slide and routes pointer and key input to
// the editor state machine.
type EditorCanvas struct {
	widget.BaseWidget

	state      *app.State
	compositor *slideimage.Compositor

	mu        sync.Mutex
	vp        *geometry.Viewport
	machine   *editor.Machine
	fitMargin float64
	needFit   bool
	cache     composite
	lastPos   fyne.Position

	raster *fynecanvas.Raster

	onZoomChange func(zoom float64)
}

var (
	_ desktop.Mouseable  = (*EditorCanvas)(nil)
	_ desktop.Hoverable  = (*EditorCanvas)(nil)
	_ desktop.Cursorable = (*EditorCanvas)(nil)
	_ desktop.Keyable    = (*EditorCanvas)(nil)
	_ fyne.Draggable     = (*EditorCanvas)(nil)
	_ fyne.Scrollable    = (*EditorCanvas)(nil)
	_ fyne.Focusable     = (*EditorCanvas)(nil)
)

// NewEditorCanvas creates a canvas bound to state.
func NewEditorCanvas(state *app.State, compositor *slideimage.Compositor, vp *geometry.Viewport, settings editor.Settings, fitMargin float64) *EditorCanvas {
	if fitMargin <= 0 {
		fitMargin = DefaultFitMargin
	}
	c := &EditorCanvas{
		state:      state,
		compositor: compositor,
		vp:         vp,
		fitMargin:  fitMargin,
		needFit:    true,
	}
	c.machine = editor.New(vp, state, settings)
	c.raster = fynecanvas.NewRaster(c.draw)
	c.raster.ScaleMode = fynecanvas.ImageScalePixels

	state.On(app.EventSlideChanged, func(interface{}) {
		c.mu.Lock()
		c.machine.Reset()
		c.needFit = true
		c.mu.Unlock()
		// decode reconstructed backgrounds before the first paint needs them
		go compositor.Preload(state.Overlays())
		c.Refresh()
	})
	for _, e := range []app.EventType{app.EventOverlaysChanged, app.EventSelectionChanged} {
		state.On(e, func(interface{}) { c.raster.Refresh() })
	}

	c.ExtendBaseWidget(c)
	return c
}

// OnZoomChange registers a callback for zoom level changes.
func (c *EditorCanvas) OnZoomChange(callback func(zoom float64)) {
	c.onZoomChange = callback
}

// Zoom returns the current zoom factor.
func (c *EditorCanvas) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp.Zoom
}

// ZoomIn zooms one step around the center of the canvas.
func (c *EditorCanvas) ZoomIn() { c.zoomCenter(1 + c.machine.Settings().ZoomStep) }

// ZoomOut zooms one step out around the center of the canvas.
func (c *EditorCanvas) ZoomOut() { c.zoomCenter(1 - c.machine.Settings().ZoomStep) }

// ActualSize shows the slide at 100%, keeping the canvas center in place.
func (c *EditorCanvas) ActualSize() {
	if z := c.Zoom(); z > 0 {
		c.zoomCenter(1 / z)
	}
}

func (c *EditorCanvas) zoomCenter(factor float64) {
	size := c.Size()
	c.mu.Lock()
	c.vp.ZoomAt(geometry.Point2D{X: float64(size.Width) / 2, Y: float64(size.Height) / 2}, factor)
	c.mu.Unlock()
	c.changed()
}

// FitToWindow fits the active slide inside the canvas.
func (c *EditorCanvas) FitToWindow() {
	c.mu.Lock()
	c.needFit = true
	c.mu.Unlock()
	c.changed()
}

// fitLocked applies a pending fit once the canvas has a size.
func (c *EditorCanvas) fitLocked(size fyne.Size) {
	if !c.needFit || size.Width <= 0 || size.Height <= 0 {
		return
	}
	slide, err := c.state.ActiveSlide()
	if err != nil {
		return
	}
	c.vp.FitToViewport(
		geometry.NewSize(float64(slide.Width), float64(slide.Height)),
		geometry.NewSize(float64(size.Width), float64(size.Height)),
		c.fitMargin)
	c.needFit = false
}

func (c *EditorCanvas) changed() {
	c.raster.Refresh()
	if c.onZoomChange != nil {
		c.onZoomChange(c.Zoom())
	}
}

// rendered returns the composited active slide, re-rendering only when the
// slide or its overlays changed.
func (c *EditorCanvas) rendered() (*image.RGBA, bool) {
	slide, err := c.state.ActiveSlide()
	if err != nil {
		return nil, false
	}
	if c.cache.img != nil && c.cache.slide == slide.Index && c.cache.base == slide.Image &&
		c.cache.overlays.Equal(slide.Overlays) {
		return c.cache.img, true
	}
	img := c.compositor.Render(slide.Image, slide.Overlays)
	c.compositor.Forget(slide.Overlays)
	c.cache = composite{slide: slide.Index, base: slide.Image, overlays: slide.Overlays, img: img}
	return img, true
}

// draw is the raster drawing function. w and h are in device pixels.
func (c *EditorCanvas) draw(w, h int) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(colorutil.Workspace), image.Point{}, draw.Src)

	size := c.Size()
	scale := 1.0
	if size.Width > 0 {
		scale = float64(w) / float64(size.Width)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fitLocked(size)

	img, ok := c.rendered()
	if !ok {
		return out
	}
	vp := *c.vp
	vp.Zoom *= scale
	vp.Offset = vp.Offset.Scale(scale)
	renderSlide(out, img, &vp)

	f := frame{vp: &vp, handleSize: c.machine.Settings().HandleSize}
	if id := c.state.SelectedOverlay(); id != "" {
		if o, found := c.state.Overlays().Find(id); found {
			f.overlay = &o.Rect
		}
	}
	if r, ok := c.machine.Working(); ok {
		f.selection = &r
	}
	f.draw(out)
	return out
}

// renderSlide draws img into out with the viewport transform.
func renderSlide(out draw.Image, img image.Image, vp *geometry.Viewport) {
	m := vp.Transform().Matrix()
	s2d := f64.Aff3(m)
	var interp draw.Interpolator = draw.ApproxBiLinear
	if vp.Zoom == 1 {
		interp = draw.NearestNeighbor
	}
	interp.Transform(out, s2d, img, img.Bounds(), draw.Over, nil)
}

func (c *EditorCanvas) point(pos fyne.Position) geometry.Point2D {
	return geometry.Point2D{X: float64(pos.X), Y: float64(pos.Y)}
}

// MouseDown implements desktop.Mouseable.
func (c *EditorCanvas) MouseDown(ev *desktop.MouseEvent) {
	if cv := fyne.CurrentApp().Driver().CanvasForObject(c); cv != nil {
		cv.Focus(c)
	}
	c.mu.Lock()
	c.lastPos = ev.Position
	c.machine.PointerDown(c.point(ev.Position), mouseButton(ev.Button))
	c.mu.Unlock()
	c.raster.Refresh()
}

// MouseUp implements desktop.Mouseable.
func (c *EditorCanvas) MouseUp(ev *desktop.MouseEvent) {
	c.mu.Lock()
	c.machine.PointerUp(c.point(ev.Position))
	c.mu.Unlock()
	c.raster.Refresh()
}

// Dragged implements fyne.Draggable.
func (c *EditorCanvas) Dragged(ev *fyne.DragEvent) {
	c.move(ev.Position)
}

// DragEnd implements fyne.Draggable.
func (c *EditorCanvas) DragEnd() {
	c.mu.Lock()
	c.machine.PointerUp(c.point(c.lastPos))
	c.mu.Unlock()
	c.raster.Refresh()
}

// MouseIn implements desktop.Hoverable.
func (c *EditorCanvas) MouseIn(ev *desktop.MouseEvent) {
	c.mu.Lock()
	c.lastPos = ev.Position
	c.mu.Unlock()
}

// MouseMoved implements desktop.Hoverable. Middle-button pans arrive here
// because only primary drags are delivered as Dragged.
func (c *EditorCanvas) MouseMoved(ev *desktop.MouseEvent) {
	c.move(ev.Position)
}

// MouseOut implements desktop.Hoverable.
func (c *EditorCanvas) MouseOut() {
	c.mu.Lock()
	c.machine.PointerLeave()
	c.mu.Unlock()
	c.raster.Refresh()
}

func (c *EditorCanvas) move(pos fyne.Position) {
	c.mu.Lock()
	c.lastPos = pos
	active := c.machine.Mode() != editor.ModeIdle
	if active {
		c.machine.PointerMove(c.point(pos))
	}
	panning := c.machine.Mode() == editor.ModePanning
	c.mu.Unlock()
	if active {
		c.raster.Refresh()
	}
	if panning && c.onZoomChange != nil {
		c.onZoomChange(c.Zoom())
	}
}

// Scrolled implements fyne.Scrollable. Fyne reports wheel-up as positive DY;
// the machine expects negative deltas to zoom in.
func (c *EditorCanvas) Scrolled(ev *fyne.ScrollEvent) {
	c.mu.Lock()
	c.machine.Wheel(c.point(ev.Position), -float64(ev.Scrolled.DX), -float64(ev.Scrolled.DY), zoomModifier())
	c.mu.Unlock()
	c.changed()
}

// Cursor implements desktop.Cursorable.
func (c *EditorCanvas) Cursor() desktop.Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return desktopCursor(c.machine.Cursor(c.point(c.lastPos)))
}

// KeyDown implements desktop.Keyable. The canvas only receives keys while
// it holds focus, so no text entry is active.
func (c *EditorCanvas) KeyDown(ev *fyne.KeyEvent) {
	c.mu.Lock()
	handled := c.machine.KeyDown(editorKey(ev.Name), false)
	c.mu.Unlock()
	if handled {
		c.changed()
	}
}

// KeyUp implements desktop.Keyable.
func (c *EditorCanvas) KeyUp(ev *fyne.KeyEvent) {
	c.mu.Lock()
	c.machine.KeyUp(editorKey(ev.Name))
	c.mu.Unlock()
}

// FocusGained implements fyne.Focusable.
func (c *EditorCanvas) FocusGained() {}

// FocusLost implements fyne.Focusable and releases a held pan key.
func (c *EditorCanvas) FocusLost() {
	c.mu.Lock()
	c.machine.KeyUp(editor.KeySpace)
	c.mu.Unlock()
}

// TypedRune implements fyne.Focusable.
func (c *EditorCanvas) TypedRune(rune) {}

// TypedKey implements fyne.Focusable.
func (c *EditorCanvas) TypedKey(*fyne.KeyEvent) {}

// CreateRenderer implements fyne.Widget.
func (c *EditorCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &editorCanvasRenderer{canvas: c}
}

type editorCanvasRenderer struct {
	canvas *EditorCanvas
}

func (r *editorCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
}

func (r *editorCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(200, 150)
}

func (r *editorCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *editorCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *editorCanvasRenderer) Destroy() {}

func mouseButton(b desktop.MouseButton) editor.Button {
	switch {
	case b&desktop.MouseButtonTertiary != 0:
		return editor.ButtonMiddle
	case b&desktop.MouseButtonSecondary != 0:
		return editor.ButtonSecondary
	default:
		return editor.ButtonPrimary
	}
}

func editorKey(k fyne.KeyName) editor.Key {
	switch k {
	case fyne.KeySpace:
		return editor.KeySpace
	case fyne.KeyUp:
		return editor.KeyUp
	case fyne.KeyDown:
		return editor.KeyDown
	case fyne.KeyLeft:
		return editor.KeyLeft
	case fyne.KeyRight:
		return editor.KeyRight
	}
	return editor.KeyOther
}

// zoomModifier reports whether ctrl (cmd on macOS) is held.
func zoomModifier() bool {
	d, ok := fyne.CurrentApp().Driver().(desktop.Driver)
	if !ok {
		return false
	}
	mods := d.CurrentKeyModifiers()
	return mods&(fyne.KeyModifierControl|fyne.KeyModifierSuper) != 0
}

func desktopCursor(cur editor.Cursor) desktop.Cursor {
	switch cur {
	case editor.CursorGrab, editor.CursorGrabbing, editor.CursorMove:
		return desktop.PointerCursor
	case editor.CursorResizeNS:
		return desktop.VResizeCursor
	case editor.CursorResizeEW:
		return desktop.HResizeCursor
	case editor.CursorCrosshair, editor.CursorResizeNWSE, editor.CursorResizeNESW:
		return desktop.CrosshairCursor
	}
	return desktop.DefaultCursor
}
