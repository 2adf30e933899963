package panels

import (
	"image/color"
	"strconv"
	"strings"
	"sync"
	"time"

	"slide-editor/pkg/colorutil"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// parseFontSize reads a positive size from an entry. Commas are accepted as
// decimal separators.
func parseFontSize(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v > 1000 {
		return 0, false
	}
	return v, true
}

func formatFontSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func setEnabled(enabled bool, ws ...fyne.Disableable) {
	for _, w := range ws {
		if enabled {
			w.Enable()
		} else {
			w.Disable()
		}
	}
}

// debouncer runs the last scheduled function once input has been idle for
// delay.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func()
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

func (d *debouncer) schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	fn := d.fn
	d.fn = nil
	d.timer = nil
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// flush runs a pending function immediately.
func (d *debouncer) flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.fire()
}

func (d *debouncer) pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn != nil
}

// cancel drops a pending function.
func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = nil
	d.fn = nil
}

// colorField edits a "#rrggbb" value with a hex entry, a swatch and a
// picker dialog.
type colorField struct {
	entry  *widget.Entry
	swatch *fynecanvas.Rectangle
	pick   *widget.Button
	window fyne.Window

	// OnChanged receives valid, normalized hex values only.
	OnChanged func(hex string)
}

func newColorField(title string) *colorField {
	f := &colorField{
		entry:  widget.NewEntry(),
		swatch: fynecanvas.NewRectangle(color.Transparent),
	}
	f.swatch.SetMinSize(fyne.NewSize(24, 24))
	f.swatch.StrokeWidth = 1
	f.swatch.StrokeColor = color.Gray{Y: 128}
	f.entry.SetPlaceHolder("#rrggbb")
	f.entry.Validator = func(s string) error {
		_, err := colorutil.ParseHex(s)
		return err
	}
	f.entry.OnChanged = func(s string) {
		c, err := colorutil.ParseHex(s)
		if err != nil {
			return
		}
		f.setSwatch(c)
		if f.OnChanged != nil {
			f.OnChanged(colorutil.Hex(c))
		}
	}
	f.pick = widget.NewButton("…", func() {
		if f.window == nil {
			return
		}
		picker := dialog.NewColorPicker(title, "", func(c color.Color) {
			f.entry.SetText(colorutil.Hex(c))
		}, f.window)
		picker.Advanced = true
		picker.SetColor(colorutil.ParseHexOr(f.entry.Text, colorutil.Black))
		picker.Show()
	})
	return f
}

// Set shows hex without firing OnChanged.
func (f *colorField) Set(hex string) {
	if f.entry.Text == hex {
		return
	}
	cb := f.OnChanged
	f.OnChanged = nil
	f.entry.SetText(hex)
	f.OnChanged = cb
	f.setSwatch(colorutil.ParseHexOr(hex, colorutil.Black))
}

func (f *colorField) setSwatch(c color.RGBA) {
	f.swatch.FillColor = c
	f.swatch.Refresh()
}

func (f *colorField) Enable() {
	f.entry.Enable()
	f.pick.Enable()
}

func (f *colorField) Disable() {
	f.entry.Disable()
	f.pick.Disable()
}

func (f *colorField) Disabled() bool { return f.entry.Disabled() }

func (f *colorField) widget() fyne.CanvasObject {
	return container.NewBorder(nil, nil, f.swatch, f.pick, f.entry)
}
