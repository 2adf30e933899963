package panels

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"slide-editor/internal/app"
	"slide-editor/internal/document"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const (
	analyzeTimeout = 2 * time.Minute
	typingDelay    = 400 * time.Millisecond
)

// editTarget is what the typography form is bound to.
type editTarget int

const (
	targetNone editTarget = iota
	targetDraft
	targetOverlay
)

var (
	fontFamilies = []string{"sans-serif", "serif", "monospace", "Noto Sans KR", "Noto Sans JP"}
	vAligns      = []string{string(document.AlignTop), string(document.AlignMiddle), string(document.AlignBottom)}
	hAligns      = []string{string(document.AlignLeft), string(document.AlignCenter), string(document.AlignRight)}
)

// TextPanel runs analysis on the selection and edits the typography of the
// draft or the selected overlay.
type TextPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	analyzeButton *widget.Button
	progress      *widget.ProgressBarInfinite
	status        *widget.Label
	original      *widget.Label

	textEntry    *widget.Entry
	sizeEntry    *widget.Entry
	boldCheck    *widget.Check
	familyEntry  *widget.SelectEntry
	fontColor    *colorField
	background   *colorField
	vAlignSelect *widget.Select
	hAlignSelect *widget.Select
	removeBg     *widget.Button

	applyButton  *widget.Button
	deleteButton *widget.Button
	clearButton  *widget.Button

	mu       sync.Mutex
	syncing  bool
	target   editTarget
	targetID string
	typing   *debouncer
}

// NewTextPanel creates the panel and subscribes it to state events.
func NewTextPanel(state *app.State) *TextPanel {
	p := &TextPanel{
		state:  state,
		typing: newDebouncer(typingDelay),
	}

	p.analyzeButton = widget.NewButtonWithIcon("Analyze Selection", theme.SearchIcon(), p.onAnalyze)
	p.analyzeButton.Importance = widget.HighImportance
	p.progress = widget.NewProgressBarInfinite()
	p.progress.Stop()
	p.progress.Hide()
	p.status = widget.NewLabel("Drag on the slide to select text.")
	p.status.Wrapping = fyne.TextWrapWord

	p.original = widget.NewLabel("")
	p.original.Wrapping = fyne.TextWrapWord
	p.original.TextStyle = fyne.TextStyle{Italic: true}

	p.textEntry = widget.NewMultiLineEntry()
	p.textEntry.Wrapping = fyne.TextWrapWord
	p.textEntry.SetMinRowsVisible(4)
	p.textEntry.OnChanged = p.onTextChanged

	p.sizeEntry = widget.NewEntry()
	p.sizeEntry.Validator = func(s string) error {
		if _, ok := parseFontSize(s); !ok {
			return errors.New("enter a positive size")
		}
		return nil
	}
	p.sizeEntry.OnChanged = func(s string) {
		v, ok := parseFontSize(s)
		if !ok {
			return
		}
		p.edit(func(o document.Overlay) document.Overlay {
			o.FontSize = v
			return o
		})
	}

	p.boldCheck = widget.NewCheck("Bold", func(bold bool) {
		p.edit(func(o document.Overlay) document.Overlay {
			o.FontWeight = document.WeightNormal
			if bold {
				o.FontWeight = document.WeightBold
			}
			return o
		})
	})

	p.familyEntry = widget.NewSelectEntry(fontFamilies)
	p.familyEntry.OnChanged = func(s string) {
		if s == "" {
			return
		}
		p.edit(func(o document.Overlay) document.Overlay {
			o.FontFamily = s
			return o
		})
	}

	p.fontColor = newColorField("Text Color")
	p.fontColor.OnChanged = func(hex string) {
		p.edit(func(o document.Overlay) document.Overlay {
			o.FontColor = hex
			return o
		})
	}
	p.background = newColorField("Background Color")
	p.background.OnChanged = func(hex string) {
		p.edit(func(o document.Overlay) document.Overlay {
			o.BackgroundColor = hex
			return o
		})
	}

	p.vAlignSelect = widget.NewSelect(vAligns, func(s string) {
		p.edit(func(o document.Overlay) document.Overlay {
			o.VAlign = document.VAlign(s)
			return o
		})
	})
	p.hAlignSelect = widget.NewSelect(hAligns, func(s string) {
		p.edit(func(o document.Overlay) document.Overlay {
			o.HAlign = document.HAlign(s)
			return o
		})
	})

	p.removeBg = widget.NewButton("Use Flat Background", func() {
		p.edit(func(o document.Overlay) document.Overlay {
			o.BackgroundImage = nil
			return o
		})
	})

	p.applyButton = widget.NewButtonWithIcon("Apply", theme.ConfirmIcon(), p.onApply)
	p.applyButton.Importance = widget.HighImportance
	p.deleteButton = widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), p.onDelete)
	p.clearButton = widget.NewButton("Clear Slide", p.onClear)

	form := widget.NewForm(
		widget.NewFormItem("Original", p.original),
		widget.NewFormItem("Text", p.textEntry),
		widget.NewFormItem("Size", p.sizeEntry),
		widget.NewFormItem("", p.boldCheck),
		widget.NewFormItem("Family", p.familyEntry),
		widget.NewFormItem("Color", p.fontColor.widget()),
		widget.NewFormItem("Background", p.background.widget()),
		widget.NewFormItem("Vertical", p.vAlignSelect),
		widget.NewFormItem("Horizontal", p.hAlignSelect),
	)

	p.container = container.NewVScroll(container.NewVBox(
		widget.NewCard("Recognition", "", container.NewVBox(
			p.analyzeButton,
			p.progress,
			p.status,
		)),
		widget.NewCard("Typography", "", container.NewVBox(
			form,
			p.removeBg,
			container.NewGridWithColumns(2, p.applyButton, p.deleteButton),
		)),
		p.clearButton,
	))

	state.On(app.EventSelectionChanged, func(interface{}) { p.Refresh() })
	state.On(app.EventSlideChanged, func(interface{}) { p.Refresh() })
	state.On(app.EventDocumentLoaded, func(interface{}) { p.Refresh() })
	state.On(app.EventOverlaysChanged, func(interface{}) { p.Refresh() })
	state.On(app.EventAnalysisStarted, func(interface{}) {
		p.status.SetText("Recognizing text…")
	})
	state.On(app.EventAnalysisFinished, func(interface{}) {
		p.status.SetText("Edit the text, then apply.")
		p.Refresh()
	})
	state.On(app.EventAnalysisFailed, func(data interface{}) {
		if err, ok := data.(error); ok {
			p.status.SetText(analysisMessage(err))
		}
	})

	p.Refresh()
	return p
}

// Container returns the panel container.
func (p *TextPanel) Container() fyne.CanvasObject {
	return p.container
}

// SetWindow sets the parent window for dialogs.
func (p *TextPanel) SetWindow(w fyne.Window) {
	p.window = w
	p.fontColor.window = w
	p.background.window = w
}

// Refresh rebinds the form to the current draft or selected overlay.
func (p *TextPanel) Refresh() {
	var (
		o      document.Overlay
		target = targetNone
		id     string
	)
	if d, ok := p.state.Draft(); ok {
		o, target = d, targetDraft
	} else if id = p.state.SelectedOverlay(); id != "" {
		if found, ok := p.state.Overlays().Find(id); ok {
			o, target = found, targetOverlay
		}
	}
	_, hasSelection := p.state.Selection()

	p.mu.Lock()
	retarget := p.target != target || p.targetID != id
	p.mu.Unlock()
	if retarget {
		// pending text belongs to the previous target
		p.typing.flush()
	}

	p.mu.Lock()
	p.target, p.targetID = target, id
	p.syncing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.syncing = false
		p.mu.Unlock()
	}()

	editing := target != targetNone
	setEnabled(editing, p.textEntry, p.sizeEntry, p.boldCheck, p.familyEntry,
		p.fontColor, p.background, p.vAlignSelect, p.hAlignSelect)
	setEnabled(hasSelection && target != targetOverlay, p.analyzeButton)
	setEnabled(target == targetDraft, p.applyButton)
	setEnabled(target == targetOverlay, p.deleteButton)
	setEnabled(editing && len(o.BackgroundImage) > 0, p.removeBg)
	setEnabled(len(p.state.Overlays()) > 0, p.clearButton)

	if !editing {
		o = document.Overlay{}.WithDefaults()
	}
	p.original.SetText(o.OriginalText)
	if p.textEntry.Text != o.NewText && !p.typing.pending() {
		p.textEntry.SetText(o.NewText)
	}
	if v, ok := parseFontSize(p.sizeEntry.Text); !ok || v != o.FontSize {
		p.sizeEntry.SetText(formatFontSize(o.FontSize))
	}
	p.boldCheck.SetChecked(o.FontWeight == document.WeightBold)
	if p.familyEntry.Text != o.FontFamily {
		p.familyEntry.SetText(o.FontFamily)
	}
	p.fontColor.Set(o.FontColor)
	p.background.Set(o.BackgroundColor)
	p.vAlignSelect.SetSelected(string(o.VAlign))
	p.hAlignSelect.SetSelected(string(o.HAlign))
}

// edit routes a form change to the bound target. Changes made while the
// form is being filled from state are ignored.
func (p *TextPanel) edit(fn func(document.Overlay) document.Overlay) {
	p.mu.Lock()
	syncing, target, id := p.syncing, p.target, p.targetID
	p.mu.Unlock()
	if syncing {
		return
	}
	p.apply(target, id, fn)
}

func (p *TextPanel) apply(target editTarget, id string, fn func(document.Overlay) document.Overlay) {
	var err error
	switch target {
	case targetDraft:
		err = p.state.UpdateDraft(fn)
	case targetOverlay:
		err = p.state.UpdateOverlay(id, fn)
	default:
		return
	}
	if err != nil {
		p.status.SetText(err.Error())
	}
}

// onTextChanged updates drafts immediately. Overlay text is committed once
// typing pauses so one burst of typing is one undo step.
func (p *TextPanel) onTextChanged(text string) {
	p.mu.Lock()
	syncing, target, id := p.syncing, p.target, p.targetID
	p.mu.Unlock()
	if syncing {
		return
	}
	fn := func(o document.Overlay) document.Overlay {
		o.NewText = text
		return o
	}
	if target != targetOverlay {
		p.apply(target, id, fn)
		return
	}
	p.typing.schedule(func() { p.apply(target, id, fn) })
}

func (p *TextPanel) onAnalyze() {
	p.analyzeButton.Disable()
	p.progress.Show()
	p.progress.Start()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
		defer cancel()

		_, err := p.state.Analyze(ctx)

		p.progress.Stop()
		p.progress.Hide()
		if err != nil {
			p.status.SetText(analysisMessage(err))
		}
		p.Refresh()
	}()
}

func (p *TextPanel) onApply() {
	if _, err := p.state.ApplyDraft(); err != nil {
		p.showError(err)
		return
	}
	p.status.SetText("Overlay applied.")
}

func (p *TextPanel) onDelete() {
	p.typing.cancel()
	id := p.state.SelectedOverlay()
	if id == "" {
		return
	}
	if err := p.state.DeleteOverlay(id); err != nil {
		p.showError(err)
	}
}

func (p *TextPanel) onClear() {
	n := len(p.state.Overlays())
	if n == 0 {
		return
	}
	clearAll := func() {
		p.typing.cancel()
		if err := p.state.ClearOverlays(); err != nil {
			p.showError(err)
		}
	}
	if p.window == nil {
		clearAll()
		return
	}
	dialog.ShowConfirm("Clear Slide",
		fmt.Sprintf("Remove all %d overlays from this slide?", n),
		func(ok bool) {
			if ok {
				clearAll()
			}
		}, p.window)
}

func (p *TextPanel) showError(err error) {
	if p.window != nil {
		dialog.ShowError(err, p.window)
		return
	}
	p.status.SetText(err.Error())
}

func analysisMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrStale):
		return "Selection changed while recognizing; result discarded."
	case errors.Is(err, app.ErrAnalysisPending):
		return "Still recognizing this selection…"
	case errors.Is(err, app.ErrNoSelection):
		return "Drag on the slide to select text first."
	case errors.Is(err, app.ErrNoAnalyzer):
		return "Text recognition is not available. Check the Tesseract installation."
	case errors.Is(err, context.DeadlineExceeded):
		return "Recognition timed out."
	default:
		return "Recognition failed: " + err.Error()
	}
}
