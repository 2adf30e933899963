package panels

import (
	"fmt"

	"slide-editor/internal/app"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// SlidesPanel lists the loaded slides and switches the active one.
type SlidesPanel struct {
	state     *app.State
	container fyne.CanvasObject

	list       *widget.List
	position   *widget.Label
	prevButton *widget.Button
	nextButton *widget.Button
}

// NewSlidesPanel creates a new slides panel.
func NewSlidesPanel(state *app.State) *SlidesPanel {
	sp := &SlidesPanel{state: state}

	sp.list = widget.NewList(
		func() int {
			return state.SlideCount()
		},
		func() fyne.CanvasObject {
			thumb := fynecanvas.NewImageFromImage(nil)
			thumb.FillMode = fynecanvas.ImageFillContain
			thumb.ScaleMode = fynecanvas.ImageScaleFastest
			thumb.SetMinSize(fyne.NewSize(96, 54))
			return container.NewBorder(nil, nil, thumb, nil, widget.NewLabel("Slide 00"))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			slides := state.Slides()
			if id >= len(slides) {
				return
			}
			slide := slides[id]
			row := obj.(*fyne.Container)
			// Border puts the center object first.
			label := row.Objects[0].(*widget.Label)
			thumb := row.Objects[1].(*fynecanvas.Image)

			text := fmt.Sprintf("Slide %d", id+1)
			if n := len(slide.Overlays); n > 0 {
				text = fmt.Sprintf("%s  (%d)", text, n)
			}
			label.SetText(text)
			if thumb.Image != slide.Image {
				thumb.Image = slide.Image
				thumb.Refresh()
			}
		},
	)
	sp.list.OnSelected = func(id widget.ListItemID) {
		if err := state.SetActiveSlide(id); err != nil {
			sp.position.SetText(err.Error())
		}
	}

	sp.position = widget.NewLabel("")
	sp.position.Alignment = fyne.TextAlignCenter
	sp.prevButton = widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() {
		_ = state.PrevSlide()
	})
	sp.nextButton = widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() {
		_ = state.NextSlide()
	})

	sp.container = container.NewBorder(
		container.NewBorder(nil, nil, sp.prevButton, sp.nextButton, sp.position),
		nil, nil, nil,
		sp.list,
	)

	state.On(app.EventDocumentLoaded, func(interface{}) {
		sp.list.UnselectAll()
		sp.list.Refresh()
		sp.sync()
	})
	state.On(app.EventSlideChanged, func(interface{}) { sp.sync() })
	state.On(app.EventOverlaysChanged, func(data interface{}) {
		if idx, ok := data.(int); ok {
			sp.list.RefreshItem(idx)
		}
	})

	sp.sync()
	return sp
}

// Container returns the panel container.
func (sp *SlidesPanel) Container() fyne.CanvasObject {
	return sp.container
}

// sync moves the list selection and the navigation controls to the active
// slide.
func (sp *SlidesPanel) sync() {
	n := sp.state.SlideCount()
	if n == 0 {
		sp.position.SetText("No slides")
		sp.prevButton.Disable()
		sp.nextButton.Disable()
		return
	}
	idx := sp.state.ActiveIndex()
	sp.position.SetText(fmt.Sprintf("%d / %d", idx+1, n))
	setEnabled(idx > 0, sp.prevButton)
	setEnabled(idx < n-1, sp.nextButton)
	sp.list.Select(idx)
	sp.list.ScrollTo(idx)
}
