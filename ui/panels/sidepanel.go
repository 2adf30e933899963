// Package panels provides the editor's side panels.
package panels

import (
	"slide-editor/internal/app"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
)

// SidePanel provides the main side panel with tabbed sections.
type SidePanel struct {
	state     *app.State
	container *container.AppTabs

	textPanel   *TextPanel
	slidesPanel *SlidesPanel
}

// NewSidePanel creates a new side panel.
func NewSidePanel(state *app.State) *SidePanel {
	sp := &SidePanel{state: state}

	sp.textPanel = NewTextPanel(state)
	sp.slidesPanel = NewSlidesPanel(state)

	sp.container = container.NewAppTabs(
		container.NewTabItem("Text", sp.textPanel.Container()),
		container.NewTabItem("Slides", sp.slidesPanel.Container()),
	)

	// Jump to the editor once recognition produced something to edit.
	state.On(app.EventAnalysisFinished, func(interface{}) {
		sp.container.SelectIndex(0)
	})

	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.textPanel.SetWindow(w)
}
