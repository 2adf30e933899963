// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"slide-editor/internal/app"
	"slide-editor/internal/export"
	slideimage "slide-editor/internal/image"
	"slide-editor/internal/version"
	"slide-editor/ui/canvas"
	"slide-editor/ui/panels"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const appTitle = "Slide Editor"

// openExtensions are the file types offered by the open dialog.
var openExtensions = append([]string{".pdf"}, slideimage.SupportedFormats()...)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app    fyne.App
	state  *app.State
	logger *slog.Logger

	canvas    *canvas.EditorCanvas
	sidePanel *panels.SidePanel
	statusBar *widget.Label
	zoomLabel *widget.Label

	// Menu items that need state tracking
	undoItem   *fyne.MenuItem
	redoItem   *fyne.MenuItem
	deleteItem *fyne.MenuItem

	// Directory of the last opened file; not persisted.
	lastDir string

	exportProgress *widget.ProgressBar
}

// New creates a new main window around an editor canvas.
func New(fyneApp fyne.App, state *app.State, cvs *canvas.EditorCanvas, logger *slog.Logger) *MainWindow {
	if logger == nil {
		logger = slog.Default()
	}
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		logger: logger,
		canvas: cvs,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()
	mw.Resize(fyne.NewSize(1280, 800))

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.sidePanel = panels.NewSidePanel(mw.state)
	mw.sidePanel.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Open a PDF or image to start.")
	mw.zoomLabel = widget.NewLabel(formatZoom(mw.canvas.Zoom()))
	mw.canvas.OnZoomChange(func(zoom float64) {
		mw.zoomLabel.SetText(formatZoom(zoom))
	})

	toolbar := mw.createToolbar()

	// Canvas area with toolbar on top
	canvasArea := container.NewBorder(
		toolbar, // top
		nil,     // bottom
		nil,     // left
		nil,     // right
		mw.canvas,
	)

	// Main layout: canvas area | side panel
	split := container.NewHSplit(
		canvasArea,
		mw.sidePanel.Container(),
	)
	split.SetOffset(0.72)

	content := container.NewBorder(
		nil, // top
		container.NewPadded(container.NewBorder(nil, nil, nil, mw.zoomLabel, mw.statusBar)), // bottom
		nil, // left
		nil, // right
		split,
	)

	mw.SetContent(content)
	mw.Canvas().Focus(mw.canvas)
}

// createToolbar creates the toolbar with file, history and zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	return widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), mw.onOpen),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), func() { mw.onExport(export.FormatZIP) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), mw.onUndo),
		widget.NewToolbarAction(theme.ContentRedoIcon(), mw.onRedo),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomOutIcon(), mw.canvas.ZoomOut),
		widget.NewToolbarAction(theme.ZoomInIcon(), mw.canvas.ZoomIn),
		widget.NewToolbarAction(theme.ZoomFitIcon(), mw.canvas.FitToWindow),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.NavigateBackIcon(), func() { _ = mw.state.PrevSlide() }),
		widget.NewToolbarAction(theme.NavigateNextIcon(), func() { _ = mw.state.NextSlide() }),
	)
}

func shortcut(key fyne.KeyName, mod fyne.KeyModifier) *desktop.CustomShortcut {
	return &desktop.CustomShortcut{KeyName: key, Modifier: mod}
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	primary := fyne.KeyModifierShortcutDefault

	openItem := fyne.NewMenuItem("Open…", mw.onOpen)
	openItem.Shortcut = shortcut(fyne.KeyO, primary)
	exportZIP := fyne.NewMenuItem("Export as ZIP…", func() { mw.onExport(export.FormatZIP) })
	exportZIP.Shortcut = shortcut(fyne.KeyE, primary)
	exportPDF := fyne.NewMenuItem("Export as PDF…", func() { mw.onExport(export.FormatPDF) })
	exportPDF.Shortcut = shortcut(fyne.KeyE, primary|fyne.KeyModifierShift)

	fileMenu := fyne.NewMenu("File",
		openItem,
		fyne.NewMenuItemSeparator(),
		exportZIP,
		exportPDF,
	)

	mw.undoItem = fyne.NewMenuItem("Undo", mw.onUndo)
	mw.undoItem.Shortcut = shortcut(fyne.KeyZ, primary)
	mw.redoItem = fyne.NewMenuItem("Redo", mw.onRedo)
	mw.redoItem.Shortcut = shortcut(fyne.KeyZ, primary|fyne.KeyModifierShift)
	mw.deleteItem = fyne.NewMenuItem("Delete Overlay", mw.onDeleteOverlay)

	editMenu := fyne.NewMenu("Edit",
		mw.undoItem,
		mw.redoItem,
		fyne.NewMenuItemSeparator(),
		mw.deleteItem,
		fyne.NewMenuItem("Clear Selection", mw.state.ClearSelection),
	)

	zoomIn := fyne.NewMenuItem("Zoom In", mw.canvas.ZoomIn)
	zoomIn.Shortcut = shortcut(fyne.KeyEqual, primary)
	zoomOut := fyne.NewMenuItem("Zoom Out", mw.canvas.ZoomOut)
	zoomOut.Shortcut = shortcut(fyne.KeyMinus, primary)
	fit := fyne.NewMenuItem("Fit to Window", mw.canvas.FitToWindow)
	fit.Shortcut = shortcut(fyne.Key0, primary)

	viewMenu := fyne.NewMenu("View",
		zoomIn,
		zoomOut,
		fit,
		fyne.NewMenuItem("Actual Size", mw.canvas.ActualSize),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Previous Slide", func() { _ = mw.state.PrevSlide() }),
		fyne.NewMenuItem("Next Slide", func() { _ = mw.state.NextSlide() }),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, helpMenu))
	mw.updateMenus()
}

// setupShortcuts binds the menu shortcuts on the window canvas. They do not
// fire while a text field has focus, so entries keep their own undo.
func (mw *MainWindow) setupShortcuts() {
	primary := fyne.KeyModifierShortcutDefault
	bind := func(s *desktop.CustomShortcut, fn func()) {
		mw.Canvas().AddShortcut(s, func(fyne.Shortcut) { fn() })
	}
	bind(shortcut(fyne.KeyO, primary), mw.onOpen)
	bind(shortcut(fyne.KeyE, primary), func() { mw.onExport(export.FormatZIP) })
	bind(shortcut(fyne.KeyE, primary|fyne.KeyModifierShift), func() { mw.onExport(export.FormatPDF) })
	bind(shortcut(fyne.KeyZ, primary), mw.onUndo)
	bind(shortcut(fyne.KeyZ, primary|fyne.KeyModifierShift), mw.onRedo)
	bind(shortcut(fyne.KeyY, primary), mw.onRedo)
	bind(shortcut(fyne.KeyEqual, primary), mw.canvas.ZoomIn)
	bind(shortcut(fyne.KeyMinus, primary), mw.canvas.ZoomOut)
	bind(shortcut(fyne.Key0, primary), mw.canvas.FitToWindow)
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventDocumentLoaded, func(data interface{}) {
		mw.SetTitle(appTitle + " - " + filepath.Base(mw.state.DocumentPath))
		mw.updateStatus()
	})
	mw.state.On(app.EventSlideChanged, func(interface{}) { mw.updateStatus() })
	mw.state.On(app.EventOverlaysChanged, func(interface{}) { mw.updateStatus() })
	mw.state.On(app.EventHistoryChanged, func(interface{}) { mw.updateMenus() })
	mw.state.On(app.EventSelectionChanged, func(interface{}) { mw.updateMenus() })
	mw.state.On(app.EventExportProgress, func(data interface{}) {
		p, ok := data.(app.ExportProgress)
		if !ok || mw.exportProgress == nil || p.Total == 0 {
			return
		}
		mw.exportProgress.SetValue(float64(p.Done) / float64(p.Total))
	})
}

// updateStatus shows the slide position and overlay count.
func (mw *MainWindow) updateStatus() {
	n := mw.state.SlideCount()
	if n == 0 {
		mw.statusBar.SetText("Open a PDF or image to start.")
		return
	}
	overlays := len(mw.state.Overlays())
	noun := "overlays"
	if overlays == 1 {
		noun = "overlay"
	}
	mw.statusBar.SetText(fmt.Sprintf("Slide %d of %d · %d %s",
		mw.state.ActiveIndex()+1, n, overlays, noun))
}

func (mw *MainWindow) updateMenus() {
	mw.undoItem.Disabled = !mw.state.CanUndo()
	mw.redoItem.Disabled = !mw.state.CanRedo()
	mw.deleteItem.Disabled = mw.state.SelectedOverlay() == ""
	if menu := mw.MainMenu(); menu != nil {
		menu.Refresh()
	}
}

func formatZoom(zoom float64) string {
	return fmt.Sprintf("%.0f%%", zoom*100)
}

// Open loads path in the background and reports failures in a dialog.
func (mw *MainWindow) Open(path string) {
	mw.lastDir = filepath.Dir(path)

	bar := widget.NewProgressBarInfinite()
	busy := dialog.NewCustomWithoutButtons("Loading "+filepath.Base(path), bar, mw.Window)
	busy.Show()

	go func() {
		err := mw.state.LoadFile(context.Background(), path)
		busy.Hide()
		switch {
		case errors.Is(err, app.ErrStale):
			// a newer load replaced this one
		case err != nil:
			dialog.ShowError(fmt.Errorf("open %s: %w", filepath.Base(path), err), mw.Window)
		default:
			mw.canvas.FitToWindow()
		}
	}()
}

// lastLocation returns the directory of the last opened file, or nil.
func (mw *MainWindow) lastLocation() fyne.ListableURI {
	if mw.lastDir == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(mw.lastDir))
	if err != nil {
		return nil
	}
	return listable
}

// Menu action handlers

func (mw *MainWindow) onOpen() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		mw.Open(reader.URI().Path())
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(openExtensions))
	if loc := mw.lastLocation(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExport(format export.Format) {
	if mw.state.SlideCount() == 0 {
		dialog.ShowInformation("Nothing to Export", "Open a PDF or image first.", mw.Window)
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if ext := "." + string(format); !strings.EqualFold(filepath.Ext(path), ext) {
			path += ext
		}
		mw.runExport(path)
	}, mw.Window)

	name := export.DefaultZIPName
	if format == export.FormatPDF {
		name = export.DefaultPDFName
	}
	fd.SetFileName(name)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{"." + string(format)}))
	if loc := mw.lastLocation(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// runExport writes every slide to path with a cancellable progress dialog.
func (mw *MainWindow) runExport(path string) {
	ctx, cancel := context.WithCancel(context.Background())

	mw.exportProgress = widget.NewProgressBar()
	progress := dialog.NewCustom("Exporting "+filepath.Base(path), "Cancel", mw.exportProgress, mw.Window)
	progress.SetOnClosed(cancel)
	progress.Show()

	go func() {
		defer cancel()
		err := mw.state.Export(ctx, path)
		progress.Hide()
		mw.exportProgress = nil
		switch {
		case errors.Is(err, context.Canceled):
			mw.statusBar.SetText("Export cancelled.")
		case err != nil:
			mw.logger.Error("export failed", "path", path, "error", err)
			dialog.ShowError(fmt.Errorf("export: %w", err), mw.Window)
		default:
			mw.statusBar.SetText("Exported " + filepath.Base(path))
		}
	}()
}

func (mw *MainWindow) onUndo() {
	mw.state.Undo()
}

func (mw *MainWindow) onRedo() {
	mw.state.Redo()
}

func (mw *MainWindow) onDeleteOverlay() {
	if id := mw.state.SelectedOverlay(); id != "" {
		if err := mw.state.DeleteOverlay(id); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s %s\n\n"+
			"Replace text on slide images and PDFs.\n"+
			"Select a region, recognize it, edit the text and export.",
			appTitle, version.String()),
		mw.Window)
}
