// Package app holds the editor session: the loaded document, the active
// slide, selection, history and the collaborators that feed them.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"slide-editor/internal/analysis"
	"slide-editor/internal/document"
	"slide-editor/internal/editor"
	"slide-editor/internal/export"
	"slide-editor/internal/history"
	"slide-editor/pkg/geometry"
)

var (
	ErrNoDocument      = errors.New("no document loaded")
	ErrNoSelection     = errors.New("no selection")
	ErrNoDraft         = errors.New("selection has not been analyzed")
	ErrNoOverlay       = errors.New("overlay not found")
	ErrNoAnalyzer      = errors.New("text recognition is not available")
	ErrAnalysisPending = errors.New("analysis already running for this selection")
	// ErrStale is returned when a slow operation finishes after the state
	// it was started for has changed: a newer load for LoadFile, another
	// slide or selection for Analyze.
	ErrStale = errors.New("result discarded, editor state changed")

	errUnchanged = errors.New("overlays unchanged")
)

// Loader turns a file into slides.
type Loader interface {
	LoadFile(ctx context.Context, path string) ([]document.Slide, error)
}

// Analyzer runs recognition and reconstruction for a selection.
type Analyzer interface {
	Analyze(ctx context.Context, slide image.Image, sel geometry.Rect) (analysis.Result, error)
}

// EventType identifies different application events.
type EventType int

const (
	EventDocumentLoaded EventType = iota
	EventSlideChanged
	EventOverlaysChanged
	EventSelectionChanged
	EventHistoryChanged
	EventAnalysisStarted
	EventAnalysisFinished
	EventAnalysisFailed
	EventExportProgress
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// ExportProgress is the payload of EventExportProgress.
type ExportProgress struct {
	Done, Total int
}

// Options wire a State to its collaborators. Only Renderer is required.
type Options struct {
	Loader       Loader
	Analyzer     Analyzer
	Renderer     export.Renderer
	HistoryDepth int
	JPEGQuality  int
	Logger       *slog.Logger
}

type pendingKey struct {
	generation uint64
	slide      int
	rect       geometry.Rect
}

// State holds the editor session. Mutations replace whole overlay lists, so
// values handed out by readers stay valid.
type State struct {
	// edit serializes overlay list changes so the read, history push and
	// replace of one edit never interleave with another. It is taken before
	// mu and never while mu is held.
	edit sync.Mutex
	mu   sync.RWMutex

	opts    Options
	doc     *document.Document
	history *history.Engine
	logger  *slog.Logger

	// Path of the loaded file, "" when nothing is loaded.
	DocumentPath string

	active     int
	selection  *geometry.Rect
	selectedID string
	draft      *document.Overlay

	// generation changes whenever the document or active slide changes.
	generation uint64
	// loadSeq changes only when a document load starts.
	loadSeq uint64
	pending    map[pendingKey]bool

	listeners map[EventType][]EventListener
}

var _ editor.Host = (*State)(nil)

// NewState creates an empty session.
func NewState(opts Options) *State {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &State{
		opts:      opts,
		doc:       document.New(),
		history:   history.New(opts.HistoryDepth),
		logger:    opts.Logger,
		pending:   make(map[pendingKey]bool),
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// LoadFile ingests path and replaces the document. On failure the current
// document is kept.
func (s *State) LoadFile(ctx context.Context, path string) error {
	if s.opts.Loader == nil {
		return errors.New("no document loader configured")
	}
	seq := s.nextLoad()

	slides, err := s.opts.Loader.LoadFile(ctx, path)
	if err != nil {
		s.logger.Warn("load failed", "path", path, "error", err)
		return err
	}
	if !s.install(path, slides, seq) {
		s.logger.Info("discarding stale load", "path", path)
		return ErrStale
	}
	return nil
}

// LoadSlides replaces the document with slides and clears all history. A
// LoadFile still running is superseded.
func (s *State) LoadSlides(path string, slides []document.Slide) {
	s.install(path, slides, s.nextLoad())
}

func (s *State) nextLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadSeq++
	return s.loadSeq
}

// install replaces the document unless a later load has started since seq
// was issued. Slide switches do not make a load stale.
func (s *State) install(path string, slides []document.Slide, seq uint64) bool {
	s.edit.Lock()
	s.mu.Lock()
	if seq != s.loadSeq {
		s.mu.Unlock()
		s.edit.Unlock()
		return false
	}
	s.doc.ReplaceAll(slides)
	s.history.ResetAll()
	s.DocumentPath = path
	s.active = 0
	s.selection = nil
	s.selectedID = ""
	s.draft = nil
	s.generation++
	s.pending = make(map[pendingKey]bool)
	s.mu.Unlock()
	s.edit.Unlock()

	s.logger.Info("document loaded", "path", path, "slides", len(slides))
	s.Emit(EventDocumentLoaded, len(slides))
	s.Emit(EventSlideChanged, 0)
	s.Emit(EventHistoryChanged, nil)
	return true
}

// SlideCount returns the number of loaded slides.
func (s *State) SlideCount() int { return s.doc.Len() }

// Slides returns every slide with its current overlays, in order.
func (s *State) Slides() []document.Slide { return s.doc.Slides() }

// ActiveIndex returns the index of the slide being edited.
func (s *State) ActiveIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ActiveSlide returns the slide being edited.
func (s *State) ActiveSlide() (document.Slide, error) {
	if s.doc.Len() == 0 {
		return document.Slide{}, ErrNoDocument
	}
	return s.doc.Slide(s.ActiveIndex())
}

// SetActiveSlide switches slides. The selection, overlay selection and any
// pending analysis are dropped.
func (s *State) SetActiveSlide(index int) error {
	if _, err := s.doc.Slide(index); err != nil {
		return err
	}
	s.mu.Lock()
	if index == s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = index
	s.selection = nil
	s.selectedID = ""
	s.draft = nil
	s.generation++
	s.mu.Unlock()

	s.Emit(EventSlideChanged, index)
	s.Emit(EventSelectionChanged, nil)
	s.Emit(EventHistoryChanged, nil)
	return nil
}

// NextSlide moves to the following slide if there is one.
func (s *State) NextSlide() error { return s.SetActiveSlide(s.ActiveIndex() + 1) }

// PrevSlide moves to the preceding slide if there is one.
func (s *State) PrevSlide() error { return s.SetActiveSlide(s.ActiveIndex() - 1) }

// Selection implements editor.Host.
func (s *State) Selection() (geometry.Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return geometry.Rect{}, false
	}
	return *s.selection, true
}

// CommitSelection implements editor.Host. Any earlier analysis result is
// dropped because it described a different region; committing the current
// selection again keeps it.
func (s *State) CommitSelection(r geometry.Rect) {
	s.mu.Lock()
	if s.selection != nil && *s.selection == r && s.selectedID == "" {
		s.mu.Unlock()
		return
	}
	s.selection = &r
	s.selectedID = ""
	s.draft = nil
	s.mu.Unlock()
	s.Emit(EventSelectionChanged, r)
}

// ClearSelection implements editor.Host.
func (s *State) ClearSelection() {
	s.mu.Lock()
	had := s.selection != nil
	s.selection = nil
	s.draft = nil
	s.mu.Unlock()
	if had {
		s.Emit(EventSelectionChanged, nil)
	}
}

// Overlays implements editor.Host for the active slide.
func (s *State) Overlays() document.Overlays {
	l, err := s.doc.Overlays(s.ActiveIndex())
	if err != nil {
		return nil
	}
	return l
}

// SelectedOverlay implements editor.Host.
func (s *State) SelectedOverlay() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// SelectOverlay implements editor.Host.
func (s *State) SelectOverlay(id string) {
	s.mu.Lock()
	changed := s.selectedID != id || (id != "" && s.selection != nil)
	s.selectedID = id
	if id != "" {
		s.selection = nil
		s.draft = nil
	}
	s.mu.Unlock()
	if changed {
		s.Emit(EventSelectionChanged, id)
	}
}

// TranslateOverlay implements editor.Host. Only steps with record set are
// recorded in history.
func (s *State) TranslateOverlay(id string, dx, dy float64, record bool) bool {
	idx, err := s.commit(record, func(_ int, current document.Overlays) (document.Overlays, error) {
		next, ok := current.With(id, func(o document.Overlay) document.Overlay {
			o.Rect = o.Rect.Translate(dx, dy)
			return o
		})
		if !ok {
			return nil, ErrNoOverlay
		}
		return next, nil
	})
	if err != nil {
		return false
	}
	s.Emit(EventOverlaysChanged, idx)
	if record {
		s.Emit(EventHistoryChanged, nil)
	}
	return true
}

// commit replaces the active slide's overlays with the result of fn under
// the edit lock, pushing the old list to history first when record is set.
// fn returns errUnchanged to leave the list as it is.
func (s *State) commit(record bool, fn func(idx int, current document.Overlays) (document.Overlays, error)) (int, error) {
	s.edit.Lock()
	defer s.edit.Unlock()

	idx := s.ActiveIndex()
	current, err := s.doc.Overlays(idx)
	if err != nil {
		return idx, err
	}
	next, err := fn(idx, current)
	if err != nil {
		return idx, err
	}
	if record {
		s.history.Push(idx, current)
	}
	return idx, s.doc.ReplaceOverlays(idx, next)
}

// Analyze recognizes the current selection. It blocks until the analyzer
// returns and is meant to run off the UI goroutine. A second call for the
// same selection while one is running fails with ErrAnalysisPending.
func (s *State) Analyze(ctx context.Context) (document.Overlay, error) {
	if s.opts.Analyzer == nil {
		return document.Overlay{}, ErrNoAnalyzer
	}
	s.mu.Lock()
	if s.selection == nil {
		s.mu.Unlock()
		return document.Overlay{}, ErrNoSelection
	}
	key := pendingKey{generation: s.generation, slide: s.active, rect: *s.selection}
	if s.pending[key] {
		s.mu.Unlock()
		return document.Overlay{}, ErrAnalysisPending
	}
	s.pending[key] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
	}()

	slide, err := s.doc.Slide(key.slide)
	if err != nil {
		return document.Overlay{}, err
	}
	s.Emit(EventAnalysisStarted, key.rect)
	res, err := s.opts.Analyzer.Analyze(ctx, slide.Image, key.rect)
	if err != nil {
		s.logger.Warn("analysis failed", "slide", key.slide, "error", err)
		s.Emit(EventAnalysisFailed, err)
		return document.Overlay{}, err
	}

	draft := res.Draft(key.rect)
	s.mu.Lock()
	current := s.selection != nil && *s.selection == key.rect
	if key.generation != s.generation || !current {
		s.mu.Unlock()
		s.logger.Info("discarding stale analysis", "slide", key.slide)
		s.Emit(EventAnalysisFailed, ErrStale)
		return document.Overlay{}, ErrStale
	}
	s.draft = &draft
	s.mu.Unlock()

	s.logger.Info("analysis finished", "slide", key.slide,
		"chars", len([]rune(draft.NewText)), "background", res.Recognition.BackgroundType,
		"reconstructed", res.Background != nil)
	s.Emit(EventAnalysisFinished, draft)
	return draft, nil
}

// Draft returns the analysis result for the current selection.
func (s *State) Draft() (document.Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draft == nil {
		return document.Overlay{}, false
	}
	return *s.draft, true
}

// UpdateDraft edits the pending overlay before it is applied. Draft edits
// are not recorded in history.
func (s *State) UpdateDraft(fn func(o document.Overlay) document.Overlay) error {
	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return ErrNoDraft
	}
	d := fn(*s.draft)
	s.draft = &d
	s.mu.Unlock()
	return nil
}

// ApplyDraft turns the analyzed selection into an overlay and selects it.
func (s *State) ApplyDraft() (string, error) {
	s.mu.RLock()
	draft, sel := s.draft, s.selection
	s.mu.RUnlock()
	if sel == nil {
		return "", ErrNoSelection
	}
	if draft == nil {
		return "", ErrNoDraft
	}
	return s.AddOverlay(*draft)
}

// AddOverlay appends o to the active slide at the current selection with a
// fresh id, then selects it.
func (s *State) AddOverlay(o document.Overlay) (string, error) {
	s.mu.RLock()
	sel := s.selection
	s.mu.RUnlock()
	if sel == nil {
		return "", ErrNoSelection
	}

	o = o.WithDefaults()
	o.ID = document.NewID()
	o.Rect = sel.Normalize()

	s.edit.Lock()
	idx := s.ActiveIndex()
	current, err := s.doc.Overlays(idx)
	if err == nil {
		s.history.Push(idx, current)
		err = s.doc.AppendOverlay(idx, o)
	}
	s.edit.Unlock()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.selection = nil
	s.draft = nil
	s.selectedID = o.ID
	s.mu.Unlock()

	s.logger.Debug("overlay applied", "slide", idx, "id", o.ID)
	s.Emit(EventOverlaysChanged, idx)
	s.Emit(EventSelectionChanged, o.ID)
	s.Emit(EventHistoryChanged, nil)
	return o.ID, nil
}

// UpdateOverlay edits one overlay of the active slide and records history.
// The id is preserved whatever fn returns.
func (s *State) UpdateOverlay(id string, fn func(o document.Overlay) document.Overlay) error {
	idx, err := s.commit(true, func(_ int, current document.Overlays) (document.Overlays, error) {
		next, ok := current.With(id, fn)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoOverlay, id)
		}
		if next.Equal(current) {
			return nil, errUnchanged
		}
		return next, nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	s.Emit(EventOverlaysChanged, idx)
	s.Emit(EventHistoryChanged, nil)
	return nil
}

// DeleteOverlay removes an overlay from the active slide.
func (s *State) DeleteOverlay(id string) error {
	idx, err := s.commit(true, func(_ int, current document.Overlays) (document.Overlays, error) {
		if current.Index(id) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoOverlay, id)
		}
		return current.Without(id), nil
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.mu.Unlock()

	s.Emit(EventOverlaysChanged, idx)
	s.Emit(EventSelectionChanged, nil)
	s.Emit(EventHistoryChanged, nil)
	return nil
}

// ClearOverlays removes every overlay from the active slide.
func (s *State) ClearOverlays() error {
	idx, err := s.commit(true, func(_ int, current document.Overlays) (document.Overlays, error) {
		if len(current) == 0 {
			return nil, errUnchanged
		}
		return nil, nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.selectedID = ""
	s.mu.Unlock()

	s.Emit(EventOverlaysChanged, idx)
	s.Emit(EventSelectionChanged, nil)
	s.Emit(EventHistoryChanged, nil)
	return nil
}

// Undo restores the active slide's previous overlay list.
func (s *State) Undo() bool {
	return s.step(s.history.Undo)
}

// Redo reapplies the last undone change.
func (s *State) Redo() bool {
	return s.step(s.history.Redo)
}

func (s *State) step(fn func(int, document.Overlays) (document.Overlays, bool)) bool {
	var next document.Overlays
	idx, err := s.commit(false, func(idx int, current document.Overlays) (document.Overlays, error) {
		var ok bool
		if next, ok = fn(idx, current); !ok {
			return nil, errUnchanged
		}
		return next, nil
	})
	if err != nil {
		return false
	}
	s.mu.Lock()
	if s.selectedID != "" && next.Index(s.selectedID) < 0 {
		s.selectedID = ""
	}
	s.mu.Unlock()

	s.Emit(EventOverlaysChanged, idx)
	s.Emit(EventSelectionChanged, nil)
	s.Emit(EventHistoryChanged, nil)
	return true
}

// CanUndo reports whether the active slide has history to undo.
func (s *State) CanUndo() bool { return s.history.CanUndo(s.ActiveIndex()) }

// CanRedo reports whether the active slide has undone changes to redo.
func (s *State) CanRedo() bool { return s.history.CanRedo(s.ActiveIndex()) }

// Export renders every slide and writes them to path as a ZIP or PDF,
// chosen by the path's extension.
func (s *State) Export(ctx context.Context, path string) error {
	slides := s.doc.Slides()
	if len(slides) == 0 {
		return ErrNoDocument
	}
	format, err := export.ParseFormat(path)
	if err != nil {
		return err
	}
	err = export.WriteFile(ctx, path, slides, s.opts.Renderer, export.Options{
		Format:      format,
		JPEGQuality: s.opts.JPEGQuality,
		Logger:      s.logger,
		Progress: func(done, total int) {
			s.Emit(EventExportProgress, ExportProgress{Done: done, Total: total})
		},
	})
	if err != nil {
		s.logger.Error("export failed", "path", path, "error", err)
		return err
	}
	s.logger.Info("exported", "path", path, "format", format, "slides", len(slides))
	return nil
}
