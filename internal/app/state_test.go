package app

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"testing"

	"slide-editor/internal/analysis"
	"slide-editor/internal/document"
	"slide-editor/internal/editor"
	slideimage "slide-editor/internal/image"
	"slide-editor/pkg/geometry"
)

type passthrough struct{}

func (passthrough) Render(base image.Image, _ document.Overlays) *image.RGBA {
	return slideimage.ToRGBA(base)
}

// gatedAnalyzer blocks each call until release is closed.
type gatedAnalyzer struct {
	started chan struct{}
	release chan struct{}
	result  analysis.Result
	err     error
}

func newGated(res analysis.Result, err error) *gatedAnalyzer {
	return &gatedAnalyzer{started: make(chan struct{}, 4), release: make(chan struct{}), result: res, err: err}
}

func (g *gatedAnalyzer) Analyze(ctx context.Context, _ image.Image, _ geometry.Rect) (analysis.Result, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return analysis.Result{}, ctx.Err()
	}
	return g.result, g.err
}

type instantAnalyzer struct{ result analysis.Result }

func (a instantAnalyzer) Analyze(context.Context, image.Image, geometry.Rect) (analysis.Result, error) {
	return a.result, nil
}

type failingLoader struct{}

func (failingLoader) LoadFile(context.Context, string) ([]document.Slide, error) {
	return nil, errors.New("decode error")
}

// gatedLoader returns slides once release is closed.
type gatedLoader struct {
	started chan struct{}
	release chan struct{}
	slides  []document.Slide
}

func (g *gatedLoader) LoadFile(ctx context.Context, _ string) ([]document.Slide, error) {
	close(g.started)
	select {
	case <-g.release:
		return g.slides, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testSlides(n int) []document.Slide {
	out := make([]document.Slide, n)
	for i := range out {
		out[i] = document.NewSlide(i, image.NewRGBA(image.Rect(0, 0, 800, 600)))
	}
	return out
}

func hello() analysis.Result {
	return analysis.Result{Recognition: analysis.Recognition{Text: "Hello"}.WithDefaults()}
}

func newTestState(t *testing.T, a Analyzer) *State {
	t.Helper()
	s := NewState(Options{Analyzer: a, Renderer: passthrough{}})
	s.LoadSlides("deck.pdf", testSlides(2))
	return s
}

func TestApplyFlow(t *testing.T) {
	s := newTestState(t, instantAnalyzer{hello()})
	var events []EventType
	for _, e := range []EventType{EventOverlaysChanged, EventHistoryChanged, EventAnalysisFinished} {
		e := e
		s.On(e, func(interface{}) { events = append(events, e) })
	}

	if _, err := s.ApplyDraft(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("apply without selection: %v", err)
	}
	sel := geometry.NewRect(100, 100, 200, 50)
	s.CommitSelection(sel)
	if _, err := s.ApplyDraft(); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("apply before analysis: %v", err)
	}

	draft, err := s.Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if draft.NewText != "Hello" || draft.Rect != sel {
		t.Fatalf("draft = %+v", draft)
	}
	if err := s.UpdateDraft(func(o document.Overlay) document.Overlay {
		o.NewText = "Bonjour"
		return o
	}); err != nil {
		t.Fatal(err)
	}

	id, err := s.ApplyDraft()
	if err != nil {
		t.Fatal(err)
	}
	overlays := s.Overlays()
	if len(overlays) != 1 || overlays[0].ID != id || overlays[0].NewText != "Bonjour" || overlays[0].Rect != sel {
		t.Fatalf("overlays = %+v", overlays)
	}
	if _, ok := s.Selection(); ok {
		t.Error("selection survived apply")
	}
	if s.SelectedOverlay() != id {
		t.Errorf("selected = %q, want %q", s.SelectedOverlay(), id)
	}
	if _, ok := s.Draft(); ok {
		t.Error("draft survived apply")
	}
	if !s.CanUndo() || s.CanRedo() {
		t.Error("history flags wrong after apply")
	}
	if len(events) == 0 || events[0] != EventAnalysisFinished {
		t.Errorf("events = %v", events)
	}

	if !s.Undo() || len(s.Overlays()) != 0 {
		t.Fatal("undo did not remove the overlay")
	}
	if s.SelectedOverlay() != "" {
		t.Error("selection points at an undone overlay")
	}
	if !s.Redo() || len(s.Overlays()) != 1 || s.Overlays()[0].ID != id {
		t.Fatal("redo did not restore the overlay")
	}
}

func TestAnalyzeMutualExclusion(t *testing.T) {
	g := newGated(hello(), nil)
	s := newTestState(t, g)
	s.CommitSelection(geometry.NewRect(10, 10, 100, 40))

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.Analyze(context.Background())
	}()
	<-g.started

	if _, err := s.Analyze(context.Background()); !errors.Is(err, ErrAnalysisPending) {
		t.Fatalf("second analyze: %v", err)
	}
	close(g.release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first analyze: %v", firstErr)
	}
	if _, ok := s.Draft(); !ok {
		t.Fatal("no draft after analysis")
	}
	// the lock is released once the call returns
	if _, err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("re-analyze: %v", err)
	}
}

func TestAnalyzeDiscardsStaleResult(t *testing.T) {
	g := newGated(hello(), nil)
	s := newTestState(t, g)
	s.CommitSelection(geometry.NewRect(10, 10, 100, 40))

	done := make(chan error)
	go func() {
		_, err := s.Analyze(context.Background())
		done <- err
	}()
	<-g.started
	if err := s.SetActiveSlide(1); err != nil {
		t.Fatal(err)
	}
	close(g.release)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("err = %v, want ErrStale", err)
	}
	if _, ok := s.Draft(); ok {
		t.Fatal("stale draft applied")
	}
}

func TestAnalyzeFailureKeepsSelection(t *testing.T) {
	g := newGated(analysis.Result{}, analysis.ErrRecognition)
	close(g.release)
	s := newTestState(t, g)
	sel := geometry.NewRect(10, 10, 100, 40)
	s.CommitSelection(sel)

	var failed bool
	s.On(EventAnalysisFailed, func(interface{}) { failed = true })
	if _, err := s.Analyze(context.Background()); !errors.Is(err, analysis.ErrRecognition) {
		t.Fatalf("err = %v", err)
	}
	if got, ok := s.Selection(); !ok || got != sel {
		t.Fatal("selection lost after failed analysis")
	}
	if !failed || len(s.Overlays()) != 0 {
		t.Fatal("failure not reported or overlay committed")
	}
}

func addOverlay(t *testing.T, s *State, r geometry.Rect) string {
	t.Helper()
	s.CommitSelection(r)
	id, err := s.AddOverlay(document.Overlay{NewText: "x"})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestUpdateDeleteClear(t *testing.T) {
	s := newTestState(t, nil)
	a := addOverlay(t, s, geometry.NewRect(0, 0, 50, 50))
	b := addOverlay(t, s, geometry.NewRect(100, 0, 50, 50))

	if err := s.UpdateOverlay(a, func(o document.Overlay) document.Overlay {
		o.FontWeight = document.WeightBold
		o.ID = "hijacked"
		return o
	}); err != nil {
		t.Fatal(err)
	}
	if o, ok := s.Overlays().Find(a); !ok || o.FontWeight != document.WeightBold {
		t.Fatalf("update lost: %+v", s.Overlays())
	}

	depth := s.history.Depth(0)
	if err := s.UpdateOverlay(a, func(o document.Overlay) document.Overlay { return o }); err != nil {
		t.Fatal(err)
	}
	if s.history.Depth(0) != depth {
		t.Error("no-op edit recorded in history")
	}

	if err := s.DeleteOverlay("missing"); !errors.Is(err, ErrNoOverlay) {
		t.Fatalf("delete missing: %v", err)
	}
	if err := s.DeleteOverlay(b); err != nil {
		t.Fatal(err)
	}
	if len(s.Overlays()) != 1 || s.SelectedOverlay() != "" {
		t.Fatalf("after delete: %+v selected %q", s.Overlays(), s.SelectedOverlay())
	}
	if err := s.ClearOverlays(); err != nil {
		t.Fatal(err)
	}
	if len(s.Overlays()) != 0 {
		t.Fatal("clear left overlays")
	}
	s.Undo()
	if len(s.Overlays()) != 1 {
		t.Fatal("undo of clear-all did not restore")
	}
}

func TestHistoryIsPerSlide(t *testing.T) {
	s := newTestState(t, nil)
	addOverlay(t, s, geometry.NewRect(0, 0, 50, 50))
	if err := s.NextSlide(); err != nil {
		t.Fatal(err)
	}
	if s.CanUndo() {
		t.Fatal("slide 2 sees slide 1 history")
	}
	if s.Undo() {
		t.Fatal("undo on empty history reported a change")
	}
	if err := s.NextSlide(); err == nil {
		t.Fatal("moved past the last slide")
	}
	if err := s.PrevSlide(); err != nil || !s.CanUndo() {
		t.Fatal("slide 1 history lost")
	}
}

func TestLoadResetsHistory(t *testing.T) {
	s := newTestState(t, nil)
	addOverlay(t, s, geometry.NewRect(0, 0, 50, 50))
	s.LoadSlides("other.png", testSlides(1))
	if s.CanUndo() || s.CanRedo() || len(s.Overlays()) != 0 || s.SlideCount() != 1 {
		t.Fatal("new document kept old state")
	}
}

func TestLoadFailureKeepsDocument(t *testing.T) {
	s := NewState(Options{Loader: failingLoader{}, Renderer: passthrough{}})
	s.LoadSlides("deck.pdf", testSlides(3))
	if err := s.LoadFile(context.Background(), "broken.pdf"); err == nil {
		t.Fatal("expected error")
	}
	if s.SlideCount() != 3 || s.DocumentPath != "deck.pdf" {
		t.Fatal("failed load changed the document")
	}
}

func TestLoadSurvivesSlideSwitch(t *testing.T) {
	loader := &gatedLoader{started: make(chan struct{}), release: make(chan struct{}), slides: testSlides(5)}
	s := NewState(Options{Loader: loader, Renderer: passthrough{}})
	s.LoadSlides("old.pdf", testSlides(2))

	done := make(chan error, 1)
	go func() { done <- s.LoadFile(context.Background(), "new.pdf") }()
	<-loader.started
	if err := s.NextSlide(); err != nil {
		t.Fatal(err)
	}
	close(loader.release)

	if err := <-done; err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s.DocumentPath != "new.pdf" || s.SlideCount() != 5 || s.ActiveIndex() != 0 {
		t.Fatalf("path=%s slides=%d active=%d", s.DocumentPath, s.SlideCount(), s.ActiveIndex())
	}
}

func TestNewerLoadSupersedesPending(t *testing.T) {
	loader := &gatedLoader{started: make(chan struct{}), release: make(chan struct{}), slides: testSlides(5)}
	s := NewState(Options{Loader: loader, Renderer: passthrough{}})

	done := make(chan error, 1)
	go func() { done <- s.LoadFile(context.Background(), "slow.pdf") }()
	<-loader.started
	s.LoadSlides("fast.png", testSlides(1))
	close(loader.release)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("err = %v, want ErrStale", err)
	}
	if s.DocumentPath != "fast.png" || s.SlideCount() != 1 {
		t.Fatalf("path=%s slides=%d", s.DocumentPath, s.SlideCount())
	}
}

func TestRecommitSameSelectionKeepsDraft(t *testing.T) {
	s := newTestState(t, instantAnalyzer{hello()})
	sel := geometry.NewRect(100, 100, 200, 50)
	s.CommitSelection(sel)
	if _, err := s.Analyze(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.CommitSelection(sel)
	if _, ok := s.Draft(); !ok {
		t.Fatal("draft dropped by an unchanged selection")
	}
	s.CommitSelection(geometry.NewRect(100, 100, 210, 50))
	if _, ok := s.Draft(); ok {
		t.Fatal("draft kept for a different selection")
	}
}

func TestConcurrentEditsKeepEveryChange(t *testing.T) {
	s := newTestState(t, nil)
	id := addOverlay(t, s, geometry.NewRect(0, 0, 50, 50))
	const steps = 500

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < steps; i++ {
			if !s.TranslateOverlay(id, 1, 0, i == 0) {
				t.Error("overlay vanished during drag")
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < steps; i++ {
			text := fmt.Sprintf("edit %d", i)
			if err := s.UpdateOverlay(id, func(o document.Overlay) document.Overlay {
				o.NewText = text
				return o
			}); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()

	o, ok := s.Overlays().Find(id)
	if !ok {
		t.Fatal("overlay lost")
	}
	if o.Rect.X != steps {
		t.Errorf("x = %v, want %d", o.Rect.X, steps)
	}
	if want := fmt.Sprintf("edit %d", steps-1); o.NewText != want {
		t.Errorf("text = %q, want %q", o.NewText, want)
	}
}

func TestSelectOverlayClearsSelection(t *testing.T) {
	s := newTestState(t, nil)
	id := addOverlay(t, s, geometry.NewRect(0, 0, 50, 50))
	s.CommitSelection(geometry.NewRect(200, 200, 50, 50))
	if s.SelectedOverlay() != "" {
		t.Fatal("committing a selection kept the overlay selected")
	}
	s.SelectOverlay(id)
	if _, ok := s.Selection(); ok {
		t.Fatal("selecting an overlay kept the selection")
	}
}

func TestMachineDragRecordsOneEntry(t *testing.T) {
	s := newTestState(t, nil)
	id := addOverlay(t, s, geometry.NewRect(100, 100, 50, 50))
	before := s.history.Depth(0)
	historyEvents := 0
	s.On(EventHistoryChanged, func(interface{}) { historyEvents++ })

	vp := geometry.NewViewport(geometry.DefaultMinZoom, geometry.DefaultMaxZoom)
	m := editor.New(vp, s, editor.DefaultSettings())
	m.PointerDown(geometry.Point2D{X: 120, Y: 120}, editor.ButtonPrimary)
	for i := 1; i <= 5; i++ {
		m.PointerMove(geometry.Point2D{X: 120 + float64(i)*10, Y: 120})
	}
	m.PointerUp(geometry.Point2D{X: 170, Y: 120})

	if got := s.history.Depth(0); got != before+1 {
		t.Fatalf("history depth %d, want %d", got, before+1)
	}
	if historyEvents != 1 || !s.CanUndo() {
		t.Fatalf("history events = %d, CanUndo = %v", historyEvents, s.CanUndo())
	}
	o, _ := s.Overlays().Find(id)
	if o.Rect.X != 150 {
		t.Fatalf("overlay x = %v, want 150", o.Rect.X)
	}
	s.Undo()
	o, _ = s.Overlays().Find(id)
	if o.Rect.X != 100 {
		t.Fatalf("undo restored x = %v, want 100", o.Rect.X)
	}
}

func TestExportZIP(t *testing.T) {
	s := newTestState(t, nil)
	var progress []ExportProgress
	s.On(EventExportProgress, func(d interface{}) { progress = append(progress, d.(ExportProgress)) })

	path := filepath.Join(t.TempDir(), "edited_slides.zip")
	if err := s.Export(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 2 || zr.File[1].Name != "slide_02.png" {
		t.Fatalf("entries = %d", len(zr.File))
	}
	if len(progress) != 2 || progress[1] != (ExportProgress{Done: 2, Total: 2}) {
		t.Fatalf("progress = %v", progress)
	}
}
