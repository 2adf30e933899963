// Package history keeps per-slide undo and redo stacks of overlay snapshots.
package history

import (
	"sync"

	"slide-editor/internal/document"
)

// DefaultDepth is the number of undo steps kept per slide.
const DefaultDepth = 50

type stacks struct {
	past   []document.Overlays
	future []document.Overlays
}

// Engine stores deep snapshots of overlay lists keyed by slide index.
type Engine struct {
	mu     sync.Mutex
	depth  int
	slides map[int]*stacks
}

// New creates an engine keeping at most depth undo steps per slide.
func New(depth int) *Engine {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Engine{depth: depth, slides: make(map[int]*stacks)}
}

func (e *Engine) stacksFor(slide int) *stacks {
	s, ok := e.slides[slide]
	if !ok {
		s = &stacks{}
		e.slides[slide] = s
	}
	return s
}

// Push records current as the state to return to, before a mutation is
// applied. It clears the redo stack.
func (e *Engine) Push(slide int, current document.Overlays) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.stacksFor(slide)
	s.past = append(s.past, snapshot(current))
	if len(s.past) > e.depth {
		// drop oldest
		s.past = append(s.past[:0:0], s.past[len(s.past)-e.depth:]...)
	}
	s.future = nil
}

// Undo returns the previous state of a slide, saving current for Redo.
// ok is false when there is nothing to undo.
func (e *Engine) Undo(slide int, current document.Overlays) (document.Overlays, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.slides[slide]
	if !found || len(s.past) == 0 {
		return nil, false
	}
	n := len(s.past)
	prev := s.past[n-1]
	s.past = s.past[:n-1]
	s.future = append(s.future, snapshot(current))
	return prev.Clone(), true
}

// Redo reapplies the state most recently undone, saving current for Undo.
func (e *Engine) Redo(slide int, current document.Overlays) (document.Overlays, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.slides[slide]
	if !found || len(s.future) == 0 {
		return nil, false
	}
	n := len(s.future)
	next := s.future[n-1]
	s.future = s.future[:n-1]
	s.past = append(s.past, snapshot(current))
	if len(s.past) > e.depth {
		s.past = append(s.past[:0:0], s.past[len(s.past)-e.depth:]...)
	}
	return next.Clone(), true
}

// ResetAll forgets every slide's history.
func (e *Engine) ResetAll() {
	e.mu.Lock()
	e.slides = make(map[int]*stacks)
	e.mu.Unlock()
}

// CanUndo reports whether Undo would return a state.
func (e *Engine) CanUndo(slide int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slides[slide]
	return ok && len(s.past) > 0
}

// CanRedo reports whether Redo would return a state.
func (e *Engine) CanRedo(slide int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slides[slide]
	return ok && len(s.future) > 0
}

// Depth returns the number of undo steps held for a slide.
func (e *Engine) Depth(slide int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.slides[slide]; ok {
		return len(s.past)
	}
	return 0
}

// snapshot copies the list so later edits by the caller cannot reach it.
// A nil list is stored as empty so that undoing to "no overlays" is distinct
// from "nothing to undo".
func snapshot(l document.Overlays) document.Overlays {
	out := make(document.Overlays, len(l))
	copy(out, l)
	return out
}
