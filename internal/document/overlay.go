// Package document holds the slide and overlay model. Lists are replaced
// wholesale on every mutation so snapshots held elsewhere stay valid.
package document

import (
	"bytes"

	"slide-editor/pkg/geometry"

	"github.com/google/uuid"
)

// FontWeight is the weight of overlay text.
type FontWeight string

const (
	WeightNormal FontWeight = "normal"
	WeightBold   FontWeight = "bold"
)

// VAlign is the vertical placement of the text block inside an overlay.
type VAlign string

const (
	AlignTop    VAlign = "top"
	AlignMiddle VAlign = "middle"
	AlignBottom VAlign = "bottom"
)

// HAlign is the horizontal placement of each line inside an overlay.
type HAlign string

const (
	AlignLeft   HAlign = "left"
	AlignCenter HAlign = "center"
	AlignRight  HAlign = "right"
)

// Default typography for new overlays.
const (
	DefaultFontSize   = 16
	DefaultFontColor  = "#000000"
	DefaultFontFamily = "sans-serif"
	DefaultBackground = "#ffffff"
)

// Overlay is a text replacement region on a slide.
type Overlay struct {
	ID              string        `json:"id" yaml:"id"`
	Rect            geometry.Rect `json:"rect" yaml:"rect"`
	OriginalText    string        `json:"originalText" yaml:"original_text"`
	NewText         string        `json:"newText" yaml:"new_text"`
	FontSize        float64       `json:"fontSize" yaml:"font_size"`
	FontWeight      FontWeight    `json:"fontWeight" yaml:"font_weight"`
	FontColor       string        `json:"fontColor" yaml:"font_color"`
	FontFamily      string        `json:"fontFamily" yaml:"font_family"`
	BackgroundColor string        `json:"backgroundColor" yaml:"background_color"`
	VAlign          VAlign        `json:"vAlign" yaml:"v_align"`
	HAlign          HAlign        `json:"hAlign" yaml:"h_align"`

	// BackgroundImage is an encoded raster (PNG) of the reconstructed
	// background for Rect. The bytes are never modified after creation.
	BackgroundImage []byte `json:"backgroundImage,omitempty" yaml:"-"`
}

// NewID returns a fresh overlay id. Version 7 UUIDs are time ordered, so ids
// are never reused within a session.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// WithDefaults fills zero-valued typography fields.
func (o Overlay) WithDefaults() Overlay {
	if o.FontSize <= 0 {
		o.FontSize = DefaultFontSize
	}
	if o.FontWeight == "" {
		o.FontWeight = WeightNormal
	}
	if o.FontColor == "" {
		o.FontColor = DefaultFontColor
	}
	if o.FontFamily == "" {
		o.FontFamily = DefaultFontFamily
	}
	if o.BackgroundColor == "" {
		o.BackgroundColor = DefaultBackground
	}
	if o.VAlign == "" {
		o.VAlign = AlignMiddle
	}
	if o.HAlign == "" {
		o.HAlign = AlignCenter
	}
	return o
}

// Overlays is an ordered overlay list in paint order.
type Overlays []Overlay

// Clone returns a copy of the list. Background image bytes are shared since
// they are immutable.
func (l Overlays) Clone() Overlays {
	if l == nil {
		return nil
	}
	out := make(Overlays, len(l))
	copy(out, l)
	return out
}

// Index returns the position of the overlay with id, or -1.
func (l Overlays) Index(id string) int {
	for i := range l {
		if l[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the overlay with id.
func (l Overlays) Find(id string) (Overlay, bool) {
	if i := l.Index(id); i >= 0 {
		return l[i], true
	}
	return Overlay{}, false
}

// TopmostAt returns the last-painted overlay containing p.
func (l Overlays) TopmostAt(p geometry.Point2D) (Overlay, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Rect.Contains(p) {
			return l[i], true
		}
	}
	return Overlay{}, false
}

// With returns a new list where the overlay with id is replaced by fn's
// result. The receiver is untouched. ok is false if id is absent.
func (l Overlays) With(id string, fn func(o Overlay) Overlay) (Overlays, bool) {
	i := l.Index(id)
	if i < 0 {
		return l, false
	}
	out := l.Clone()
	out[i] = fn(out[i])
	out[i].ID = l[i].ID
	return out, true
}

// Without returns a new list lacking the overlay with id.
func (l Overlays) Without(id string) Overlays {
	out := make(Overlays, 0, len(l))
	for _, o := range l {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}

// Equal reports whether two lists hold the same overlays in the same order.
func (l Overlays) Equal(other Overlays) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if !l[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Equal reports field-wise equality, comparing background images by content.
func (o Overlay) Equal(other Overlay) bool {
	return o.ID == other.ID &&
		o.Rect == other.Rect &&
		o.OriginalText == other.OriginalText &&
		o.NewText == other.NewText &&
		o.FontSize == other.FontSize &&
		o.FontWeight == other.FontWeight &&
		o.FontColor == other.FontColor &&
		o.FontFamily == other.FontFamily &&
		o.BackgroundColor == other.BackgroundColor &&
		o.VAlign == other.VAlign &&
		o.HAlign == other.HAlign &&
		bytes.Equal(o.BackgroundImage, other.BackgroundImage)
}
