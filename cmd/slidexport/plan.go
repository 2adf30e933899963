package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"slide-editor/internal/analysis"
	"slide-editor/internal/document"
	"slide-editor/pkg/geometry"

	"gopkg.in/yaml.v3"
)

// Plan lists the overlays to place on each slide.
//
//	slides:
//	  - slide: 1
//	    overlays:
//	      - rect: {x: 120, y: 80, width: 400, height: 48}
//	        new_text: "Quarterly results"
//	        font_size: 32
//	      - rect: {x: 120, y: 200, width: 300, height: 40}
//	        analyze: true
type Plan struct {
	Slides []SlidePlan `yaml:"slides"`
}

// SlidePlan holds the overlays of one slide. Slide numbers start at 1.
type SlidePlan struct {
	Slide    int           `yaml:"slide"`
	Overlays []OverlaySpec `yaml:"overlays"`
}

// OverlaySpec is an overlay plus a request to recognize its region first.
// Fields set in the file win over recognized values.
type OverlaySpec struct {
	document.Overlay `yaml:",inline"`
	Analyze          bool `yaml:"analyze"`
}

// analyzer is satisfied by analysis.Service.
type analyzer interface {
	Analyze(ctx context.Context, slide image.Image, sel geometry.Rect) (analysis.Result, error)
}

var errNeedsAnalyzer = errors.New("plan requests analysis but recognition is not available")

// LoadPlan reads a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and checks a plan.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	for _, sp := range p.Slides {
		if sp.Slide < 1 {
			return nil, fmt.Errorf("plan: slide numbers start at 1, got %d", sp.Slide)
		}
		for i, o := range sp.Overlays {
			if r := o.Rect.Normalize(); r.Width <= 0 || r.Height <= 0 {
				return nil, fmt.Errorf("plan: slide %d overlay %d has an empty rect", sp.Slide, i+1)
			}
		}
	}
	return &p, nil
}

// NeedsAnalysis reports whether any overlay asks for recognition.
func (p *Plan) NeedsAnalysis() bool {
	for _, sp := range p.Slides {
		for _, o := range sp.Overlays {
			if o.Analyze {
				return true
			}
		}
	}
	return false
}

// Apply returns slides with the plan's overlays appended in file order. The
// input slides are not modified.
func (p *Plan) Apply(ctx context.Context, slides []document.Slide, an analyzer) ([]document.Slide, error) {
	out := make([]document.Slide, len(slides))
	copy(out, slides)

	for _, sp := range p.Slides {
		idx := sp.Slide - 1
		if idx >= len(out) {
			return nil, fmt.Errorf("plan: slide %d: %w", sp.Slide, document.ErrSlideOutOfRange)
		}
		overlays := out[idx].Overlays.Clone()
		for _, spec := range sp.Overlays {
			o, err := resolve(ctx, out[idx], spec, an)
			if err != nil {
				return nil, fmt.Errorf("slide %d: %w", sp.Slide, err)
			}
			overlays = append(overlays, o)
		}
		out[idx].Overlays = overlays
	}
	return out, nil
}

func resolve(ctx context.Context, slide document.Slide, spec OverlaySpec, an analyzer) (document.Overlay, error) {
	o := spec.Overlay
	rect := o.Rect.Normalize()
	if spec.Analyze {
		if an == nil {
			return document.Overlay{}, errNeedsAnalyzer
		}
		res, err := an.Analyze(ctx, slide.Image, rect)
		if err != nil {
			return document.Overlay{}, err
		}
		o = merge(o, res.Draft(rect))
	}
	o = o.WithDefaults()
	o.ID = document.NewID()
	o.Rect = rect
	return o, nil
}

// merge fills the zero fields of o from the recognized draft.
func merge(o, draft document.Overlay) document.Overlay {
	if o.OriginalText == "" {
		o.OriginalText = draft.OriginalText
	}
	if o.NewText == "" {
		o.NewText = draft.NewText
	}
	if o.FontSize <= 0 {
		o.FontSize = draft.FontSize
	}
	if o.FontWeight == "" {
		o.FontWeight = draft.FontWeight
	}
	if o.FontColor == "" {
		o.FontColor = draft.FontColor
	}
	if o.FontFamily == "" {
		o.FontFamily = draft.FontFamily
	}
	if o.BackgroundColor == "" {
		o.BackgroundColor = draft.BackgroundColor
	}
	if o.VAlign == "" {
		o.VAlign = draft.VAlign
	}
	if o.HAlign == "" {
		o.HAlign = draft.HAlign
	}
	if o.BackgroundImage == nil {
		o.BackgroundImage = draft.BackgroundImage
	}
	return o
}
