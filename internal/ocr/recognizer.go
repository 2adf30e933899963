// Package ocr turns text line detections into the typography estimates the
// editor needs: text, size, weight, colors, background type and language.
package ocr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"
	"unicode"

	"slide-editor/internal/analysis"
	"slide-editor/internal/document"
	slideimage "slide-editor/internal/image"
	"slide-editor/pkg/colorutil"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// TextLine is one detected line in region coordinates.
type TextLine struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Reader detects text lines in an image.
type Reader interface {
	ReadLines(ctx context.Context, img image.Image) ([]TextLine, error)
}

// ErrNoReader is returned by a Recognizer without a Reader.
var ErrNoReader = errors.New("ocr: no text reader configured")

// Recognizer implements analysis.Recognizer on top of a Reader.
type Recognizer struct {
	reader        Reader
	minConfidence float64
	logger        *slog.Logger
}

var _ analysis.Recognizer = (*Recognizer)(nil)

// NewRecognizer wraps reader. Lines below minConfidence (0-100) are dropped.
func NewRecognizer(reader Reader, minConfidence float64, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{reader: reader, minConfidence: minConfidence, logger: logger}
}

// Recognize implements analysis.Recognizer.
func (r *Recognizer) Recognize(ctx context.Context, region image.Image) (analysis.Recognition, error) {
	if r.reader == nil {
		return analysis.Recognition{}, ErrNoReader
	}
	rgba := slideimage.ToRGBA(region)

	lines, err := r.reader.ReadLines(ctx, rgba)
	if err != nil {
		return analysis.Recognition{}, err
	}

	var texts []string
	var boxes []image.Rectangle
	var heights []float64
	for _, l := range lines {
		t := CleanText(l.Text)
		if t == "" || l.Confidence < r.minConfidence {
			continue
		}
		texts = append(texts, t)
		boxes = append(boxes, l.Box)
		heights = append(heights, float64(l.Box.Dy()))
	}

	bg := CalculateBackgroundColor(rgba)
	rec := analysis.Recognition{
		Text:            strings.Join(texts, "\n"),
		FontSize:        EstimateFontSize(heights),
		FontWeight:      document.WeightNormal,
		FontFamily:      document.DefaultFontFamily,
		BackgroundColor: colorutil.Hex(bg),
		BackgroundType:  ClassifyBackground(rgba),
	}
	if ink, ratio, ok := inkStats(rgba, boxes, bg); ok {
		rec.FontColor = colorutil.Hex(ink)
		if ratio >= boldInkRatio {
			rec.FontWeight = document.WeightBold
		}
	}
	rec.Language = DetectLanguage(rec.Text)

	r.logger.Debug("ocr: recognized region",
		"lines", len(texts), "size", rec.FontSize, "weight", rec.FontWeight,
		"background", rec.BackgroundType, "lang", rec.Language)
	return rec.WithDefaults(), nil
}

// CleanText normalizes a recognized line to NFC and collapses whitespace.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// DetectLanguage guesses the language of s from its scripts and returns a
// BCP 47 tag. Empty text yields "".
func DetectLanguage(s string) string {
	var hangul, kana, han, latin int
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	var tag language.Tag
	switch {
	case hangul > 0 && hangul >= kana:
		tag = language.Korean
	case kana > 0:
		tag = language.Japanese
	case han > 0 && han >= latin:
		tag = language.Chinese
	case latin > 0:
		tag = language.English
	default:
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// TesseractLanguages maps BCP 47 tags to a Tesseract language list such as
// "kor+eng". Unknown tags are skipped; an empty result means "eng".
func TesseractLanguages(tags []string) string {
	codes := map[string]string{
		"ko": "kor", "ja": "jpn", "zh": "chi_sim", "en": "eng",
		"de": "deu", "fr": "fra", "es": "spa",
	}
	var out []string
	seen := make(map[string]bool)
	for _, t := range tags {
		tag, err := language.Parse(t)
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		code, ok := codes[base.String()]
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	if len(out) == 0 {
		return "eng"
	}
	return strings.Join(out, "+")
}
