package docmodel

import (
	"fmt"
	"strings"
)

// FieldKind classifies an interactive form field.
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindCheckbox  FieldKind = "checkbox"
	KindChoice    FieldKind = "choice"
	KindSignature FieldKind = "signature"
)

// Rect is a PDF-space bounding box (origin bottom-left, points).
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent of the box.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// FormField is an immutable snapshot of one named widget, taken during
// extraction. Matching and mutation both work against this snapshot; the
// live document is only touched when matches are applied.
type FormField struct {
	Name     string    `json:"name"`
	Page     int       `json:"page"` // 1-based
	Rect     Rect      `json:"rect"`
	Kind     FieldKind `json:"kind"`
	Editable bool      `json:"editable"`
	Required bool      `json:"required,omitempty"`
	Value    string    `json:"value,omitempty"`

	// Options holds the declared option set for choice fields.
	Options []string `json:"options,omitempty"`
	// OnState is the checkbox appearance-state name that marks the box
	// (from AP/N), e.g. "Yes". Empty when the widget declares none.
	OnState string `json:"on_state,omitempty"`
}

// CheckboxLike reports whether the field should be treated as a checkbox.
// The explicit type tag and the name heuristic are unioned: treating a
// text field as a checkbox degrades to writing text, but missing a real
// checkbox means it never gets marked.
func (f FormField) CheckboxLike() bool {
	return f.Kind == KindCheckbox || strings.Contains(strings.ToLower(f.Name), "check")
}

// OCRToken is one recognized text region on a page.
type OCRToken struct {
	Page       int     `json:"page"` // 1-based
	Text       string  `json:"text"` // normalized: lowercased, printable only
	RawText    string  `json:"raw_text,omitempty"`
	Confidence float64 `json:"confidence"`
	Rect       Rect    `json:"rect"`
}

// Extraction is the full fillable-surface model of one document.
type Extraction struct {
	Path      string               `json:"path"`
	PageCount int                  `json:"page_count"`
	Fields    map[string]FormField `json:"fields"`
	Tokens    []OCRToken           `json:"tokens,omitempty"`
}

// NeedsOCR reports whether the widget surface alone is too thin to match
// against: too few named widgets, or widget names that look auto-generated
// (long opaque identifiers carry no label information).
func (e *Extraction) NeedsOCR() bool {
	if len(e.Fields) < 3 {
		return true
	}
	for name := range e.Fields {
		if len(name) > 30 {
			return true
		}
	}
	return false
}

// ExtractionError is fatal for a document: the input could not be read
// as a PDF at all. Per-page and per-widget problems are logged and
// skipped instead.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
