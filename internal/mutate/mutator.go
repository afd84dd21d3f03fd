package mutate

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/inkfill/inkfill/internal/docmodel"
	"github.com/inkfill/inkfill/internal/resolver"
)

// Warning records one match that could not be applied. Warnings
// accumulate; they never abort the run.
type Warning struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// Config controls mutation behavior.
type Config struct {
	// ConfidenceFloor gates application: matches below it are recorded
	// but not written. Zero applies everything with a value.
	ConfidenceFloor float64
}

// Mutator routes matches to the document: widget writes for editable
// fields, overlay annotations for read-only targets. Values are set,
// never appended, so replaying a match list on a fresh copy of the
// input yields the same output.
type Mutator struct {
	doc    Doc
	tokens []docmodel.OCRToken
	floor  float64
	log    *slog.Logger
}

// New creates a Mutator writing through doc. The token list anchors
// overlay placement for read-only targets.
func New(doc Doc, tokens []docmodel.OCRToken, cfg Config, log *slog.Logger) *Mutator {
	if log == nil {
		log = slog.Default()
	}
	return &Mutator{doc: doc, tokens: tokens, floor: cfg.ConfidenceFloor, log: log}
}

// Apply writes every applicable match and returns the filled field
// names plus the warnings for matches that could not land.
func (m *Mutator) Apply(matches []resolver.Match, fields map[string]docmodel.FormField) ([]string, []Warning) {
	var (
		filled   []string
		warnings []Warning
	)
	warn := func(target, format string, args ...any) {
		w := Warning{Target: target, Reason: fmt.Sprintf(format, args...)}
		m.log.Warn("match not applied", "target", w.Target, "reason", w.Reason)
		warnings = append(warnings, w)
	}

	for _, match := range matches {
		if match.Value == "" {
			continue
		}
		if match.Confidence < m.floor {
			m.log.Debug("match below confidence floor", "target", match.Target, "confidence", match.Confidence)
			continue
		}
		field, ok := fields[match.Target]
		if !ok {
			warn(match.Target, "unknown field")
			continue
		}

		if !field.Editable {
			// Never attempt widget mutation on read-only fields.
			if err := m.overlay(field, match.Value); err != nil {
				warn(match.Target, "overlay failed: %v", err)
				continue
			}
			filled = append(filled, field.Name)
			continue
		}

		if field.CheckboxLike() && resolver.IsTruthy(match.Value) {
			m.checkLadder(field)
			filled = append(filled, field.Name)
			continue
		}

		if err := m.doc.SetWidgetValue(field, match.Value); err != nil {
			warn(match.Target, "widget rejected update: %v", err)
			continue
		}
		filled = append(filled, field.Name)
	}

	sort.Strings(filled)
	return filled, warnings
}

// MarkCheckbox checks a decided checkbox. Application never fails
// outright; an unmarked checkbox beats a corrupted document.
func (m *Mutator) MarkCheckbox(d resolver.Decision, fields map[string]docmodel.FormField) error {
	field, ok := fields[d.FieldName]
	if !ok {
		return fmt.Errorf("unknown field %q for category %s", d.FieldName, d.Category)
	}
	if !field.Editable {
		m.drawMark(field)
		return nil
	}
	m.checkLadder(field)
	return nil
}

// checkLadder tries, in order: the widget's declared on-state, the
// conventional truthy spellings, and finally a drawn mark.
func (m *Mutator) checkLadder(field docmodel.FormField) {
	if field.OnState != "" {
		if err := m.doc.SetWidgetValue(field, field.OnState); err == nil {
			return
		}
	}
	for _, v := range resolver.TruthyValues() {
		if err := m.doc.SetWidgetValue(field, v); err == nil {
			return
		}
	}
	m.drawMark(field)
}

// drawMark draws an X over the checkbox through the overlay ladder.
func (m *Mutator) drawMark(field docmodel.FormField) {
	rect := field.Rect
	if rect.Width() == 0 && rect.Height() == 0 {
		m.log.Warn("checkbox has no box to mark", "field", field.Name)
		return
	}
	m.overlayLadder(field.Page, rect, "X", field.Name)
}

// overlay places value next to the printed label best matching the
// field, falling back to the field's own box when no anchor is found.
func (m *Mutator) overlay(field docmodel.FormField, value string) error {
	rect, ok := m.anchorRect(field, value)
	if !ok {
		return fmt.Errorf("no anchor position for %q", field.Name)
	}
	m.overlayLadder(field.Page, rect, value, field.Name)
	return nil
}

// overlayLadder tries free text, then a filled rectangle with text,
// then a point annotation. Each tier runs only if the previous failed.
func (m *Mutator) overlayLadder(page int, rect docmodel.Rect, text, target string) {
	if err := m.doc.AddFreeText(page, rect, text); err == nil {
		return
	} else {
		m.log.Debug("free-text annotation failed", "target", target, "error", err)
	}
	if err := m.doc.AddRectWithText(page, rect, text); err == nil {
		return
	} else {
		m.log.Debug("rectangle annotation failed", "target", target, "error", err)
	}
	if err := m.doc.AddPoint(page, rect, text); err != nil {
		m.log.Warn("all overlay tiers failed", "target", target, "error", err)
	}
}

// anchorRect finds where an overlay for this field should go: just to
// the right of the best-matching printed label, never on top of it.
func (m *Mutator) anchorRect(field docmodel.FormField, value string) (docmodel.Rect, bool) {
	if anchor, ok := FindAnchor(m.tokens, field.Page, field.Name); ok {
		width := float64(6 * len(value))
		if width < 40 {
			width = 40
		}
		return docmodel.Rect{
			X0: anchor.Rect.X1 + 4,
			Y0: anchor.Rect.Y0,
			X1: anchor.Rect.X1 + 4 + width,
			Y1: anchor.Rect.Y1,
		}, true
	}
	if field.Rect.Width() > 0 || field.Rect.Height() > 0 {
		return field.Rect, true
	}
	return docmodel.Rect{}, false
}
