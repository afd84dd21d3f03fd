// Package resolver turns a flattened record plus a field inventory into
// validated (target, value, confidence) matches by consulting a
// matching oracle, whose raw output is never trusted.
package resolver

import (
	"fmt"
	"strings"

	"github.com/inkfill/inkfill/internal/docmodel"
	"github.com/inkfill/inkfill/internal/layout"
)

// Match is one proposed write against the document.
type Match struct {
	// Source is the flattened record path the value came from; empty
	// for derived values.
	Source string `json:"source,omitempty"`
	// Target is the form field name, or a synthetic OCR-region id.
	Target     string  `json:"field_name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	IsCheckbox bool    `json:"is_checkbox,omitempty"`
}

// Validate rejects matches the mutator must never see: an empty target,
// or a confidence outside [0,1]. Out-of-range confidence is an error,
// not something to silently clamp.
func (m Match) Validate() error {
	if strings.TrimSpace(m.Target) == "" {
		return fmt.Errorf("match has empty target")
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("match %q has confidence %v outside [0,1]", m.Target, m.Confidence)
	}
	return nil
}

// Truthy strings accepted as a checkbox "on" request, checked in order
// by the mutator as well.
var truthyValues = []string{"Yes", "On", "Checked", "True", "X", "1"}

// TruthyValues returns the accepted checkbox "on" spellings in the
// order the mutator should try them.
func TruthyValues() []string {
	out := make([]string, len(truthyValues))
	copy(out, truthyValues)
	return out
}

// IsTruthy reports whether a proposed value asks for a checked state.
func IsTruthy(v string) bool {
	v = strings.TrimSpace(v)
	for _, t := range truthyValues {
		if strings.EqualFold(v, t) {
			return true
		}
	}
	return false
}

// PreprocessValue coerces a proposed value toward what the target
// widget can hold: checkbox values collapse to Yes/Off, choice fields
// snap to a declared option when one matches. A text field whose name
// merely looks checkbox-like (say "Check Number") keeps its proposed
// text unless the value itself reads as a boolean; over-detection must
// degrade to writing text, never drop a value.
func PreprocessValue(field docmodel.FormField, value string) string {
	if field.Kind == docmodel.KindCheckbox {
		if IsTruthy(value) {
			return "Yes"
		}
		return "Off"
	}
	if field.CheckboxLike() && isBooleanLike(value) {
		if IsTruthy(value) {
			return "Yes"
		}
		return "Off"
	}
	if field.Kind == docmodel.KindChoice && len(field.Options) > 0 {
		return snapToOption(field.Options, value)
	}
	return value
}

// Boolean-ish spellings beyond the truthy set, for coercing values
// aimed at name-heuristic checkboxes.
var falseyValues = []string{"No", "Off", "Unchecked", "False", "0", ""}

func isBooleanLike(v string) bool {
	if IsTruthy(v) {
		return true
	}
	v = strings.TrimSpace(v)
	for _, f := range falseyValues {
		if strings.EqualFold(v, f) {
			return true
		}
	}
	return false
}

// snapToOption picks the declared option closest to value: exact
// case-insensitive first, then substring either way. No match keeps
// the value as proposed.
func snapToOption(options []string, value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, opt := range options {
		if strings.ToLower(opt) == v {
			return opt
		}
	}
	for _, opt := range options {
		lo := strings.ToLower(opt)
		if strings.Contains(lo, v) || strings.Contains(v, lo) {
			return opt
		}
	}
	return value
}

// Class keywords for the consistency constraint: once one field of a
// class gets a value, every field of that class gets the same value.
var (
	entityNameKeywords = []string{
		"entity name", "company name", "llc name", "business name",
		"corporation name", "name of entity", "name of company",
	}
	identifierKeywords = []string{
		"order id", "order number", "file number", "filing number",
		"identifier", "id number",
	}
)

// fieldInClass reports whether a field belongs to a value class, judged
// by its name and its linked label text.
func fieldInClass(field docmodel.FormField, neighbors []layout.Neighbor, keywords []string) bool {
	hay := strings.ToLower(field.Name)
	for _, n := range neighbors {
		hay += " " + n.Token.Text
	}
	for _, kw := range keywords {
		if strings.Contains(hay, kw) {
			return true
		}
	}
	return false
}

// enforceClassConsistency makes every field of a class carry the same
// value: the most complete (longest) value proposed for any member
// wins, existing matches are rewritten to it, and members without a
// match get one derived from the winner.
func enforceClassConsistency(matches []Match, fields map[string]docmodel.FormField, contexts map[string][]layout.Neighbor, keywords []string) []Match {
	members := make(map[string]bool)
	for name, field := range fields {
		if fieldInClass(field, contexts[name], keywords) {
			members[name] = true
		}
	}
	if len(members) < 2 {
		return matches
	}

	var best Match
	for _, m := range matches {
		if members[m.Target] && len(m.Value) > len(best.Value) {
			best = m
		}
	}
	if best.Value == "" {
		return matches
	}

	matched := make(map[string]bool)
	for i := range matches {
		if members[matches[i].Target] {
			matches[i].Value = best.Value
			matched[matches[i].Target] = true
		}
	}
	for name := range members {
		if !matched[name] {
			matches = append(matches, Match{
				Source:     best.Source,
				Target:     name,
				Value:      best.Value,
				Confidence: best.Confidence,
				Rationale:  "same value class as " + best.Target,
			})
		}
	}
	return matches
}
