package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/inkfill/inkfill/internal/docmodel"
	"github.com/inkfill/inkfill/internal/layout"
	"github.com/inkfill/inkfill/internal/oracle"
)

// bestGuessConfidenceCap limits tier-three decisions: a keyword-narrowed
// guess never outranks evidence-backed tiers.
const bestGuessConfidenceCap = 0.4

// Category is one mutually exclusive boolean decision on a form.
type Category struct {
	Name string `json:"name" mapstructure:"name"`
	// Options describe the choices in record terms, e.g. "commercial"
	// vs "individual".
	Options []string `json:"options" mapstructure:"options"`
	// Keywords narrow the record for the best-guess pass.
	Keywords []string `json:"keywords" mapstructure:"keywords"`
}

// DefaultCategories covers the two decisions business filing forms
// carry.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:     "registered-agent-type",
			Options:  []string{"commercial", "individual"},
			Keywords: []string{"agent", "registered", "commercial"},
		},
		{
			Name:     "management-structure",
			Options:  []string{"member-managed", "manager-managed"},
			Keywords: []string{"manage", "member", "manager"},
		},
	}
}

// Decision is the resolved outcome for one category: the single field
// to set true.
type Decision struct {
	Category   string  `json:"category"`
	FieldName  string  `json:"field_name"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	// Tier records which pass produced the decision (1 structural,
	// 2 ocr-assisted, 3 best-guess).
	Tier int `json:"tier"`
}

// ApplyFunc marks a decided checkbox on the live document. Called as
// soon as a tier decides, before the next category is considered.
type ApplyFunc func(Decision) error

// CheckboxResolver runs the escalating fallback chain per category:
// structural, then OCR-assisted, then a keyword-narrowed best guess.
// A category short-circuits at the first tier that yields a usable
// decision.
type CheckboxResolver struct {
	oracle     oracle.Oracle
	categories []Category
	log        *slog.Logger
}

// NewCheckboxResolver builds the second-pass resolver. Nil categories
// selects the defaults.
func NewCheckboxResolver(o oracle.Oracle, categories []Category, log *slog.Logger) *CheckboxResolver {
	if categories == nil {
		categories = DefaultCategories()
	}
	if log == nil {
		log = slog.Default()
	}
	return &CheckboxResolver{oracle: o, categories: categories, log: log}
}

// Resolve decides every category it can and applies each decision
// immediately via apply. A category with no decision after all three
// tiers is skipped; an apply failure is logged, not fatal.
func (c *CheckboxResolver) Resolve(ctx context.Context, flat map[string]string, fields map[string]docmodel.FormField, contexts map[string][]layout.Neighbor, tokens []docmodel.OCRToken, apply ApplyFunc) []Decision {
	var decisions []Decision
	for _, cat := range c.categories {
		decision, ok := c.resolveCategory(ctx, cat, flat, fields, contexts, tokens)
		if !ok {
			c.log.Warn("no decision for checkbox category", "category", cat.Name)
			continue
		}
		if apply != nil {
			if err := apply(decision); err != nil {
				c.log.Warn("failed to apply checkbox decision", "category", cat.Name, "field", decision.FieldName, "error", err)
			}
		}
		decisions = append(decisions, decision)
	}
	return decisions
}

func (c *CheckboxResolver) resolveCategory(ctx context.Context, cat Category, flat map[string]string, fields map[string]docmodel.FormField, contexts map[string][]layout.Neighbor, tokens []docmodel.OCRToken) (Decision, bool) {
	type tier struct {
		n      int
		prompt func() (string, error)
		cap    float64
	}
	tiers := []tier{
		{1, func() (string, error) { return c.structuralPrompt(cat, flat, fields, contexts) }, 1.0},
		{2, func() (string, error) { return c.ocrPrompt(cat, flat, fields, contexts, tokens) }, 1.0},
		{3, func() (string, error) { return c.bestGuessPrompt(cat, flat, fields) }, bestGuessConfidenceCap},
	}

	for _, t := range tiers {
		if t.n == 2 && len(tokens) == 0 {
			continue
		}
		prompt, err := t.prompt()
		if err != nil {
			c.log.Warn("checkbox prompt assembly failed", "category", cat.Name, "tier", t.n, "error", err)
			continue
		}
		decision, ok := c.askOnce(ctx, cat, prompt, fields)
		if !ok {
			continue
		}
		decision.Tier = t.n
		if decision.Confidence > t.cap {
			decision.Confidence = t.cap
		}
		return decision, true
	}
	return Decision{}, false
}

// askOnce runs one oracle call for one tier. The first valid match
// naming a known field wins; everything else is a zero result and the
// chain escalates.
func (c *CheckboxResolver) askOnce(ctx context.Context, cat Category, prompt string, fields map[string]docmodel.FormField) (Decision, bool) {
	raw, err := c.oracle.Complete(ctx, oracle.Request{System: checkboxSystemPrompt, Prompt: prompt})
	if err != nil {
		c.log.Warn("checkbox oracle call failed", "category", cat.Name, "error", err)
		return Decision{}, false
	}

	valid, invalid, err := ParseMatches(raw)
	for _, reason := range invalid {
		c.log.Debug("dropping malformed checkbox entry", "category", cat.Name, "reason", reason)
	}
	if err != nil {
		return Decision{}, false
	}
	for _, m := range valid {
		if _, known := fields[m.Target]; !known {
			continue
		}
		if !IsTruthy(m.Value) && m.Value != "" {
			continue
		}
		return Decision{
			Category:   cat.Name,
			FieldName:  m.Target,
			Confidence: m.Confidence,
			Rationale:  m.Rationale,
		}, true
	}
	return Decision{}, false
}

const checkboxSystemPrompt = `You decide which checkbox on a PDF form should be checked for a ` +
	`named decision category. Respond with ONLY a JSON array containing at most one element: ` +
	`{"field_name": "<exact field name>", "value": "Yes", "confidence": <0..1>, ` +
	`"rationale": "<short reason>"}. Return [] if no field fits.`

func (c *CheckboxResolver) structuralPrompt(cat Category, flat map[string]string, fields map[string]docmodel.FormField, contexts map[string][]layout.Neighbor) (string, error) {
	fieldsJSON, err := describeFields(fields, contexts)
	if err != nil {
		return "", err
	}
	recordJSON, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Decision category: %s (options: %s)\n\nRecord:\n%s\n\nForm fields:\n%s\n\nPick the single field to check for this category.",
		cat.Name, strings.Join(cat.Options, " / "), recordJSON, fieldsJSON), nil
}

func (c *CheckboxResolver) ocrPrompt(cat Category, flat map[string]string, fields map[string]docmodel.FormField, contexts map[string][]layout.Neighbor, tokens []docmodel.OCRToken) (string, error) {
	base, err := c.structuralPrompt(cat, flat, fields, contexts)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, tok := range tokens {
		fmt.Fprintf(&b, "page %d: %s\n", tok.Page, tok.Text)
	}
	return base + "\n\nPrinted text found on the form (field names may be uninformative):\n" + b.String(), nil
}

// bestGuessPrompt narrows the record to entries whose path mentions a
// category keyword and asks for a low-confidence guess.
func (c *CheckboxResolver) bestGuessPrompt(cat Category, flat map[string]string, fields map[string]docmodel.FormField) (string, error) {
	narrowed := make(map[string]string)
	for path, value := range flat {
		lower := strings.ToLower(path)
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				narrowed[path] = value
				break
			}
		}
	}
	fieldsJSON, err := describeFields(fields, nil)
	if err != nil {
		return "", err
	}
	recordJSON, err := json.MarshalIndent(narrowed, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Decision category: %s (options: %s)\n\nRelevant record entries only:\n%s\n\nForm fields:\n%s\n\nEvidence is weak; make your best guess anyway.",
		cat.Name, strings.Join(cat.Options, " / "), recordJSON, fieldsJSON), nil
}

func describeFields(fields map[string]docmodel.FormField, contexts map[string][]layout.Neighbor) ([]byte, error) {
	type fieldDesc struct {
		Name     string   `json:"name"`
		Page     int      `json:"page"`
		Kind     string   `json:"kind"`
		Checkbox bool     `json:"checkbox_like"`
		Labels   []string `json:"nearby_text,omitempty"`
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	descs := make([]fieldDesc, 0, len(names))
	for _, name := range names {
		f := fields[name]
		descs = append(descs, fieldDesc{
			Name:     f.Name,
			Page:     f.Page,
			Kind:     string(f.Kind),
			Checkbox: f.CheckboxLike(),
			Labels:   layout.Texts(contexts[name]),
		})
	}
	return json.MarshalIndent(descs, "", "  ")
}
