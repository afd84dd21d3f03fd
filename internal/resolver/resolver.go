package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/inkfill/inkfill/internal/docmodel"
	"github.com/inkfill/inkfill/internal/layout"
	"github.com/inkfill/inkfill/internal/oracle"
)

const (
	// DefaultMaxAttempts bounds the resolve loop when the oracle's
	// output fails to parse or yields zero matches.
	DefaultMaxAttempts = 3

	defaultRetryDelay = 2 * time.Second
)

const systemPrompt = `You match data record entries to PDF form fields. ` +
	`Respond with ONLY a JSON array, no markdown, no commentary. Each element: ` +
	`{"field_name": "<exact field name>", "value": "<value to fill>", ` +
	`"confidence": <0..1>, "source": "<record path>", "rationale": "<short reason>"}. ` +
	`Use confidence 1.0 only for exact, unambiguous matches. ` +
	`Only use field names from the provided list.`

// Config controls resolver behavior.
type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// Resolver orchestrates oracle calls: prompt assembly, bounded retries
// with a repair prompt, defensive parsing, and post-processing of the
// accepted matches.
type Resolver struct {
	oracle      oracle.Oracle
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

// New creates a Resolver around the given oracle.
func New(o oracle.Oracle, cfg Config, log *slog.Logger) *Resolver {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		oracle:      o,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		log:         log,
	}
}

// Resolve asks the oracle for matches between the flattened record and
// the field inventory. Each attempt is all-or-nothing: a failed parse
// discards that attempt's partial output and retries with a repair
// prompt, up to the attempt bound. Fields the oracle never named come
// back as confidence-zero matches so the audit trail stays complete.
func (r *Resolver) Resolve(ctx context.Context, flat map[string]string, fields map[string]docmodel.FormField, contexts map[string][]layout.Neighbor) ([]Match, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	basePrompt, err := r.buildPrompt(flat, fields, contexts)
	if err != nil {
		return nil, err
	}

	var (
		matches    []Match
		lastOutput string
		lastIssue  error
	)
	err = retry.Do(
		func() error {
			prompt := basePrompt
			if lastOutput != "" {
				prompt = repairPrompt(basePrompt, lastOutput, lastIssue)
			}

			raw, err := r.oracle.Complete(ctx, oracle.Request{System: systemPrompt, Prompt: prompt})
			if err != nil {
				lastIssue = err
				return err
			}

			valid, invalid, err := ParseMatches(raw)
			for _, reason := range invalid {
				r.log.Warn("dropping malformed oracle entry", "reason", reason)
			}
			if err != nil {
				lastOutput, lastIssue = raw, err
				return err
			}

			valid = r.filterKnown(valid, fields)
			if len(valid) == 0 {
				err := &ParseError{Output: raw, Err: fmt.Errorf("no match targeted a known field")}
				lastOutput, lastIssue = raw, err
				return err
			}
			matches = valid
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.maxAttempts)),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("resolve after %d attempts: %w", r.maxAttempts, err)
	}

	matches = enforceClassConsistency(matches, fields, contexts, entityNameKeywords)
	matches = enforceClassConsistency(matches, fields, contexts, identifierKeywords)

	for i := range matches {
		matches[i].Value = PreprocessValue(fields[matches[i].Target], matches[i].Value)
		matches[i].IsCheckbox = fields[matches[i].Target].CheckboxLike()
	}

	matches = append(matches, r.unmatched(matches, fields)...)
	return matches, nil
}

// filterKnown drops matches whose target is not in the field inventory.
// Unknown targets are invalid at validation time, not at apply time.
func (r *Resolver) filterKnown(matches []Match, fields map[string]docmodel.FormField) []Match {
	kept := matches[:0]
	for _, m := range matches {
		if _, ok := fields[m.Target]; !ok {
			r.log.Warn("dropping match for unknown field", "field", m.Target)
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// unmatched returns confidence-zero placeholder matches for fields the
// oracle left out.
func (r *Resolver) unmatched(matches []Match, fields map[string]docmodel.FormField) []Match {
	targeted := make(map[string]bool, len(matches))
	for _, m := range matches {
		targeted[m.Target] = true
	}
	var out []Match
	for name := range fields {
		if !targeted[name] {
			out = append(out, Match{Target: name, Confidence: 0, Rationale: "no match proposed"})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// buildPrompt serializes the record and the field inventory, including
// each field's linked label text, into the oracle request body.
func (r *Resolver) buildPrompt(flat map[string]string, fields map[string]docmodel.FormField, contexts map[string][]layout.Neighbor) (string, error) {
	type fieldDesc struct {
		Name    string   `json:"name"`
		Page    int      `json:"page"`
		Kind    string   `json:"kind"`
		Options []string `json:"options,omitempty"`
		Labels  []string `json:"nearby_text,omitempty"`
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
			Name:    f.Name,
			Page:    f.Page,
			Kind:    string(f.Kind),
			Options: f.Options,
			Labels:  layout.Texts(contexts[name]),
		})
	}

	recordJSON, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	fieldsJSON, err := json.MarshalIndent(descs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}

	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n\nMatch record entries to fields.",
		oracle.RecordSection, recordJSON, oracle.FieldsSection, fieldsJSON), nil
}

func repairPrompt(basePrompt, lastOutput string, issue error) string {
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > 12000 {
		lastOutput = lastOutput[:12000] + "\n...[truncated]"
	}
	return fmt.Sprintf(`%s

Your previous output could not be used:
%s

Problem:
%v

Return ONLY the corrected JSON array.`, basePrompt, lastOutput, issue)
}
