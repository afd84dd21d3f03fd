package resolver

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseError means the oracle's output yielded no usable matches. It is
// recoverable: the resolver retries, then the pipeline degrades to "no
// matches from this pass".
type ParseError struct {
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("oracle output unusable: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseMatches recovers a match list from raw oracle text. Parsing is
// defensive: try the text as-is, then with markdown code fences
// stripped, then the outermost JSON object or array located by brace
// matching. Each entry is validated independently; malformed entries
// are dropped, not fatal. The invalid slice reports what was dropped.
func ParseMatches(content string) (valid []Match, invalid []string, err error) {
	doc, err := parseJSONDocument(content)
	if err != nil {
		return nil, nil, &ParseError{Output: content, Err: err}
	}

	entries, ok := doc.([]any)
	if !ok {
		// A bare object is treated as a single-entry batch.
		entries = []any{doc}
	}

	for _, entry := range entries {
		m, verr := matchFromEntry(entry)
		if verr != nil {
			invalid = append(invalid, verr.Error())
			continue
		}
		valid = append(valid, m)
	}
	if len(valid) == 0 {
		return nil, invalid, &ParseError{Output: content, Err: fmt.Errorf("no valid matches among %d entries", len(entries))}
	}
	return valid, invalid, nil
}

// matchFromEntry validates one decoded entry against the match schema:
// required keys present, confidence numeric and in range, target
// non-empty. Values may arrive as numbers or booleans and are
// stringified.
func matchFromEntry(entry any) (Match, error) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return Match{}, fmt.Errorf("entry is %T, not an object", entry)
	}
	if err := validateEntry(entry); err != nil {
		return Match{}, fmt.Errorf("entry failed schema validation: %v", err)
	}

	target := obj["field_name"].(string)
	conf := obj["confidence"].(float64)

	m := Match{
		Target:     target,
		Value:      stringifyValue(obj["value"]),
		Confidence: conf,
	}
	if s, ok := obj["source"].(string); ok {
		m.Source = s
	}
	if s, ok := obj["rationale"].(string); ok {
		m.Rationale = s
	}
	if b, ok := obj["is_checkbox"].(bool); ok {
		m.IsCheckbox = b
	}
	if err := m.Validate(); err != nil {
		return Match{}, err
	}
	return m, nil
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// parseJSONDocument tries progressively harder to find JSON in model
// output.
func parseJSONDocument(content string) (any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty oracle output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed, nil
		}
		// A fenced block may still carry leading prose.
		if extracted := extractJSONCandidate(candidate); extracted != "" && extracted != candidate {
			if err := json.Unmarshal([]byte(extracted), &parsed); err == nil {
				return parsed, nil
			}
		}
	}
	return nil, fmt.Errorf("no parseable JSON in oracle output")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	idx := strings.Index(trimmed, "```")
	if idx < 0 {
		return ""
	}
	trimmed = trimmed[idx:]

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}
	// Drop the opening fence line (which may carry a language tag).
	lines = lines[1:]
	for i, line := range lines {
		if strings.TrimSpace(line) == "```" {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if arrayStart < objectStart {
			start = arrayStart
			closeChar = "]"
		} else {
			start = objectStart
			closeChar = "}"
		}
	case objectStart >= 0:
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}
