package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Section markers shared between prompt assembly and the static
// oracle, which recovers the structured request from the prompt text.
const (
	RecordSection = "Record entries (path: value):"
	FieldsSection = "Form fields:"
)

// StaticOracle is a deterministic, network-free Oracle: it matches
// record paths to field names by exact then substring comparison of
// the path's last segment. Useful for tests and offline smoke runs;
// it never beats a real semantic matcher.
type StaticOracle struct{}

// Name returns the provider identifier.
func (s *StaticOracle) Name() string {
	return "static"
}

// Complete emits a JSON match array derived from the structured
// sections of the prompt. Prompts without both sections get an empty
// array.
func (s *StaticOracle) Complete(_ context.Context, req Request) (string, error) {
	record, fields, ok := splitSections(req.Prompt)
	if !ok {
		return "[]", nil
	}

	var flat map[string]string
	if err := json.Unmarshal([]byte(record), &flat); err != nil {
		return "[]", nil
	}
	var descs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(fields), &descs); err != nil {
		return "[]", nil
	}

	type entry struct {
		FieldName  string  `json:"field_name"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
		Source     string  `json:"source"`
		Rationale  string  `json:"rationale"`
	}
	var out []entry
	for _, d := range descs {
		fieldKey := normalizeKey(d.Name)
		for path, value := range flat {
			pathKey := normalizeKey(lastSegment(path))
			if fieldKey == pathKey {
				out = append(out, entry{d.Name, value, 1.0, path, "exact name match"})
				break
			}
			if strings.Contains(fieldKey, pathKey) || strings.Contains(pathKey, fieldKey) {
				out = append(out, entry{d.Name, value, 0.6, path, "substring name match"})
				break
			}
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal static matches: %w", err)
	}
	if out == nil {
		return "[]", nil
	}
	return string(data), nil
}

func splitSections(prompt string) (record, fields string, ok bool) {
	ri := strings.Index(prompt, RecordSection)
	fi := strings.Index(prompt, FieldsSection)
	if ri < 0 || fi < 0 || fi < ri {
		return "", "", false
	}
	record = strings.TrimSpace(prompt[ri+len(RecordSection) : fi])
	rest := prompt[fi+len(FieldsSection):]
	if end := strings.Index(rest, "\n\n"); end >= 0 {
		// The fields JSON is pretty-printed; cut at the first blank line
		// after it closes.
		if close := strings.LastIndex(rest[:end+1], "]"); close >= 0 {
			rest = rest[:close+1]
		}
	}
	fields = strings.TrimSpace(rest)
	return record, fields, true
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.Index(path, "["); i >= 0 {
		path = path[:i]
	}
	return path
}

// normalizeKey strips separators and case so "CD_LLC_Name" and
// "LLC Name" compare equal.
func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == ' ' || r == '_' || r == '-' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Verify interface
var _ Oracle = (*StaticOracle)(nil)
