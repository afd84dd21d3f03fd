package resolver

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMatches_PlainArray(t *testing.T) {
	raw := `[{"field_name": "LLC Name", "value": "Acme LLC", "confidence": 0.9}]`
	valid, invalid, err := ParseMatches(raw)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(invalid) != 0 {
		t.Errorf("invalid = %v, want none", invalid)
	}
	if len(valid) != 1 || valid[0].Target != "LLC Name" || valid[0].Value != "Acme LLC" {
		t.Errorf("valid = %v", valid)
	}
}

func TestParseMatches_CodeFenced(t *testing.T) {
	raw := "Here are the matches:\n```json\n[{\"field_name\": \"a\", \"value\": \"1\", \"confidence\": 0.5}]\n```\nLet me know if you need more."
	valid, _, err := ParseMatches(raw)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(valid) != 1 || valid[0].Target != "a" {
		t.Errorf("valid = %v", valid)
	}
}

func TestParseMatches_BraceExtraction(t *testing.T) {
	raw := `Sure! The answer is [{"field_name": "a", "value": "1", "confidence": 1}] as requested.`
	valid, _, err := ParseMatches(raw)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(valid) != 1 {
		t.Errorf("valid = %v", valid)
	}
}

func TestParseMatches_SingleObject(t *testing.T) {
	raw := `{"field_name": "a", "value": "1", "confidence": 0.8}`
	valid, _, err := ParseMatches(raw)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(valid) != 1 {
		t.Errorf("valid = %v", valid)
	}
}

func TestParseMatches_DropsMalformedKeepsGood(t *testing.T) {
	// One out-of-range confidence, one missing a required key, one good.
	raw := `[
		{"field_name": "bad1", "value": "x", "confidence": 2.0},
		{"field_name": "bad2", "value": "y"},
		{"field_name": "good", "value": "z", "confidence": 0.7}
	]`
	valid, invalid, err := ParseMatches(raw)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(valid) != 1 || valid[0].Target != "good" {
		t.Errorf("valid = %v, want single match for %q", valid, "good")
	}
	if len(invalid) != 2 {
		t.Errorf("invalid = %v, want 2 dropped entries", invalid)
	}
}

func TestParseMatches_NonStringValues(t *testing.T) {
	raw := `[
		{"field_name": "num", "value": 42, "confidence": 1},
		{"field_name": "flag", "value": true, "confidence": 1},
		{"field_name": "none", "value": null, "confidence": 0}
	]`
	valid, _, err := ParseMatches(raw)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	got := map[string]string{}
	for _, m := range valid {
		got[m.Target] = m.Value
	}
	if got["num"] != "42" || got["flag"] != "true" || got["none"] != "" {
		t.Errorf("stringified values = %v", got)
	}
}

func TestParseMatches_Unparseable(t *testing.T) {
	var perr *ParseError
	_, _, err := ParseMatches("I could not find any matches, sorry!")
	if !errors.As(err, &perr) {
		t.Fatalf("ParseMatches() error = %v, want *ParseError", err)
	}
}

func TestParseMatches_AllEntriesMalformed(t *testing.T) {
	raw := `[{"field_name": "", "value": "x", "confidence": 0.5}]`
	var perr *ParseError
	_, invalid, err := ParseMatches(raw)
	if !errors.As(err, &perr) {
		t.Fatalf("ParseMatches() error = %v, want *ParseError", err)
	}
	if len(invalid) != 1 {
		t.Errorf("invalid = %v, want 1", invalid)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json tag", "```json\n[1]\n```", "[1]"},
		{"no tag", "```\n[1]\n```", "[1]"},
		{"leading prose", "result:\n```json\n[1]\n```", "[1]"},
		{"no fence", "[1]", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.in); got != tt.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractJSONCandidate_PrefersEarlierStart(t *testing.T) {
	got := extractJSONCandidate(`text [{"a": 1}] more text`)
	if !strings.HasPrefix(got, "[") || !strings.HasSuffix(got, "]") {
		t.Errorf("extractJSONCandidate() = %q", got)
	}
}
