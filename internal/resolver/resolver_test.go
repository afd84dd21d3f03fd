package resolver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/inkfill/inkfill/internal/docmodel"
	"github.com/inkfill/inkfill/internal/oracle"
)

func testFields() map[string]docmodel.FormField {
	return map[string]docmodel.FormField{
		"LLC Name": {Name: "LLC Name", Page: 1, Kind: docmodel.KindText, Editable: true},
		"City":     {Name: "City", Page: 1, Kind: docmodel.KindText, Editable: true},
	}
}

func testConfig() Config {
	return Config{MaxAttempts: 3, RetryDelay: time.Millisecond}
}

func TestResolver_Resolve(t *testing.T) {
	mock := &oracle.MockOracle{
		Responses: []string{`[{"field_name": "LLC Name", "value": "Acme LLC", "confidence": 0.9, "source": "Name.CD_LLC_Name"}]`},
	}
	r := New(mock, testConfig(), nil)

	matches, err := r.Resolve(context.Background(), map[string]string{"Name.CD_LLC_Name": "Acme LLC"}, testFields(), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	byTarget := map[string]Match{}
	for _, m := range matches {
		byTarget[m.Target] = m
	}
	if byTarget["LLC Name"].Value != "Acme LLC" {
		t.Errorf("LLC Name = %q, want Acme LLC", byTarget["LLC Name"].Value)
	}
	// The field the oracle skipped is still in the audit trail at zero confidence.
	un, ok := byTarget["City"]
	if !ok {
		t.Fatal("missing confidence-zero entry for unmatched field")
	}
	if un.Confidence != 0 || un.Value != "" {
		t.Errorf("unmatched entry = %+v, want confidence 0 and empty value", un)
	}
}

func TestResolver_RecoversOnSecondAttempt(t *testing.T) {
	mock := &oracle.MockOracle{
		Responses: []string{
			`definitely not json`,
			`[{"field_name": "LLC Name", "value": "Acme LLC", "confidence": 1}]`,
		},
	}
	r := New(mock, testConfig(), nil)

	matches, err := r.Resolve(context.Background(), map[string]string{"name": "Acme LLC"}, testFields(), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if mock.Calls() != 2 {
		t.Errorf("oracle calls = %d, want 2", mock.Calls())
	}

	// Only the second attempt's output is applied; the first attempt
	// contributes nothing.
	count := 0
	for _, m := range matches {
		if m.Target == "LLC Name" && m.Value == "Acme LLC" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("LLC Name matched %d times, want exactly 1", count)
	}

	// The retry carries a repair prompt including the bad output.
	reqs := mock.Requests()
	if !strings.Contains(reqs[1].Prompt, "definitely not json") {
		t.Errorf("second prompt does not echo previous output")
	}
}

func TestResolver_ExhaustsAttempts(t *testing.T) {
	mock := &oracle.MockOracle{Responses: []string{`garbage`}}
	r := New(mock, testConfig(), nil)

	_, err := r.Resolve(context.Background(), map[string]string{"a": "b"}, testFields(), nil)
	if err == nil {
		t.Fatal("Resolve() expected error after exhausted attempts")
	}
	if mock.Calls() != 3 {
		t.Errorf("oracle calls = %d, want 3", mock.Calls())
	}
}

func TestResolver_DropsUnknownFieldTargets(t *testing.T) {
	mock := &oracle.MockOracle{
		Responses: []string{`[
			{"field_name": "Nonexistent", "value": "x", "confidence": 0.9},
			{"field_name": "City", "value": "Boston", "confidence": 0.8}
		]`},
	}
	r := New(mock, testConfig(), nil)

	matches, err := r.Resolve(context.Background(), map[string]string{"city": "Boston"}, testFields(), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for _, m := range matches {
		if m.Target == "Nonexistent" {
			t.Error("match for unknown field survived validation")
		}
	}
}

func TestResolver_EmptyFieldInventory(t *testing.T) {
	mock := &oracle.MockOracle{}
	r := New(mock, testConfig(), nil)

	matches, err := r.Resolve(context.Background(), map[string]string{"a": "b"}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if matches != nil {
		t.Errorf("matches = %v, want nil", matches)
	}
	if mock.Calls() != 0 {
		t.Errorf("oracle calls = %d, want 0", mock.Calls())
	}
}

func TestResolver_ChecksCheckboxCoercion(t *testing.T) {
	fields := map[string]docmodel.FormField{
		"member_check": {Name: "member_check", Kind: docmodel.KindCheckbox, Editable: true},
	}
	mock := &oracle.MockOracle{
		Responses: []string{`[{"field_name": "member_check", "value": "true", "confidence": 0.9}]`},
	}
	r := New(mock, testConfig(), nil)

	matches, err := r.Resolve(context.Background(), map[string]string{"managed_by": "members"}, fields, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if matches[0].Value != "Yes" || !matches[0].IsCheckbox {
		t.Errorf("checkbox match = %+v, want Yes/is_checkbox", matches[0])
	}
}
