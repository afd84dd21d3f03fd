package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inkfill/inkfill/internal/docmodel"
	"github.com/inkfill/inkfill/internal/oracle"
	"github.com/inkfill/inkfill/internal/resolver"
	"github.com/inkfill/inkfill/internal/testutil"
)

func TestPipeline_RunFillsGeneratedForm(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "form.pdf")
	out := filepath.Join(dir, "form.filled.pdf")
	testutil.WriteFormPDF(t, in, []testutil.FieldSpec{
		{Name: "entity_name", Kind: "text", Rect: [4]float64{100, 700, 400, 720}},
		{Name: "file_number", Kind: "text", ReadOnly: true, Rect: [4]float64{100, 660, 250, 680}},
		{Name: "commercial_check", Kind: "checkbox", Rect: [4]float64{100, 600, 115, 615}},
		{Name: "individual_check", Kind: "checkbox", Rect: [4]float64{100, 560, 115, 575}},
	})

	mock := &oracle.MockOracle{Responses: []string{
		`[{"field_name": "entity_name", "value": "Acme Holdings LLC", "confidence": 0.92, "rationale": "entity name from record"},
		  {"field_name": "file_number", "value": "F-2291", "confidence": 0.7, "rationale": "filing number from record"}]`,
		`[{"field_name": "commercial_check", "value": "Yes", "confidence": 0.85, "rationale": "agent is a company"}]`,
	}}

	p := New(mock, nil, Options{
		Categories: []resolver.Category{{
			Name:     "agent-type",
			Options:  []string{"commercial", "individual"},
			Keywords: []string{"agent"},
		}},
		ResolverConfig: resolver.Config{MaxAttempts: 1, RetryDelay: time.Millisecond},
	}, nil)

	res, err := p.Run(context.Background(), Request{
		InputPath:  in,
		RecordJSON: []byte(`{"entity": {"name": "Acme Holdings LLC"}, "filing": {"file_number": "F-2291"}, "agent": {"type": "commercial"}}`),
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success {
		t.Errorf("res.Success = false, message %q", res.Message)
	}
	if res.FilledCount != 3 {
		t.Errorf("res.FilledCount = %d, want 3 (filled %v)", res.FilledCount, res.FilledFields)
	}
	if res.BackupPath == "" {
		t.Error("res.BackupPath is empty, want a snapshot of the input")
	} else if _, err := os.Stat(res.BackupPath); err != nil {
		t.Errorf("backup %s not readable: %v", res.BackupPath, err)
	}
	if _, err := os.Stat(out + ".audit.json"); err != nil {
		t.Errorf("audit artifact not written: %v", err)
	}
	if got := mock.Calls(); got != 2 {
		t.Errorf("oracle calls = %d, want 2", got)
	}

	// Re-extract the output and confirm what landed in the document.
	ext, err := docmodel.NewExtractor(nil).Extract(out)
	if err != nil {
		t.Fatalf("re-extract output: %v", err)
	}
	if got := ext.Fields["entity_name"].Value; got != "Acme Holdings LLC" {
		t.Errorf("entity_name value = %q, want %q", got, "Acme Holdings LLC")
	}
	if got := ext.Fields["commercial_check"].Value; got != "Yes" {
		t.Errorf("commercial_check value = %q, want %q", got, "Yes")
	}
	if got := ext.Fields["individual_check"].Value; got == "Yes" {
		t.Error("individual_check is checked, only one agent-type box may be on")
	}
	// Read-only fields keep their stored value; the text lands as an
	// overlay annotation instead.
	if got := ext.Fields["file_number"].Value; got != "" {
		t.Errorf("file_number value = %q, want empty", got)
	}
}

func TestPipeline_RunUnusableOracleOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "form.pdf")
	out := filepath.Join(dir, "form.filled.pdf")
	testutil.WriteFormPDF(t, in, []testutil.FieldSpec{
		{Name: "entity_name", Kind: "text", Rect: [4]float64{100, 700, 400, 720}},
	})

	mock := &oracle.MockOracle{Responses: []string{"I cannot help with that."}}

	p := New(mock, nil, Options{
		SkipBackup:     true,
		ResolverConfig: resolver.Config{MaxAttempts: 2, RetryDelay: time.Millisecond},
	}, nil)

	res, err := p.Run(context.Background(), Request{
		InputPath:  in,
		RecordJSON: []byte(`{"entity": {"name": "Acme Holdings LLC"}}`),
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Success {
		t.Error("res.Success = true, want failed verification when nothing fills")
	}
	if res.Message == "" {
		t.Error("res.Message is empty, want a reason for the failed verification")
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output document not written: %v", err)
	}
}
