package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/inkfill/inkfill/internal/mutate"
	"github.com/inkfill/inkfill/internal/resolver"
)

// Result is the outcome of one fill run. Success is the verifier's
// verdict; a false Success still ships the output document plus a
// reason, never a silent copy of the input.
type Result struct {
	RunID        string              `json:"run_id"`
	Success      bool                `json:"success"`
	Message      string              `json:"message,omitempty"`
	InputPath    string              `json:"input_path"`
	OutputPath   string              `json:"output_path"`
	BackupPath   string              `json:"backup_path,omitempty"`
	PageCount    int                 `json:"page_count"`
	FieldCount   int                 `json:"field_count"`
	TokenCount   int                 `json:"token_count"`
	UsedOCR      bool                `json:"used_ocr"`
	FilledFields []string            `json:"filled_fields"`
	FilledCount  int                 `json:"filled_count"`
	Matches      []resolver.Match    `json:"matches"`
	Decisions    []resolver.Decision `json:"checkbox_decisions,omitempty"`
	Warnings     []mutate.Warning    `json:"warnings,omitempty"`
}

// WriteAudit persists the match log alongside the filled document so
// the run can be reviewed after the fact.
func (r *Result) WriteAudit(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}
