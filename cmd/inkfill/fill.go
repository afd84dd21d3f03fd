package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inkfill/inkfill/internal/pipeline"
)

var (
	fillOutput     string
	fillForceOCR   bool
	fillSkipBackup bool
	fillFloor      float64
	fillAuditPath  string
	fillSummary    string
)

// printSummary reports the run outcome in the requested format.
func printSummary(res *pipeline.Result, format string) error {
	switch format {
	case "json":
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(res)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		fmt.Printf("Filled %d of %d fields", res.FilledCount, res.FieldCount)
		if res.UsedOCR {
			fmt.Printf(" (OCR: %d tokens)", res.TokenCount)
		}
		fmt.Printf("\n  Output: %s\n", res.OutputPath)
		if res.BackupPath != "" {
			fmt.Printf("  Backup: %s\n", res.BackupPath)
		}
		for _, w := range res.Warnings {
			fmt.Printf("  Warning: %s: %s\n", w.Target, w.Reason)
		}
	}
	return nil
}

var fillCmd = &cobra.Command{
	Use:   "fill <document.pdf> <record.json>",
	Short: "Fill a PDF form from a JSON record",
	Long: `Fill a PDF form from a JSON record.

The record is an arbitrary JSON document; nested objects and arrays are
flattened to dotted paths before matching. The filled document is
written next to the input unless --output is given, and a JSON audit
of every match and warning is written alongside it.

Examples:
  inkfill fill form.pdf record.json
  inkfill fill form.pdf record.json -o filled.pdf
  inkfill fill scan.pdf record.json --force-ocr`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath, recordPath := args[0], args[1]

		recordJSON, err := os.ReadFile(recordPath)
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}

		cfg := cfgManager.Get()
		if cmd.Flags().Changed("confidence-floor") {
			cfg.Fill.ConfidenceFloor = fillFloor
		}
		if fillSkipBackup {
			cfg.Fill.SkipBackup = true
		}

		p, err := buildPipeline(cfg, fillAuditPath)
		if err != nil {
			return err
		}

		outputPath := fillOutput
		if outputPath == "" {
			outputPath = strings.TrimSuffix(inputPath, ".pdf") + ".filled.pdf"
		}

		res, err := p.Run(cmd.Context(), pipeline.Request{
			InputPath:  inputPath,
			RecordJSON: recordJSON,
			OutputPath: outputPath,
			ForceOCR:   fillForceOCR,
		})
		if err != nil {
			return err
		}

		if err := printSummary(res, fillSummary); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("fill verification failed: %s", res.Message)
		}
		return nil
	},
}

func init() {
	fillCmd.Flags().StringVarP(&fillOutput, "output", "o", "", "output path (default: <input>.filled.pdf)")
	fillCmd.Flags().BoolVar(&fillForceOCR, "force-ocr", false, "run OCR even when the form has a usable widget surface")
	fillCmd.Flags().BoolVar(&fillSkipBackup, "skip-backup", false, "do not snapshot the input before filling")
	fillCmd.Flags().Float64Var(&fillFloor, "confidence-floor", 0, "minimum match confidence to apply (0 applies all)")
	fillCmd.Flags().StringVar(&fillAuditPath, "audit", "", "audit log path (default: <output>.audit.json)")
	fillCmd.Flags().StringVar(&fillSummary, "summary", "text", "summary format: text, json, or yaml")

	rootCmd.AddCommand(fillCmd)
}
