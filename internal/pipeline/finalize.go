package pipeline

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// FinalizationError means the canonicalizing rewrite failed and the
// output fell back to a raw copy of the mutated scratch file.
type FinalizationError struct {
	Err error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("finalization fell back to raw copy: %v", e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }

// finalize rewrites the mutated scratch file to outPath through the
// canonicalizing writer, rebuilding the xref table and dropping
// orphaned objects. On failure the scratch bytes are copied verbatim
// instead; losing canonical form beats losing the fill.
func finalize(scratch, outPath string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.OptimizeFile(scratch, outPath, conf); err == nil {
		return nil
	} else if copyErr := copyFile(scratch, outPath); copyErr != nil {
		return fmt.Errorf("finalize failed and raw copy failed too: %w", copyErr)
	} else {
		return &FinalizationError{Err: err}
	}
}

// verifyFilled counts non-empty interactive field values plus overlay
// annotations in the finalized document. Zero means the run produced a
// document indistinguishable from the input, which is a failed run.
func verifyFilled(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return 0, fmt.Errorf("read output: %w", err)
	}

	count := 0
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pd, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil {
			continue
		}
		obj, found := pd.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(obj)
		if err != nil {
			continue
		}
		for _, item := range annots {
			d, err := ctx.DereferenceDict(item)
			if err != nil || d == nil {
				continue
			}
			sub := d.NameEntry("Subtype")
			if sub == nil {
				continue
			}
			if *sub == "Widget" {
				if obj, found := d.Find("V"); found {
					if v, err := ctx.Dereference(obj); err == nil && nonEmptyValue(v) {
						count++
					}
				}
				continue
			}
			// Any non-widget annotation counts as an overlay mark.
			count++
		}
	}
	return count, nil
}

func nonEmptyValue(obj types.Object) bool {
	switch v := obj.(type) {
	case types.StringLiteral:
		return v.Value() != ""
	case types.HexLiteral:
		return v.Value() != ""
	case types.Name:
		return v != "" && v != "Off"
	default:
		return false
	}
}
