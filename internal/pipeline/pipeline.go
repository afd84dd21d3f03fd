// Package pipeline wires the fill stages together: extract, flatten,
// link, resolve, mutate, finalize, verify. One Run call processes one
// document; concurrent runs share nothing but the provider clients.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/inkfill/inkfill/internal/docmodel"
	"github.com/inkfill/inkfill/internal/layout"
	"github.com/inkfill/inkfill/internal/mutate"
	"github.com/inkfill/inkfill/internal/ocr"
	"github.com/inkfill/inkfill/internal/oracle"
	"github.com/inkfill/inkfill/internal/record"
	"github.com/inkfill/inkfill/internal/resolver"
)

// Options controls one pipeline instance.
type Options struct {
	// ForceOCR runs the OCR stage even when the widget surface looks
	// sufficient.
	ForceOCR bool
	// SkipBackup disables the pre-mutation snapshot of the input.
	SkipBackup bool
	// ConfidenceFloor gates match application in the mutator.
	ConfidenceFloor float64
	// Categories overrides the checkbox decision categories.
	Categories []resolver.Category
	// ResolverConfig tunes the oracle retry loop.
	ResolverConfig resolver.Config
	// AuditPath, when set, receives the JSON match log. Empty derives
	// <output>.audit.json.
	AuditPath string
}

// Pipeline fills PDF forms from JSON records.
type Pipeline struct {
	extractor *docmodel.Extractor
	ocrEngine *ocr.Engine
	resolver  *resolver.Resolver
	checkbox  *resolver.CheckboxResolver
	opts      Options
	log       *slog.Logger
}

// New assembles a pipeline. ocrEngine may be nil to disable the OCR
// stage entirely.
func New(o oracle.Oracle, ocrEngine *ocr.Engine, opts Options, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		extractor: docmodel.NewExtractor(log),
		ocrEngine: ocrEngine,
		resolver:  resolver.New(o, opts.ResolverConfig, log),
		checkbox:  resolver.NewCheckboxResolver(o, opts.Categories, log),
		opts:      opts,
		log:       log,
	}
}

// Request is one fill run.
type Request struct {
	InputPath  string
	RecordJSON []byte
	OutputPath string
	// ForceOCR overrides the widget-sufficiency heuristic for this run.
	ForceOCR bool
}

// Run fills the document named by req and writes the result to
// req.OutputPath. The returned Result is non-nil whenever the document
// could be extracted; Success reflects the verifier.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()[:8]
	log := p.log.With("run_id", runID)
	log.Info("fill run started", "input", req.InputPath)

	ext, err := p.extractor.Extract(req.InputPath)
	if err != nil {
		return nil, err
	}

	flat, err := record.FlattenJSON(req.RecordJSON)
	if err != nil {
		return nil, fmt.Errorf("flatten record: %w", err)
	}

	res := &Result{
		RunID:      runID,
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		PageCount:  ext.PageCount,
		FieldCount: len(ext.Fields),
	}

	tokens := p.runOCR(ctx, ext, res, req.ForceOCR)
	contexts := layout.Link(ext.Fields, tokens)

	if !p.opts.SkipBackup {
		backup, err := backupCopy(req.InputPath)
		if err != nil {
			log.Warn("backup copy failed, continuing", "error", err)
		} else {
			res.BackupPath = backup
		}
	}

	matches, err := p.resolver.Resolve(ctx, flat, ext.Fields, contexts)
	if err != nil {
		var perr *resolver.ParseError
		if !errors.As(err, &perr) && !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Degrade to no matches from this pass; the checkbox pass may
		// still land something.
		log.Warn("resolver exhausted, continuing without field matches", "error", err)
		matches = nil
	}
	res.Matches = matches

	doc, err := mutate.OpenPDF(req.InputPath, p.log)
	if err != nil {
		return nil, &docmodel.ExtractionError{Path: req.InputPath, Err: err}
	}
	mut := mutate.New(doc, tokens, mutate.Config{ConfidenceFloor: p.opts.ConfidenceFloor}, p.log)

	filled, warnings := mut.Apply(matches, ext.Fields)
	res.Warnings = warnings

	res.Decisions = p.checkbox.Resolve(ctx, flat, ext.Fields, contexts, tokens, func(d resolver.Decision) error {
		if err := mut.MarkCheckbox(d, ext.Fields); err != nil {
			return err
		}
		filled = append(filled, d.FieldName)
		return nil
	})
	res.FilledFields = filled
	res.FilledCount = len(filled)

	scratch := scratchPath(".pdf")
	defer os.Remove(scratch)
	if err := doc.Save(scratch); err != nil {
		return nil, fmt.Errorf("save mutated document: %w", err)
	}

	if err := finalize(scratch, req.OutputPath); err != nil {
		var ferr *FinalizationError
		if !errors.As(err, &ferr) {
			return nil, err
		}
		log.Warn("canonical rewrite failed, shipped raw copy", "error", ferr.Err)
	}

	p.verify(res)

	auditPath := p.opts.AuditPath
	if auditPath == "" {
		auditPath = req.OutputPath + ".audit.json"
	}
	if err := res.WriteAudit(auditPath); err != nil {
		log.Warn("audit artifact not written", "error", err)
	}

	log.Info("fill run finished", "success", res.Success, "filled", res.FilledCount, "warnings", len(res.Warnings))
	return res, nil
}

// runOCR decides whether the OCR stage runs and executes it. OCR
// failure degrades to an empty token list, it never aborts the run.
func (p *Pipeline) runOCR(ctx context.Context, ext *docmodel.Extraction, res *Result, force bool) []docmodel.OCRToken {
	if p.ocrEngine == nil {
		return nil
	}
	if !force && !p.opts.ForceOCR && !ext.NeedsOCR() {
		return nil
	}
	tokens, err := p.ocrEngine.Run(ctx, ext.Path)
	if err != nil {
		p.log.Warn("ocr stage failed, continuing without tokens", "error", err)
		return nil
	}
	res.UsedOCR = true
	res.TokenCount = len(tokens)
	ext.Tokens = tokens
	return tokens
}

func (p *Pipeline) verify(res *Result) {
	count, err := verifyFilled(res.OutputPath)
	if err != nil {
		res.Success = false
		res.Message = fmt.Sprintf("verification could not read output: %v", err)
		return
	}
	if count == 0 {
		res.Success = false
		res.Message = "no filled fields or annotations detected in output"
		return
	}
	res.Success = true
}
