package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/inkfill/inkfill/internal/docmodel"
)

// Engine turns a PDF into OCR tokens: rasterize, preprocess, recognize,
// then normalize into PDF-space tokens. A failed page is logged and
// skipped; the engine only errors when the document cannot be rendered
// at all.
type Engine struct {
	provider      Provider
	minConfidence float64
	log           *slog.Logger
}

// NewEngine wires an Engine around the given provider. A negative
// minConfidence selects the default floor.
func NewEngine(provider Provider, minConfidence float64, log *slog.Logger) *Engine {
	if minConfidence < 0 {
		minConfidence = DefaultMinConfidence
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{provider: provider, minConfidence: minConfidence, log: log}
}

// Run recognizes all pages of the PDF at path. Tokens come back in page
// order, deduplicated per page by normalized text (first occurrence
// wins) and filtered by the confidence floor.
func (e *Engine) Run(ctx context.Context, pdfPath string) ([]docmodel.OCRToken, error) {
	tmpDir, err := os.MkdirTemp("", "inkfill-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	images, err := docmodel.RenderPages(pdfPath, tmpDir, e.log)
	if err != nil {
		return nil, fmt.Errorf("render pages: %w", err)
	}

	var tokens []docmodel.OCRToken
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageTokens, err := e.runPage(ctx, img)
		if err != nil {
			e.log.Warn("ocr failed for page, skipping", "page", img.Page, "provider", e.provider.Name(), "error", err)
			continue
		}
		tokens = append(tokens, pageTokens...)
	}
	return tokens, nil
}

func (e *Engine) runPage(ctx context.Context, img docmodel.PageImage) ([]docmodel.OCRToken, error) {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, fmt.Errorf("read page image: %w", err)
	}

	prepped, err := Preprocess(data)
	if err != nil {
		// Recognition still works on the raw render, just worse.
		e.log.Debug("preprocess failed, using raw image", "page", img.Page, "error", err)
		prepped = data
	}

	res, err := e.provider.RecognizePage(ctx, prepped, img.Page)
	if err != nil {
		return nil, err
	}
	return e.normalize(res, img.Page), nil
}

// normalize filters low-confidence words, maps pixel boxes into PDF
// points (y-up), and drops repeated text on the same page.
func (e *Engine) normalize(res *PageResult, pageNum int) []docmodel.OCRToken {
	scale := 72.0 / float64(docmodel.RasterDPI)
	pageHeight := float64(res.Height) * scale

	seen := make(map[string]bool)
	var tokens []docmodel.OCRToken
	for _, w := range res.Words {
		if w.Confidence < e.minConfidence {
			continue
		}
		text := NormalizeText(w.Text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true

		tokens = append(tokens, docmodel.OCRToken{
			Page:       pageNum,
			Text:       text,
			RawText:    w.Text,
			Confidence: w.Confidence,
			Rect: docmodel.Rect{
				X0: w.X0 * scale,
				Y0: pageHeight - w.Y1*scale,
				X1: w.X1 * scale,
				Y1: pageHeight - w.Y0*scale,
			},
		})
	}
	return tokens
}

// NormalizeText lowercases, strips non-printable runes, and collapses
// runs of whitespace to single spaces.
func NormalizeText(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		if !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}
