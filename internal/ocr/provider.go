// Package ocr recovers positioned text from scanned form pages. Pages
// are rasterized locally, preprocessed, and sent to an OCR provider;
// the recognized words come back in pixel space and are mapped into
// PDF coordinates for the layout linker.
package ocr

import (
	"context"
)

// DefaultMinConfidence is the floor below which recognized words are
// discarded as noise.
const DefaultMinConfidence = 0.4

// Word is one recognized text region in image pixel space
// (origin top-left, y grows down).
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1
	X0         float64 `json:"x0"`
	Y0         float64 `json:"y0"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
}

// PageResult is the provider output for one page image.
type PageResult struct {
	Words  []Word `json:"words"`
	Width  int    `json:"width"`  // pixels
	Height int    `json:"height"` // pixels
}

// Provider recognizes text in a single rendered page image.
type Provider interface {
	// Name returns the provider identifier for logging.
	Name() string

	// RecognizePage runs OCR over one PNG-encoded page image.
	RecognizePage(ctx context.Context, png []byte, pageNum int) (*PageResult, error)
}
