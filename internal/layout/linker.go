// Package layout links OCR tokens to nearby form fields so the resolver
// can hand the oracle the label text that surrounds each widget.
package layout

import (
	"math"
	"sort"

	"github.com/inkfill/inkfill/internal/docmodel"
)

// Neighborhood thresholds, in PDF points. A token qualifies as context
// for a field when it sits just left of the field on roughly the same
// line, or just above it in roughly the same column.
const (
	maxLeftDistance  = 250.0
	maxLeftSkew      = 50.0
	maxAboveDistance = 100.0
	maxAboveSkew     = 250.0
	maxNeighbors     = 5
)

// Neighbor is one token attached to a field, with its combined
// distance score (lower is closer).
type Neighbor struct {
	Token docmodel.OCRToken
	Score float64
}

// Link attaches to every field the tokens that plausibly label it.
// Results are keyed by field name; each list holds at most five
// neighbors, nearest first. Fields with no qualifying token get no
// entry.
func Link(fields map[string]docmodel.FormField, tokens []docmodel.OCRToken) map[string][]Neighbor {
	byPage := make(map[int][]docmodel.OCRToken)
	for _, tok := range tokens {
		byPage[tok.Page] = append(byPage[tok.Page], tok)
	}

	out := make(map[string][]Neighbor)
	for name, field := range fields {
		var near []Neighbor
		for _, tok := range byPage[field.Page] {
			if score, ok := neighborScore(field.Rect, tok.Rect); ok {
				near = append(near, Neighbor{Token: tok, Score: score})
			}
		}
		if len(near) == 0 {
			continue
		}
		sort.Slice(near, func(i, j int) bool { return near[i].Score < near[j].Score })
		if len(near) > maxNeighbors {
			near = near[:maxNeighbors]
		}
		out[name] = near
	}
	return out
}

// Texts flattens a neighbor list to its token texts, nearest first.
func Texts(neighbors []Neighbor) []string {
	texts := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		texts = append(texts, n.Token.Text)
	}
	return texts
}

// neighborScore decides whether tok labels field and how close it is.
// The score sums the gap along the approach axis and the skew across it.
func neighborScore(field, tok docmodel.Rect) (float64, bool) {
	// Token ends left of the field, on roughly the same line.
	if tok.X1 <= field.X0 {
		gap := field.X0 - tok.X1
		skew := math.Abs(centerY(field) - centerY(tok))
		if gap < maxLeftDistance && skew < maxLeftSkew {
			return gap + skew, true
		}
	}
	// Token sits above the field, in roughly the same column.
	if tok.Y0 >= field.Y1 {
		gap := tok.Y0 - field.Y1
		skew := math.Abs(field.X0 - tok.X0)
		if gap < maxAboveDistance && skew < maxAboveSkew {
			return gap + skew, true
		}
	}
	return 0, false
}

func centerY(r docmodel.Rect) float64 { return (r.Y0 + r.Y1) / 2 }
