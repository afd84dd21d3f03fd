// Package mutate applies resolved matches to a document: widget value
// writes for editable fields, overlay annotations anchored to OCR text
// for everything else.
package mutate

import (
	"strings"

	"github.com/inkfill/inkfill/internal/docmodel"
)

// Fuzzy anchor thresholds: a similarity ratio below minSimilarity falls
// through to word overlap, which needs more than half the words shared.
const (
	minSimilarity  = 0.7
	minWordOverlap = 0.5
)

// FindAnchor locates the OCR token that best matches target text on a
// page, trying exact normalized equality, then substring containment,
// then similarity ratio, then shared-word overlap. Returns false when
// nothing clears a threshold.
func FindAnchor(tokens []docmodel.OCRToken, page int, target string) (docmodel.OCRToken, bool) {
	want := normalize(target)
	if want == "" {
		return docmodel.OCRToken{}, false
	}

	var candidates []docmodel.OCRToken
	for _, tok := range tokens {
		if tok.Page == page {
			candidates = append(candidates, tok)
		}
	}

	for _, tok := range candidates {
		if normalize(tok.Text) == want {
			return tok, true
		}
	}
	for _, tok := range candidates {
		got := normalize(tok.Text)
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return tok, true
		}
	}

	best, bestRatio := docmodel.OCRToken{}, 0.0
	for _, tok := range candidates {
		if r := Similarity(normalize(tok.Text), want); r > bestRatio {
			best, bestRatio = tok, r
		}
	}
	if bestRatio > minSimilarity {
		return best, true
	}

	best, bestRatio = docmodel.OCRToken{}, 0.0
	for _, tok := range candidates {
		if r := wordOverlap(normalize(tok.Text), want); r > bestRatio {
			best, bestRatio = tok, r
		}
	}
	if bestRatio > minWordOverlap {
		return best, true
	}
	return docmodel.OCRToken{}, false
}

// Similarity is a ratio in [0,1]: twice the longest common subsequence
// over the combined length.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// wordOverlap is the share of the smaller word set present in both.
func wordOverlap(a, b string) float64 {
	wa, wb := strings.Fields(a), strings.Fields(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(wa))
	for _, w := range wa {
		set[w] = true
	}
	shared := 0
	for _, w := range wb {
		if set[w] {
			shared++
		}
	}
	smaller := len(wa)
	if len(wb) < smaller {
		smaller = len(wb)
	}
	return float64(shared) / float64(smaller)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
