package mutate

import (
	"testing"

	"github.com/inkfill/inkfill/internal/docmodel"
)

func tok(page int, text string) docmodel.OCRToken {
	return docmodel.OCRToken{Page: page, Text: text}
}

func TestFindAnchor_Exact(t *testing.T) {
	tokens := []docmodel.OCRToken{tok(1, "entity name"), tok(1, "city")}
	got, ok := FindAnchor(tokens, 1, "Entity Name")
	if !ok || got.Text != "entity name" {
		t.Errorf("FindAnchor() = %v %v", got, ok)
	}
}

func TestFindAnchor_Substring(t *testing.T) {
	tokens := []docmodel.OCRToken{tok(1, "name of the entity filing this form")}
	_, ok := FindAnchor(tokens, 1, "entity filing")
	if !ok {
		t.Error("FindAnchor() substring tier missed")
	}
}

func TestFindAnchor_Similarity(t *testing.T) {
	// OCR misread a character; no exact or substring hit.
	tokens := []docmodel.OCRToken{tok(1, "reg1stered agent"), tok(1, "zip code")}
	got, ok := FindAnchor(tokens, 1, "registered agent")
	if !ok || got.Text != "reg1stered agent" {
		t.Errorf("FindAnchor() = %v %v", got, ok)
	}
}

func TestFindAnchor_WordOverlap(t *testing.T) {
	tokens := []docmodel.OCRToken{tok(1, "agent commercial")}
	_, ok := FindAnchor(tokens, 1, "qqqq commercial wwww agent")
	if !ok {
		t.Error("FindAnchor() word-overlap tier missed")
	}
}

func TestFindAnchor_WrongPageAndNoMatch(t *testing.T) {
	tokens := []docmodel.OCRToken{tok(2, "entity name")}
	if _, ok := FindAnchor(tokens, 1, "entity name"); ok {
		t.Error("FindAnchor() matched a token on another page")
	}
	if _, ok := FindAnchor([]docmodel.OCRToken{tok(1, "zip")}, 1, "completely unrelated"); ok {
		t.Error("FindAnchor() matched with no shared signal")
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"abc", "abc", 1, 1},
		{"abc", "xyz", 0, 0},
		{"registered", "reg1stered", 0.8, 1},
		{"", "abc", 0, 0},
	}
	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("Similarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}
