package mutate

import (
	"github.com/inkfill/inkfill/internal/docmodel"
)

// Doc is the mutable document surface the Mutator writes through.
// *PDFDoc is the production implementation; tests substitute a spy to
// observe routing without a live document.
type Doc interface {
	// SetWidgetValue writes a value into an interactive widget. For
	// checkboxes the value must be an appearance state the widget
	// accepts; a rejected value returns an error.
	SetWidgetValue(field docmodel.FormField, value string) error

	// AddFreeText places a visible text annotation at rect.
	AddFreeText(page int, rect docmodel.Rect, text string) error

	// AddRectWithText draws a filled rectangle carrying text, the
	// fallback when free-text insertion fails.
	AddRectWithText(page int, rect docmodel.Rect, text string) error

	// AddPoint drops a point annotation carrying the text as a note,
	// the last-resort overlay tier.
	AddPoint(page int, rect docmodel.Rect, text string) error
}
