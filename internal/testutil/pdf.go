// Package testutil generates small PDF fixtures for tests. Offsets are
// computed while writing, so the cross-reference table is always
// consistent with the object bodies.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
)

// FieldSpec describes one widget on a generated form page.
type FieldSpec struct {
	Name     string
	Kind     string // "text" or "checkbox"
	ReadOnly bool
	Rect     [4]float64
	// OnState is the checkbox on appearance-state name; empty means "Yes".
	OnState string
}

type pdfBuilder struct {
	buf     bytes.Buffer
	offsets []int
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{}
	b.buf.WriteString("%PDF-1.7\n")
	return b
}

// addObject appends the body as the next numbered indirect object.
func (b *pdfBuilder) addObject(body string) {
	num := len(b.offsets) + 1
	b.offsets = append(b.offsets, b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *pdfBuilder) writeTo(path string) error {
	xrefOffset := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", len(b.offsets)+1)
	b.buf.WriteString("0000000000 65535 f \n")
	for _, off := range b.offsets {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(b.offsets)+1, xrefOffset)
	return os.WriteFile(path, b.buf.Bytes(), 0o644)
}

// WritePagesPDF writes a minimal PDF with n empty letter-size pages.
func WritePagesPDF(t *testing.T, path string, n int) {
	t.Helper()
	b := newPDFBuilder()

	kids := make([]string, n)
	for i := 0; i < n; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	b.addObject("<< /Type /Catalog /Pages 2 0 R >>")
	b.addObject(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for i := 0; i < n; i++ {
		b.addObject("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	if err := b.writeTo(path); err != nil {
		t.Fatalf("write pages pdf: %v", err)
	}
}

// WriteFormPDF writes a single-page PDF whose AcroForm carries the given
// widgets. Text widgets hold no value; checkboxes start at Off with an
// appearance dict declaring their on state.
func WriteFormPDF(t *testing.T, path string, fields []FieldSpec) {
	t.Helper()
	b := newPDFBuilder()

	// Object numbering: 1 catalog, 2 pages, 3 page, 4 font, then one
	// object per widget, then two appearance streams per checkbox.
	const firstWidget = 5
	refs := make([]string, len(fields))
	for i := range fields {
		refs[i] = fmt.Sprintf("%d 0 R", firstWidget+i)
	}
	refList := strings.Join(refs, " ")

	b.addObject(fmt.Sprintf("<< /Type /Catalog /Pages 2 0 R "+
		"/AcroForm << /Fields [%s] /DA (/Helv 10 Tf 0 g) /DR << /Font << /Helv 4 0 R >> >> >> >>", refList))
	b.addObject("<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.addObject(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
		"/Resources << /Font << /Helv 4 0 R >> >> /Annots [%s] >>", refList))
	b.addObject("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	streams := 0
	nextStream := firstWidget + len(fields)
	for _, f := range fields {
		rect := fmt.Sprintf("[%g %g %g %g]", f.Rect[0], f.Rect[1], f.Rect[2], f.Rect[3])
		switch f.Kind {
		case "checkbox":
			on := f.OnState
			if on == "" {
				on = "Yes"
			}
			yesRef := nextStream + streams
			offRef := yesRef + 1
			streams += 2
			b.addObject(fmt.Sprintf("<< /Type /Annot /Subtype /Widget /FT /Btn /T (%s) /Rect %s /F 4 "+
				"/V /Off /AS /Off /AP << /N << /%s %d 0 R /Off %d 0 R >> >> >>",
				f.Name, rect, on, yesRef, offRef))
		default:
			ff := ""
			if f.ReadOnly {
				ff = " /Ff 1"
			}
			b.addObject(fmt.Sprintf("<< /Type /Annot /Subtype /Widget /FT /Tx /T (%s) /Rect %s /F 4%s "+
				"/DA (/Helv 10 Tf 0 g) >>", f.Name, rect, ff))
		}
	}
	for i := 0; i < streams; i++ {
		b.addObject("<< /Type /XObject /Subtype /Form /BBox [0 0 20 20] /Resources << >> /Length 0 >>\nstream\n\nendstream")
	}

	if err := b.writeTo(path); err != nil {
		t.Fatalf("write form pdf: %v", err)
	}
}
