package docmodel

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const maxParentDepth = 16

// Extractor reads the widget surface of a PDF into an Extraction.
// Widgets are discovered by walking each page's Annots array; field
// attributes are resolved through the AcroForm parent chain.
type Extractor struct {
	log *slog.Logger
}

func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{log: log}
}

// Extract opens the document at path and returns its form fields keyed
// by fully qualified name. An unreadable document yields an
// *ExtractionError; a broken page or widget is logged and skipped.
func (x *Extractor) Extract(path string) (*Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("read pdf: %w", err)}
	}

	ext := &Extraction{
		Path:      path,
		PageCount: ctx.PageCount,
		Fields:    make(map[string]FormField),
	}

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if err := x.extractPage(ctx, pageNr, ext); err != nil {
			x.log.Warn("skipping page during extraction", "path", path, "page", pageNr, "error", err)
		}
	}

	return ext, nil
}

func (x *Extractor) extractPage(ctx *model.Context, pageNr int, ext *Extraction) error {
	pd, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return fmt.Errorf("page dict: %w", err)
	}
	obj, found := pd.Find("Annots")
	if !found {
		return nil
	}
	annots, err := ctx.DereferenceArray(obj)
	if err != nil {
		return fmt.Errorf("annots array: %w", err)
	}

	for i, item := range annots {
		d, err := ctx.DereferenceDict(item)
		if err != nil || d == nil {
			continue
		}
		sub := d.NameEntry("Subtype")
		if sub == nil || *sub != "Widget" {
			continue
		}
		field, ok := x.widgetField(ctx, d, pageNr)
		if !ok {
			continue
		}
		if _, exists := ext.Fields[field.Name]; exists {
			x.log.Debug("duplicate field name, keeping first widget", "name", field.Name, "page", pageNr, "annot", i)
			continue
		}
		ext.Fields[field.Name] = field
	}
	return nil
}

// widgetField builds a FormField from a widget annotation dict. Returns
// ok=false for unnamed widgets and pushbuttons, which carry no fillable
// value.
func (x *Extractor) widgetField(ctx *model.Context, d types.Dict, pageNr int) (FormField, bool) {
	name := QualifiedFieldName(ctx, d)
	if name == "" {
		return FormField{}, false
	}

	flags := 0
	if obj, ok := x.findInherited(ctx, d, "Ff"); ok {
		if n, err := ctx.DereferenceInteger(obj); err == nil && n != nil {
			flags = int(*n)
		}
	}

	ft := ""
	if obj, ok := x.findInherited(ctx, d, "FT"); ok {
		if n, err := ctx.DereferenceName(obj, model.V10, nil); err == nil {
			ft = string(n)
		}
	}

	kind := KindText
	switch ft {
	case "Btn":
		if flags&(1<<16) != 0 { // pushbutton
			return FormField{}, false
		}
		kind = KindCheckbox
	case "Ch":
		kind = KindChoice
	case "Sig":
		kind = KindSignature
	}

	field := FormField{
		Name:     name,
		Page:     pageNr,
		Kind:     kind,
		Editable: flags&1 == 0,
		Required: flags&2 != 0,
	}

	if obj, ok := d.Find("Rect"); ok {
		if r, err := x.rect(ctx, obj); err == nil {
			field.Rect = r
		}
	}
	if obj, ok := x.findInherited(ctx, d, "V"); ok {
		field.Value = x.valueString(ctx, obj)
	}
	if kind == KindChoice {
		field.Options = x.options(ctx, d)
	}
	if kind == KindCheckbox {
		field.OnState = x.onState(ctx, d)
	}
	return field, true
}

// QualifiedFieldName joins the T entries of a widget's parent chain,
// root first, with dots. Shared with the mutation path so both address
// widgets by the same names.
func QualifiedFieldName(ctx *model.Context, d types.Dict) string {
	var parts []string
	for depth := 0; d != nil && depth < maxParentDepth; depth++ {
		if obj, ok := d.Find("T"); ok {
			if s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil && s != "" {
				parts = append(parts, s)
			}
		}
		obj, ok := d.Find("Parent")
		if !ok {
			break
		}
		pd, err := ctx.DereferenceDict(obj)
		if err != nil || pd == nil {
			break
		}
		d = pd
	}
	if len(parts) == 0 {
		return ""
	}
	// reverse to root-first order
	name := parts[len(parts)-1]
	for i := len(parts) - 2; i >= 0; i-- {
		name += "." + parts[i]
	}
	return name
}

func (x *Extractor) findInherited(ctx *model.Context, d types.Dict, key string) (types.Object, bool) {
	for depth := 0; d != nil && depth < maxParentDepth; depth++ {
		if obj, ok := d.Find(key); ok {
			return obj, true
		}
		obj, ok := d.Find("Parent")
		if !ok {
			return nil, false
		}
		pd, err := ctx.DereferenceDict(obj)
		if err != nil || pd == nil {
			return nil, false
		}
		d = pd
	}
	return nil, false
}

func (x *Extractor) rect(ctx *model.Context, obj types.Object) (Rect, error) {
	arr, err := ctx.DereferenceArray(obj)
	if err != nil {
		return Rect{}, err
	}
	if len(arr) != 4 {
		return Rect{}, fmt.Errorf("rect has %d elements", len(arr))
	}
	var v [4]float64
	for i, o := range arr {
		n, err := ctx.DereferenceNumber(o)
		if err != nil {
			return Rect{}, err
		}
		v[i] = n
	}
	r := Rect{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r, nil
}

// valueString renders a field value that may be a string literal or a
// name (checkbox/radio states are names).
func (x *Extractor) valueString(ctx *model.Context, obj types.Object) string {
	if s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
		return s
	}
	if n, err := ctx.DereferenceName(obj, model.V10, nil); err == nil {
		return string(n)
	}
	return ""
}

// options reads the Opt array of a choice field. Entries are either
// plain strings or [export, display] pairs; the display text is kept.
func (x *Extractor) options(ctx *model.Context, d types.Dict) []string {
	obj, ok := x.findInherited(ctx, d, "Opt")
	if !ok {
		return nil
	}
	arr, err := ctx.DereferenceArray(obj)
	if err != nil {
		return nil
	}
	var opts []string
	for _, o := range arr {
		if pair, err := ctx.DereferenceArray(o); err == nil && len(pair) == 2 {
			o = pair[1]
		}
		if s, err := ctx.DereferenceStringOrHexLiteral(o, model.V10, nil); err == nil && s != "" {
			opts = append(opts, s)
		}
	}
	return opts
}

// onState finds the checkbox on-state name from the widget's normal
// appearance dict: the single AP/N key that is not "Off".
func (x *Extractor) onState(ctx *model.Context, d types.Dict) string {
	obj, ok := d.Find("AP")
	if !ok {
		return ""
	}
	ap, err := ctx.DereferenceDict(obj)
	if err != nil || ap == nil {
		return ""
	}
	obj, ok = ap.Find("N")
	if !ok {
		return ""
	}
	n, err := ctx.DereferenceDict(obj)
	if err != nil || n == nil {
		return ""
	}
	for k := range n {
		if k != "Off" {
			return k
		}
	}
	return ""
}
