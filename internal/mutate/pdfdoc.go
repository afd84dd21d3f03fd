package mutate

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/inkfill/inkfill/internal/docmodel"
)

const annotDefaultAppearance = "/Helv 10 Tf 0 g"

// PDFDoc implements Doc over a live pdfcpu context. Open, mutate,
// then Save; the source file is untouched until Save targets it.
type PDFDoc struct {
	ctx     *model.Context
	widgets map[string]types.Dict
	log     *slog.Logger
}

// OpenPDF loads the document at path and indexes its widgets by
// qualified field name.
func OpenPDF(path string, log *slog.Logger) (*PDFDoc, error) {
	if log == nil {
		log = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	d := &PDFDoc{ctx: ctx, widgets: make(map[string]types.Dict), log: log}
	d.indexWidgets()
	return d, nil
}

func (d *PDFDoc) indexWidgets() {
	for pageNr := 1; pageNr <= d.ctx.PageCount; pageNr++ {
		pd, _, _, err := d.ctx.PageDict(pageNr, false)
		if err != nil {
			continue
		}
		obj, found := pd.Find("Annots")
		if !found {
			continue
		}
		annots, err := d.ctx.DereferenceArray(obj)
		if err != nil {
			continue
		}
		for _, item := range annots {
			wd, err := d.ctx.DereferenceDict(item)
			if err != nil || wd == nil {
				continue
			}
			sub := wd.NameEntry("Subtype")
			if sub == nil || *sub != "Widget" {
				continue
			}
			name := docmodel.QualifiedFieldName(d.ctx, wd)
			if name == "" {
				continue
			}
			if _, exists := d.widgets[name]; !exists {
				d.widgets[name] = wd
			}
		}
	}
}

// SetWidgetValue writes value into the named widget. Checkboxes only
// accept their declared appearance states; everything else is written
// as a string with appearance regeneration delegated to the viewer.
func (d *PDFDoc) SetWidgetValue(field docmodel.FormField, value string) error {
	wd, ok := d.widgets[field.Name]
	if !ok {
		return fmt.Errorf("widget %q not found", field.Name)
	}

	if field.Kind == docmodel.KindCheckbox {
		if field.OnState != "" && value != field.OnState && value != "Off" {
			return fmt.Errorf("widget %q rejects state %q", field.Name, value)
		}
		wd["V"] = types.Name(value)
		wd["AS"] = types.Name(value)
		return nil
	}

	wd["V"] = types.StringLiteral(value)
	// Stale appearance streams would keep showing the old value.
	delete(wd, "AP")
	d.setNeedAppearances()
	return nil
}

func (d *PDFDoc) setNeedAppearances() {
	catalog, err := d.ctx.Catalog()
	if err != nil {
		return
	}
	obj, found := catalog.Find("AcroForm")
	if !found {
		return
	}
	acro, err := d.ctx.DereferenceDict(obj)
	if err != nil || acro == nil {
		return
	}
	acro["NeedAppearances"] = types.Boolean(true)
}

// AddFreeText places a visible text annotation at rect.
func (d *PDFDoc) AddFreeText(page int, rect docmodel.Rect, text string) error {
	annot := types.Dict(map[string]types.Object{
		"Type":     types.Name("Annot"),
		"Subtype":  types.Name("FreeText"),
		"Rect":     types.NewNumberArray(rect.X0, rect.Y0, rect.X1, rect.Y1),
		"Contents": types.StringLiteral(text),
		"DA":       types.StringLiteral(annotDefaultAppearance),
		"F":        types.Integer(4), // print
	})
	return d.appendAnnot(page, annot)
}

// AddRectWithText draws a filled rectangle carrying the text.
func (d *PDFDoc) AddRectWithText(page int, rect docmodel.Rect, text string) error {
	annot := types.Dict(map[string]types.Object{
		"Type":     types.Name("Annot"),
		"Subtype":  types.Name("Square"),
		"Rect":     types.NewNumberArray(rect.X0, rect.Y0, rect.X1, rect.Y1),
		"Contents": types.StringLiteral(text),
		"IC":       types.NewNumberArray(1, 1, 0.8),
		"F":        types.Integer(4),
	})
	return d.appendAnnot(page, annot)
}

// AddPoint drops a sticky-note annotation carrying the text.
func (d *PDFDoc) AddPoint(page int, rect docmodel.Rect, text string) error {
	annot := types.Dict(map[string]types.Object{
		"Type":     types.Name("Annot"),
		"Subtype":  types.Name("Text"),
		"Rect":     types.NewNumberArray(rect.X0, rect.Y0, rect.X0+20, rect.Y0+20),
		"Contents": types.StringLiteral(text),
		"Name":     types.Name("Comment"),
		"F":        types.Integer(4),
	})
	return d.appendAnnot(page, annot)
}

func (d *PDFDoc) appendAnnot(page int, annot types.Dict) error {
	if page < 1 || page > d.ctx.PageCount {
		return fmt.Errorf("annotation page %d out of range", page)
	}
	pd, _, _, err := d.ctx.PageDict(page, false)
	if err != nil {
		return fmt.Errorf("page dict: %w", err)
	}

	ir, err := d.ctx.IndRefForNewObject(annot)
	if err != nil {
		return fmt.Errorf("allocate annotation object: %w", err)
	}

	var annots types.Array
	if obj, found := pd.Find("Annots"); found {
		if arr, err := d.ctx.DereferenceArray(obj); err == nil {
			annots = arr
		}
	}
	annots = append(annots, *ir)
	pd["Annots"] = annots
	return nil
}

// Save writes the mutated document to outPath.
func (d *PDFDoc) Save(outPath string) error {
	if err := api.WriteContextFile(d.ctx, outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Verify interface
var _ Doc = (*PDFDoc)(nil)
