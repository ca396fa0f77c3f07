package loader

import (
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/a3tai/mcp-perfil-reader/internal/pdf/errors"
)

// maxFieldDepth bounds the walk down AcroForm Kids arrays
const maxFieldDepth = 16

// FormField is a filled-in text or choice field of an interactive form
type FormField struct {
	// Name is the fully qualified field name, e.g. "datos.curp".
	Name string `json:"name"`
	// Label is the field's user-facing name (TU), empty when absent.
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// Text renders the field as a "label: value" line
func (f FormField) Text() string {
	label := f.Label
	if label == "" {
		label = f.Name[strings.LastIndex(f.Name, ".")+1:]
		label = strings.NewReplacer("_", " ", "-", " ").Replace(label)
	}
	return label + ": " + f.Value
}

// FormReader is implemented by documents that can list filled-in form
// fields. Field values of fillable PDFs live outside the page content, so
// page text alone misses them.
type FormReader interface {
	FormFields() ([]FormField, error)
}

// FormFields returns the non-empty text and choice fields of the
// document's AcroForm, in form order. A document without a form has none.
func (d *pdfDocument) FormFields() (fields []FormField, err error) {
	defer func() {
		if r := recover(); r != nil {
			fields = nil
			err = pdferrors.NewPDFError(pdferrors.ErrorTypePageText, fmt.Sprintf("panic reading form: %v", r))
		}
	}()

	ctx, err := d.cpuContext()
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypePageText, "form fields unavailable", err)
	}

	root, err := ctx.Catalog()
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypePageText, "failed to get catalog", err)
	}
	acroFormObj, found := root.Find("AcroForm")
	if !found {
		return nil, nil
	}
	acroForm, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroForm == nil {
		return nil, err
	}
	fieldsObj, found := acroForm.Find("Fields")
	if !found {
		return nil, nil
	}
	fieldRefs, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypePageText, "failed to dereference Fields array", err)
	}

	w := formWalker{ctx: ctx}
	for _, ref := range fieldRefs {
		w.walk(ref, "", "", 0)
	}
	return w.fields, nil
}

type formWalker struct {
	ctx    *model.Context
	fields []FormField
}

// walk visits a field and its kids. The field type (FT) is inheritable, so
// it is passed down; widget-only kids carry no name of their own.
func (w *formWalker) walk(obj types.Object, parentName, inheritedType string, depth int) {
	if depth > maxFieldDepth {
		return
	}
	dict, err := w.ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		return
	}

	name := parentName
	if partial := w.str(dict, "T"); partial != "" {
		if name != "" {
			name += "."
		}
		name += partial
	}

	fieldType := inheritedType
	if ft := dict.NameEntry("FT"); ft != nil {
		fieldType = *ft
	}

	if kidsObj, found := dict.Find("Kids"); found {
		if kids, err := w.ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kids {
				w.walk(kid, name, fieldType, depth+1)
			}
		}
	}

	if fieldType != "Tx" && fieldType != "Ch" {
		return
	}
	// a kid without T is a widget of its parent, whose value was read there
	if _, hasName := dict.Find("T"); !hasName {
		return
	}
	value := strings.TrimSpace(w.value(dict))
	if value == "" {
		return
	}
	w.fields = append(w.fields, FormField{
		Name:  name,
		Label: strings.TrimSpace(w.str(dict, "TU")),
		Value: value,
	})
}

func (w *formWalker) str(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

// value reads V as a string, or as the selected entries of a multi-select choice
func (w *formWalker) value(dict types.Dict) string {
	obj, found := dict.Find("V")
	if !found {
		return ""
	}
	if s, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
		return s
	}
	arr, err := w.ctx.DereferenceArray(obj)
	if err != nil {
		return ""
	}
	var values []string
	for _, item := range arr {
		if s, err := w.ctx.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil && s != "" {
			values = append(values, s)
		}
	}
	return strings.Join(values, ", ")
}
