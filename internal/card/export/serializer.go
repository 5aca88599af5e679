// Package export produces the persisted form of an edited template: the
// selected fields only, with all session bookkeeping stripped.
package export

import (
	"encoding/json"
	"errors"
	"fmt"

	"campusworks.org/idcard-admin/internal/card/template"
)

// ErrNothingToExport is returned when the selection leaves no field on any
// side. Handlers map it to an unprocessable-entity response.
var ErrNothingToExport = errors.New("export: no fields selected")

// ExportTemplate builds a cleaned copy of the template containing only the
// selected fields. Field ids and the id counter are session bookkeeping and
// never reach the saved document. When sides are given, only those sides
// contribute fields; with none, every side of the template does. A back with
// no surviving fields is omitted entirely; the front slot stays present
// (possibly empty) because a template document always carries one.
func ExportTemplate(tpl *template.Template, selection map[template.SideName]map[string]struct{}, sides ...template.SideName) (*template.Template, error) {
	if tpl == nil || tpl.Front == nil {
		return nil, template.ErrMissingFront
	}

	include := sides
	if len(include) == 0 {
		include = tpl.Sides()
	}

	out := &template.Template{
		Front: &template.Side{PageStyle: tpl.Front.PageStyle.Clone(), Items: []*template.Field{}},
	}
	total := 0
	for _, name := range include {
		src := tpl.Side(name)
		if src == nil {
			continue
		}
		side := exportSide(src, selection[name])
		total += len(side.Items)
		switch name {
		case template.SideFront:
			out.Front = side
		case template.SideBack:
			if len(side.Items) > 0 {
				out.Back = side
			}
		}
	}
	if total == 0 {
		return nil, ErrNothingToExport
	}
	return out, nil
}

func exportSide(s *template.Side, selected map[string]struct{}) *template.Side {
	out := &template.Side{
		PageStyle: s.PageStyle.Clone(),
		Items:     []*template.Field{},
	}
	for _, f := range s.Items {
		if _, ok := selected[f.ID]; !ok {
			continue
		}
		clone := f.Clone()
		clone.ID = ""
		out.Items = append(out.Items, clone)
	}
	return out
}

// Marshal serialises an export-ready template as the stored JSON document.
func Marshal(tpl *template.Template, selection map[template.SideName]map[string]struct{}, sides ...template.SideName) ([]byte, error) {
	cleaned, err := ExportTemplate(tpl, selection, sides...)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(cleaned, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: encode template: %w", err)
	}
	return data, nil
}
