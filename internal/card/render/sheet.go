package render

import (
	"fmt"
	"html/template"
	"io"
)

// sheetMarkup is the print composition contract: one .sheet element per
// page holding a fixed 5x2 grid of .card elements, each card absolutely
// positioning its resolved elements. Browsers print one sheet per page via
// the page-break rule.
const sheetMarkup = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
.sheet { display: grid; grid-template-columns: repeat({{.Columns}}, auto); gap: 4mm; page-break-after: always; }
.card { position: relative; overflow: hidden; }
.card .el { position: absolute; }
</style>
</head>
<body>
{{- range .Sheets}}
<div class="sheet" data-sheet="{{.Number}}">
{{- range .Cards}}
<div class="card" data-side="{{.Side}}" style="width: {{.Width}}; height: {{.Height}};{{styleAttr .Style}}">
{{- range .Elements}}
{{- if eq (printf "%s" .Type) "image"}}
{{- if .Src}}
<img class="el" src="{{safeSrc .Src}}" style="left: {{.Left}}; top: {{.Top}}; width: {{.Width}}; height: {{.Height}};{{elStyle .}}">
{{- end}}
{{- else}}
<span class="el" style="left: {{.Left}}; top: {{.Top}};{{elStyle .}}">{{.Text}}</span>
{{- end}}
{{- end}}
</div>
{{- end}}
</div>
{{- end}}
</body>
</html>
`

var sheetTemplate = template.Must(template.New("sheets").Funcs(template.FuncMap{
	"styleAttr": pageStyleAttr,
	"elStyle":   elementStyleAttr,
	// Sources reach the sheet only after vetImageSource, which restricts
	// them to http(s) URLs and data URIs. Data URIs would otherwise be
	// rejected by the contextual escaper.
	"safeSrc": func(s string) template.URL { return template.URL(s) },
}).Parse(sheetMarkup))

// sheetStyleOrder keeps emitted page styles deterministic for diffing.
var sheetStyleOrder = []string{
	"backgroundColor", "backgroundImage", "backgroundSize",
	"backgroundPosition", "backgroundRepeat", "borderRadius",
}

func pageStyleAttr(style map[string]string) template.CSS {
	out := ""
	for _, key := range sheetStyleOrder {
		if v, ok := style[key]; ok && v != "" {
			out += fmt.Sprintf(" %s: %s;", cssName(key), v)
		}
	}
	return template.CSS(out)
}

func elementStyleAttr(el Element) template.CSS {
	out := ""
	add := func(name, value string) {
		if value != "" {
			out += fmt.Sprintf(" %s: %s;", name, value)
		}
	}
	add("font-size", el.FontSize)
	add("color", el.Color)
	add("font-weight", el.FontWeight)
	add("font-family", el.FontFamily)
	add("border", el.Border)
	add("border-radius", el.Radius)
	return template.CSS(out)
}

func cssName(key string) string {
	out := make([]byte, 0, len(key)+2)
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'A' && c <= 'Z' {
			out = append(out, '-', c+'a'-'A')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// WriteSheetHTML renders the paginated deck as a print-ready HTML document.
func WriteSheetHTML(w io.Writer, sheets []Sheet) error {
	data := struct {
		Columns int
		Sheets  []Sheet
	}{
		Columns: SheetColumns,
		Sheets:  sheets,
	}
	if err := sheetTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render: write sheets: %w", err)
	}
	return nil
}
