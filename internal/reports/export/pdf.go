package export

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Converter turns an HTML document into PDF bytes.
type Converter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PDFRenderer lays a Document out as HTML and converts it to PDF.
type PDFRenderer struct {
	converter Converter
	printer   *message.Printer
	tmpl      *template.Template
}

// NewPDFRenderer builds a renderer formatting numbers for the given locale.
func NewPDFRenderer(converter Converter, tag language.Tag) *PDFRenderer {
	r := &PDFRenderer{converter: converter, printer: message.NewPrinter(tag)}
	r.tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
		"cell":    r.formatCell,
		"numeric": func(kind ColumnKind) bool { return kind != KindText },
	}).Parse(reportTemplate))
	return r
}

type pageData struct {
	Document
	GeneratedAt string
}

// HTML renders the document markup.
func (r *PDFRenderer) HTML(doc Document, generatedAt time.Time) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, pageData{Document: doc, GeneratedAt: generatedAt.Format("2006-01-02 15:04 MST")}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render converts the document to PDF.
func (r *PDFRenderer) Render(ctx context.Context, doc Document, generatedAt time.Time) ([]byte, error) {
	if r == nil || r.converter == nil {
		return nil, errors.New("export: pdf converter not configured")
	}
	html, err := r.HTML(doc, generatedAt)
	if err != nil {
		return nil, err
	}
	return r.converter.RenderHTML(ctx, html)
}

func (r *PDFRenderer) formatCell(kind ColumnKind, raw string) string {
	if kind == KindText || raw == "" {
		return raw
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	f := value.InexactFloat64()
	switch kind {
	case KindAmount:
		return r.printer.Sprint(number.Decimal(f, number.Scale(2)))
	case KindQuantity:
		return r.printer.Sprint(number.Decimal(f, number.MaxFractionDigits(3)))
	default:
		return r.printer.Sprint(number.Decimal(f, number.MaxFractionDigits(0)))
	}
}

const reportTemplate = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
body{font-family:sans-serif;margin:24px;}
h1{font-size:20px;margin-bottom:4px;}
p.meta{color:#666;margin-top:0;}
table{width:100%;border-collapse:collapse;margin-bottom:16px;}
th,td{border:1px solid #ddd;padding:6px;text-align:left;}
th{background:#f5f5f5;}
td.num{text-align:right;}
section{margin-bottom:24px;}
</style></head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Generated {{.GeneratedAt}}</p>
{{range .Sheets}}{{$columns := .Columns}}<section><h2>{{.Title}}</h2>
<table><thead><tr>{{range $columns}}<th>{{.Title}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}<tr>{{range $i, $value := .}}{{with index $columns $i}}<td{{if numeric .Kind}} class="num"{{end}}>{{cell .Kind $value}}</td>{{end}}{{end}}</tr>
{{else}}<tr><td colspan="{{len $columns}}">No data</td></tr>
{{end}}</tbody></table></section>
{{end}}</body></html>
`
