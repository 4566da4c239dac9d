// Package report renders ranked listings as an HTML page and as PDFs.
package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"house-finder/models"
)

// Report is everything a rendered page shows.
type Report struct {
	Run        models.RunInfo
	Objectives []string
	Listings   []*models.EvaluatedListing
	Summary    *models.RunSummary
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"score": func(ev *models.EvaluatedListing, name string) string {
		r, ok := ev.Result(name)
		if !ok || !r.Available {
			return "n/a"
		}
		return fmt.Sprintf("%.1f", r.Score)
	},
	"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04 MST") },
}

var page = template.Must(template.New("report").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>House finder: {{.Run.Query.Area}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border-bottom: 1px solid #ddd; padding: 6px; text-align: left; vertical-align: top; }
td.num { text-align: right; }
img { max-width: 160px; }
</style>
</head>
<body>
<h1>{{.Run.Query.Area}} ({{.Run.Query.Type}})</h1>
<p>Run {{.Run.ID}} started {{stamp .Run.StartedAt}}.
{{with .Summary}}{{.Ranked}} of {{.Evaluated}} listings satisfy the constraints.{{end}}</p>
{{if .Listings}}
<table>
<thead>
<tr><th>#</th><th></th><th>Address</th><th>Price</th><th>Score</th>{{range .Objectives}}<th>{{.}}</th>{{end}}<th>Links</th></tr>
</thead>
<tbody>
{{- $objectives := .Objectives}}
{{- range $i, $ev := .Listings}}
<tr>
<td>{{inc $i}}</td>
<td>{{with $ev.Listing.Image}}<img src="{{.}}" alt="">{{end}}</td>
<td>{{$ev.Listing.Address}}</td>
<td class="num">£{{$ev.Listing.Price}}</td>
<td class="num">{{printf "%.1f" $ev.TotalScore}}</td>
{{- range $objectives}}<td class="num">{{score $ev .}}</td>{{end}}
<td><a href="{{$ev.Listing.URL}}">details</a>{{with $ev.Listing.PrintURL}} <a href="{{.}}">print</a>{{end}}</td>
</tr>
{{- end}}
</tbody>
</table>
{{else}}
<p>No listings satisfy the constraints.</p>
{{end}}
</body>
</html>
`))

// Render writes the HTML report to w.
func Render(w io.Writer, r *Report) error {
	if err := page.Execute(w, r); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

// WriteHTML renders the report to path, creating parent directories.
func WriteHTML(path string, r *Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := Render(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
