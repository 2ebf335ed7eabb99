// Package templates renders the HTML pages and fragments of the web UI.
package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// PreviewData is the view model for a preview table.
type PreviewData struct {
	File      string
	Dialect   string
	Detected  bool
	Headers   []string
	Rows      [][]*string
	Truncated bool
}

const page = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>filerift</title></head>
<body>
<h1>filerift</h1>
<form method="post" action="/api/preview" enctype="multipart/form-data">
  <input type="file" name="file" required>
  <label>Delimiter <input type="text" name="delimiter" size="6" placeholder="detect"></label>
  <label>Rows <input type="number" name="rows" min="1"></label>
  <label>Widths <input type="text" name="widths" placeholder="e.g. 5,10,3"></label>
  <select name="header"><option value="true">Header row</option><option value="false">No header</option></select>
  <select name="trim"><option value="false">Keep spaces</option><option value="true">Trim cells</option></select>
  <button type="submit">Preview</button>
</form>
</body>
</html>
`

// Index renders the upload form.
func Index() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, page)
		return err
	})
}

// Preview renders the first rows of a file as a table.
func Preview(p PreviewData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}

		ew.write(`<section class="preview"><h2>`, templ.EscapeString(p.File), `</h2><p>`)
		ew.write(templ.EscapeString(p.Dialect))
		if p.Detected {
			ew.write(` (detected)`)
		}
		ew.write(`</p><table>`)

		if len(p.Headers) > 0 {
			ew.write(`<thead><tr><th>#</th>`)
			for _, h := range p.Headers {
				ew.write(`<th>`, templ.EscapeString(h), `</th>`)
			}
			ew.write(`</tr></thead>`)
		}

		ew.write(`<tbody>`)
		for i, row := range p.Rows {
			ew.write(`<tr><td>`, strconv.Itoa(i+1), `</td>`)
			for _, cell := range row {
				if cell == nil {
					ew.write(`<td class="null">NULL</td>`)
					continue
				}
				ew.write(`<td>`, templ.EscapeString(*cell), `</td>`)
			}
			ew.write(`</tr>`)
		}
		ew.write(`</tbody></table>`)

		if p.Truncated {
			ew.write(`<p class="truncated">Showing the first `, strconv.Itoa(len(p.Rows)), ` rows</p>`)
		}
		ew.write(`</section>`)
		return ew.err
	})
}

// ErrorAlert renders an error fragment with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.write(`<div class="alert alert-error" role="alert"><strong>`, templ.EscapeString(message), `</strong>`)
		if action != "" {
			ew.write(`<p>`, templ.EscapeString(action), `</p>`)
		}
		ew.write(`<small>Code: `, templ.EscapeString(code), `</small></div>`)
		return ew.err
	})
}

// errWriter keeps the first write error and drops later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) write(parts ...string) {
	for _, s := range parts {
		if ew.err != nil {
			return
		}
		_, ew.err = io.WriteString(ew.w, s)
	}
}
