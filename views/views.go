// Package views renders the server-side pages of the dashboard.
package views

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

//go:embed templates/*.html
var templates embed.FS

type Views struct {
	t *template.Template
}

var funcs = template.FuncMap{
	"itoa": func(i int64) string { return strconv.FormatInt(i, 10) },
}

func Parse() (*Views, error) {
	t, err := template.New("").Funcs(funcs).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	return &Views{t}, nil
}

// Render executes the named page fully before writing anything, so a failing
// template never leaves a half-written response.
func (v *Views) Render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := v.t.ExecuteTemplate(&buf, name, data); err != nil {
		return errors.Wrapf(err, "render %s", name)
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
