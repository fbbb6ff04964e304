// Package render produces the HTML page shown in the browser once the callback is handled.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

//go:embed templates/*
var templateFiles embed.FS

const defaultTemplateName = "response.html"

// View is the data available to a response template.
type View struct {
	Title  string
	Status string
	Token  string
	Error  string
}

func (v View) Succeeded() bool { return v.Status == "success" }
func (v View) Denied() bool    { return v.Status == "denied" }

// Renderer writes a response body for a view.
type Renderer interface {
	Render(w io.Writer, view View) error
}

// Template renders views with an html/template.
type Template struct {
	tmpl *template.Template
}

var _ Renderer = (*Template)(nil)

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// Default returns the embedded response template.
func Default() *Template {
	content, err := fs.ReadFile(TemplateFilesFS(), defaultTemplateName)
	if err != nil {
		panic("Failed to read default template: " + err.Error())
	}
	return &Template{tmpl: template.Must(template.New(defaultTemplateName).Parse(string(content)))}
}

// Parse compiles a caller supplied template. Fields and the Succeeded/Denied methods of View are available.
func Parse(text string) (*Template, error) {
	tmpl, err := template.New("custom").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("[render Parse] %w", err)
	}
	return &Template{tmpl: tmpl}, nil
}

func (t *Template) Render(w io.Writer, view View) error {
	return t.tmpl.Execute(w, view)
}
