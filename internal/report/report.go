// Package report renders registry records as self-contained HTML pages.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"strings"

	"github.com/clean-dependency-project/modelreg/internal/render"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed assets/style.css
var styleCSS string

// Renderer executes the embedded report templates.
type Renderer struct {
	tmpl   *template.Template
	logger *slog.Logger
}

// New parses the embedded templates.
func New(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, logger: logger}, nil
}

// loadTemplates loads all HTML templates with helper functions.
func loadTemplates() (*template.Template, error) {
	tmpl := template.New("").Funcs(template.FuncMap{
		"formatBytes": render.FormatBytes,
		"formatMB":    render.FormatMB,
		"join":        strings.Join,
	})

	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}
		if _, err := tmpl.New(entry.Name()).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", entry.Name(), err)
		}
	}

	return tmpl, nil
}

func (r *Renderer) execute(w io.Writer, name string, data any) error {
	if err := r.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("failed to execute %s: %w", name, err)
	}
	return nil
}

// Package writes the HTML report of a package to w.
func (r *Renderer) Package(w io.Writer, page PackagePage) error {
	page.Page.Style = template.CSS(styleCSS)
	return r.execute(w, "package.tmpl", page)
}

// Inspect writes the HTML report of a model inspection to w.
func (r *Renderer) Inspect(w io.Writer, page InspectPage) error {
	page.Page.Style = template.CSS(styleCSS)
	return r.execute(w, "inspect.tmpl", page)
}

// WritePackage renders a package report to path. It reports whether the file changed.
func (r *Renderer) WritePackage(path string, page PackagePage) (bool, error) {
	var buf bytes.Buffer
	if err := r.Package(&buf, page); err != nil {
		return false, err
	}
	written, err := writeFileIfChanged(path, buf.Bytes(), r.logger)
	if err != nil {
		return false, fmt.Errorf("failed to write package report: %w", err)
	}
	r.logger.Info("rendered package report", "path", path, "id", page.ID, "changed", written)
	return written, nil
}

// WriteInspect renders an inspection report to path. It reports whether the file changed.
func (r *Renderer) WriteInspect(path string, page InspectPage) (bool, error) {
	var buf bytes.Buffer
	if err := r.Inspect(&buf, page); err != nil {
		return false, err
	}
	written, err := writeFileIfChanged(path, buf.Bytes(), r.logger)
	if err != nil {
		return false, fmt.Errorf("failed to write inspection report: %w", err)
	}
	r.logger.Info("rendered inspection report", "path", path, "id", page.ID, "changed", written)
	return written, nil
}
