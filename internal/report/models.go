package report

import (
	"fmt"
	"html/template"
	"sort"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/render"
	"github.com/clean-dependency-project/modelreg/internal/storage"
	"github.com/clean-dependency-project/modelreg/internal/view"
)

// Page carries the fields shared by every report.
type Page struct {
	Title  string
	Scheme string
	Style  template.CSS
}

// MetaEntry is one key of a package's metadata, rendered as text.
type MetaEntry struct {
	Key   string
	Value string
}

// PackagePage is the data behind a package detail report.
type PackagePage struct {
	Page    Page
	ID      string
	Name    string
	Version string
	Size    string
	Parents []string
	Scores  []render.ScoreItem
	Meta    []MetaEntry
	Card    string
	Exports []storage.Export
}

// InspectPage is the data behind a model inspection report.
type InspectPage struct {
	Page    Page
	ID      string
	Rating  []render.RatingRow
	Charts  *render.Charts
	Lineage *render.LineageView
	DOT     string
	Cost    *render.CostView
	Errors  map[string]string
}

// NormalizeScheme maps a stored colour scheme onto one the stylesheet understands.
// Unknown values fall back to the system scheme.
func NormalizeScheme(scheme string) string {
	switch scheme {
	case storage.ColorSchemeLight, storage.ColorSchemeDark:
		return scheme
	}
	return storage.ColorSchemeSystem
}

// NewPackagePage builds the report data for a package. exports may be nil.
func NewPackagePage(pkg registry.PackageDetail, scheme string, exports []storage.Export) PackagePage {
	p := PackagePage{
		Page:    Page{Title: fmt.Sprintf("%s %s", pkg.Name, pkg.Version), Scheme: NormalizeScheme(scheme)},
		ID:      pkg.ID,
		Name:    pkg.Name,
		Version: pkg.Version,
		Size:    render.Placeholder,
		Parents: pkg.Parents,
		Scores:  render.ScoreList(pkg.Scores),
		Exports: exports,
	}
	if pkg.SizeBytes != nil {
		p.Size = render.FormatBytes(*pkg.SizeBytes)
	}
	if pkg.CardText != nil {
		p.Card = *pkg.CardText
	}

	keys := make([]string, 0, len(pkg.Meta))
	for k := range pkg.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Meta = append(p.Meta, MetaEntry{Key: k, Value: fmt.Sprint(pkg.Meta[k])})
	}
	return p
}

// NewInspectPage builds the report data for an inspected model.
func NewInspectPage(v view.InspectView, scheme string) InspectPage {
	p := InspectPage{
		Page:    Page{Title: "Model " + v.ID, Scheme: NormalizeScheme(scheme)},
		ID:      v.ID,
		Rating:  v.Rating,
		Charts:  v.Charts,
		Lineage: v.Lineage,
		Cost:    v.Cost,
		Errors:  v.Errors,
	}
	if v.Lineage != nil {
		p.DOT = render.DOT(v.Lineage.Graph)
	}
	return p
}
