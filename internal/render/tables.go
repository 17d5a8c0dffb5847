package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// Table is a header plus rows of cells.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Write prints t as aligned columns.
func (t Table) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Header) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	}
	for _, r := range t.Rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

// PackageTable renders a listing page. Size shows Placeholder when unknown; the score
// column summarises only the scores that are present.
func PackageTable(items []registry.PackageSummary) Table {
	t := Table{Header: []string{"ID", "NAME", "VERSION", "SIZE", "SCORES"}}
	for _, p := range items {
		size := Placeholder
		if p.SizeBytes != nil {
			size = FormatBytes(*p.SizeBytes)
		}
		var parts []string
		for _, s := range ScoreList(p.Scores) {
			parts = append(parts, s.Metric+"="+s.Score)
		}
		scores := strings.Join(parts, " ")
		if scores == "" {
			scores = Placeholder
		}
		t.Rows = append(t.Rows, []string{p.ID, p.Name, p.Version, size, scores})
	}
	return t
}

// ArtifactTable renders artifact query results.
func ArtifactTable(items []registry.ArtifactMetadata) Table {
	t := Table{Header: []string{"ID", "NAME", "TYPE"}}
	for _, a := range items {
		t.Rows = append(t.Rows, []string{a.ID, a.Name, a.Type})
	}
	return t
}

// RatingTableRows renders RatingTable output as a Table.
func RatingTableRows(rows []RatingRow) Table {
	t := Table{Header: []string{"METRIC", "SCORE", "LATENCY"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Label, r.Score, r.Latency})
	}
	return t
}

// LineageTables renders the node and edge tables of a lineage view.
func LineageTables(v LineageView) (nodes, edges Table) {
	nodes = Table{Header: []string{"ID", "NAME", "TYPE", "SOURCE"}}
	for _, n := range v.Nodes {
		nodes.Rows = append(nodes.Rows, []string{n.ID, n.Label, n.Type, n.Source})
	}
	edges = Table{Header: []string{"FROM", "TO", "RELATIONSHIP"}}
	for _, e := range v.Edges {
		edges.Rows = append(edges.Rows, []string{e.From, e.To, e.Label})
	}
	return nodes, edges
}

// CostTable renders a cost view.
func CostTable(v CostView) Table {
	t := Table{Header: []string{"ID", "TOTAL", "STANDALONE", "DEPENDENCIES"}}
	for _, l := range v.Lines {
		standalone, dependency := "", ""
		if l.Breakdown != nil {
			standalone = FormatMB(l.Breakdown.Standalone)
			dependency = FormatMB(l.Breakdown.Dependency)
		}
		t.Rows = append(t.Rows, []string{l.ID, l.TotalText, standalone, dependency})
	}
	return t
}
