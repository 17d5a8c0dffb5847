package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// nodeColors maps an inferred node type to its fill colour.
var nodeColors = map[string]string{
	registry.TypeModel:   "#4e79a7",
	registry.TypeDataset: "#59a14f",
	registry.TypeCode:    "#f28e2b",
}

// NodeType infers an artifact type from a lineage node's source field. Dataset and
// code are checked before model; anything else is a model.
func NodeType(source string) string {
	s := strings.ToLower(source)
	switch {
	case strings.Contains(s, registry.TypeDataset):
		return registry.TypeDataset
	case strings.Contains(s, registry.TypeCode):
		return registry.TypeCode
	default:
		return registry.TypeModel
	}
}

// NodeColor returns the fill colour for an artifact type.
func NodeColor(nodeType string) string {
	if c, ok := nodeColors[nodeType]; ok {
		return c
	}
	return nodeColors[registry.TypeModel]
}

// GraphNode is a node ready for layout.
type GraphNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Source string `json:"source"`
	Type   string `json:"type"`
	Color  string `json:"color"`
}

// GraphEdge is a directed edge between two known nodes.
type GraphEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Graph is a directed lineage graph laid out top to bottom by an external renderer.
type Graph struct {
	Direction string      `json:"direction"`
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
}

// LineageView is the full display model of a lineage document.
type LineageView struct {
	Nodes    []GraphNode `json:"nodes"`
	Edges    []GraphEdge `json:"edges"`
	Graph    Graph       `json:"graph"`
	Warnings []Warning   `json:"warnings,omitempty"`
}

// Lineage builds node and edge tables plus a graph. Edges that reference an unknown node
// stay in the edge table but are left out of the graph and reported as warnings. Duplicate
// node ids keep their first occurrence.
func Lineage(doc registry.Lineage) LineageView {
	view := LineageView{Graph: Graph{Direction: "TB"}}
	known := make(map[string]bool, len(doc.Nodes))

	for _, n := range doc.Nodes {
		if n.ArtifactID == "" {
			view.Warnings = append(view.Warnings, Warning{Kind: "node", Message: fmt.Sprintf("node %q has no artifact id", n.Name)})
			continue
		}
		if known[n.ArtifactID] {
			view.Warnings = append(view.Warnings, Warning{Kind: "node", Message: fmt.Sprintf("duplicate node %s", n.ArtifactID)})
			continue
		}
		known[n.ArtifactID] = true

		label := n.Name
		if label == "" {
			label = n.ArtifactID
		}
		t := NodeType(n.Source)
		node := GraphNode{ID: n.ArtifactID, Label: label, Source: n.Source, Type: t, Color: NodeColor(t)}
		view.Nodes = append(view.Nodes, node)
		view.Graph.Nodes = append(view.Graph.Nodes, node)
	}

	for _, e := range doc.Edges {
		edge := GraphEdge{From: e.From, To: e.To, Label: e.Relationship}
		view.Edges = append(view.Edges, edge)

		var missing []string
		if !known[e.From] {
			missing = append(missing, fmt.Sprintf("%q", e.From))
		}
		if !known[e.To] {
			missing = append(missing, fmt.Sprintf("%q", e.To))
		}
		if len(missing) > 0 {
			view.Warnings = append(view.Warnings, Warning{
				Kind:    "edge",
				Message: fmt.Sprintf("edge %s -> %s references unknown node %s", e.From, e.To, strings.Join(missing, " and ")),
			})
			continue
		}
		view.Graph.Edges = append(view.Graph.Edges, edge)
	}
	return view
}

// DOT renders g in Graphviz format.
func DOT(g Graph) string {
	direction := g.Direction
	if direction == "" {
		direction = "TB"
	}

	var b strings.Builder
	b.WriteString("digraph lineage {\n")
	fmt.Fprintf(&b, "  rankdir=%s;\n", direction)
	b.WriteString("  node [shape=box, style=\"rounded,filled\", fontcolor=white];\n")
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "  %s [label=%s, fillcolor=%s, tooltip=%s];\n",
			dotQuote(n.ID), dotQuote(n.Label), dotQuote(n.Color), dotQuote(n.Type))
	}
	for _, e := range g.Edges {
		if e.Label != "" {
			fmt.Fprintf(&b, "  %s -> %s [label=%s];\n", dotQuote(e.From), dotQuote(e.To), dotQuote(e.Label))
		} else {
			fmt.Fprintf(&b, "  %s -> %s;\n", dotQuote(e.From), dotQuote(e.To))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func dotQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

// Legend returns the node types with their colours in a stable order.
func Legend() []GraphNode {
	types := make([]string, 0, len(nodeColors))
	for t := range nodeColors {
		types = append(types, t)
	}
	sort.Strings(types)
	out := make([]GraphNode, 0, len(types))
	for _, t := range types {
		out = append(out, GraphNode{Type: t, Label: MetricLabel(t), Color: nodeColors[t]})
	}
	return out
}
