package render

import (
	"fmt"
	"sort"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// CostBreakdown splits a total into standalone and dependency cost.
type CostBreakdown struct {
	Standalone float64 `json:"standalone"`
	Dependency float64 `json:"dependency"`
}

// CostLine is the cost display for one artifact.
type CostLine struct {
	ID        string         `json:"id"`
	Total     float64        `json:"total"`
	TotalText string         `json:"total_text"`
	Breakdown *CostBreakdown `json:"breakdown,omitempty"`
}

// CostView is the cost display for a report. Focus is the requested artifact's line,
// if the report contains it.
type CostView struct {
	Focus    *CostLine  `json:"focus,omitempty"`
	Lines    []CostLine `json:"lines"`
	Warnings []Warning  `json:"warnings,omitempty"`
}

// CostEntryLine renders one cost entry. The breakdown is present only when a standalone
// figure exists and the derived dependency cost is positive.
func CostEntryLine(id string, entry registry.CostEntry) CostLine {
	line := CostLine{ID: id, Total: entry.TotalCost, TotalText: FormatMB(entry.TotalCost)}
	if entry.StandaloneCost != nil {
		if dep := entry.TotalCost - *entry.StandaloneCost; dep > 0 {
			line.Breakdown = &CostBreakdown{Standalone: *entry.StandaloneCost, Dependency: dep}
		}
	}
	return line
}

// Cost renders every entry of report, focus first, others sorted by id.
func Cost(id string, report registry.CostReport) CostView {
	view := CostView{}
	ids := make([]string, 0, len(report))
	for k := range report {
		if k != id {
			ids = append(ids, k)
		}
	}
	sort.Strings(ids)

	if entry, ok := report[id]; ok {
		line := CostEntryLine(id, entry)
		view.Focus = &line
		view.Lines = append(view.Lines, line)
	} else if id != "" {
		view.Warnings = append(view.Warnings, Warning{Kind: "cost", Message: fmt.Sprintf("no cost reported for %s", id)})
	}
	for _, k := range ids {
		view.Lines = append(view.Lines, CostEntryLine(k, report[k]))
	}
	return view
}
