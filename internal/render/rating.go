package render

import (
	"github.com/clean-dependency-project/modelreg/internal/platform"
	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// RadarMetrics is the subset of rating metrics plotted on the radar chart.
var RadarMetrics = []string{
	"ramp_up_time",
	"bus_factor",
	"performance_claims",
	"license",
	"dataset_quality",
	"code_quality",
}

// RatingRow is one line of the rating table.
type RatingRow struct {
	Metric  string   `json:"metric"`
	Label   string   `json:"label"`
	Score   string   `json:"score"`
	Latency string   `json:"latency"`
	Value   float64  `json:"value"`
	Seconds *float64 `json:"seconds,omitempty"`
}

// RatingTable lists the rating metrics in fixed order. Metrics without a score are
// skipped; a present score with an absent latency shows Placeholder for the latency.
func RatingTable(doc registry.RatingDocument) []RatingRow {
	rows := make([]RatingRow, 0, len(registry.RatingMetrics))
	for _, m := range registry.RatingMetrics {
		score, latency := doc.Metric(m)
		if score == nil {
			continue
		}
		row := RatingRow{
			Metric:  m,
			Label:   MetricLabel(m),
			Score:   FormatScore(*score),
			Latency: Placeholder,
			Value:   ClampScore(*score),
			Seconds: latency,
		}
		if latency != nil {
			row.Latency = FormatLatency(*latency)
		}
		rows = append(rows, row)
	}
	return rows
}

// Point is one labelled value of a chart series.
type Point struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is a named list of points ready for an external chart renderer.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Charts groups the three chart series shown for a rating.
type Charts struct {
	Radar Series `json:"radar"`
	Bar   Series `json:"bar"`
	Pie   Series `json:"pie"`
}

// RatingCharts builds the radar, bar, and platform pie series. Absent values are
// skipped in every series.
func RatingCharts(doc registry.RatingDocument) Charts {
	charts := Charts{
		Radar: Series{Name: "Quality profile"},
		Bar:   Series{Name: "Metric scores"},
		Pie:   Series{Name: "Size score by platform"},
	}
	for _, m := range RadarMetrics {
		if v := doc.Scores[m]; v != nil {
			charts.Radar.Points = append(charts.Radar.Points, Point{Key: m, Label: MetricLabel(m), Value: ClampScore(*v)})
		}
	}
	for _, m := range registry.RatingMetrics {
		if v := doc.Scores[m]; v != nil {
			charts.Bar.Points = append(charts.Bar.Points, Point{Key: m, Label: MetricLabel(m), Value: ClampScore(*v)})
		}
	}
	for _, key := range platform.Keys() {
		if v := doc.SizeScore[key]; v != nil {
			charts.Pie.Points = append(charts.Pie.Points, Point{Key: key, Label: PlatformLabel(key), Value: ClampScore(*v)})
		}
	}
	return charts
}

// ScoreItem is one present entry of a /v1 score list.
type ScoreItem struct {
	Metric string `json:"metric"`
	Label  string `json:"label"`
	Score  string `json:"score"`
}

// ScoreList renders the present /v1 scores in wire order. latency is shown in seconds.
func ScoreList(scores registry.Scores) []ScoreItem {
	var items []ScoreItem
	for _, e := range scores.Entries() {
		if e.Value == nil {
			continue
		}
		item := ScoreItem{Metric: e.Name, Label: MetricLabel(e.Name)}
		if e.Name == "latency" {
			item.Score = FormatLatency(*e.Value)
		} else {
			item.Score = FormatScore(*e.Value)
		}
		items = append(items, item)
	}
	return items
}
