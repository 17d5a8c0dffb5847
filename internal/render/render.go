// Package render turns registry documents into display models: tables, chart series,
// graph structures, and cost breakdowns.
//
// Every function here is pure. Absent values are skipped, never shown as zero, and
// malformed input degrades into Warnings instead of failing.
package render

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/clean-dependency-project/modelreg/internal/platform"
)

// Placeholder is shown in place of an absent value inside a row that is otherwise present.
const Placeholder = "n/a"

// Warning reports input that was dropped or could not be displayed as given.
type Warning struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Kind + ": " + w.Message
}

// labelOverrides covers metric names whose title-cased form reads badly.
var labelOverrides = map[string]string{
	"treescore":              "Tree Score",
	"dataset_and_code_score": "Dataset & Code Score",
	"ramp_up":                "Ramp Up Time",
}

// MetricLabel converts a snake_case metric name into a display label.
func MetricLabel(name string) string {
	if label, ok := labelOverrides[name]; ok {
		return label
	}
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

// PlatformLabel returns the display label of a size-score platform key.
func PlatformLabel(key string) string {
	return platform.Label(key)
}

// ClampScore limits a score to [0, 1]. NaN becomes 0.
func ClampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// FormatScore renders a score clamped to [0, 1] with two decimals.
func FormatScore(v float64) string {
	return fmt.Sprintf("%.2f", ClampScore(v))
}

// FormatLatency renders a latency in seconds with three decimals.
func FormatLatency(seconds float64) string {
	return fmt.Sprintf("%.3fs", seconds)
}

// FormatOptionalScore formats v, or returns Placeholder when v is nil.
func FormatOptionalScore(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return FormatScore(*v)
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatMB renders a cost figure in megabytes.
func FormatMB(mb float64) string {
	return fmt.Sprintf("%.2f MB", mb)
}
