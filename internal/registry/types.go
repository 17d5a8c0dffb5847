package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Roles assigned by the registry, in ascending order of privilege.
const (
	RoleViewer      = "viewer"
	RoleContributor = "contributor"
	RoleAdmin       = "admin"
)

// RoleRank orders roles for comparisons. Unknown roles rank below viewer.
func RoleRank(role string) int {
	switch role {
	case RoleViewer:
		return 1
	case RoleContributor:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// User is the identity returned by the whoami endpoint.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UnmarshalJSON accepts both {"username": ...} and raw JWT-style {"sub": ...} profiles.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		Username string `json:"username"`
		Sub      string `json:"sub"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.Username = raw.Username
	if u.Username == "" {
		u.Username = raw.Sub
	}
	u.Role = raw.Role
	return nil
}

// Scores holds the /v1 metric set. A nil field means the registry did not report it.
type Scores struct {
	Availability    *float64 `json:"availability,omitempty"`
	BusFactor       *float64 `json:"bus_factor,omitempty"`
	CodeQuality     *float64 `json:"code_quality,omitempty"`
	DatasetQuality  *float64 `json:"dataset_quality,omitempty"`
	RampUp          *float64 `json:"ramp_up,omitempty"`
	License         *float64 `json:"license,omitempty"`
	Reproducibility *float64 `json:"reproducibility,omitempty"`
	Reviewedness    *float64 `json:"reviewedness,omitempty"`
	TreeScore       *float64 `json:"treescore,omitempty"`
	Latency         *float64 `json:"latency,omitempty"`
}

// ScoreEntry is one named metric of a Scores value.
type ScoreEntry struct {
	Name  string
	Value *float64
}

// Entries returns all ten metrics in wire order, absent ones included with a nil Value.
func (s Scores) Entries() []ScoreEntry {
	return []ScoreEntry{
		{"availability", s.Availability},
		{"bus_factor", s.BusFactor},
		{"code_quality", s.CodeQuality},
		{"dataset_quality", s.DatasetQuality},
		{"ramp_up", s.RampUp},
		{"license", s.License},
		{"reproducibility", s.Reproducibility},
		{"reviewedness", s.Reviewedness},
		{"treescore", s.TreeScore},
		{"latency", s.Latency},
	}
}

// PackageSummary is one row of the package listing.
type PackageSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	SizeBytes *int64 `json:"size_bytes,omitempty"`
	Scores    Scores `json:"scores"`
}

// PackageDetail is a single package as returned by GET /v1/packages/{id}.
type PackageDetail struct {
	PackageSummary
	CardText *string        `json:"card_text,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	Parents  []string       `json:"parents"`
}

// PackagePage is one page of the listing.
type PackagePage struct {
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int              `json:"total"`
	Items []PackageSummary `json:"items"`
}

// ListQuery selects a page of packages. Zero Page and Limit are omitted so the registry
// applies its defaults.
type ListQuery struct {
	Page    int
	Limit   int
	Q       string
	Version string
}

// PackageCreate is the body of POST /v1/packages.
type PackageCreate struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	CardText        *string           `json:"card_text,omitempty"`
	Meta            map[string]string `json:"meta,omitempty"`
	Parents         []string          `json:"parents"`
	Sensitive       bool              `json:"sensitive"`
	PreDownloadHook *string           `json:"pre_download_hook,omitempty"`
}

// IngestRequest is the compact submission form. Optional fields are nil when blank so they
// are absent from the JSON body.
type IngestRequest struct {
	CodeURL    *string `json:"code_url,omitempty"`
	DatasetURL *string `json:"dataset_url,omitempty"`
	ModelURL   string  `json:"model_url"`
	Name       *string `json:"name,omitempty"`
	Version    string  `json:"version"`
}

// IngestResult is the registry's answer to a successful ingest.
type IngestResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Scores  Scores `json:"scores"`
}

// Health is the registry's liveness report.
type Health struct {
	UptimeSeconds  float64  `json:"uptime_s"`
	Success        int      `json:"success"`
	Errors         int      `json:"errors"`
	RecentWarnings []string `json:"recent_warnings"`
}

// Track is one feature track advertised by the registry.
type Track struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RatingMetrics lists the eleven rating metrics in display order.
var RatingMetrics = []string{
	"net_score",
	"ramp_up_time",
	"bus_factor",
	"performance_claims",
	"license",
	"dataset_and_code_score",
	"dataset_quality",
	"code_quality",
	"reproducibility",
	"reviewedness",
	"tree_score",
}

// RatingDocument is the fixed-schema output of the scoring engine. Every metric is paired
// with a "<metric>_latency" field in seconds; either may be absent.
type RatingDocument struct {
	Name             string
	Category         string
	Scores           map[string]*float64
	Latencies        map[string]*float64
	SizeScore        map[string]*float64
	SizeScoreLatency *float64
}

// Metric returns the score and latency for name. Both are nil when absent.
func (d RatingDocument) Metric(name string) (score, latency *float64) {
	return d.Scores[name], d.Latencies[name]
}

// UnmarshalJSON reads the flat wire form. Non-numeric metric values are treated as absent.
func (d *RatingDocument) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = RatingDocument{
		Scores:    make(map[string]*float64, len(RatingMetrics)),
		Latencies: make(map[string]*float64, len(RatingMetrics)),
		SizeScore: make(map[string]*float64),
	}
	d.Name = stringValue(raw["name"])
	d.Category = stringValue(raw["category"])

	for _, m := range RatingMetrics {
		if v := number(raw[m]); v != nil {
			d.Scores[m] = v
		}
		if v := number(raw[m+"_latency"]); v != nil {
			d.Latencies[m] = v
		}
	}
	d.SizeScoreLatency = number(raw["size_score_latency"])

	if ss, ok := raw["size_score"]; ok {
		var platforms map[string]json.RawMessage
		if err := json.Unmarshal(ss, &platforms); err != nil {
			return fmt.Errorf("size_score: %w", err)
		}
		for k, v := range platforms {
			if n := number(v); n != nil {
				d.SizeScore[k] = n
			}
		}
	}
	return nil
}

// MarshalJSON writes the flat wire form, omitting absent metrics.
func (d RatingDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2*len(RatingMetrics)+4)
	if d.Name != "" {
		out["name"] = d.Name
	}
	if d.Category != "" {
		out["category"] = d.Category
	}
	for _, m := range RatingMetrics {
		if v := d.Scores[m]; v != nil {
			out[m] = *v
		}
		if v := d.Latencies[m]; v != nil {
			out[m+"_latency"] = *v
		}
	}
	if len(d.SizeScore) > 0 {
		out["size_score"] = d.SizeScore
	}
	if d.SizeScoreLatency != nil {
		out["size_score_latency"] = *d.SizeScoreLatency
	}
	return json.Marshal(out)
}

// stringValue decodes a string field. Absent, null and non-string values read as "".
func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func number(raw json.RawMessage) *float64 {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// Artifact types accepted by the artifact API.
const (
	TypeModel   = "model"
	TypeDataset = "dataset"
	TypeCode    = "code"
)

// ArtifactMetadata identifies an artifact.
type ArtifactMetadata struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ArtifactData locates an artifact's content.
type ArtifactData struct {
	URL         string  `json:"url"`
	DownloadURL *string `json:"download_url,omitempty"`
	Name        *string `json:"name,omitempty"`
}

// Artifact is the envelope returned by upload and get.
type Artifact struct {
	Metadata ArtifactMetadata `json:"metadata"`
	Data     ArtifactData     `json:"data"`
}

// ArtifactQuery is one element of the POST /artifacts body. A nil Types means all types.
type ArtifactQuery struct {
	Name  string   `json:"name"`
	Types []string `json:"types,omitempty"`
}

// LineageNode is one artifact in a lineage graph.
type LineageNode struct {
	ArtifactID string `json:"artifact_id"`
	Name       string `json:"name"`
	Source     string `json:"source"`
}

// LineageEdge is a directed relationship between two nodes.
type LineageEdge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship"`
}

// UnmarshalJSON accepts both the short from/to keys and the long
// from_node_artifact_id/to_node_artifact_id keys.
func (e *LineageEdge) UnmarshalJSON(data []byte) error {
	var raw struct {
		From         string `json:"from"`
		To           string `json:"to"`
		FromNode     string `json:"from_node_artifact_id"`
		ToNode       string `json:"to_node_artifact_id"`
		Relationship string `json:"relationship"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.From, e.To, e.Relationship = raw.From, raw.To, raw.Relationship
	if e.From == "" {
		e.From = raw.FromNode
	}
	if e.To == "" {
		e.To = raw.ToNode
	}
	return nil
}

// Lineage is the graph returned for a model.
type Lineage struct {
	Nodes []LineageNode `json:"nodes"`
	Edges []LineageEdge `json:"edges"`
}

// CostEntry is the cost of one artifact in megabytes.
type CostEntry struct {
	TotalCost      float64  `json:"total_cost"`
	StandaloneCost *float64 `json:"standalone_cost,omitempty"`
}

// CostReport maps artifact id to its cost.
type CostReport map[string]CostEntry

// LicenseResult is the outcome of a license check. The endpoint answers either a boolean
// or a free-form string; Compatible is nil for the string form.
type LicenseResult struct {
	Compatible *bool
	Message    string
}
