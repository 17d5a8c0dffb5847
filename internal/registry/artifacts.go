package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// artifactIDPattern mirrors the registry's ArtifactID schema.
var artifactIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// ArtifactTypes lists the valid artifact types.
func ArtifactTypes() []string {
	return []string{TypeModel, TypeDataset, TypeCode}
}

// ValidateType reports whether t is a known artifact type.
func ValidateType(t string) error {
	switch t {
	case TypeModel, TypeDataset, TypeCode:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidArtifactType, t)
}

// ValidateID reports whether id matches the registry's artifact id pattern.
func ValidateID(id string) error {
	if !artifactIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidArtifactID, id)
	}
	return nil
}

func validateRef(artifactType, id string) error {
	if err := ValidateType(artifactType); err != nil {
		return err
	}
	return ValidateID(id)
}

// UploadArtifact registers a new artifact of the given type from a source URL.
func (c *Client) UploadArtifact(ctx context.Context, artifactType, sourceURL string, name *string) (*Artifact, error) {
	if err := ValidateType(artifactType); err != nil {
		return nil, err
	}
	body := ArtifactData{URL: sourceURL, Name: name}
	var artifact Artifact
	if err := c.Do(ctx, http.MethodPost, []string{"artifact", artifactType}, nil, body, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// QueryArtifacts runs one or more name queries. A query named "*" enumerates everything.
// offset is passed through for paging and may be empty.
func (c *Client) QueryArtifacts(ctx context.Context, queries []ArtifactQuery, offset string) ([]ArtifactMetadata, error) {
	for _, q := range queries {
		for _, t := range q.Types {
			if err := ValidateType(t); err != nil {
				return nil, err
			}
		}
	}

	var params url.Values
	if offset != "" {
		params = url.Values{"offset": {offset}}
	}
	var results []ArtifactMetadata
	if err := c.Do(ctx, http.MethodPost, []string{"artifacts"}, params, queries, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// QueryByRegex finds artifacts whose name matches pattern.
func (c *Client) QueryByRegex(ctx context.Context, pattern string) ([]ArtifactMetadata, error) {
	body := map[string]string{"regex": pattern}
	var results []ArtifactMetadata
	if err := c.Do(ctx, http.MethodPost, []string{"artifact", "byRegEx"}, nil, body, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ArtifactsByName returns every artifact with exactly this name.
func (c *Client) ArtifactsByName(ctx context.Context, name string) ([]ArtifactMetadata, error) {
	var results []ArtifactMetadata
	if err := c.Do(ctx, http.MethodGet, []string{"artifact", "byName", name}, nil, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetArtifact fetches an artifact envelope.
func (c *Client) GetArtifact(ctx context.Context, artifactType, id string) (*Artifact, error) {
	if err := validateRef(artifactType, id); err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := c.Do(ctx, http.MethodGet, []string{"artifacts", artifactType, id}, nil, nil, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// DeleteArtifact removes an artifact.
func (c *Client) DeleteArtifact(ctx context.Context, artifactType, id string) error {
	if err := validateRef(artifactType, id); err != nil {
		return err
	}
	return c.Do(ctx, http.MethodDelete, []string{"artifacts", artifactType, id}, nil, nil, nil)
}

// RateModel fetches the rating document for a model artifact.
func (c *Client) RateModel(ctx context.Context, id string) (*RatingDocument, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var doc RatingDocument
	if err := c.Do(ctx, http.MethodGet, []string{"artifact", "model", id, "rate"}, nil, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Lineage fetches the lineage graph of a model artifact.
func (c *Client) Lineage(ctx context.Context, id string) (*Lineage, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var lineage Lineage
	if err := c.Do(ctx, http.MethodGet, []string{"artifact", "model", id, "lineage"}, nil, nil, &lineage); err != nil {
		return nil, err
	}
	return &lineage, nil
}

// Cost fetches the size cost of an artifact, optionally including its dependencies.
func (c *Client) Cost(ctx context.Context, artifactType, id string, dependency bool) (CostReport, error) {
	if err := validateRef(artifactType, id); err != nil {
		return nil, err
	}
	params := url.Values{"dependency": {strconv.FormatBool(dependency)}}
	var report CostReport
	if err := c.Do(ctx, http.MethodGet, []string{"artifact", artifactType, id, "cost"}, params, nil, &report); err != nil {
		return nil, err
	}
	return report, nil
}

// LicenseCheck asks whether a model's license is compatible with a GitHub project.
func (c *Client) LicenseCheck(ctx context.Context, id, githubURL string) (*LicenseResult, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	body := map[string]string{"github_url": githubURL}
	text, err := c.DoText(ctx, http.MethodPost, []string{"artifact", "model", id, "license-check"}, nil, body)
	if err != nil {
		return nil, err
	}
	return parseLicenseResult(text), nil
}

// parseLicenseResult accepts a JSON boolean, a JSON string, an {"ok", "rationale"} object,
// or bare text.
func parseLicenseResult(text string) *LicenseResult {
	trimmed := strings.TrimSpace(text)

	var b bool
	if err := json.Unmarshal([]byte(trimmed), &b); err == nil {
		return &LicenseResult{Compatible: &b}
	}
	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
		return &LicenseResult{Message: s}
	}
	var obj struct {
		OK        *bool  `json:"ok"`
		Rationale string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj.OK != nil {
		return &LicenseResult{Compatible: obj.OK, Message: obj.Rationale}
	}
	return &LicenseResult{Message: trimmed}
}
