package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	var result struct {
		Token string `json:"token"`
	}
	if err := c.Do(ctx, http.MethodPost, []string{"v1", "auth", "login"}, nil, body, &result); err != nil {
		return "", err
	}
	if result.Token == "" {
		return "", fmt.Errorf("%w: login response has no token", ErrInvalidResponse)
	}
	return result.Token, nil
}

// WhoAmI returns the identity bound to the current token.
func (c *Client) WhoAmI(ctx context.Context) (*User, error) {
	var user User
	if err := c.Do(ctx, http.MethodGet, []string{"v1", "auth", "whoami"}, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListPackages fetches one page of package summaries.
func (c *Client) ListPackages(ctx context.Context, q ListQuery) (*PackagePage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Q != "" {
		params.Set("q", q.Q)
	}
	if q.Version != "" {
		params.Set("version", q.Version)
	}

	var page PackagePage
	if err := c.Do(ctx, http.MethodGet, []string{"v1", "packages"}, params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPackage fetches one package by id.
func (c *Client) GetPackage(ctx context.Context, id string) (*PackageDetail, error) {
	var detail PackageDetail
	if err := c.Do(ctx, http.MethodGet, []string{"v1", "packages", id}, nil, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetPackageRaw fetches one package by id and returns the undecoded body.
func (c *Client) GetPackageRaw(ctx context.Context, id string) ([]byte, error) {
	return c.DoRaw(ctx, http.MethodGet, []string{"v1", "packages", id}, nil, nil)
}

// CreatePackage registers a new package.
func (c *Client) CreatePackage(ctx context.Context, pkg PackageCreate) (*PackageDetail, error) {
	if pkg.Parents == nil {
		pkg.Parents = []string{}
	}
	var detail PackageDetail
	if err := c.Do(ctx, http.MethodPost, []string{"v1", "packages"}, nil, pkg, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// IngestCLI submits a model through the compact ingest form.
func (c *Client) IngestCLI(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	var result IngestResult
	if err := c.Do(ctx, http.MethodPost, []string{"v1", "ingest", "cli"}, nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RatePackage asks the registry to rate a package and returns the new scores.
func (c *Client) RatePackage(ctx context.Context, id string) (*Scores, error) {
	var scores Scores
	if err := c.Do(ctx, http.MethodPost, []string{"v1", "rate", id}, nil, nil, &scores); err != nil {
		return nil, err
	}
	return &scores, nil
}

// RatingRecord is a downloaded rating document together with the exact bytes served.
type RatingRecord struct {
	Document RatingDocument
	Raw      []byte
}

// RatingDocument fetches the NDJSON rating document for a package. The first non-empty
// line is decoded; Raw keeps the full body for download.
func (c *Client) RatingDocument(ctx context.Context, id string) (*RatingRecord, error) {
	segments := []string{"v1", "rate", id, "ndjson"}
	raw, err := c.DoRaw(ctx, http.MethodGet, segments, nil, nil)
	if err != nil {
		return nil, err
	}

	var line []byte
	for _, l := range bytes.Split(raw, []byte("\n")) {
		if l = bytes.TrimSpace(l); len(l) > 0 {
			line = l
			break
		}
	}

	docURL, _ := url.JoinPath(c.config.BaseURL, segments...)
	if line == nil {
		return nil, &DecodeError{URL: docURL, Err: fmt.Errorf("empty rating document")}
	}

	record := &RatingRecord{Raw: raw}
	if err := json.Unmarshal(line, &record.Document); err != nil {
		return nil, &DecodeError{URL: docURL, Err: err}
	}
	return record, nil
}

// Health reports registry liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.Do(ctx, http.MethodGet, []string{"health"}, nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Tracks lists the feature tracks the registry implements.
func (c *Client) Tracks(ctx context.Context) ([]Track, error) {
	var resp struct {
		PlannedTracks []Track `json:"planned_tracks"`
	}
	if err := c.Do(ctx, http.MethodGet, []string{"v1", "tracks"}, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.PlannedTracks, nil
}
