// Package github looks up repository licenses through the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
)

// Sentinel errors for GitHub operations.
var (
	ErrInvalidRepo     = errors.New("repository must be in format 'owner/repo' or a github.com URL")
	ErrRepoNotFound    = errors.New("repository not found")
	ErrLicenseNotFound = errors.New("repository has no detectable license")
)

// RepoLicense is the license GitHub detected for a repository.
type RepoLicense struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Key     string `json:"key"`
	SPDXID  string `json:"spdx_id"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url,omitempty"`
}

// Client wraps the GitHub API client for license lookups.
type Client struct {
	client *github.Client
}

// NewClient creates a GitHub API client. An empty token gives an anonymous client,
// which is subject to GitHub's lower unauthenticated rate limit.
func NewClient(token string) *Client {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Client{client: client}
}

// NewClientForURL is NewClient against another API root, such as a GitHub Enterprise
// server.
func NewClientForURL(token, baseURL string) (*Client, error) {
	c := NewClient(token)
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API url %q: %w", baseURL, err)
	}
	c.client.BaseURL = u
	c.client.UploadURL = u
	return c, nil
}

// License returns the detected license of the repository named by repository, which is
// either "owner/repo" or a github.com URL.
func (c *Client) License(ctx context.Context, repository string) (*RepoLicense, error) {
	owner, repo, err := ParseRepository(repository)
	if err != nil {
		return nil, err
	}

	if c.client == nil {
		return nil, fmt.Errorf("client not initialized: use NewClient to create instances")
	}

	rl, resp, err := c.client.Repositories.License(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			// GitHub answers 404 both for a missing repository and a repository without a license file.
			if _, repoResp, repoErr := c.client.Repositories.Get(ctx, owner, repo); repoErr != nil && repoResp != nil && repoResp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s/%s", ErrRepoNotFound, owner, repo)
			}
			return nil, fmt.Errorf("%w: %s/%s", ErrLicenseNotFound, owner, repo)
		}
		return nil, fmt.Errorf("failed to get license for %s/%s: %w", owner, repo, err)
	}

	out := &RepoLicense{Owner: owner, Repo: repo, HTMLURL: rl.GetHTMLURL()}
	if lic := rl.GetLicense(); lic != nil {
		out.Key = lic.GetKey()
		out.SPDXID = lic.GetSPDXID()
		out.Name = lic.GetName()
	}
	if out.Key == "" && out.SPDXID == "" {
		return nil, fmt.Errorf("%w: %s/%s", ErrLicenseNotFound, owner, repo)
	}
	return out, nil
}

// ParseRepository splits "owner/repo" or a github.com URL into owner and repo.
// A trailing ".git" and any path after the repository name are ignored.
func ParseRepository(repository string) (owner, repo string, err error) {
	s := strings.TrimSpace(repository)
	if s == "" {
		return "", "", ErrInvalidRepo
	}

	if strings.Contains(s, "://") || strings.HasPrefix(s, "github.com/") {
		if !strings.Contains(s, "://") {
			s = "https://" + s
		}
		u, perr := url.Parse(s)
		if perr != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidRepo, perr)
		}
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		if host != "github.com" {
			return "", "", fmt.Errorf("%w: host %s is not github.com", ErrInvalidRepo, u.Host)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 {
			return "", "", fmt.Errorf("%w: got %s", ErrInvalidRepo, repository)
		}
		owner, repo = parts[0], parts[1]
	} else {
		parts := strings.Split(s, "/")
		if len(parts) != 2 {
			return "", "", fmt.Errorf("%w: got %s", ErrInvalidRepo, repository)
		}
		owner, repo = parts[0], parts[1]
	}

	owner = strings.TrimSpace(owner)
	repo = strings.TrimSuffix(strings.TrimSpace(repo), ".git")
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: owner or repo is empty", ErrInvalidRepo)
	}

	return owner, repo, nil
}

// restrictedLicenses are model licenses that forbid commercial fine-tuning or inference.
var restrictedLicenses = map[string]bool{
	"cc-by-nc-4.0": true,
	"proprietary":  true,
}

// Compatibility is a local verdict on combining a model license with a repository license.
type Compatibility struct {
	OK        bool   `json:"ok"`
	Rationale string `json:"rationale"`
}

// CheckCompatibility applies the registry's fine-tune and inference policy to a model
// license and a repository license key. An empty model license is treated as apache-2.0.
func CheckCompatibility(modelLicense, repoLicense string) Compatibility {
	model := strings.ToLower(strings.TrimSpace(modelLicense))
	if model == "" {
		model = "apache-2.0"
	}
	repo := strings.ToLower(strings.TrimSpace(repoLicense))

	if restrictedLicenses[model] {
		return Compatibility{OK: false, Rationale: fmt.Sprintf("Model license %s is non-commercial or restricted.", model)}
	}
	if restrictedLicenses[repo] {
		return Compatibility{OK: false, Rationale: fmt.Sprintf("Repo license %s is non-commercial or restricted.", repo)}
	}
	return Compatibility{
		OK:        true,
		Rationale: fmt.Sprintf("Model license=%s, Repo license=%s compatible for fine-tune+inference.", model, repo),
	}
}
