package view

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/clean-dependency-project/modelreg/internal/github"
	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// LicenseAPI is the registry surface the license check needs.
type LicenseAPI interface {
	LicenseCheck(ctx context.Context, id, githubURL string) (*registry.LicenseResult, error)
}

// RepoProbe looks up a repository's own license. *github.Client satisfies it.
type RepoProbe interface {
	License(ctx context.Context, repository string) (*github.RepoLicense, error)
}

// LicenseState is a snapshot of the license check screen.
type LicenseState struct {
	ID        string
	GitHubURL string
	Loading   bool
	Result    *registry.LicenseResult
	Err       error
	// Repo is the license GitHub reports for the repository, when a probe is configured.
	Repo    *github.RepoLicense
	RepoErr error
}

// Message returns the inline error text, if any.
func (s LicenseState) Message() string {
	return Describe(s.Err)
}

// License checks whether a model may be combined with a GitHub repository.
type License struct {
	controller
	api   LicenseAPI
	probe RepoProbe
	state LicenseState
}

// NewLicense creates a license controller. probe may be nil.
func NewLicense(api LicenseAPI, probe RepoProbe, opts ...Option) *License {
	l := &License{api: api, probe: probe}
	l.init("license", opts)
	return l
}

// State returns a copy of the current state.
func (l *License) State() LicenseState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Check asks the registry for its verdict and, alongside it, asks GitHub for the
// repository license. A probe failure is reported on RepoErr without failing the check.
func (l *License) Check(ctx context.Context, id, githubURL string) (*registry.LicenseResult, error) {
	id = strings.TrimSpace(id)
	githubURL = strings.TrimSpace(githubURL)

	var verr error
	switch {
	case registry.ValidateID(id) != nil:
		verr = invalid("id", "must contain only letters, digits and dashes")
	case githubURL == "":
		verr = invalid("github_url", "is required")
	default:
		if _, _, err := github.ParseRepository(githubURL); err != nil {
			verr = invalid("github_url", err.Error())
		}
	}
	if verr != nil {
		l.mu.Lock()
		l.state = LicenseState{ID: id, GitHubURL: githubURL, Err: verr}
		l.mu.Unlock()
		return nil, verr
	}

	l.mu.Lock()
	gen, err := l.begin()
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.state = LicenseState{ID: id, GitHubURL: githubURL, Loading: true}
	l.mu.Unlock()

	next := LicenseState{ID: id, GitHubURL: githubURL}
	var g errgroup.Group
	g.Go(func() error {
		next.Result, next.Err = l.api.LicenseCheck(ctx, id, githubURL)
		return nil
	})
	if l.probe != nil {
		g.Go(func() error {
			next.Repo, next.RepoErr = l.probe.License(ctx, githubURL)
			return nil
		})
	}
	_ = g.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.current(gen) {
		return next.Result, next.Err
	}
	l.state = next
	return next.Result, next.Err
}
