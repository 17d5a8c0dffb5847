package view

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clean-dependency-project/modelreg/internal/github"
	"github.com/clean-dependency-project/modelreg/internal/registry"
)

func TestLicense_Check(t *testing.T) {
	m := &mockRegistry{}
	m.LicenseCheckFunc = func(_ context.Context, id, githubURL string) (*registry.LicenseResult, error) {
		assert.Equal(t, "abc123", id)
		assert.Equal(t, "https://github.com/google-research/bert", githubURL)
		return &registry.LicenseResult{Compatible: ptr(true), Message: "compatible"}, nil
	}
	probe := &mockProbe{LicenseFunc: func(context.Context, string) (*github.RepoLicense, error) {
		return &github.RepoLicense{Owner: "google-research", Repo: "bert", Key: "apache-2.0", SPDXID: "Apache-2.0"}, nil
	}}
	l := NewLicense(m, probe)

	res, err := l.Check(context.Background(), "abc123", " https://github.com/google-research/bert ")
	require.NoError(t, err)
	require.NotNil(t, res.Compatible)
	assert.True(t, *res.Compatible)

	s := l.State()
	require.NotNil(t, s.Repo)
	assert.Equal(t, "Apache-2.0", s.Repo.SPDXID)
	assert.NoError(t, s.RepoErr)
}

func TestLicense_ProbeFailureDoesNotFailCheck(t *testing.T) {
	m := &mockRegistry{}
	m.LicenseCheckFunc = func(context.Context, string, string) (*registry.LicenseResult, error) {
		return &registry.LicenseResult{Message: "not sure"}, nil
	}
	probe := &mockProbe{LicenseFunc: func(context.Context, string) (*github.RepoLicense, error) {
		return nil, github.ErrLicenseNotFound
	}}
	l := NewLicense(m, probe)

	_, err := l.Check(context.Background(), "abc123", "owner/repo")
	require.NoError(t, err)
	assert.ErrorIs(t, l.State().RepoErr, github.ErrLicenseNotFound)
}

func TestLicense_Validation(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		url       string
		wantField string
	}{
		{name: "bad id", id: "a/b", url: "owner/repo", wantField: "id"},
		{name: "missing url", id: "abc", url: "", wantField: "github_url"},
		{name: "not github", id: "abc", url: "https://gitlab.com/a/b", wantField: "github_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockRegistry{}
			l := NewLicense(m, nil)

			_, err := l.Check(context.Background(), tt.id, tt.url)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Empty(t, m.Calls())
		})
	}
}
