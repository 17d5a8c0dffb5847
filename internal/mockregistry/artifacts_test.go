package mockregistry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gh "github.com/clean-dependency-project/modelreg/internal/github"
	"github.com/clean-dependency-project/modelreg/internal/registry"
)

const (
	baseURL    = "https://hf.co/bert-base"
	tunedURL   = "https://hf.co/bert-ft"
	datasetURL = "https://hf.co/datasets/squad"
)

func seededArtifacts() Options {
	opts := testOptions()
	opts.Seed.Artifacts = []SeedArtifact{
		{Type: registry.TypeDataset, URL: datasetURL},
		{Type: registry.TypeModel, URL: baseURL, License: "apache-2.0"},
		{Type: registry.TypeModel, URL: tunedURL, License: "cc-by-nc-4.0", Parents: []string{"bert-base", "squad", "ghost"}},
	}
	return opts
}

func TestUploadArtifact(t *testing.T) {
	srv, ts := startServer(t, testOptions())
	client := clientAs(t, srv, ts, registry.RoleContributor)
	ctx := context.Background()

	a, err := client.UploadArtifact(ctx, registry.TypeModel, "https://huggingface.co/google-bert/bert-base-uncased", nil)
	require.NoError(t, err)
	assert.Equal(t, artifactID(registry.TypeModel, "https://huggingface.co/google-bert/bert-base-uncased"), a.Metadata.ID)
	assert.Len(t, a.Metadata.ID, 10)
	assert.Equal(t, "bert-base-uncased", a.Metadata.Name)
	assert.Equal(t, registry.TypeModel, a.Metadata.Type)
	require.NotNil(t, a.Data.DownloadURL)

	_, err = client.UploadArtifact(ctx, registry.TypeModel, "https://huggingface.co/google-bert/bert-base-uncased", nil)
	assert.ErrorIs(t, err, registry.ErrConflict)

	name := "squad-v2"
	d, err := client.UploadArtifact(ctx, registry.TypeDataset, "https://huggingface.co/google-bert/bert-base-uncased", &name)
	require.NoError(t, err, "the same URL under another type is a different artifact")
	assert.Equal(t, "squad-v2", d.Metadata.Name)

	_, err = clientAs(t, srv, ts, registry.RoleViewer).UploadArtifact(ctx, registry.TypeCode, "https://github.com/x/y", nil)
	assert.ErrorIs(t, err, registry.ErrForbidden)
}

func TestGetAndDeleteArtifact(t *testing.T) {
	srv, ts := startServer(t, seededArtifacts())
	ctx := context.Background()
	id := artifactID(registry.TypeModel, baseURL)

	viewer := clientAs(t, srv, ts, registry.RoleViewer)
	a, err := viewer.GetArtifact(ctx, registry.TypeModel, id)
	require.NoError(t, err)
	assert.Equal(t, baseURL, a.Data.URL)

	_, err = viewer.GetArtifact(ctx, registry.TypeDataset, id)
	assert.Equal(t, 400, statusOf(t, err), "type mismatch")

	_, err = viewer.GetArtifact(ctx, registry.TypeModel, "0000000000")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	err = clientAs(t, srv, ts, registry.RoleContributor).DeleteArtifact(ctx, registry.TypeModel, id)
	assert.ErrorIs(t, err, registry.ErrForbidden)

	require.NoError(t, clientAs(t, srv, ts, registry.RoleAdmin).DeleteArtifact(ctx, registry.TypeModel, id))
	_, err = viewer.GetArtifact(ctx, registry.TypeModel, id)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func names(items []registry.ArtifactMetadata) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestQueryArtifacts(t *testing.T) {
	srv, ts := startServer(t, seededArtifacts())
	client := clientAs(t, srv, ts, registry.RoleViewer)
	ctx := context.Background()

	all, err := client.QueryArtifacts(ctx, []registry.ArtifactQuery{{Name: "*"}, {Name: "*"}}, "")
	require.NoError(t, err)
	assert.Len(t, all, 3, "wildcard results are deduplicated")

	models, err := client.QueryArtifacts(ctx, []registry.ArtifactQuery{{Name: "*", Types: []string{registry.TypeModel}}}, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bert-base", "bert-ft"}, names(models))

	exact, err := client.QueryArtifacts(ctx, []registry.ArtifactQuery{{Name: "squad"}, {Name: "bert-ft"}}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"squad", "bert-ft"}, names(exact), "results follow query order")

	_, err = client.QueryArtifacts(ctx, []registry.ArtifactQuery{{Name: "squad", Types: []string{registry.TypeModel}}}, "")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestArtifactsByRegex(t *testing.T) {
	srv, ts := startServer(t, seededArtifacts())
	client := clientAs(t, srv, ts, registry.RoleViewer)
	ctx := context.Background()

	tests := []struct {
		name    string
		pattern string
		want    []string
		status  int
	}{
		{name: "anchored literal is exact", pattern: "^bert-base$", want: []string{"bert-base"}},
		{name: "plain literal is exact", pattern: "bert", status: 404},
		{name: "regex searches names", pattern: "bert.*", want: []string{"bert-base", "bert-ft"}},
		{name: "invalid regex", pattern: "bert(", status: 400},
		{name: "no match", pattern: "^gpt.*", status: 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.QueryByRegex(ctx, tt.pattern)
			if tt.status != 0 {
				assert.Equal(t, tt.status, statusOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, names(got))
		})
	}
}

func TestArtifactsByName(t *testing.T) {
	srv, ts := startServer(t, seededArtifacts())
	client := clientAs(t, srv, ts, registry.RoleViewer)

	got, err := client.ArtifactsByName(context.Background(), "squad")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, registry.TypeDataset, got[0].Type)

	_, err = client.ArtifactsByName(context.Background(), "nope")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRateModel(t *testing.T) {
	srv, ts := startServer(t, seededArtifacts())
	client := clientAs(t, srv, ts, registry.RoleViewer)

	doc, err := client.RateModel(context.Background(), artifactID(registry.TypeModel, tunedURL))
	require.NoError(t, err)
	assert.Equal(t, "bert-ft", doc.Name)
	assert.Equal(t, "MODEL", doc.Category)
	assert.Len(t, doc.Scores, len(registry.RatingMetrics))

	_, err = client.RateModel(context.Background(), artifactID(registry.TypeDataset, datasetURL))
	assert.Equal(t, 400, statusOf(t, err), "datasets have no model rating")
}

func TestLineage(t *testing.T) {
	srv, ts := startServer(t, seededArtifacts())
	client := clientAs(t, srv, ts, registry.RoleViewer)
	tuned := artifactID(registry.TypeModel, tunedURL)
	base := artifactID(registry.TypeModel, baseURL)
	dataset := artifactID(registry.TypeDataset, datasetURL)

	lineage, err := client.Lineage(context.Background(), tuned)
	require.NoError(t, err)

	nodeIDs := make([]string, 0, len(lineage.Nodes))
	for _, n := range lineage.Nodes {
		nodeIDs = append(nodeIDs, n.ArtifactID)
	}
	assert.Equal(t, []string{tuned, base, dataset}, nodeIDs)
	assert.Equal(t, []registry.LineageEdge{
		{From: base, To: tuned, Relationship: "base_model"},
		{From: dataset, To: tuned, Relationship: "training_dataset"},
		{From: "ghost", To: tuned, Relationship: "unknown"},
	}, lineage.Edges)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Contains(t, health.RecentWarnings, "lineage references unknown artifact")
}

func TestCost(t *testing.T) {
	srv, ts := startServer(t, seededArtifacts())
	client := clientAs(t, srv, ts, registry.RoleViewer)
	ctx := context.Background()
	tuned := artifactID(registry.TypeModel, tunedURL)
	base := artifactID(registry.TypeModel, baseURL)
	dataset := artifactID(registry.TypeDataset, datasetURL)

	alone, err := client.Cost(ctx, registry.TypeModel, tuned, false)
	require.NoError(t, err)
	require.Contains(t, alone, tuned)
	assert.InDelta(t, 2.1, alone[tuned].TotalCost, 1e-9)
	assert.Nil(t, alone[tuned].StandaloneCost)

	deps, err := client.Cost(ctx, registry.TypeModel, tuned, true)
	require.NoError(t, err)
	require.Len(t, deps, 3)
	assert.InDelta(t, 7.2, deps[tuned].TotalCost, 1e-9)
	require.NotNil(t, deps[tuned].StandaloneCost)
	assert.InDelta(t, 2.1, *deps[tuned].StandaloneCost, 1e-9)
	assert.InDelta(t, 2.3, deps[base].TotalCost, 1e-9)
	assert.InDelta(t, 2.8, deps[dataset].TotalCost, 1e-9)

	ds, err := client.Cost(ctx, registry.TypeDataset, dataset, false)
	require.NoError(t, err)
	assert.InDelta(t, 2.8, ds[dataset].TotalCost, 1e-9)
}

type fakeProbe struct {
	license *gh.RepoLicense
	err     error
}

func (f fakeProbe) License(context.Context, string) (*gh.RepoLicense, error) {
	return f.license, f.err
}

func TestLicenseCheck(t *testing.T) {
	tests := []struct {
		name     string
		probe    LicenseProbe
		url      string
		github   string
		want     bool
		wantMsg  string
		status   int
		wantWarn bool
	}{
		{
			name:    "permissive model without probe",
			url:     baseURL,
			github:  "https://github.com/google-research/bert",
			want:    true,
			wantMsg: "Model license=apache-2.0, Repo license= compatible for fine-tune+inference.",
		},
		{
			name:    "restricted model",
			url:     tunedURL,
			github:  "google-research/bert",
			want:    false,
			wantMsg: "Model license cc-by-nc-4.0 is non-commercial or restricted.",
		},
		{
			name:    "repository license from probe",
			probe:   fakeProbe{license: &gh.RepoLicense{Key: "mit"}},
			url:     baseURL,
			github:  "google-research/bert",
			want:    true,
			wantMsg: "Model license=apache-2.0, Repo license=mit compatible for fine-tune+inference.",
		},
		{
			name:    "repository without license",
			probe:   fakeProbe{err: fmt.Errorf("%w: a/b", gh.ErrLicenseNotFound)},
			url:     baseURL,
			github:  "a/b",
			want:    true,
			wantMsg: "Model license=apache-2.0, Repo license= compatible for fine-tune+inference.",
		},
		{
			name:   "missing repository",
			probe:  fakeProbe{err: fmt.Errorf("%w: a/b", gh.ErrRepoNotFound)},
			url:    baseURL,
			github: "a/b",
			status: 404,
		},
		{
			name:     "probe failure",
			probe:    fakeProbe{err: errors.New("rate limited")},
			url:      baseURL,
			github:   "a/b",
			status:   502,
			wantWarn: true,
		},
		{
			name:   "invalid repository",
			url:    baseURL,
			github: "not a repo",
			status: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := seededArtifacts()
			opts.Licenses = tt.probe
			srv, ts := startServer(t, opts)
			client := clientAs(t, srv, ts, registry.RoleViewer)

			result, err := client.LicenseCheck(context.Background(), artifactID(registry.TypeModel, tt.url), tt.github)
			if tt.status != 0 {
				assert.Equal(t, tt.status, statusOf(t, err))
				health, herr := client.Health(context.Background())
				require.NoError(t, herr)
				assert.Equal(t, tt.wantWarn, len(health.RecentWarnings) > 0)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, result.Compatible)
			assert.Equal(t, tt.want, *result.Compatible)
			assert.Equal(t, tt.wantMsg, result.Message)
		})
	}
}
