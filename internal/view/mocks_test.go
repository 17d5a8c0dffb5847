package view

import (
	"context"
	"sync"

	"github.com/clean-dependency-project/modelreg/internal/github"
	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/storage"
)

func ptr[T any](v T) *T { return &v }

// mockRegistry implements every controller API with overridable function fields.
type mockRegistry struct {
	mu    sync.Mutex
	calls []string

	ListPackagesFunc   func(ctx context.Context, q registry.ListQuery) (*registry.PackagePage, error)
	GetPackageFunc     func(ctx context.Context, id string) (*registry.PackageDetail, error)
	GetPackageRawFunc  func(ctx context.Context, id string) ([]byte, error)
	RatePackageFunc    func(ctx context.Context, id string) (*registry.Scores, error)
	RatingDocumentFunc func(ctx context.Context, id string) (*registry.RatingRecord, error)
	IngestCLIFunc      func(ctx context.Context, req registry.IngestRequest) (*registry.IngestResult, error)
	QueryArtifactsFunc func(ctx context.Context, queries []registry.ArtifactQuery, offset string) ([]registry.ArtifactMetadata, error)
	QueryByRegexFunc   func(ctx context.Context, pattern string) ([]registry.ArtifactMetadata, error)
	RateModelFunc      func(ctx context.Context, id string) (*registry.RatingDocument, error)
	LineageFunc        func(ctx context.Context, id string) (*registry.Lineage, error)
	CostFunc           func(ctx context.Context, artifactType, id string, dependency bool) (registry.CostReport, error)
	LicenseCheckFunc   func(ctx context.Context, id, githubURL string) (*registry.LicenseResult, error)
}

func (m *mockRegistry) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockRegistry) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRegistry) ListPackages(ctx context.Context, q registry.ListQuery) (*registry.PackagePage, error) {
	m.record("ListPackages")
	return m.ListPackagesFunc(ctx, q)
}

func (m *mockRegistry) GetPackage(ctx context.Context, id string) (*registry.PackageDetail, error) {
	m.record("GetPackage")
	return m.GetPackageFunc(ctx, id)
}

func (m *mockRegistry) GetPackageRaw(ctx context.Context, id string) ([]byte, error) {
	m.record("GetPackageRaw")
	return m.GetPackageRawFunc(ctx, id)
}

func (m *mockRegistry) RatePackage(ctx context.Context, id string) (*registry.Scores, error) {
	m.record("RatePackage")
	return m.RatePackageFunc(ctx, id)
}

func (m *mockRegistry) RatingDocument(ctx context.Context, id string) (*registry.RatingRecord, error) {
	m.record("RatingDocument")
	return m.RatingDocumentFunc(ctx, id)
}

func (m *mockRegistry) IngestCLI(ctx context.Context, req registry.IngestRequest) (*registry.IngestResult, error) {
	m.record("IngestCLI")
	return m.IngestCLIFunc(ctx, req)
}

func (m *mockRegistry) QueryArtifacts(ctx context.Context, queries []registry.ArtifactQuery, offset string) ([]registry.ArtifactMetadata, error) {
	m.record("QueryArtifacts")
	return m.QueryArtifactsFunc(ctx, queries, offset)
}

func (m *mockRegistry) QueryByRegex(ctx context.Context, pattern string) ([]registry.ArtifactMetadata, error) {
	m.record("QueryByRegex")
	return m.QueryByRegexFunc(ctx, pattern)
}

func (m *mockRegistry) RateModel(ctx context.Context, id string) (*registry.RatingDocument, error) {
	m.record("RateModel")
	return m.RateModelFunc(ctx, id)
}

func (m *mockRegistry) Lineage(ctx context.Context, id string) (*registry.Lineage, error) {
	m.record("Lineage")
	return m.LineageFunc(ctx, id)
}

func (m *mockRegistry) Cost(ctx context.Context, artifactType, id string, dependency bool) (registry.CostReport, error) {
	m.record("Cost")
	return m.CostFunc(ctx, artifactType, id, dependency)
}

func (m *mockRegistry) LicenseCheck(ctx context.Context, id, githubURL string) (*registry.LicenseResult, error) {
	m.record("LicenseCheck")
	return m.LicenseCheckFunc(ctx, id, githubURL)
}

// fixedUser implements Identity.
type fixedUser struct{ user *registry.User }

func (f fixedUser) User() *registry.User { return f.user }

// memoryExports implements ExportRecorder.
type memoryExports struct {
	mu      sync.Mutex
	exports []storage.Export
}

func (m *memoryExports) RecordExport(export *storage.Export) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports = append(m.exports, *export)
	return nil
}

// mockProbe implements RepoProbe.
type mockProbe struct {
	LicenseFunc func(ctx context.Context, repository string) (*github.RepoLicense, error)
}

func (m *mockProbe) License(ctx context.Context, repository string) (*github.RepoLicense, error) {
	return m.LicenseFunc(ctx, repository)
}

func notFound() error {
	return &registry.HTTPError{StatusCode: 404, Detail: "Not found"}
}
