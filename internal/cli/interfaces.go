// Package cli provides command-line interface components with testable abstractions.
package cli

import (
	"context"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/storage"
	"github.com/clean-dependency-project/modelreg/internal/view"
)

// Registry abstracts the remote registry for the commands. *registry.Client satisfies it.
type Registry interface {
	view.ListingAPI
	view.DetailAPI
	view.SubmitAPI
	view.QueryAPI
	view.InspectAPI
	view.LicenseAPI

	// CreatePackage registers a package from explicit fields.
	CreatePackage(ctx context.Context, pkg registry.PackageCreate) (*registry.PackageDetail, error)

	// UploadArtifact registers an artifact by source URL.
	UploadArtifact(ctx context.Context, artifactType, sourceURL string, name *string) (*registry.Artifact, error)

	// GetArtifact fetches one artifact envelope.
	GetArtifact(ctx context.Context, artifactType, id string) (*registry.Artifact, error)

	// DeleteArtifact removes an artifact.
	DeleteArtifact(ctx context.Context, artifactType, id string) error

	// Health reports registry liveness.
	Health(ctx context.Context) (*registry.Health, error)

	// Tracks lists the feature tracks the registry implements.
	Tracks(ctx context.Context) ([]registry.Track, error)
}

// StateStore abstracts the local state database. *storage.DB satisfies it.
type StateStore interface {
	view.ExportRecorder

	// ListExports returns recorded downloads, newest first.
	ListExports(artifactID string) ([]storage.Export, error)

	// ExportsJSON returns the export log as JSON.
	ExportsJSON(artifactID string) ([]byte, error)

	// GetPreference returns a preference or its default.
	GetPreference(key string) (string, error)

	// SetPreference validates and stores a preference.
	SetPreference(key, value string) error

	// Close closes the database connection.
	Close() error
}
