package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Export sources.
const (
	ExportSourceRatingDocument = "rating_document"
	ExportSourceDetail         = "detail"
)

// RecordExport inserts an export record. CreatedAt defaults to now.
func (d *DB) RecordExport(export *Export) error {
	if export == nil {
		return ErrNilExport
	}
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now().UTC()
	}
	if err := d.db.Create(export).Error; err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	return nil
}

// ListExports returns exports newest first. An empty artifactID lists all of them.
func (d *DB) ListExports(artifactID string) ([]Export, error) {
	query := d.db.Order("created_at DESC").Order("id DESC")
	if artifactID != "" {
		query = query.Where("artifact_id = ?", artifactID)
	}
	var exports []Export
	if err := query.Find(&exports).Error; err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return exports, nil
}

// ExportsJSON returns the export log as indented JSON.
func (d *DB) ExportsJSON(artifactID string) ([]byte, error) {
	exports, err := d.ListExports(artifactID)
	if err != nil {
		return nil, err
	}
	if exports == nil {
		exports = []Export{}
	}
	data, err := json.MarshalIndent(exports, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal exports: %w", err)
	}
	return data, nil
}
