// Package storage provides the local client state database using GORM and SQLite.
//
// It holds the persisted session token, user preferences, and a log of files exported
// by the client.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SessionTokenKey is the fixed key the session token is stored under.
const SessionTokenKey = "session_token"

// Sentinel errors following Dave Cheney's principle: define errors as values
var (
	ErrNotFound  = errors.New("record not found")
	ErrNilExport = errors.New("export cannot be nil")
	ErrEmptyKey  = errors.New("key cannot be empty")
)

// Secret is one opaque persisted value, such as the session token.
type Secret struct {
	Name      string `gorm:"primaryKey"`
	Value     string `gorm:"not null;type:text"`
	UpdatedAt time.Time
}

// TableName overrides the table name for GORM.
func (Secret) TableName() string {
	return "sessions"
}

// Preference is a single user preference.
type Preference struct {
	Name      string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// Export records a file the client wrote to disk.
type Export struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ArtifactID string    `gorm:"not null;index" json:"artifact_id"`
	Path       string    `gorm:"not null" json:"path"`
	Source     string    `gorm:"not null" json:"source"`
	SizeBytes  int64     `json:"size_bytes"`
	SHA256     string    `gorm:"type:varchar(64)" json:"sha256"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

// DB wraps gorm.DB with the client state operations
type DB struct {
	db *gorm.DB
}

// Config holds database configuration
type Config struct {
	DatabasePath string
	LogLevel     string // silent, error, warn, info
}

// InitDB initializes the database connection and runs migrations
func InitDB(cfg Config) (*DB, error) {
	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	if cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Secret{}, &Preference{}, &Export{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
