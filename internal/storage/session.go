package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PutSecret stores value under key, replacing any previous value.
func (d *DB) PutSecret(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	secret := Secret{Name: key, Value: value}
	err := d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&secret).Error
	if err != nil {
		return fmt.Errorf("failed to store secret %s: %w", key, err)
	}
	return nil
}

// GetSecret returns the value stored under key, or ErrNotFound.
func (d *DB) GetSecret(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	var secret Secret
	err := d.db.Where("name = ?", key).First(&secret).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", key, err)
	}
	return secret.Value, nil
}

// DeleteSecret removes key. Deleting a missing key is not an error.
func (d *DB) DeleteSecret(key string) error {
	if err := d.db.Where("name = ?", key).Delete(&Secret{}).Error; err != nil {
		return fmt.Errorf("failed to delete secret %s: %w", key, err)
	}
	return nil
}

// LoadToken returns the persisted session token, or "" when none is stored.
func (d *DB) LoadToken() (string, error) {
	token, err := d.GetSecret(SessionTokenKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return token, err
}

// SaveToken persists the session token.
func (d *DB) SaveToken(token string) error {
	return d.PutSecret(SessionTokenKey, token)
}

// ClearToken removes the persisted session token.
func (d *DB) ClearToken() error {
	return d.DeleteSecret(SessionTokenKey)
}
