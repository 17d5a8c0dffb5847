package storage

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Preference keys.
const (
	PrefColorScheme = "color-scheme"
)

// Color schemes accepted for PrefColorScheme.
const (
	ColorSchemeLight  = "light"
	ColorSchemeDark   = "dark"
	ColorSchemeSystem = "system"
)

var ErrInvalidPreference = errors.New("invalid preference")

// knownPreferences maps each preference key to its allowed values and default.
var knownPreferences = map[string]struct {
	allowed []string
	def     string
}{
	PrefColorScheme: {
		allowed: []string{ColorSchemeLight, ColorSchemeDark, ColorSchemeSystem},
		def:     ColorSchemeSystem,
	},
}

// PreferenceKeys returns the known preference keys.
func PreferenceKeys() []string {
	return []string{PrefColorScheme}
}

// ValidatePreference checks that key is known and value is allowed for it.
func ValidatePreference(key, value string) error {
	known, ok := knownPreferences[key]
	if !ok {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidPreference, key)
	}
	for _, a := range known.allowed {
		if a == value {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s", ErrInvalidPreference, key, strings.Join(known.allowed, ", "))
}

// SetPreference validates and stores a preference.
func (d *DB) SetPreference(key, value string) error {
	if err := ValidatePreference(key, value); err != nil {
		return err
	}
	pref := Preference{Name: key, Value: value}
	err := d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}

// GetPreference returns the stored value for key, or its default when unset.
func (d *DB) GetPreference(key string) (string, error) {
	known, ok := knownPreferences[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown key %q", ErrInvalidPreference, key)
	}

	var pref Preference
	err := d.db.Where("name = ?", key).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return known.def, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return pref.Value, nil
}
