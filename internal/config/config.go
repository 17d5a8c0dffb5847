// Package config provides configuration management for the modelreg client and the
// development registry. Settings come from a YAML file, optional .env files and
// MODELREG_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Sentinel errors for configuration validation
var (
	ErrVersionRequired     = errors.New("version is required")
	ErrRegistryURLRequired = errors.New("registry url is required")
	ErrInvalidRegistryURL  = errors.New("registry url must be an absolute http(s) url")
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrInvalidPageSize     = errors.New("page_size must be between 1 and 100")
	ErrInvalidLogLevel     = errors.New("log level must be one of debug, info, warn, error")
	ErrStatePathRequired   = errors.New("state database_path is required")
	ErrJWTSecretRequired   = errors.New("server jwt_secret is required")
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRedirectDelay = 1500 * time.Millisecond
	defaultTokenTTL      = 10 * time.Hour
)

// Config represents the top-level configuration structure.
type Config struct {
	Version  string         `yaml:"version"`
	Registry RegistryConfig `yaml:"registry"`
	State    StateConfig    `yaml:"state"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
	GitHub   GitHubConfig   `yaml:"github"`
	Server   ServerConfig   `yaml:"server"`
}

// RegistryConfig locates the remote registry.
type RegistryConfig struct {
	URL       string `yaml:"url"`
	UserAgent string `yaml:"user_agent"`
	// Timeout is empty by default: requests are bounded only by cancellation.
	Timeout string `yaml:"timeout"`
}

// GetTimeout returns the request timeout, zero when unset.
func (r *RegistryConfig) GetTimeout() time.Duration {
	if r.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return defaultTimeout
	}
	return d
}

// StateConfig represents the local state database.
type StateConfig struct {
	DatabasePath string `yaml:"database_path"`
	// Passphrase seals the persisted token when set. Prefer MODELREG_PASSPHRASE.
	Passphrase string `yaml:"passphrase"`
}

// UIConfig tunes the controllers.
type UIConfig struct {
	PageSize      int    `yaml:"page_size"`
	RedirectDelay string `yaml:"redirect_delay"`
	DownloadDir   string `yaml:"download_dir"`
	ReportDir     string `yaml:"report_dir"`
}

// GetRedirectDelay returns the pause between a successful submission and navigation.
func (u *UIConfig) GetRedirectDelay() time.Duration {
	if u.RedirectDelay == "" {
		return defaultRedirectDelay
	}
	d, err := time.ParseDuration(u.RedirectDelay)
	if err != nil {
		return defaultRedirectDelay
	}
	return d
}

// LogConfig represents logging configuration. File enables a rotated log file in addition
// to stderr.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// GitHubConfig holds the token used by the repository license probe. Anonymous access
// works but is rate limited.
type GitHubConfig struct {
	Token string `yaml:"token"`
	// APIURL overrides the public API root, for GitHub Enterprise.
	APIURL string `yaml:"api_url"`
}

// ServerConfig configures the development registry.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	JWTSecret      string   `yaml:"jwt_secret"`
	TokenTTL       string   `yaml:"token_ttl"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetTokenTTL returns the lifetime of issued tokens.
func (s *ServerConfig) GetTokenTTL() time.Duration {
	if s.TokenTTL == "" {
		return defaultTokenTTL
	}
	d, err := time.ParseDuration(s.TokenTTL)
	if err != nil {
		return defaultTokenTTL
	}
	return d
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Registry: RegistryConfig{
			URL:       "http://localhost:8000",
			UserAgent: "modelreg/1.0",
		},
		State: StateConfig{
			DatabasePath: "~/.modelreg/state.db",
		},
		UI: UIConfig{
			PageSize:      20,
			RedirectDelay: "1.5s",
			DownloadDir:   ".",
			ReportDir:     ".",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			JWTSecret:      "dev-secret-change-me",
			TokenTTL:       "10h",
			AllowedOrigins: []string{"*"},
		},
	}
}

// LoadDotEnv loads the given .env files into the process environment. Missing files are
// ignored; variables already set are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadConfig loads the configuration. An empty filePath starts from DefaultConfig.
// Environment overrides are applied after the file and paths are expanded before validation.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()
	if filePath != "" {
		path, err := homedir.Expand(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path %s: %w", filePath, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.expandPaths(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// applyEnv overlays MODELREG_* variables. GITHUB_TOKEN is honoured when
// MODELREG_GITHUB_TOKEN is unset.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"MODELREG_REGISTRY_URL":   &c.Registry.URL,
		"MODELREG_TIMEOUT":        &c.Registry.Timeout,
		"MODELREG_STATE_DB":       &c.State.DatabasePath,
		"MODELREG_PASSPHRASE":     &c.State.Passphrase,
		"MODELREG_REDIRECT_DELAY": &c.UI.RedirectDelay,
		"MODELREG_DOWNLOAD_DIR":   &c.UI.DownloadDir,
		"MODELREG_REPORT_DIR":     &c.UI.ReportDir,
		"MODELREG_LOG_LEVEL":      &c.Log.Level,
		"MODELREG_LOG_FILE":       &c.Log.File,
		"MODELREG_LISTEN_ADDR":    &c.Server.Addr,
		"MODELREG_JWT_SECRET":     &c.Server.JWTSecret,
		"MODELREG_TOKEN_TTL":      &c.Server.TokenTTL,
		"MODELREG_GITHUB_API_URL": &c.GitHub.APIURL,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("MODELREG_GITHUB_TOKEN"); ok {
		c.GitHub.Token = v
	} else if v, ok := lookup("GITHUB_TOKEN"); ok && c.GitHub.Token == "" {
		c.GitHub.Token = v
	}

	if v, ok := lookup("MODELREG_PAGE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MODELREG_PAGE_SIZE: %w", ErrInvalidPageSize)
		}
		c.UI.PageSize = n
	}
	return nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.State.DatabasePath, &c.UI.DownloadDir, &c.UI.ReportDir, &c.Log.File} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %s: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate validates the configuration structure and required fields.
func (c *Config) Validate() error {
	if c.Version == "" {
		return ErrVersionRequired
	}
	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if c.State.DatabasePath == "" {
		return ErrStatePathRequired
	}
	if c.UI.PageSize < 1 || c.UI.PageSize > 100 {
		return ErrInvalidPageSize
	}
	if err := validDuration("redirect_delay", c.UI.RedirectDelay); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	if err := validDuration("token_ttl", c.Server.TokenTTL); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Validate validates the registry address and timeout.
func (r *RegistryConfig) Validate() error {
	if r.URL == "" {
		return ErrRegistryURLRequired
	}
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidRegistryURL
	}
	return validDuration("timeout", r.Timeout)
}

// ValidateServer checks the settings only the development registry needs.
func (c *Config) ValidateServer() error {
	if c.Server.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	return nil
}

func validDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fmt.Errorf("%s %q: %w", field, value, ErrInvalidDuration)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filePath, err)
	}
	return nil
}
