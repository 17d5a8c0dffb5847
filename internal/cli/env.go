package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/clean-dependency-project/modelreg/internal/config"
	"github.com/clean-dependency-project/modelreg/internal/gpg"
	"github.com/clean-dependency-project/modelreg/internal/guard"
	"github.com/clean-dependency-project/modelreg/internal/logger"
	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/session"
	"github.com/clean-dependency-project/modelreg/internal/storage"
)

// Sentinel errors returned by guarded commands
var (
	ErrNotLoggedIn    = errors.New("not logged in, run `modelreg login` first")
	ErrForbidden      = errors.New("insufficient role")
	ErrSessionPending = errors.New("session is still loading")
	ErrUsage          = errors.New("invalid arguments")
)

// env is everything a command needs, built from the global flags and the config file.
type env struct {
	cfg     *config.Config
	out     io.Writer
	format  string
	stdout  *slog.Logger
	stderr  *slog.Logger
	state   StateStore
	session *session.Store
	client  Registry
	guard   *guard.Guard
	closers []func() error
}

// newEnv loads configuration and wires storage, session and registry client together.
// The session is handed to the client as its token source and the client back to the
// session for login and whoami.
func newEnv(c *cli.Context) (*env, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	sink, closeLog := logger.WithFile(c.App.ErrWriter, logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	stdout, stderr := NewLoggersTo(sink, ParseLogLevelOrDefault(level))

	e := &env{
		cfg:     cfg,
		out:     c.App.Writer,
		format:  c.String("output"),
		stdout:  stdout,
		stderr:  stderr,
		closers: []func() error{closeLog},
	}

	db, err := storage.InitDB(storage.Config{
		DatabasePath: cfg.State.DatabasePath,
		LogLevel:     "silent",
	})
	if err != nil {
		e.close()
		return nil, fmt.Errorf("failed to initialize state database: %w", err)
	}
	e.state = db
	e.closers = append(e.closers, db.Close)

	var tokens session.TokenStore = db
	if cfg.State.Passphrase != "" {
		sealer, err := gpg.NewSealer(cfg.State.Passphrase)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("failed to initialize token sealing: %w", err)
		}
		tokens = gpg.NewSealedStore(db, sealer)
	}

	e.session = session.New(tokens, session.WithLogger(stderr))
	client := registry.NewClient(registry.Config{
		BaseURL:   cfg.Registry.URL,
		UserAgent: cfg.Registry.UserAgent,
		Timeout:   cfg.Registry.GetTimeout(),
		Logger:    stderr,
	}, e.session)
	e.session.Attach(client)
	e.client = client

	e.guard = guard.New(e.session).
		RequireRole("create", registry.RoleContributor).
		RequireRole("submit", registry.RoleContributor).
		RequireRole("rate", registry.RoleContributor).
		RequireRole("upload", registry.RoleContributor).
		RequireRole("delete", registry.RoleAdmin)

	stdout.Debug("environment ready",
		"registry", cfg.Registry.URL,
		"state_db", cfg.State.DatabasePath,
		"sealed", cfg.State.Passphrase != "")
	return e, nil
}

// close releases resources in reverse order of acquisition.
func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && e.stderr != nil {
			e.stderr.Warn("failed to release resource", "error", err)
		}
	}
}

// authorize restores the session and asks the guard whether view may run.
func (e *env) authorize(c *cli.Context, view string) error {
	e.session.Restore(c.Context)
	d, err := e.guard.Await(c.Context, view)
	if err != nil {
		return err
	}
	switch d.Outcome {
	case guard.Render:
		return nil
	case guard.Redirect:
		return ErrNotLoggedIn
	case guard.Forbidden:
		return fmt.Errorf("%s requires role %s: %w", view, d.Need, ErrForbidden)
	}
	return ErrSessionPending
}

// emit writes v as JSON when --output json is set, otherwise calls text.
func (e *env) emit(v any, text func(w io.Writer) error) error {
	if e.format == "json" {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return nil
	}
	return text(e.out)
}

// public runs action without the route guard.
func public(action func(*cli.Context, *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		defer e.close()
		return action(c, e)
	}
}

// protected runs action only when the guard renders view for the restored session.
func protected(view string, action func(*cli.Context, *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		defer e.close()
		if err := e.authorize(c, view); err != nil {
			e.stderr.Info("blocked by route guard", "view", view, "reason", err)
			return err
		}
		return action(c, e)
	}
}
