// Package session holds the client's authentication state.
//
// A Store owns the bearer token and the user profile. It is handed to the registry
// client as its TokenSource and to the route guard and view controllers, so no package
// reads or writes the token through globals.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// Status is the lifecycle state of a Store.
type Status int

const (
	// StatusRestoring means the persisted token has not been checked yet.
	StatusRestoring Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusRestoring:
		return "restoring"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Sentinel errors
var (
	ErrNoAPI          = errors.New("session has no registry attached")
	ErrEmptyUsername  = errors.New("username cannot be empty")
	ErrIdentityFailed = errors.New("identity check failed after login")
	ErrSuperseded     = errors.New("session changed while login was in flight")
)

// API is the subset of the registry client used for authentication.
type API interface {
	Login(ctx context.Context, username, password string) (string, error)
	WhoAmI(ctx context.Context) (*registry.User, error)
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	LoadToken() (string, error)
	SaveToken(token string) error
	ClearToken() error
}

// Session is a point-in-time copy of the store's state.
type Session struct {
	Token  string
	User   *registry.User
	Status Status
}

// Result is the outcome of Login.
type Result struct {
	Success bool
	Err     error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for restore diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the session object. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	api    API
	tokens TokenStore
	logger *slog.Logger
	now    func() time.Time

	token  string
	user   *registry.User
	status Status
	// epoch increments on every login or logout so a slower restore cannot
	// overwrite a newer state.
	epoch uint64

	ready       chan struct{}
	restoreOnce sync.Once
}

// New creates a Store in StatusRestoring. Attach an API before calling Login or Restore.
func New(tokens TokenStore, opts ...Option) *Store {
	s := &Store{
		tokens: tokens,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		status: StatusRestoring,
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach sets the registry used for login and identity checks. The registry client
// usually takes the Store as its TokenSource, so the two are wired after construction.
func (s *Store) Attach(api API) {
	s.mu.Lock()
	s.api = api
	s.mu.Unlock()
}

// Token implements registry.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether a token is held, even if the profile is not loaded yet.
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// Status returns the current lifecycle state.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// User returns a copy of the loaded profile, or nil.
func (s *Store) User() *registry.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Snapshot returns a copy of the whole session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Session{Token: s.token, Status: s.status}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Ready returns a channel closed once Restore has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Login exchanges credentials for a token, persists it, and loads the profile. If the
// identity check fails the token is discarded and the login counts as failed.
func (s *Store) Login(ctx context.Context, username, password string) Result {
	if username == "" {
		return Result{Err: ErrEmptyUsername}
	}

	s.mu.RLock()
	api := s.api
	start := s.epoch
	s.mu.RUnlock()
	if api == nil {
		return Result{Err: ErrNoAPI}
	}

	// A rejected login leaves the session, and any restore in flight, untouched.
	token, err := api.Login(ctx, username, password)
	if err != nil {
		return Result{Err: err}
	}

	// The token is held from here on; the profile follows once whoami answers.
	epoch, ok := s.claim(start, token)
	if !ok {
		return Result{Err: ErrSuperseded}
	}
	if err := s.tokens.SaveToken(token); err != nil {
		s.logger.Warn("failed to persist session token", "error", err)
	}

	user, err := api.WhoAmI(ctx)
	if err != nil {
		s.discard(epoch)
		return Result{Err: fmt.Errorf("%w: %w", ErrIdentityFailed, err)}
	}

	if !s.commit(epoch, token, user, StatusAuthenticated) {
		return Result{Err: ErrSuperseded}
	}
	return Result{Success: true}
}

// Logout clears the token and profile. It never calls the network and is idempotent.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.epoch++
	s.token = ""
	s.user = nil
	s.status = StatusAnonymous
	s.mu.Unlock()

	if err := s.tokens.ClearToken(); err != nil {
		return fmt.Errorf("failed to clear persisted token: %w", err)
	}
	return nil
}

// Restore loads and validates the persisted token. It runs at most once; later calls
// return immediately. Failures are never surfaced: the session simply ends up anonymous.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		defer close(s.ready)
		s.restore(ctx)
	})
}

func (s *Store) restore(ctx context.Context) {
	s.mu.RLock()
	api := s.api
	epoch := s.epoch
	s.mu.RUnlock()

	token, err := s.tokens.LoadToken()
	if err != nil {
		s.logger.Debug("session restore: cannot load token", "error", err)
		s.discard(epoch)
		return
	}
	if token == "" {
		s.settle(epoch, StatusAnonymous)
		return
	}
	if s.expired(token) {
		s.logger.Debug("session restore: token expired")
		s.discard(epoch)
		return
	}
	if api == nil {
		s.logger.Debug("session restore: no registry attached")
		s.settle(epoch, StatusAnonymous)
		return
	}

	if !s.commit(epoch, token, nil, StatusRestoring) {
		return
	}
	user, err := api.WhoAmI(ctx)
	if err != nil {
		s.logger.Debug("session restore: identity check failed", "error", err)
		s.discard(epoch)
		return
	}
	s.commit(epoch, token, user, StatusAuthenticated)
}

// expired reports whether token is a JWT whose exp claim is in the past. Opaque tokens
// are never considered expired here; the registry decides.
func (s *Store) expired(token string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(s.now())
}

// claim starts a new epoch holding token if no login or logout happened since start.
func (s *Store) claim(start uint64, token string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != start {
		return 0, false
	}
	s.epoch++
	s.token = token
	s.user = nil
	s.status = StatusAuthenticated
	return s.epoch, true
}

// commit sets the in-memory state if no login or logout happened since epoch.
func (s *Store) commit(epoch uint64, token string, user *registry.User, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.token = token
	s.user = user
	s.status = status
	return true
}

func (s *Store) settle(epoch uint64, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		s.status = status
	}
}

// discard clears memory and persisted state for a token that turned out invalid.
func (s *Store) discard(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.token = ""
	s.user = nil
	s.status = StatusAnonymous
	s.mu.Unlock()

	if err := s.tokens.ClearToken(); err != nil {
		s.logger.Debug("failed to clear persisted token", "error", err)
	}
}
