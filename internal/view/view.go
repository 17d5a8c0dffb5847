// Package view holds the controllers behind each dashboard screen. A controller owns the
// state of one screen, validates input before any network call, and turns every failure
// into an inline error on its state.
//
// Controllers are safe for concurrent use. Each fetch captures a generation number; a
// response that arrives after a newer fetch started, or after Unmount, is dropped.
package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ErrUnmounted is returned when an action is started on an unmounted controller.
var ErrUnmounted = errors.New("view is unmounted")

// ValidationError is a client-side input failure detected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Describe turns an error into the message shown inline to the user. Server messages are
// passed through verbatim.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var verr *ValidationError
	var herr *registry.HTTPError
	var nerr *registry.NetworkError
	var derr *registry.DecodeError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &herr):
		return herr.Detail
	case errors.As(err, &nerr):
		if errors.Is(nerr.Err, context.Canceled) {
			return "request cancelled"
		}
		if errors.Is(nerr.Err, context.DeadlineExceeded) {
			return "request timed out"
		}
		return fmt.Sprintf("cannot reach registry: %v", nerr.Err)
	case errors.As(err, &derr):
		return fmt.Sprintf("unexpected response from registry: %v", derr.Err)
	case errors.Is(err, registry.ErrInvalidArtifactType), errors.Is(err, registry.ErrInvalidArtifactID):
		return err.Error()
	}
	return err.Error()
}

// Option configures a controller.
type Option func(*controller)

// WithLogger sets the logger used for debug output about dropped responses.
func WithLogger(logger *slog.Logger) Option {
	return func(c *controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// controller carries the generation bookkeeping shared by every view.
type controller struct {
	name      string
	mu        sync.Mutex
	gen       uint64
	unmounted bool
	logger    *slog.Logger
}

func (c *controller) init(name string, opts []Option) {
	c.name = name
	c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(c)
	}
}

// begin starts a new generation. Callers must hold mu.
func (c *controller) begin() (uint64, error) {
	if c.unmounted {
		return 0, ErrUnmounted
	}
	c.gen++
	return c.gen, nil
}

// current reports whether gen is still the newest generation of a mounted view.
// Callers must hold mu.
func (c *controller) current(gen uint64) bool {
	if c.unmounted || gen != c.gen {
		c.logger.Debug("dropping stale response", "view", c.name, "generation", gen, "current", c.gen, "unmounted", c.unmounted)
		return false
	}
	return true
}

// Unmount detaches the view. Responses still in flight are dropped when they arrive.
func (c *controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmounted = true
}

// Mounted reports whether the view is still attached.
func (c *controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.unmounted
}
