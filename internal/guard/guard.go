// Package guard decides whether a protected view may render for the current session.
package guard

import (
	"context"
	"fmt"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/session"
)

// LoginView is the redirect target for anonymous users.
const LoginView = "login"

// Outcome is the kind of decision the guard made.
type Outcome int

const (
	// Loading means the session is still restoring; render a neutral placeholder.
	Loading Outcome = iota
	Redirect
	Render
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	case Forbidden:
		return "forbidden"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Decision is the guard's verdict for one view.
type Decision struct {
	Outcome Outcome
	View    string
	// To is the redirect target when Outcome is Redirect.
	To string
	// Need is the missing role when Outcome is Forbidden.
	Need string
}

// Session is the read-only view of session state the guard needs.
type Session interface {
	Status() session.Status
	IsAuthenticated() bool
	User() *registry.User
	Ready() <-chan struct{}
}

// Guard gates protected views. It never calls the network.
type Guard struct {
	session Session
	roles   map[string]string
}

// New creates a Guard over s.
func New(s Session) *Guard {
	return &Guard{session: s, roles: make(map[string]string)}
}

// RequireRole marks view as needing at least role. Must be called before the guard is
// shared between goroutines.
func (g *Guard) RequireRole(view, role string) *Guard {
	g.roles[view] = role
	return g
}

// Check decides immediately from the current session state. An authenticated session
// whose profile has not loaded yet renders ungated views; role-gated views wait.
func (g *Guard) Check(view string) Decision {
	switch g.session.Status() {
	case session.StatusRestoring:
		return Decision{Outcome: Loading, View: view}
	case session.StatusAnonymous:
		return Decision{Outcome: Redirect, View: view, To: LoginView}
	}
	if !g.session.IsAuthenticated() {
		return Decision{Outcome: Redirect, View: view, To: LoginView}
	}

	if need, ok := g.roles[view]; ok {
		user := g.session.User()
		if user == nil {
			return Decision{Outcome: Loading, View: view}
		}
		if registry.RoleRank(user.Role) < registry.RoleRank(need) {
			return Decision{Outcome: Forbidden, View: view, Need: need}
		}
	}
	return Decision{Outcome: Render, View: view}
}

// Await blocks until session restore has finished, then decides.
func (g *Guard) Await(ctx context.Context, view string) (Decision, error) {
	select {
	case <-g.session.Ready():
	case <-ctx.Done():
		return Decision{Outcome: Loading, View: view}, ctx.Err()
	}
	return g.Check(view), nil
}
