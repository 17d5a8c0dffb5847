package view

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// Mode selects how the query form is interpreted.
type Mode string

const (
	ModeName     Mode = "name"
	ModeRegex    Mode = "regex"
	ModeWildcard Mode = "wildcard"
)

// Modes lists the query modes in display order.
func Modes() []Mode {
	return []Mode{ModeName, ModeRegex, ModeWildcard}
}

// QueryAPI is the registry surface the query screen needs.
type QueryAPI interface {
	QueryArtifacts(ctx context.Context, queries []registry.ArtifactQuery, offset string) ([]registry.ArtifactMetadata, error)
	QueryByRegex(ctx context.Context, pattern string) ([]registry.ArtifactMetadata, error)
}

// QueryForm is the raw content of the query form. Only the field of the selected mode is
// read; the others are ignored even when populated.
type QueryForm struct {
	Mode    Mode
	Name    string
	Regex   string
	Pattern string
	Types   []string
}

// QueryPlan is a validated query ready to send.
type QueryPlan struct {
	// Enumerate uses POST /artifacts with Queries; otherwise Regex goes to byRegEx.
	Enumerate bool
	Queries   []registry.ArtifactQuery
	Regex     string
	// Types is nil when every type is wanted.
	Types []string
}

// QueryState is a snapshot of the query screen.
type QueryState struct {
	Form    QueryForm
	Results []registry.ArtifactMetadata
	Loading bool
	Err     error
	Empty   bool
}

// Message returns the inline error text, if any.
func (s QueryState) Message() string {
	return Describe(s.Err)
}

// Query drives the artifact search form.
type Query struct {
	controller
	api   QueryAPI
	state QueryState
}

// NewQuery creates a query controller.
func NewQuery(api QueryAPI, opts ...Option) *Query {
	q := &Query{api: api}
	q.init("query", opts)
	return q
}

// State returns a copy of the current state.
func (q *Query) State() QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.state
	s.Results = append([]registry.ArtifactMetadata(nil), q.state.Results...)
	return s
}

// WildcardRegex translates a glob pattern into an anchored regular expression.
// '*' matches any run of characters and '?' matches exactly one.
func WildcardRegex(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

func normalizeTypes(types []string) ([]string, error) {
	var out []string
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if err := registry.ValidateType(t); err != nil {
			return nil, invalid("types", "unknown artifact type "+t)
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Plan validates form. The field belonging to the selected mode is required; a value in
// another mode's field does not satisfy it.
func Plan(form QueryForm) (QueryPlan, error) {
	types, err := normalizeTypes(form.Types)
	if err != nil {
		return QueryPlan{}, err
	}
	plan := QueryPlan{Types: types}

	switch form.Mode {
	case ModeName:
		name := strings.TrimSpace(form.Name)
		if name == "" {
			return QueryPlan{}, invalid("name", "is required in name mode")
		}
		plan.Enumerate = true
		plan.Queries = []registry.ArtifactQuery{{Name: name, Types: types}}
	case ModeRegex:
		pattern := strings.TrimSpace(form.Regex)
		if pattern == "" {
			return QueryPlan{}, invalid("regex", "is required in regex mode")
		}
		if err := ValidatePattern("regex", pattern); err != nil {
			return QueryPlan{}, err
		}
		plan.Regex = pattern
	case ModeWildcard:
		pattern := strings.TrimSpace(form.Pattern)
		if pattern == "" {
			return QueryPlan{}, invalid("pattern", "is required in wildcard mode")
		}
		if pattern == "*" {
			plan.Enumerate = true
			plan.Queries = []registry.ArtifactQuery{{Name: "*", Types: types}}
			break
		}
		plan.Regex = WildcardRegex(pattern)
		if err := ValidatePattern("pattern", plan.Regex); err != nil {
			return QueryPlan{}, err
		}
	default:
		return QueryPlan{}, invalid("mode", "must be one of name, regex, wildcard")
	}
	return plan, nil
}

// Run validates and executes form. A search with no matches is an empty result, not an
// error, even when the registry answers 404.
func (q *Query) Run(ctx context.Context, form QueryForm) ([]registry.ArtifactMetadata, error) {
	plan, err := Plan(form)
	if err != nil {
		q.mu.Lock()
		q.state.Form = form
		q.state.Err = err
		q.mu.Unlock()
		return nil, err
	}

	q.mu.Lock()
	gen, err := q.begin()
	if err != nil {
		q.mu.Unlock()
		return nil, err
	}
	q.state.Form = form
	q.state.Loading = true
	q.state.Err = nil
	q.mu.Unlock()

	var results []registry.ArtifactMetadata
	if plan.Enumerate {
		results, err = q.api.QueryArtifacts(ctx, plan.Queries, "")
	} else {
		results, err = q.api.QueryByRegex(ctx, plan.Regex)
		results = filterTypes(results, plan.Types)
	}
	if errors.Is(err, registry.ErrNotFound) {
		results, err = nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.current(gen) {
		return results, err
	}
	q.state.Loading = false
	if err != nil {
		q.state.Err = err
		return nil, err
	}
	q.state.Results = results
	q.state.Empty = len(results) == 0
	return results, nil
}

// filterTypes keeps results of the wanted types. A nil types keeps everything.
func filterTypes(results []registry.ArtifactMetadata, types []string) []registry.ArtifactMetadata {
	if len(types) == 0 {
		return results
	}
	var out []registry.ArtifactMetadata
	for _, r := range results {
		if slices.Contains(types, r.Type) {
			out = append(out, r)
		}
	}
	return out
}
