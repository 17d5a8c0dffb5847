package view

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/render"
	"github.com/clean-dependency-project/modelreg/internal/version"
)

// MaxPatternLength mirrors the registry's limit on search patterns.
const MaxPatternLength = 256

// DefaultPageSize is the listing page size when none is configured.
const DefaultPageSize = 20

// ListingAPI is the registry surface the listing needs.
type ListingAPI interface {
	ListPackages(ctx context.Context, q registry.ListQuery) (*registry.PackagePage, error)
}

// ListingState is a snapshot of the listing screen.
type ListingState struct {
	Query   registry.ListQuery
	Page    render.Pagination
	Items   []registry.PackageSummary
	Loading bool
	Err     error
	// Empty is set after a successful fetch that returned no items.
	Empty bool
}

// Message returns the inline error text, if any.
func (s ListingState) Message() string {
	return Describe(s.Err)
}

// Listing pages through the package listing with optional filters.
type Listing struct {
	controller
	api   ListingAPI
	state ListingState
}

// NewListing creates a listing with the given page size. A size of zero or less uses
// DefaultPageSize.
func NewListing(api ListingAPI, limit int, opts ...Option) *Listing {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	l := &Listing{
		api: api,
		state: ListingState{
			Query: registry.ListQuery{Page: 1, Limit: limit},
			Page:  render.Pagination{Page: 1, Limit: limit},
		},
	}
	l.init("listing", opts)
	return l
}

// State returns a copy of the current state.
func (l *Listing) State() ListingState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	s.Items = append([]registry.PackageSummary(nil), l.state.Items...)
	return s
}

// ValidatePattern checks a search pattern the way the registry will.
func ValidatePattern(field, pattern string) error {
	if len(pattern) > MaxPatternLength {
		return invalid(field, fmt.Sprintf("must be at most %d characters", MaxPatternLength))
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return invalid(field, fmt.Sprintf("invalid regular expression: %v", err))
	}
	return nil
}

// Search applies a new filter and fetches its first page. q is a regular expression or
// plain substring; versionRange uses the exact, range, tilde or caret forms.
func (l *Listing) Search(ctx context.Context, q, versionRange string) error {
	q = strings.TrimSpace(q)
	versionRange = strings.TrimSpace(versionRange)

	if q != "" {
		if err := ValidatePattern("q", q); err != nil {
			l.fail(err)
			return err
		}
	}
	if versionRange != "" {
		if _, err := version.ParseFilter(versionRange); err != nil {
			verr := invalid("version", err.Error())
			l.fail(verr)
			return verr
		}
	}

	l.mu.Lock()
	query := l.state.Query
	l.mu.Unlock()

	query.Q = q
	query.Version = versionRange
	query.Page = 1
	return l.fetch(ctx, query)
}

// GoTo fetches page, clamped into the range allowed by the last known total.
func (l *Listing) GoTo(ctx context.Context, page int) error {
	l.mu.Lock()
	query := l.state.Query
	query.Page = l.state.Page.Clamp(page)
	l.mu.Unlock()

	return l.fetch(ctx, query)
}

// Next fetches the following page, if any.
func (l *Listing) Next(ctx context.Context) error {
	l.mu.Lock()
	page := l.state.Page.Page + 1
	l.mu.Unlock()
	return l.GoTo(ctx, page)
}

// Prev fetches the preceding page, if any.
func (l *Listing) Prev(ctx context.Context) error {
	l.mu.Lock()
	page := l.state.Page.Page - 1
	l.mu.Unlock()
	return l.GoTo(ctx, page)
}

// SetLimit changes the page size and returns to the first page.
func (l *Listing) SetLimit(ctx context.Context, limit int) error {
	if limit <= 0 {
		err := invalid("limit", "must be positive")
		l.fail(err)
		return err
	}

	l.mu.Lock()
	query := l.state.Query
	l.mu.Unlock()

	query.Limit = limit
	query.Page = 1
	return l.fetch(ctx, query)
}

// Refresh re-fetches the current page.
func (l *Listing) Refresh(ctx context.Context) error {
	l.mu.Lock()
	query := l.state.Query
	l.mu.Unlock()
	return l.fetch(ctx, query)
}

func (l *Listing) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Err = err
}

func (l *Listing) fetch(ctx context.Context, query registry.ListQuery) error {
	l.mu.Lock()
	gen, err := l.begin()
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.state.Loading = true
	l.state.Err = nil
	l.mu.Unlock()

	page, err := l.api.ListPackages(ctx, query)

	// The registry may report a smaller total than the page assumed; fetch the last
	// valid page instead of showing an out-of-range one.
	if err == nil && query.Page > 1 {
		p := render.Pagination{Page: query.Page, Limit: query.Limit, Total: page.Total}
		if last := p.TotalPages(); query.Page > last {
			query.Page = last
			page, err = l.api.ListPackages(ctx, query)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.current(gen) {
		return nil
	}
	l.state.Loading = false
	if err != nil {
		l.state.Err = err
		return err
	}

	l.state.Query = query
	l.state.Items = page.Items
	l.state.Page = render.Pagination{Page: query.Page, Limit: query.Limit, Total: page.Total}
	l.state.Empty = len(page.Items) == 0
	return nil
}
