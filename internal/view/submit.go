package view

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/version"
)

// DefaultRedirectDelay is how long the success confirmation stays up before navigating.
const DefaultRedirectDelay = 1500 * time.Millisecond

// DefaultSubmitVersion is used when the version field is left blank.
const DefaultSubmitVersion = "1.0.0"

// SubmitAPI is the registry surface the submission form needs.
type SubmitAPI interface {
	IngestCLI(ctx context.Context, req registry.IngestRequest) (*registry.IngestResult, error)
}

// SubmitForm is the raw content of the compact submission form.
type SubmitForm struct {
	ModelURL   string
	CodeURL    string
	DatasetURL string
	Name       string
	Version    string
}

// SubmitState is a snapshot of the submission screen.
type SubmitState struct {
	Submitting bool
	Err        error
	Result     *registry.IngestResult
	// Confirmation is the success message shown before navigating away.
	Confirmation string
}

// Message returns the inline error text, if any.
func (s SubmitState) Message() string {
	return Describe(s.Err)
}

// SubmitOutcome is a completed submission and where to navigate next.
type SubmitOutcome struct {
	Result *registry.IngestResult
	Target string
}

// Submit drives the compact submission form.
type Submit struct {
	controller
	api   SubmitAPI
	delay time.Duration
	state SubmitState
}

// NewSubmit creates a submission controller. A negative delay is treated as zero.
func NewSubmit(api SubmitAPI, delay time.Duration, opts ...Option) *Submit {
	if delay < 0 {
		delay = 0
	}
	s := &Submit{api: api, delay: delay}
	s.init("submit", opts)
	return s
}

// State returns a copy of the current state.
func (s *Submit) State() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DetailTarget is the navigation target of a package's detail screen.
func DetailTarget(id string) string {
	return "detail/" + id
}

// optionalURL returns nil for a blank field so it is omitted from the request body.
func optionalURL(field, raw string) (*string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	if err := checkURL(field, v); err != nil {
		return nil, err
	}
	return &v, nil
}

func checkURL(field, v string) error {
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(field, "must be an http or https URL")
	}
	return nil
}

// BuildIngestRequest validates form and converts it into a request. Blank optional fields
// become absent, never empty strings.
func BuildIngestRequest(form SubmitForm) (registry.IngestRequest, error) {
	var req registry.IngestRequest

	model := strings.TrimSpace(form.ModelURL)
	if model == "" {
		return req, invalid("model_url", "is required")
	}
	if err := checkURL("model_url", model); err != nil {
		return req, err
	}
	req.ModelURL = model

	var err error
	if req.CodeURL, err = optionalURL("code_url", form.CodeURL); err != nil {
		return req, err
	}
	if req.DatasetURL, err = optionalURL("dataset_url", form.DatasetURL); err != nil {
		return req, err
	}
	if name := strings.TrimSpace(form.Name); name != "" {
		req.Name = &name
	}

	req.Version = strings.TrimSpace(form.Version)
	if req.Version == "" {
		req.Version = DefaultSubmitVersion
	}
	if err := version.ValidateVersion(req.Version); err != nil {
		return req, invalid("version", err.Error())
	}
	return req, nil
}

// Submit validates and sends the form. It does not retry. On success the confirmation is
// held for the redirect delay before the outcome is returned; cancelling ctx during the
// delay returns the outcome together with the context error.
func (s *Submit) Submit(ctx context.Context, form SubmitForm) (*SubmitOutcome, error) {
	req, err := BuildIngestRequest(form)
	if err != nil {
		s.mu.Lock()
		s.state.Err = err
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	gen, err := s.begin()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = SubmitState{Submitting: true}
	s.mu.Unlock()

	result, err := s.api.IngestCLI(ctx, req)

	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return &SubmitOutcome{Result: result, Target: DetailTarget(result.ID)}, nil
	}
	s.state.Submitting = false
	if err != nil {
		s.state.Err = err
		s.mu.Unlock()
		return nil, err
	}
	s.state.Result = result
	s.state.Confirmation = fmt.Sprintf("Submitted %s %s as %s", result.Name, result.Version, result.ID)
	s.mu.Unlock()

	outcome := &SubmitOutcome{Result: result, Target: DetailTarget(result.ID)}
	if s.delay == 0 {
		return outcome, nil
	}

	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return outcome, nil
	case <-ctx.Done():
		return outcome, ctx.Err()
	}
}
