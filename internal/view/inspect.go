package view

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/render"
)

// InspectAPI is the registry surface the model inspector needs.
type InspectAPI interface {
	RateModel(ctx context.Context, id string) (*registry.RatingDocument, error)
	Lineage(ctx context.Context, id string) (*registry.Lineage, error)
	Cost(ctx context.Context, artifactType, id string, dependency bool) (registry.CostReport, error)
}

// ErrInspectFailed is returned when no part of an inspection could be loaded.
var ErrInspectFailed = errors.New("every part of the inspection failed")

// InspectState holds the three independently loaded parts of a model inspection.
// Each part carries its own error; one failing part does not hide the others.
type InspectState struct {
	ID         string
	Dependency bool
	Loading    bool

	Rating    *registry.RatingDocument
	RatingErr error

	Lineage    *registry.Lineage
	LineageErr error

	Cost    registry.CostReport
	CostErr error
}

// InspectView is the rendered form of an inspection.
type InspectView struct {
	ID      string              `json:"id"`
	Rating  []render.RatingRow  `json:"rating,omitempty"`
	Charts  *render.Charts      `json:"charts,omitempty"`
	Lineage *render.LineageView `json:"lineage,omitempty"`
	Cost    *render.CostView    `json:"cost,omitempty"`
	Errors  map[string]string   `json:"errors,omitempty"`
}

// Inspect loads a model's rating, lineage and cost concurrently.
type Inspect struct {
	controller
	api   InspectAPI
	state InspectState
}

// NewInspect creates an inspection controller.
func NewInspect(api InspectAPI, opts ...Option) *Inspect {
	i := &Inspect{api: api}
	i.init("inspect", opts)
	return i
}

// State returns a copy of the current state.
func (i *Inspect) State() InspectState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Load fetches all three parts for model id. dependency asks the cost endpoint for the
// standalone and dependency split.
func (i *Inspect) Load(ctx context.Context, id string, dependency bool) error {
	id = strings.TrimSpace(id)
	if err := registry.ValidateID(id); err != nil {
		verr := invalid("id", "must contain only letters, digits and dashes")
		i.mu.Lock()
		i.state = InspectState{ID: id, RatingErr: verr, LineageErr: verr, CostErr: verr}
		i.mu.Unlock()
		return verr
	}

	i.mu.Lock()
	gen, err := i.begin()
	if err != nil {
		i.mu.Unlock()
		return err
	}
	i.state = InspectState{ID: id, Dependency: dependency, Loading: true}
	i.mu.Unlock()

	var next InspectState
	next.ID, next.Dependency = id, dependency

	// Parts never return an error to the group so a failing part does not cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		next.Rating, next.RatingErr = i.api.RateModel(ctx, id)
		return nil
	})
	g.Go(func() error {
		next.Lineage, next.LineageErr = i.api.Lineage(ctx, id)
		return nil
	})
	g.Go(func() error {
		next.Cost, next.CostErr = i.api.Cost(ctx, registry.TypeModel, id, dependency)
		return nil
	})
	_ = g.Wait()

	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.current(gen) {
		return nil
	}
	i.state = next

	if next.RatingErr != nil && next.LineageErr != nil && next.CostErr != nil {
		return errors.Join(ErrInspectFailed, next.RatingErr, next.LineageErr, next.CostErr)
	}
	return nil
}

// View renders the current state. Failed parts appear in Errors keyed by part name.
func (i *Inspect) View() InspectView {
	s := i.State()
	v := InspectView{ID: s.ID, Errors: map[string]string{}}

	if s.RatingErr != nil {
		v.Errors["rating"] = Describe(s.RatingErr)
	} else if s.Rating != nil {
		v.Rating = render.RatingTable(*s.Rating)
		charts := render.RatingCharts(*s.Rating)
		v.Charts = &charts
	}

	if s.LineageErr != nil {
		v.Errors["lineage"] = Describe(s.LineageErr)
	} else if s.Lineage != nil {
		lv := render.Lineage(*s.Lineage)
		v.Lineage = &lv
	}

	if s.CostErr != nil {
		v.Errors["cost"] = Describe(s.CostErr)
	} else if s.Cost != nil {
		cv := render.Cost(s.ID, s.Cost)
		v.Cost = &cv
	}

	if len(v.Errors) == 0 {
		v.Errors = nil
	}
	return v
}
