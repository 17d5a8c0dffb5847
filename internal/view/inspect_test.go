package view

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

func inspectRegistry() *mockRegistry {
	m := &mockRegistry{}
	m.RateModelFunc = func(context.Context, string) (*registry.RatingDocument, error) {
		return &registry.RatingDocument{
			Name:   "bert",
			Scores: map[string]*float64{"net_score": ptr(0.8), "license": ptr(1.0)},
		}, nil
	}
	m.LineageFunc = func(_ context.Context, id string) (*registry.Lineage, error) {
		return &registry.Lineage{
			Nodes: []registry.LineageNode{{ArtifactID: id, Name: "bert", Source: "model"}},
		}, nil
	}
	m.CostFunc = func(_ context.Context, artifactType, id string, dependency bool) (registry.CostReport, error) {
		if !dependency {
			return registry.CostReport{id: {TotalCost: 10}}, nil
		}
		return registry.CostReport{id: {TotalCost: 10, StandaloneCost: ptr(4.0)}}, nil
	}
	return m
}

func TestInspect_LoadsAllParts(t *testing.T) {
	m := inspectRegistry()
	i := NewInspect(m)

	require.NoError(t, i.Load(context.Background(), "abc123", true))

	v := i.View()
	assert.Nil(t, v.Errors)
	assert.Len(t, v.Rating, 2)
	require.NotNil(t, v.Lineage)
	assert.Len(t, v.Lineage.Nodes, 1)
	require.NotNil(t, v.Cost)
	require.NotNil(t, v.Cost.Focus)
	require.NotNil(t, v.Cost.Focus.Breakdown)
	assert.Equal(t, 6.0, v.Cost.Focus.Breakdown.Dependency)
	assert.ElementsMatch(t, []string{"RateModel", "Lineage", "Cost"}, m.Calls())
}

func TestInspect_PartFailureIsIsolated(t *testing.T) {
	m := inspectRegistry()
	m.LineageFunc = func(context.Context, string) (*registry.Lineage, error) {
		return nil, &registry.HTTPError{StatusCode: 400, Detail: "Lineage only for models"}
	}
	i := NewInspect(m)

	require.NoError(t, i.Load(context.Background(), "abc123", false))

	v := i.View()
	assert.Equal(t, map[string]string{"lineage": "Lineage only for models"}, v.Errors)
	assert.NotEmpty(t, v.Rating)
	require.NotNil(t, v.Cost)
	assert.Nil(t, v.Cost.Focus.Breakdown)
}

func TestInspect_AllPartsFail(t *testing.T) {
	boom := &registry.NetworkError{Method: "GET", URL: "http://x", Err: errors.New("offline")}
	m := &mockRegistry{
		RateModelFunc: func(context.Context, string) (*registry.RatingDocument, error) { return nil, boom },
		LineageFunc:   func(context.Context, string) (*registry.Lineage, error) { return nil, boom },
		CostFunc: func(context.Context, string, string, bool) (registry.CostReport, error) {
			return nil, boom
		},
	}
	i := NewInspect(m)

	err := i.Load(context.Background(), "abc123", false)
	assert.ErrorIs(t, err, ErrInspectFailed)
	assert.ErrorIs(t, err, registry.ErrNetwork)
	assert.Len(t, i.View().Errors, 3)
}

func TestInspect_InvalidID(t *testing.T) {
	m := inspectRegistry()
	i := NewInspect(m)

	err := i.Load(context.Background(), "bad/id", false)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, m.Calls())
}
