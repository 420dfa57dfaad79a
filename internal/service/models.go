package service

import (
	"context"
	"fmt"

	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/selection"
)

// recommendationCategories are the categories listed with the models.
var recommendationCategories = []selection.Category{
	selection.Casual,
	selection.Dynamic,
	selection.Educational,
	selection.Advanced,
}

// ModelList is the generation model overview.
type ModelList struct {
	Current         string              `json:"current_model"`
	Models          []catalog.Info      `json:"models"`
	Recommendations map[string][]string `json:"recommendations"`
}

// RefreshResult reports a re-probe.
type RefreshResult struct {
	Current   string            `json:"current_model"`
	Available []string          `json:"available_models"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// Models manages the generation backends.
type Models struct {
	source Source
}

// NewModels creates a model service.
func NewModels(source Source) *Models {
	return &Models{source: source}
}

// List returns every model with its runtime facts and the recommendations
// per category.
func (m *Models) List() (*ModelList, error) {
	orch := m.source()
	if orch == nil {
		return nil, ErrNotInitialized
	}

	gen := orch.Generation
	current, _ := gen.Active()

	recs := make(map[string][]string, len(recommendationCategories))
	for _, c := range recommendationCategories {
		recs[string(c)] = gen.Rank(c)
	}

	return &ModelList{
		Current:         current,
		Models:          gen.Infos(),
		Recommendations: recs,
	}, nil
}

// Switch makes id the active model and returns its info.
func (m *Models) Switch(id string) (*catalog.Info, error) {
	orch := m.source()
	if orch == nil {
		return nil, ErrNotInitialized
	}

	if err := orch.Generation.SwitchTo(id); err != nil {
		return nil, fmt.Errorf("switch model: %w", err)
	}
	return modelInfo(orch, id), nil
}

// Refresh re-probes the generation backends.
func (m *Models) Refresh(ctx context.Context) (*RefreshResult, error) {
	orch := m.source()
	if orch == nil {
		return nil, ErrNotInitialized
	}

	res := orch.Generation.Refresh(ctx)
	current, _ := orch.Generation.Active()

	return &RefreshResult{
		Current:   current,
		Available: res.Available,
		Failures:  res.Reasons(),
	}, nil
}
