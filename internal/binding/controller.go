// Package binding coordinates editing the inputs of an analysis: one input
// is edited at a time, and saving sends the complete binding set before
// asking the backend to re-evaluate.
package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/store"
)

var (
	// ErrNotEditing is returned by Save when no input is being edited.
	ErrNotEditing = errors.New("no binding is being edited")
	// ErrSaveInFlight is returned when the target input is already saving.
	ErrSaveInFlight = errors.New("binding save already in progress")
)

// Backend is the subset of the API client the controller needs.
type Backend interface {
	UpdateAnalysis(id string, input api.UpdateAnalysisInput) (*api.Analysis, error)
	EvaluateAnalysis(id string) (*api.Analysis, error)
}

// Target identifies one input of one analysis.
type Target struct {
	AnalysisID string
	Input      string
}

// Controller owns the single active binding edit.
type Controller struct {
	backend Backend
	store   *store.Store
	logger  *slog.Logger

	mu      sync.Mutex
	editing *Target
	saving  map[Target]bool
}

// NewController creates a controller that writes through backend and keeps
// st up to date with the responses.
func NewController(backend Backend, st *store.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		backend: backend,
		store:   st,
		logger:  logger,
		saving:  map[Target]bool{},
	}
}

// StartEdit makes input of analysisID the active edit, replacing any other,
// and returns its last committed value to seed the editor with.
func (c *Controller) StartEdit(analysisID, input string) (string, error) {
	target := Target{AnalysisID: analysisID, Input: input}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saving[target] {
		return "", ErrSaveInFlight
	}
	c.editing = &target

	a, ok := c.store.Get(analysisID)
	if !ok {
		return "", nil
	}
	value, _ := a.BindingValue(input)
	return value, nil
}

// Editing returns the active edit target.
func (c *Controller) Editing() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return Target{}, false
	}
	return *c.editing, true
}

// IsEditing reports whether input of analysisID is the active edit.
func (c *Controller) IsEditing(analysisID, input string) bool {
	t, ok := c.Editing()
	return ok && t == Target{AnalysisID: analysisID, Input: input}
}

// IsSaving reports whether input of analysisID has a save in flight.
func (c *Controller) IsSaving(analysisID, input string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving[Target{AnalysisID: analysisID, Input: input}]
}

// Cancel drops the active edit without saving.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.editing = nil
	c.mu.Unlock()
}

// Save commits value to the active edit target. The PATCH carries every
// input of the analysis, because the backend replaces the stored set
// wholesale. A failed save keeps the edit open; a failed evaluation is only
// logged. The returned analysis is the freshest copy the backend sent.
func (c *Controller) Save(value string) (*api.Analysis, error) {
	c.mu.Lock()
	if c.editing == nil {
		c.mu.Unlock()
		return nil, ErrNotEditing
	}
	target := *c.editing
	if c.saving[target] {
		c.mu.Unlock()
		return nil, ErrSaveInFlight
	}
	c.saving[target] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.saving, target)
		c.mu.Unlock()
	}()

	current, err := c.committed(target.AnalysisID)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", target.Input, err)
	}
	bindings := current.BindingMap()
	bindings[target.Input] = value

	updated, err := c.backend.UpdateAnalysis(target.AnalysisID, api.UpdateAnalysisInput{Bindings: bindings})
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", target.Input, err)
	}
	c.store.Upsert(*updated)
	result := updated

	evaluated, err := c.backend.EvaluateAnalysis(target.AnalysisID)
	switch {
	case err != nil:
		c.logger.Warn("evaluate after save failed", "analysis", target.AnalysisID, "input", target.Input, "error", err)
	case evaluated != nil:
		c.store.Upsert(*evaluated)
		result = evaluated
	}

	c.mu.Lock()
	if c.editing != nil && *c.editing == target {
		c.editing = nil
	}
	c.mu.Unlock()
	return result, nil
}

// committed returns the analysis holding the last committed bindings,
// fetching it when the store has no copy. A PATCH built without it would
// drop every other input.
func (c *Controller) committed(analysisID string) (api.Analysis, error) {
	if a, ok := c.store.Get(analysisID); ok {
		return a, nil
	}
	a, err := c.store.RefreshDetail(analysisID)
	if err != nil {
		return api.Analysis{}, err
	}
	if a.ID == "" {
		return api.Analysis{}, fmt.Errorf("analysis %s is not loaded", analysisID)
	}
	return a, nil
}
