package api

import "time"

// --- API Response Envelope ---

type apiResponse[T any] struct {
	Data  T       `json:"data"`
	Error *apiErr `json:"error,omitempty"`
}

type apiErr struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Search ---

// EntitySuggestion is one candidate returned by the entity search index.
type EntitySuggestion struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Category string `json:"category,omitempty"`
}

// PropertySuggestion is one property of an entity that a reference may target.
type PropertySuggestion struct {
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Type     string `json:"type,omitempty"`
	HasValue bool   `json:"has_value"`
}

// --- Analysis ---

// Binding is the stored value for one named input of an analysis.
type Binding struct {
	Input string `json:"input"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// Output is one computed result of an analysis.
type Output struct {
	Name  string   `json:"name"`
	Unit  string   `json:"unit,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Computation statuses reported by the evaluator.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Analysis is a backend-owned calculation with bound inputs and computed outputs.
type Analysis struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Bindings          []Binding `json:"bindings"`
	Outputs           []Output  `json:"outputs"`
	ComputationStatus string    `json:"computation_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BindingValue returns the last committed value of the named input.
func (a Analysis) BindingValue(input string) (string, bool) {
	for _, b := range a.Bindings {
		if b.Input == input {
			return b.Value, true
		}
	}
	return "", false
}

// BindingMap returns every input's committed value keyed by input name.
func (a Analysis) BindingMap() map[string]string {
	out := make(map[string]string, len(a.Bindings))
	for _, b := range a.Bindings {
		out[b.Input] = b.Value
	}
	return out
}

// CreateAnalysisInput defines the fields required to create a new analysis.
type CreateAnalysisInput struct {
	Name     string            `json:"name"`
	Template string            `json:"template,omitempty"`
	Bindings map[string]string `json:"bindings,omitempty"`
}

// UpdateAnalysisInput carries a full binding set. The backend replaces the
// stored bindings wholesale, so Bindings must include untouched inputs too.
type UpdateAnalysisInput struct {
	Name     *string           `json:"name,omitempty"`
	Bindings map[string]string `json:"bindings"`
}

// QueryParams is a map of URL query parameters.
type QueryParams map[string]string
