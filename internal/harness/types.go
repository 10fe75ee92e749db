package harness

import "github.com/roach88/vrtb/internal/trace"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: the bench ran without faults and
	// every assertion held.
	Pass bool `json:"pass"`

	// RunID identifies the run in the store.
	RunID string `json:"run_id"`

	// Trace contains every observed transfer in seq order.
	Trace []trace.Transfer `json:"trace"`

	// Errors contains fault and assertion messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Trace:  []trace.Transfer{},
		Errors: []string{},
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// OnLink returns the transfers observed on one link, in order.
func (r *Result) OnLink(link string) []trace.Transfer {
	var out []trace.Transfer
	for _, t := range r.Trace {
		if t.Link == link {
			out = append(out, t)
		}
	}
	return out
}
