package harness

import "github.com/kobra-dev/kobra/internal/ir"

// StatementTrace is one compiled statement.
type StatementTrace struct {
	InstanceID string `json:"instance_id"`
	Text       string `json:"text"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when the outcome matched every expectation.
	Pass bool `json:"pass"`

	// Errors lists every failed expectation.
	Errors []string `json:"errors,omitempty"`

	Statements  []StatementTrace  `json:"statements"`
	Hash        string            `json:"hash,omitempty"`
	Executed    int               `json:"executed"`
	Console     []ir.ConsoleLine  `json:"console"`
	Plot        ir.PlotState      `json:"plot"`
	Predictions map[string]string `json:"predictions,omitempty"`

	// ErrorKind classifies the compile or run error, if any.
	ErrorKind string   `json:"error_kind,omitempty"`
	ErrorText string   `json:"error_text,omitempty"`
	Cycle     []string `json:"cycle,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Statements: []StatementTrace{},
		Console:    []ir.ConsoleLine{},
		Plot:       ir.DefaultPlotState(),
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Texts returns the statement texts in order.
func (r *Result) Texts() []string {
	out := make([]string, len(r.Statements))
	for i, st := range r.Statements {
		out[i] = st.Text
	}
	return out
}
