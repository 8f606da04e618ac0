package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kobra-dev/kobra/internal/graphdoc"
)

// Scenario is one end-to-end run of a block graph with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Families lists CUE family files loaded on top of the built-ins.
	// Relative paths resolve against the scenario file's directory.
	Families []string `yaml:"families,omitempty"`

	// Graph is the block graph to compile and run.
	Graph graphdoc.Document `yaml:"graph"`

	// CancelAfter cancels the run once this many statements completed.
	// Zero runs to completion.
	CancelAfter int `yaml:"cancel_after,omitempty"`

	// Roundtrip saves the final session and checks it reloads unchanged.
	Roundtrip bool `yaml:"roundtrip,omitempty"`

	// Expect states the outcome of compiling and running.
	Expect Expect `yaml:"expect"`

	// Assertions check the program, console and plot.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect is the expected outcome.
type Expect struct {
	// Error is the expected error kind; empty means success.
	Error string `yaml:"error,omitempty"`

	// Statements, when set, must equal the compiled statement texts.
	Statements []string `yaml:"statements,omitempty"`
}

// Assertion checks one property of a run.
type Assertion struct {
	Type      string   `yaml:"type"`
	Text      string   `yaml:"text,omitempty"`
	Lines     []string `yaml:"lines,omitempty"`
	Instances []string `yaml:"instances,omitempty"`
	Count     int      `yaml:"count,omitempty"`
	Title     string   `yaml:"title,omitempty"`
}

// Assertion type constants.
const (
	AssertConsoleContains = "console_contains"
	AssertConsoleEquals   = "console_equals"
	AssertStatementOrder  = "statement_order"
	AssertStatementCount  = "statement_count"
	AssertPlot            = "plot"
	AssertCycle           = "cycle"
)

// Error kinds a scenario can expect.
const (
	ErrorNone         = ""
	ErrorCyclic       = "cyclic"
	ErrorTypeMismatch = "type_mismatch"
	ErrorMalformed    = "malformed"
	ErrorUnbound      = "unbound"
	ErrorParam        = "param"
	ErrorExecution    = "execution"
	ErrorCancelled    = "cancelled"
)

var validErrorKinds = map[string]bool{
	ErrorNone: true, ErrorCyclic: true, ErrorTypeMismatch: true, ErrorMalformed: true,
	ErrorUnbound: true, ErrorParam: true, ErrorExecution: true, ErrorCancelled: true,
}

// LoadScenario reads and parses a scenario YAML file. Family paths are
// resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i, p := range s.Families {
		if !filepath.IsAbs(p) {
			s.Families[i] = filepath.Join(base, p)
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Graph.Blocks) == 0 {
		return fmt.Errorf("graph must have at least one block")
	}
	if s.CancelAfter < 0 {
		return fmt.Errorf("cancel_after must not be negative")
	}
	if !validErrorKinds[s.Expect.Error] {
		return fmt.Errorf("expect.error: unknown kind %q", s.Expect.Error)
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertConsoleContains:
		if a.Text == "" {
			return fmt.Errorf("%s requires text", a.Type)
		}
	case AssertConsoleEquals:
	case AssertStatementOrder, AssertCycle:
		if len(a.Instances) == 0 {
			return fmt.Errorf("%s requires instances", a.Type)
		}
	case AssertStatementCount, AssertPlot:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
