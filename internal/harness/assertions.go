package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Console  []string // console texts for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Console) > 0 {
		fmt.Fprintf(&buf, "\nConsole:\n")
		for i, line := range e.Console {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluate(r, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertConsoleContains:
		return assertConsoleContains(r, a)
	case AssertConsoleEquals:
		return assertConsoleEquals(r, a)
	case AssertStatementOrder:
		return assertStatementOrder(r, a)
	case AssertStatementCount:
		if len(r.Statements) != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d statements", a.Count),
				Actual:   fmt.Sprintf("%d statements", len(r.Statements)),
			}
		}
		return nil
	case AssertPlot:
		return assertPlot(r, a)
	case AssertCycle:
		if !slices.Equal(sortedCopy(a.Instances), r.Cycle) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("cycle %v", sortedCopy(a.Instances)),
				Actual:   fmt.Sprintf("cycle %v", r.Cycle),
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func consoleTexts(r *Result) []string {
	out := make([]string, len(r.Console))
	for i, l := range r.Console {
		out[i] = l.Text
	}
	return out
}

func assertConsoleContains(r *Result, a Assertion) error {
	texts := consoleTexts(r)
	for _, t := range texts {
		if strings.Contains(t, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("a console line containing %q", a.Text),
		Actual:   "not found",
		Console:  texts,
	}
}

func assertConsoleEquals(r *Result, a Assertion) error {
	texts := consoleTexts(r)
	want := a.Lines
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(want, texts) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%q", want),
			Actual:   fmt.Sprintf("%q", texts),
			Console:  texts,
		}
	}
	return nil
}

// assertStatementOrder checks that the instances appear in the given
// relative order. Other statements may come in between.
func assertStatementOrder(r *Result, a Assertion) error {
	pos := make(map[string]int, len(r.Statements))
	for i, st := range r.Statements {
		pos[st.InstanceID] = i
	}
	prev := -1
	for _, id := range a.Instances {
		p, ok := pos[id]
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("statement for %s", id),
				Actual:   "not compiled",
			}
		}
		if p < prev {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("order %v", a.Instances),
				Actual:   fmt.Sprintf("%s at position %d, before its predecessor at %d", id, p+1, prev+1),
			}
		}
		prev = p
	}
	return nil
}

func assertPlot(r *Result, a Assertion) error {
	if r.Plot.PlotTitle != a.Title || len(r.Plot.PlotData) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("title %q with %d traces", a.Title, a.Count),
			Actual:   fmt.Sprintf("title %q with %d traces", r.Plot.PlotTitle, len(r.Plot.PlotData)),
		}
	}
	return nil
}

func sortedCopy(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}
