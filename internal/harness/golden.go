package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/kobra-dev/kobra/internal/ir"
)

// canonicalResult converts a result into the map shape written to golden
// files. ir.MarshalCanonical only handles plain values, so statements and
// console lines become maps.
func canonicalResult(name string, r *Result) map[string]any {
	statements := make([]any, len(r.Statements))
	for i, st := range r.Statements {
		statements[i] = map[string]any{"instance_id": st.InstanceID, "text": st.Text}
	}
	console := make([]any, len(r.Console))
	for i, l := range r.Console {
		console[i] = map[string]any{"kind": string(l.Kind), "text": l.Text}
	}
	out := map[string]any{
		"scenario_name": name,
		"statements":    statements,
		"executed":      r.Executed,
		"console":       console,
	}
	if r.ErrorKind != "" {
		out["error_kind"] = r.ErrorKind
	}
	if r.Plot.IsActive {
		out["plot_title"] = r.Plot.PlotTitle
		out["plot_traces"] = len(r.Plot.PlotData)
	}
	if len(r.Predictions) > 0 {
		preds := make(map[string]any, len(r.Predictions))
		for id, v := range r.Predictions {
			preds[id] = v
		}
		out["predictions"] = preds
	}
	return out
}

// RunWithGolden runs a scenario and compares its statements, console and
// plot summary against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := ir.MarshalCanonical(canonicalResult(name, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
