package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/go-cmp/cmp"

	"github.com/kobra-dev/kobra/internal/compiler"
	"github.com/kobra-dev/kobra/internal/families"
	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
	"github.com/kobra-dev/kobra/internal/sandbox"
	"github.com/kobra-dev/kobra/internal/snapshot"
	"github.com/kobra-dev/kobra/internal/store"
)

// Harness runs scenarios.
type Harness struct {
	caps   *sandbox.Capabilities
	logger *slog.Logger
}

// New creates a harness running against the built-in families.
func New() *Harness {
	return &Harness{
		caps:   families.Capabilities(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Run executes a scenario with a fresh harness.
func Run(s *Scenario) (*Result, error) {
	return New().Run(context.Background(), s)
}

// Run compiles and executes a scenario and evaluates its expectations.
//
// An error is returned only when the scenario itself cannot be set up
// (unreadable family files, a graph document that does not build). Compile
// and run failures are part of the result.
//
// Execution flow:
//  1. Build the family registry and the graph
//  2. Compile; on failure classify the error and stop
//  3. Run, cancelling after CancelAfter statements if set
//  4. Optionally save and reload the session snapshot
//  5. Check the expected error kind, statements and assertions
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	reg, err := scenarioRegistry(s.Families)
	if err != nil {
		return nil, err
	}
	g, err := s.Graph.Build(reg)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	result := NewResult()
	runErr := h.execute(ctx, s, reg, g, result)
	if runErr != nil {
		result.ErrorKind = classify(runErr)
		result.ErrorText = runErr.Error()
		var ce *compiler.CyclicGraphError
		if errors.As(runErr, &ce) {
			result.Cycle = ce.InstanceIDs()
		}
	}

	if s.Roundtrip {
		if err := roundtrip(ctx, reg, g, result); err != nil {
			result.AddError(err.Error())
		}
	}

	if result.ErrorKind != s.Expect.Error {
		result.AddError(fmt.Sprintf("expected error %q, got %q (%s)", s.Expect.Error, result.ErrorKind, result.ErrorText))
	}
	if s.Expect.Statements != nil {
		if diff := cmp.Diff(s.Expect.Statements, result.Texts()); diff != "" {
			result.AddError("statements mismatch (-want +got):\n" + diff)
		}
	}
	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, s *Scenario, reg *registry.Registry, g ir.BlockGraph, result *Result) error {
	prog, err := compiler.Compile(reg, g)
	if err != nil {
		return err
	}
	for _, st := range prog.Statements {
		result.Statements = append(result.Statements, StatementTrace{InstanceID: st.InstanceID, Text: st.Text})
	}
	result.Hash = prog.Hash

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	opts := []sandbox.Option{sandbox.WithLogger(h.logger)}
	if s.CancelAfter > 0 {
		opts = append(opts, sandbox.WithAfterStatement(func(i int, _ compiler.Statement) {
			if i+1 == s.CancelAfter {
				cancel()
			}
		}))
	}

	rec := sandbox.NewRecorder()
	res, runErr := sandbox.New(h.caps, rec, rec, opts...).Run(ctx, prog)
	result.Executed = res.Executed
	result.Console = append(result.Console, rec.Console().Lines...)
	result.Plot = rec.Plot()
	if len(res.Predictions) > 0 {
		result.Predictions = make(map[string]string, len(res.Predictions))
		for id, v := range res.Predictions {
			result.Predictions[id] = ir.Format(v)
		}
	}
	return runErr
}

// roundtrip saves the final session through a gateway and checks that it
// loads back unchanged.
func roundtrip(ctx context.Context, reg *registry.Registry, g ir.BlockGraph, result *Result) error {
	console := ir.ConsoleState{Lines: result.Console}
	blob, err := snapshot.Save(g, result.Plot, console)
	if err != nil {
		return fmt.Errorf("roundtrip: %w", err)
	}
	gw := store.NewMemory()
	if err := gw.Put(ctx, "scenario", blob); err != nil {
		return fmt.Errorf("roundtrip: %w", err)
	}
	stored, err := gw.Get(ctx, "scenario")
	if err != nil {
		return fmt.Errorf("roundtrip: %w", err)
	}
	snap, err := snapshot.Load(reg, stored)
	if err != nil {
		return fmt.Errorf("roundtrip: %w", err)
	}
	want := snapshot.Snapshot{Graph: g, Plot: result.Plot, Console: console}
	if diff := cmp.Diff(want, *snap); diff != "" {
		return fmt.Errorf("roundtrip mismatch (-want +got):\n%s", diff)
	}
	return nil
}

// scenarioRegistry returns the built-in registry, extended with the given
// CUE family files.
func scenarioRegistry(paths []string) (*registry.Registry, error) {
	if len(paths) == 0 {
		return registry.Default(), nil
	}
	reg, err := registry.Builtin()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read family file: %w", err)
		}
		if err := reg.LoadCUE(p, src); err != nil {
			return nil, err
		}
	}
	reg.Seal()
	return reg, nil
}

// classify maps an error to its scenario error kind.
func classify(err error) string {
	switch {
	case err == nil:
		return ErrorNone
	case compiler.IsCyclic(err):
		return ErrorCyclic
	case compiler.IsTypeMismatch(err):
		return ErrorTypeMismatch
	case compiler.IsMalformed(err):
		return ErrorMalformed
	case compiler.IsUnbound(err):
		return ErrorUnbound
	case registry.IsParamError(err):
		return ErrorParam
	case sandbox.IsCancelled(err):
		return ErrorCancelled
	case sandbox.IsExecutionError(err):
		return ErrorExecution
	}
	return "unknown"
}
