package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/kobra-dev/kobra/internal/compiler"
	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
)

// Sandbox executes compiled programs against a fixed capability table.
//
// Thread-safety model:
//   - Run may be called from any goroutine, but runs must not overlap when
//     they share sinks
//   - each Run has its own model and value environment
type Sandbox struct {
	caps    *Capabilities
	console ConsoleSink
	plot    PlotSink
	logger  *slog.Logger
	metrics *Metrics
	after   func(i int, st compiler.Statement)
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sandbox) {
		s.logger = l
	}
}

// WithMetrics records statement and run metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Sandbox) {
		s.metrics = m
	}
}

// WithAfterStatement registers a hook called after each statement completes
// successfully, with its index in the program.
func WithAfterStatement(fn func(i int, st compiler.Statement)) Option {
	return func(s *Sandbox) {
		s.after = fn
	}
}

// New creates a sandbox writing to the given console and plot.
func New(caps *Capabilities, console ConsoleSink, plot PlotSink, opts ...Option) *Sandbox {
	s := &Sandbox{
		caps:    caps,
		console: console,
		plot:    plot,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrainedModel is a model that completed at least one fit during a run.
type TrainedModel struct {
	InstanceID string // create block that owns the model
	FitID      string // most recent fit
	FamilyID   string
	Model      Model
}

// Result is what a run produced. It is returned for failed and cancelled
// runs too, covering the statements that completed.
type Result struct {
	Executed    int
	Predictions map[string]ir.Value // predict outputs by instance id
	Models      []TrainedModel      // ordered by first fit
}

// env is the state of one run.
type env struct {
	models   map[string]Model    // by create instance id
	families map[string]string   // create instance id -> family id
	values   map[string]ir.Value // outputs by instance id
	result   *Result
}

// Run executes the program's statements in order.
//
// Before each statement the context is checked; a cancelled context stops
// the run with a *CancelledError. Statements themselves receive a context
// that is never cancelled, so a started statement always finishes. A failing
// statement appends a marker line to the console and stops the run with an
// *ExecutionError. Nothing already written is rolled back.
func (s *Sandbox) Run(ctx context.Context, prog *compiler.Program) (*Result, error) {
	e := &env{
		models:   make(map[string]Model),
		families: make(map[string]string),
		values:   make(map[string]ir.Value),
		result:   &Result{Predictions: make(map[string]ir.Value)},
	}
	stmtCtx := context.WithoutCancel(ctx)

	s.logger.Info("run starting", "statements", len(prog.Statements), "program", prog.Hash)
	for i, st := range prog.Statements {
		if err := ctx.Err(); err != nil {
			s.logger.Info("run cancelled", "after", i)
			s.metrics.observeRun(OutcomeCancelled)
			return e.result, &CancelledError{After: i, Err: err}
		}

		start := time.Now()
		err := s.execute(stmtCtx, e, st)
		elapsed := time.Since(start)
		if err != nil {
			s.metrics.observeStatement(string(st.Block), OutcomeFailed, elapsed)
			s.metrics.observeRun(OutcomeFailed)
			s.console.Append(ir.ConsoleLine{
				Kind: ir.LineMarker,
				Text: fmt.Sprintf("✗ %s: %v", st.InstanceID, err),
			})
			s.logger.Error("statement failed",
				"instance", st.InstanceID,
				"block", st.Block,
				"index", i,
				"error", err)
			return e.result, &ExecutionError{InstanceID: st.InstanceID, Cause: err}
		}

		s.metrics.observeStatement(string(st.Block), OutcomeOK, elapsed)
		s.logger.Debug("statement done", "instance", st.InstanceID, "block", st.Block, "elapsed", elapsed)
		e.result.Executed = i + 1
		if s.after != nil {
			s.after(i, st)
		}
	}

	s.metrics.observeRun(OutcomeOK)
	s.logger.Info("run finished", "statements", len(prog.Statements))
	return e.result, nil
}

// execute runs one statement, turning panics in capabilities into errors.
func (s *Sandbox) execute(ctx context.Context, e *env, st compiler.Statement) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch st.Block {
	case ir.BlockCreate:
		return s.create(e, st)
	case ir.BlockFit:
		return s.fit(ctx, e, st)
	case ir.BlockPredict:
		return s.predict(ctx, e, st)
	case ir.BlockPrint:
		s.console.Append(ir.ConsoleLine{Kind: ir.LineOut, Text: ir.Format(e.resolve(st.Call.Args[registry.PortValue]))})
		return nil
	case ir.BlockPlot:
		return s.drawPlot(e, st)
	default:
		return fmt.Errorf("unknown block type %q", st.Block)
	}
}

func (s *Sandbox) create(e *env, st compiler.Statement) error {
	fam, err := s.caps.Lookup(st.Family)
	if err != nil {
		return err
	}
	m, err := fam.Create(st.Call.Params)
	if err != nil {
		return fmt.Errorf("create %s: %w", st.Family, err)
	}
	e.models[st.InstanceID] = m
	e.families[st.InstanceID] = st.Family
	return nil
}

func (s *Sandbox) fit(ctx context.Context, e *env, st compiler.Statement) error {
	m, err := e.model(st)
	if err != nil {
		return err
	}
	extra := make(map[string]ir.Value, len(st.Call.Extra))
	for _, name := range st.Call.Extra {
		extra[name] = e.resolve(st.Call.Args[name])
	}
	features := e.resolve(st.Call.Args[registry.PortFeatures])
	labels := e.resolve(st.Call.Args[registry.PortLabels])
	if err := m.Fit(ctx, features, labels, extra); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	i := slices.IndexFunc(e.result.Models, func(tm TrainedModel) bool { return tm.InstanceID == st.Call.Model })
	if i < 0 {
		e.result.Models = append(e.result.Models, TrainedModel{
			InstanceID: st.Call.Model,
			FamilyID:   e.families[st.Call.Model],
			Model:      m,
		})
		i = len(e.result.Models) - 1
	}
	e.result.Models[i].FitID = st.InstanceID

	s.console.Append(ir.ConsoleLine{
		Kind: ir.LineOut,
		Text: fmt.Sprintf("%s: fitted model_%s", st.Call.Label, st.Call.Model),
	})
	return nil
}

func (s *Sandbox) predict(ctx context.Context, e *env, st compiler.Statement) error {
	m, err := e.model(st)
	if err != nil {
		return err
	}
	out, err := m.Predict(ctx, e.resolve(st.Call.Args[registry.PortInput]))
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	e.values[st.InstanceID] = out
	e.result.Predictions[st.InstanceID] = out
	return nil
}

func (s *Sandbox) drawPlot(e *env, st compiler.Statement) error {
	x, err := ir.Vector(e.resolve(st.Call.Args[registry.PortX]))
	if err != nil {
		return fmt.Errorf("plot x: %w", err)
	}
	y, err := ir.Vector(e.resolve(st.Call.Args[registry.PortY]))
	if err != nil {
		return fmt.Errorf("plot y: %w", err)
	}
	if len(x) != len(y) {
		return fmt.Errorf("plot: x has %d points, y has %d", len(x), len(y))
	}
	title := ""
	if t, ok := st.Call.Params[registry.ParamTitle].(ir.String); ok {
		title = string(t)
	}

	s.plot.EditPlot(func(p *ir.PlotState) {
		p.IsActive = true
		p.PlotTitle = title
		p.PlotData = append(p.PlotData, ir.Trace{
			Name: st.InstanceID,
			Type: "scatter",
			Mode: "markers",
			X:    x,
			Y:    y,
		})
	})
	return nil
}

// model returns the model a fit or predict statement works on.
func (e *env) model(st compiler.Statement) (Model, error) {
	m, ok := e.models[st.Call.Model]
	if !ok {
		return nil, fmt.Errorf("model_%s is not defined", st.Call.Model)
	}
	return m, nil
}

// resolve returns the value of an argument. Outputs of blocks that produce
// nothing resolve to nil, which prints as None.
func (e *env) resolve(a compiler.Arg) ir.Value {
	if a.From != "" {
		return e.values[a.From]
	}
	return a.Value
}
