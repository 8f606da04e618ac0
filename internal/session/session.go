package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/kobra-dev/kobra/internal/compiler"
	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/sandbox"
	"github.com/kobra-dev/kobra/internal/snapshot"
)

// ErrRunning is returned by Run, Reset and Adopt while a run is in progress.
var ErrRunning = errors.New("session: a run is already in progress")

// Schema is what a session needs from the family registry.
// *registry.Registry implements it.
type Schema interface {
	compiler.Schema
	snapshot.Blocks
}

// Session owns the graph, plot and console of one editing session.
//
// Thread-safety: all methods are safe for concurrent use. At most one Run is
// active at a time.
type Session struct {
	schema  Schema
	caps    *sandbox.Capabilities
	logger  *slog.Logger
	metrics *sandbox.Metrics
	ids     ir.IDGenerator

	mu      sync.Mutex
	graph   ir.BlockGraph
	plot    ir.PlotState
	console ir.ConsoleState
	models  []sandbox.TrainedModel
	running bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used by the session and its sandbox runs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithMetrics passes sandbox metrics to every run.
func WithMetrics(m *sandbox.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithIDGenerator sets the generator for exported model ids.
// Defaults to UUIDv7.
func WithIDGenerator(g ir.IDGenerator) Option {
	return func(s *Session) {
		s.ids = g
	}
}

// New creates an empty session.
func New(schema Schema, caps *sandbox.Capabilities, opts ...Option) *Session {
	s := &Session{
		schema: schema,
		caps:   caps,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:    ir.UUIDv7Generator{},
		plot:   ir.DefaultPlotState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph returns a copy of the block graph.
func (s *Session) Graph() ir.BlockGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Clone()
}

// Plot returns a copy of the plot state.
func (s *Session) Plot() ir.PlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plot.Clone()
}

// Console returns a copy of the console state.
func (s *Session) Console() ir.ConsoleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.console.Clone()
}

// EditGraph applies edit to a copy of the graph and keeps the result only
// if edit succeeds.
func (s *Session) EditGraph(edit func(g *ir.BlockGraph) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.graph.Clone()
	if err := edit(&next); err != nil {
		return err
	}
	s.graph = next
	return nil
}

// EditPlot implements sandbox.PlotSink.
func (s *Session) EditPlot(edit func(*ir.PlotState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.plot.Clone()
	edit(&next)
	s.plot = next
}

// Append implements sandbox.ConsoleSink.
func (s *Session) Append(line ir.ConsoleLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.console.Clone()
	next.Lines = append(next.Lines, line)
	s.console = next
}

// Reset starts a new empty project: no blocks, the default plot, an empty
// console and no trained models. It fails with ErrRunning during a run.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	s.graph = ir.BlockGraph{}
	s.plot = ir.DefaultPlotState()
	s.console = ir.ConsoleState{}
	s.models = nil
	return nil
}

// Snapshot encodes the current triple.
func (s *Session) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.Save(s.graph, s.plot, s.console)
}

// Adopt replaces the whole triple with the one decoded from blob. On any
// error, including ErrRunning, the session is left exactly as it was.
func (s *Session) Adopt(blob []byte) error {
	snap, err := snapshot.Load(s.schema, blob)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	s.graph = snap.Graph
	s.plot = snap.Plot
	s.console = snap.Console
	s.models = nil
	return nil
}

// Run compiles the current graph and executes it, writing console and plot
// output into the session. Compilation failures run nothing.
func (s *Session) Run(ctx context.Context) (*sandbox.Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunning
	}
	s.running = true
	g := s.graph.Clone()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	prog, err := compiler.Compile(s.schema, g)
	if err != nil {
		s.logger.Info("compile failed", "error", err)
		return nil, err
	}

	opts := []sandbox.Option{sandbox.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, sandbox.WithMetrics(s.metrics))
	}
	res, err := sandbox.New(s.caps, s, s, opts...).Run(ctx, prog)

	s.mu.Lock()
	s.models = slices.Clone(res.Models)
	s.mu.Unlock()
	return res, err
}

// TrainedModels lists the models fitted by the most recent run.
func (s *Session) TrainedModels() []sandbox.TrainedModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.models)
}

// Save writes the session snapshot to gw under projectID.
func (s *Session) Save(ctx context.Context, gw Gateway, projectID string) error {
	blob, err := s.Snapshot()
	if err != nil {
		return err
	}
	if err := gw.Put(ctx, projectID, blob); err != nil {
		return fmt.Errorf("save project %s: %w", projectID, err)
	}
	s.logger.Info("project saved", "project", projectID, "digest", ir.SnapshotDigest(blob))
	return nil
}

// Open loads projectID from gw and adopts it.
func (s *Session) Open(ctx context.Context, gw Gateway, projectID string) error {
	blob, err := gw.Get(ctx, projectID)
	if err != nil {
		return fmt.Errorf("open project %s: %w", projectID, err)
	}
	if err := s.Adopt(blob); err != nil {
		return fmt.Errorf("open project %s: %w", projectID, err)
	}
	s.logger.Info("project opened", "project", projectID)
	return nil
}

// ExportModel serializes the model owned by the create block instanceID,
// as trained by the most recent run, and stores it in archive.
func (s *Session) ExportModel(ctx context.Context, archive ModelArchive, projectID, instanceID string) (ir.ExportedModel, error) {
	s.mu.Lock()
	i := slices.IndexFunc(s.models, func(tm sandbox.TrainedModel) bool { return tm.InstanceID == instanceID })
	var tm sandbox.TrainedModel
	if i >= 0 {
		tm = s.models[i]
	}
	s.mu.Unlock()
	if i < 0 {
		return ir.ExportedModel{}, &ir.NotFoundError{Kind: "model", ID: instanceID}
	}

	payload, err := tm.Model.Serialize()
	if err != nil {
		return ir.ExportedModel{}, fmt.Errorf("export %s: serialize: %w", instanceID, err)
	}
	m := ir.ExportedModel{
		ID:         s.ids.Generate(),
		ProjectID:  projectID,
		InstanceID: instanceID,
		FamilyID:   tm.FamilyID,
		Digest:     ir.ModelDigest(payload),
		Payload:    payload,
	}
	if err := archive.PutModel(ctx, m); err != nil {
		return ir.ExportedModel{}, fmt.Errorf("export %s: %w", instanceID, err)
	}
	s.logger.Info("model exported", "model", m.ID, "instance", instanceID, "family", tm.FamilyID)
	return m, nil
}
