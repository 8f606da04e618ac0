package sandbox

import (
	"sync"

	"github.com/kobra-dev/kobra/internal/ir"
)

// ConsoleSink receives console lines in order.
type ConsoleSink interface {
	Append(line ir.ConsoleLine)
}

// PlotSink applies an edit to the plot state as one atomic
// read-modify-write.
type PlotSink interface {
	EditPlot(edit func(*ir.PlotState))
}

// Recorder is an in-memory ConsoleSink and PlotSink.
//
// Thread-safety: all methods are safe for concurrent use. Readers get copies.
type Recorder struct {
	mu      sync.Mutex
	console ir.ConsoleState
	plot    ir.PlotState
}

// NewRecorder starts with an empty console and the default plot.
func NewRecorder() *Recorder {
	return &Recorder{plot: ir.DefaultPlotState()}
}

// Append adds a console line.
func (r *Recorder) Append(line ir.ConsoleLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.console.Lines = append(r.console.Lines, line)
}

// EditPlot edits a copy of the plot and stores the result.
func (r *Recorder) EditPlot(edit func(*ir.PlotState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.plot.Clone()
	edit(&next)
	r.plot = next
}

// Console returns a copy of the console.
func (r *Recorder) Console() ir.ConsoleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.console.Clone()
}

// Plot returns a copy of the plot.
func (r *Recorder) Plot() ir.PlotState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plot.Clone()
}
