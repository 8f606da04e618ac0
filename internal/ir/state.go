package ir

import "slices"

// Trace is one plotted series.
type Trace struct {
	Name string    `json:"name,omitempty"`
	Type string    `json:"type"`           // "scatter"
	Mode string    `json:"mode,omitempty"` // "markers" | "lines"
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

// PlotState is the data view's state. It is only ever replaced as a whole.
type PlotState struct {
	IsActive  bool    `json:"isActive"`
	PlotData  []Trace `json:"plotData"`
	PlotTitle string  `json:"plotTitle"`
}

// DefaultPlotState is the state of an empty data view.
func DefaultPlotState() PlotState {
	return PlotState{IsActive: false, PlotData: []Trace{}, PlotTitle: ""}
}

// Clone returns a deep copy.
func (p PlotState) Clone() PlotState {
	out := p
	if p.PlotData != nil {
		out.PlotData = make([]Trace, len(p.PlotData))
		for i, t := range p.PlotData {
			t.X = slices.Clone(t.X)
			t.Y = slices.Clone(t.Y)
			out.PlotData[i] = t
		}
	}
	return out
}

// LineKind classifies console lines.
type LineKind string

const (
	LineOut    LineKind = "out"
	LineErr    LineKind = "err"
	LineMarker LineKind = "marker" // failure marker naming the offending block
)

// ConsoleLine is one line of console history.
type ConsoleLine struct {
	Kind LineKind `json:"kind"`
	Text string   `json:"text"`
}

// ConsoleState is the console history. Outside the sandbox and the session
// it is treated as an opaque value.
type ConsoleState struct {
	Lines []ConsoleLine `json:"lines"`
}

// Clone returns a copy that shares nothing with c.
func (c ConsoleState) Clone() ConsoleState {
	return ConsoleState{Lines: slices.Clone(c.Lines)}
}

// Texts returns the line texts in order.
func (c ConsoleState) Texts() []string {
	out := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		out[i] = l.Text
	}
	return out
}
