package testutil

import (
	"testing"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
)

// GraphBuilder assembles block graphs for tests. Every step fails the test
// on error.
type GraphBuilder struct {
	t   testing.TB
	reg *registry.Registry
	g   ir.BlockGraph
}

// NewGraph starts an empty graph whose blocks come from reg.
func NewGraph(t testing.TB, reg *registry.Registry) *GraphBuilder {
	t.Helper()
	return &GraphBuilder{t: t, reg: reg}
}

// Block places a block. familyID is empty for print and plot.
func (b *GraphBuilder) Block(id string, bt ir.BlockType, familyID string) *GraphBuilder {
	b.t.Helper()
	inst, err := b.reg.NewInstance(id, bt, familyID)
	if err != nil {
		b.t.Fatalf("place %s: %v", id, err)
	}
	if err := b.g.Add(inst); err != nil {
		b.t.Fatalf("place %s: %v", id, err)
	}
	return b
}

// Connect wires from's output into the named port of to.
func (b *GraphBuilder) Connect(from, to, port string) *GraphBuilder {
	b.t.Helper()
	if err := b.g.Connect(from, to, port); err != nil {
		b.t.Fatalf("connect: %v", err)
	}
	return b
}

// Literal sets a literal on a port or parameter.
func (b *GraphBuilder) Literal(id, name string, v ir.Value) *GraphBuilder {
	b.t.Helper()
	if err := b.g.SetParam(id, name, v); err != nil {
		b.t.Fatalf("literal: %v", err)
	}
	return b
}

// Pipeline adds create → fit → predict for a family, with literal training
// data and prediction input. Ids are prefix+"_create", prefix+"_fit" and
// prefix+"_predict".
func (b *GraphBuilder) Pipeline(prefix, familyID string) *GraphBuilder {
	b.t.Helper()
	c, f, p := prefix+"_create", prefix+"_fit", prefix+"_predict"
	b.Block(c, ir.BlockCreate, familyID).
		Block(f, ir.BlockFit, familyID).
		Block(p, ir.BlockPredict, familyID).
		Connect(c, f, registry.PortModel).
		Connect(c, p, registry.PortModel).
		Literal(f, registry.PortFeatures, ir.NumbersOf(1, 2, 3, 4)).
		Literal(f, registry.PortLabels, ir.NumbersOf(3, 5, 7, 9)).
		Literal(p, registry.PortInput, ir.NumbersOf(5))
	return b
}

// Graph returns a copy of the graph built so far.
func (b *GraphBuilder) Graph() ir.BlockGraph {
	return b.g.Clone()
}
