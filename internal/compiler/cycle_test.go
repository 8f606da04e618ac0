package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCycles_Empty(t *testing.T) {
	assert.Nil(t, findCycles(dependencyGraph{}))
}

func TestFindCycles_DAG(t *testing.T) {
	g := dependencyGraph{}
	g.addEdge("a", "b")
	g.addEdge("a", "c")
	g.addEdge("b", "d")
	g.addEdge("c", "d")

	assert.Nil(t, findCycles(g))
}

func TestFindCycles_SelfLoop(t *testing.T) {
	g := dependencyGraph{}
	g.addEdge("a", "a")
	g.addEdge("a", "b")

	cyc := findCycles(g)
	require.NotNil(t, cyc)
	assert.Equal(t, [][]string{{"a"}}, cyc.Cycles)
	assert.Equal(t, []string{"a", "a"}, cyc.Path)
}

func TestFindCycles_ThreeNodeCycle(t *testing.T) {
	g := dependencyGraph{}
	g.addEdge("c", "a")
	g.addEdge("a", "b")
	g.addEdge("b", "c")
	g.addEdge("c", "d")

	cyc := findCycles(g)
	require.NotNil(t, cyc)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, cyc.Cycles)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cyc.Path)
	assert.Contains(t, cyc.Error(), "a → b → c → a")
}

func TestFindCycles_MultipleCycles(t *testing.T) {
	g := dependencyGraph{}
	g.addEdge("x", "y")
	g.addEdge("y", "x")
	g.addEdge("a", "b")
	g.addEdge("b", "a")
	g.addEdge("b", "x")

	cyc := findCycles(g)
	require.NotNil(t, cyc)
	assert.Equal(t, [][]string{{"a", "b"}, {"x", "y"}}, cyc.Cycles)
	assert.Equal(t, []string{"a", "b", "x", "y"}, cyc.InstanceIDs())
}

func TestFindCycles_Deterministic(t *testing.T) {
	build := func() dependencyGraph {
		g := dependencyGraph{}
		g.addEdge("n3", "n1")
		g.addEdge("n1", "n2")
		g.addEdge("n2", "n3")
		g.addEdge("n2", "n4")
		g.addEdge("n4", "n2")
		return g
	}

	first := findCycles(build())
	require.NotNil(t, first)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, findCycles(build()))
	}
	assert.Equal(t, [][]string{{"n1", "n2", "n3", "n4"}}, first.Cycles)
}

func TestAddEdgeDeduplicates(t *testing.T) {
	g := dependencyGraph{}
	g.addEdge("a", "b")
	g.addEdge("a", "b")

	assert.Equal(t, []string{"b"}, g["a"])
	assert.Contains(t, g, "b")
	assert.Equal(t, []string{"a", "b"}, g.nodes())
}

func TestTopoOrder_TiesByAscendingID(t *testing.T) {
	g := dependencyGraph{"c": nil, "a": nil, "b": nil}
	g.addEdge("b", "a2")

	order, err := topoOrder(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a2", "c"}, order)
}

func TestTopoOrder_RejectsCycle(t *testing.T) {
	g := dependencyGraph{}
	g.addEdge("a", "b")
	g.addEdge("b", "a")

	_, err := topoOrder(g)
	require.Error(t, err)
}
