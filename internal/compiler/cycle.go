package compiler

import (
	"slices"
)

// dependencyGraph maps instance id → ids that must run after it.
type dependencyGraph map[string][]string

// nodes returns the graph's nodes in ascending order.
func (g dependencyGraph) nodes() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (g dependencyGraph) addEdge(from, to string) {
	if !slices.Contains(g[from], to) {
		g[from] = append(g[from], to)
	}
	if _, ok := g[to]; !ok {
		g[to] = nil
	}
}

// findCycles reports every cycle of g, or nil for a DAG.
//
// The algorithm:
//  1. Use Tarjan's algorithm to find strongly connected components
//  2. Keep each SCC with size > 1, and single nodes with a self-loop
//  3. Sort members of each SCC and order SCCs by their first member
func findCycles(g dependencyGraph) *CyclicGraphError {
	var cycles [][]string
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			slices.Sort(scc)
			cycles = append(cycles, scc)
		}
	}
	if len(cycles) == 0 {
		return nil
	}
	slices.SortFunc(cycles, func(a, b []string) int { return slices.Compare(a, b) })
	return &CyclicGraphError{
		Cycles: cycles,
		Path:   reconstructCyclePath(cycles[0], g),
	}
}

func hasSelfLoop(node string, g dependencyGraph) bool {
	return slices.Contains(g[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes and successors are visited in ascending order so the result does
// not depend on map iteration.
func tarjanSCC(g dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		succ := slices.Clone(g[v])
		slices.Sort(succ)
		for _, w := range succ {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes() {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks one cycle through the members of an SCC,
// starting from its first member and ending back at it.
func reconstructCyclePath(scc []string, g dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		succ := slices.Clone(g[current])
		slices.Sort(succ)
		var next string
		for _, w := range succ {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}

func sortedUnique(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
