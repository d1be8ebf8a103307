package transform

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/matzehuels/makegraph/pkg/dag"
)

// Cycle is a set of node IDs that can all reach each other. A single-node
// cycle is a self loop.
type Cycle []string

// FindCycles returns every cycle in g: each strongly connected component with
// more than one node, plus every node with a self loop. Node IDs inside a
// cycle, and the cycles themselves, are ordered by first insertion into g so
// the result is stable across runs.
//
// FindCycles does not modify g.
func FindCycles(g *dag.DAG) []Cycle {
	ids := g.NodeIDs()
	if len(ids) == 0 {
		return nil
	}

	var cycles []Cycle
	for _, e := range g.Edges() {
		if e.From == e.To {
			cycles = append(cycles, Cycle{e.From})
		}
	}
	for _, scc := range components(g) {
		if len(scc) < 2 {
			continue
		}
		c := make(Cycle, len(scc))
		for i, p := range scc {
			c[i] = ids[p]
		}
		cycles = append(cycles, c)
	}

	pos := dag.PosMap(ids)
	slices.SortStableFunc(cycles, func(a, b Cycle) int {
		return cmp.Compare(pos[a[0]], pos[b[0]])
	})
	return cycles
}

// components returns the strongly connected components of g as sorted lists
// of node positions (indices into g.NodeIDs()). Every node belongs to exactly
// one component; acyclic nodes form singleton components.
func components(g *dag.DAG) [][]int {
	ids := g.NodeIDs()
	pos := dag.PosMap(ids)

	// simple.DirectedGraph rejects self edges; they never change component
	// membership, so they are left out.
	sg := simple.NewDirectedGraph()
	for i := range ids {
		sg.AddNode(simple.Node(int64(i)))
	}
	for _, e := range g.Edges() {
		if e.From == e.To {
			continue
		}
		sg.SetEdge(sg.NewEdge(simple.Node(int64(pos[e.From])), simple.Node(int64(pos[e.To]))))
	}

	sccs := topo.TarjanSCC(sg)
	out := make([][]int, 0, len(sccs))
	for _, scc := range sccs {
		idx := make([]int, len(scc))
		for i, n := range scc {
			idx[i] = int(n.ID())
		}
		slices.Sort(idx)
		out = append(out, idx)
	}
	slices.SortFunc(out, func(a, b []int) int { return cmp.Compare(a[0], b[0]) })
	return out
}
