package transform

import "github.com/matzehuels/makegraph/pkg/dag"

// TransitiveReduction removes redundant edges from the graph and returns how
// many were removed.
//
// An edge (u, v) is redundant when u reaches v through at least one other
// node. For example, if main.c→main.o, main.o→app and main.c→app all exist,
// main.c→app is removed because main.c reaches app via main.o.
//
// Cycles are collapsed first: the reduction runs on the graph of strongly
// connected components, so edges inside a cycle and self loops are never
// removed and cycles stay visible in the output.
//
// # Performance
//
// Time complexity is O(C·E) where C is the number of components; space is
// O(C²) for the reachability matrix.
func TransitiveReduction(g *dag.DAG) int {
	ids := g.NodeIDs()
	if len(ids) == 0 {
		return 0
	}
	pos := dag.PosMap(ids)

	sccs := components(g)
	comp := make([]int, len(ids))
	for c, members := range sccs {
		for _, p := range members {
			comp[p] = c
		}
	}

	adjacency := make([][]int, len(sccs))
	seen := make(map[[2]int]bool)
	for _, e := range g.Edges() {
		cu, cv := comp[pos[e.From]], comp[pos[e.To]]
		if cu == cv || seen[[2]int{cu, cv}] {
			continue
		}
		seen[[2]int{cu, cv}] = true
		adjacency[cu] = append(adjacency[cu], cv)
	}

	reachability := computeReachability(adjacency)

	removed := 0
	for _, e := range g.Edges() {
		src, dst := comp[pos[e.From]], comp[pos[e.To]]
		if src == dst {
			continue
		}
		for _, intermediate := range adjacency[src] {
			if intermediate != dst && reachability[intermediate][dst] {
				g.RemoveEdge(e.From, e.To)
				removed++
				break
			}
		}
	}
	return removed
}

func computeReachability(adjacency [][]int) [][]bool {
	n := len(adjacency)
	reachable := make([][]bool, n)
	for i := range reachable {
		reachable[i] = make([]bool, n)
	}

	var dfs func(source, current int)
	dfs = func(source, current int) {
		if reachable[source][current] {
			return
		}
		reachable[source][current] = true
		for _, next := range adjacency[current] {
			dfs(source, next)
		}
	}

	for i := range reachable {
		dfs(i, i)
	}
	return reachable
}
