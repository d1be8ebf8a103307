package graph

import (
	"fmt"
	"maps"

	"github.com/matzehuels/makegraph/pkg/dag"
)

// =============================================================================
// Graph - Dependency Graph Serialization
// =============================================================================

// Graph is the JSON serialization of a Makefile dependency graph. It is the
// format behind --format json and the cached form of a built graph.
//
// Nodes and edges keep the graph's first-seen order, so encoding the same
// graph twice yields identical bytes.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one target or file.
type Node struct {
	ID   string         `json:"id"`
	Kind string         `json:"kind"` // "file", "phony" or "pattern"
	Meta map[string]any `json:"meta,omitempty"`
}

// IsPhony returns true if this node was declared phony.
func (n *Node) IsPhony() bool { return n.Kind == dag.KindPhony.String() }

// Edge points from a prerequisite to the target that depends on it.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// =============================================================================
// DAG ↔ Graph Conversion
// =============================================================================

// FromDAG converts a DAG to its serialization format.
func FromDAG(g *dag.DAG) Graph {
	nodes := g.Nodes()
	edges := g.Edges()
	out := Graph{
		Nodes: make([]Node, len(nodes)),
		Edges: make([]Edge, len(edges)),
	}
	for i, n := range nodes {
		out.Nodes[i] = Node{ID: n.ID, Kind: n.Kind.String(), Meta: copyMeta(n.Meta)}
	}
	for i, e := range edges {
		out.Edges[i] = Edge{From: e.From, To: e.To}
	}
	return out
}

// ToDAG converts a Graph to a DAG. Duplicate node IDs and edges with
// unknown endpoints are errors; duplicate edges collapse.
func ToDAG(gj Graph) (*dag.DAG, error) {
	d := dag.New()

	for _, nj := range gj.Nodes {
		n := dag.Node{
			ID:   nj.ID,
			Kind: dag.ParseNodeKind(nj.Kind),
			Meta: copyMeta(nj.Meta),
		}
		if err := d.AddNode(n); err != nil {
			return nil, fmt.Errorf("add node %s: %w", nj.ID, err)
		}
	}

	for _, ej := range gj.Edges {
		if err := d.AddEdge(dag.Edge{From: ej.From, To: ej.To}); err != nil {
			return nil, fmt.Errorf("add edge %s→%s: %w", ej.From, ej.To, err)
		}
	}

	return d, nil
}

// copyMeta creates a shallow copy of metadata to avoid mutation. Empty maps
// become nil so they are omitted from JSON.
func copyMeta(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}
