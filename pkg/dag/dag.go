package dag

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrInvalidEdgeEndpoint is returned by [DAG.Validate] when an edge
	// references a node that doesn't exist. This indicates graph corruption.
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")

	// ErrDuplicateEdge is returned by [DAG.Validate] when the same from→to
	// pair is stored twice. This indicates graph corruption.
	ErrDuplicateEdge = errors.New("duplicate edge")
)

// Metadata stores arbitrary key-value pairs attached to nodes and edges. Metadata maps are never nil - they are automatically initialized to
// empty maps when needed.
type Metadata map[string]any

// Common metadata keys written by the graph builder.
const (
	MetaOrigin   = "origin"   // "Makefile:12" of the first rule defining the node
	MetaRecipe   = "recipe"   // bool, true when some rule for the node has a recipe
	MetaImplicit = "implicit" // pattern the node was instantiated from
	MetaSubmake  = "submake"  // relative makefile path the node was loaded from
)

// NodeKind classifies a node by what the Makefile declares about it.
type NodeKind int

const (
	// KindFile is a real file or an ordinary target. It is the default for
	// any name that is never declared phony or pattern.
	KindFile NodeKind = iota
	// KindPhony is a target listed as a prerequisite of .PHONY.
	KindPhony
	// KindPattern is a rule target containing the '%' wildcard.
	KindPattern
)

// String returns the lower-case kind name used in JSON and DOT output.
func (k NodeKind) String() string {
	switch k {
	case KindPhony:
		return "phony"
	case KindPattern:
		return "pattern"
	default:
		return "file"
	}
}

// ParseNodeKind is the inverse of [NodeKind.String]. Unknown names map to
// KindFile.
func ParseNodeKind(s string) NodeKind {
	switch s {
	case "phony":
		return KindPhony
	case "pattern":
		return KindPattern
	default:
		return KindFile
	}
}

// Node is a vertex in the dependency graph. Its identity is the canonical
// target or file name.
type Node struct {
	ID   string   // Canonical target/file name (also used as display label)
	Kind NodeKind // File, Phony or Pattern
	Meta Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// IsPhony reports whether the node was declared phony.
func (n Node) IsPhony() bool { return n.Kind == KindPhony }

// Edge is a directed connection from a prerequisite to the target that
// depends on it.
type Edge struct {
	From string   // Prerequisite node ID
	To   string   // Dependent target node ID
	Meta Metadata // Arbitrary key-value metadata (never nil after AddEdge)
}

type edgeKey struct{ from, to string }

// DAG is the dependency graph produced from a Makefile. Despite the name it
// may hold cycles, including self loops, because Makefiles can declare them
// and they must stay visible in the output.
//
// Nodes and edges remember their first-insertion order; every accessor that
// returns a slice returns it in that order so rendering is deterministic.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	nodes    map[string]*Node
	order    []string
	edges    []Edge
	edgeSet  map[edgeKey]struct{}
	outgoing map[string][]string // nodeID -> dependent IDs
	incoming map[string][]string // nodeID -> prerequisite IDs
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:    make(map[string]*Node),
		edgeSet:  make(map[edgeKey]struct{}),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Returns ErrInvalidNodeID if the node ID
// is empty, or ErrDuplicateNodeID if a node with the same ID already exists.
// The node's Meta field is automatically initialized to an empty map if nil.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	node := &n
	d.nodes[node.ID] = node
	d.order = append(d.order, node.ID)
	return nil
}

// Upsert returns the node with the given ID, creating it with kind if it does
// not exist yet. For an existing node a non-file kind overrides KindFile, and
// KindPhony overrides KindPattern: declarations are authoritative wherever
// they appear, while KindFile is only a default.
//
// Upsert panics on an empty ID; callers are expected to have validated names.
func (d *DAG) Upsert(id string, kind NodeKind) *Node {
	if id == "" {
		panic(ErrInvalidNodeID)
	}
	if n, ok := d.nodes[id]; ok {
		if kind == KindPhony || (kind == KindPattern && n.Kind == KindFile) {
			n.Kind = kind
		}
		return n
	}
	n := &Node{ID: id, Kind: kind, Meta: Metadata{}}
	d.nodes[id] = n
	d.order = append(d.order, id)
	return n
}

// AddEdge adds a directed edge between two existing nodes.
// Returns ErrUnknownSourceNode if the From node doesn't exist, or
// ErrUnknownTargetNode if the To node doesn't exist. Edges form a set:
// adding an edge that already exists is a no-op and keeps the original
// position and metadata. Self loops are allowed.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	k := edgeKey{e.From, e.To}
	if _, dup := d.edgeSet[k]; dup {
		return nil
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	d.edgeSet[k] = struct{}{}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// HasEdge reports whether the edge from→to exists.
func (d *DAG) HasEdge(from, to string) bool {
	_, ok := d.edgeSet[edgeKey{from, to}]
	return ok
}

// RemoveEdge removes the edge from→to if it exists.
// No error is returned if the edge does not exist.
func (d *DAG) RemoveEdge(from, to string) {
	k := edgeKey{from, to}
	if _, ok := d.edgeSet[k]; !ok {
		return
	}
	delete(d.edgeSet, k)
	d.edges = slices.DeleteFunc(d.edges, func(e Edge) bool { return e.From == from && e.To == to })
	d.outgoing[from] = slices.DeleteFunc(d.outgoing[from], func(s string) bool { return s == to })
	d.incoming[to] = slices.DeleteFunc(d.incoming[to], func(s string) bool { return s == from })
}

// RemoveNode deletes a node and every edge touching it. It is a no-op for
// unknown IDs.
func (d *DAG) RemoveNode(id string) {
	if _, ok := d.nodes[id]; !ok {
		return
	}
	for _, to := range slices.Clone(d.outgoing[id]) {
		d.RemoveEdge(id, to)
	}
	for _, from := range slices.Clone(d.incoming[id]) {
		d.RemoveEdge(from, id)
	}
	delete(d.nodes, id)
	delete(d.outgoing, id)
	delete(d.incoming, id)
	d.order = slices.DeleteFunc(d.order, func(s string) bool { return s == id })
}

// Nodes returns all nodes in first-insertion order. The returned slice
// contains pointers to the actual node structs, so modifications affect the
// graph.
func (d *DAG) Nodes() []*Node {
	nodes := make([]*Node, 0, len(d.order))
	for _, id := range d.order {
		nodes = append(nodes, d.nodes[id])
	}
	return nodes
}

// NodeIDs returns all node IDs in first-insertion order.
func (d *DAG) NodeIDs() []string { return slices.Clone(d.order) }

// Edges returns a copy of all edges in first-insertion order. Modifications
// to the returned slice or its edge structs do not affect the graph.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the IDs of nodes this node has edges to, that is the
// targets depending on it. Returns nil if there are none. The returned slice
// should not be modified - use it as a read-only view.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs of nodes with edges to this node, that is its
// prerequisites. Returns nil if there are none. The returned slice should
// not be modified - use it as a read-only view.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// Node returns the node with the given ID and true, or nil and false if not found.
// The returned node pointer refers to the actual node in the graph, so modifications
// affect the graph. Do not change the ID.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Sources returns nodes with no incoming edges (leaf prerequisites such as
// source files), in insertion order.
func (d *DAG) Sources() []*Node {
	var sources []*Node
	for _, id := range d.order {
		if len(d.incoming[id]) == 0 {
			sources = append(sources, d.nodes[id])
		}
	}
	return sources
}

// Sinks returns nodes with no outgoing edges (final goals such as "all"),
// in insertion order.
func (d *DAG) Sinks() []*Node {
	var sinks []*Node
	for _, id := range d.order {
		if len(d.outgoing[id]) == 0 {
			sinks = append(sinks, d.nodes[id])
		}
	}
	return sinks
}

// Validate checks graph integrity and returns nil if valid: every edge must
// connect existing nodes and no from→to pair may be stored twice. Cycles are
// not an integrity error; see transform.FindCycles.
func (d *DAG) Validate() error {
	seen := make(map[edgeKey]struct{}, len(d.edges))
	for _, e := range d.edges {
		if _, ok := d.nodes[e.From]; !ok {
			return ErrInvalidEdgeEndpoint
		}
		if _, ok := d.nodes[e.To]; !ok {
			return ErrInvalidEdgeEndpoint
		}
		k := edgeKey{e.From, e.To}
		if _, dup := seen[k]; dup {
			return ErrDuplicateEdge
		}
		seen[k] = struct{}{}
	}
	return nil
}

// PosMap creates a position lookup map from a slice of node IDs.
// The returned map maps each ID to its index in the slice.
func PosMap(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

// NodeIDs extracts the ID from each node in a slice.
// Returns a new slice containing the IDs in the same order as the input.
func NodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
