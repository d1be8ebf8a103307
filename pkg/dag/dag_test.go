package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestAddNode(t *testing.T) {
	g := New()

	if err := g.AddNode(Node{ID: ""}); !errors.Is(err, ErrInvalidNodeID) {
		t.Errorf("AddNode(empty) = %v, want %v", err, ErrInvalidNodeID)
	}
	if err := g.AddNode(Node{ID: "a"}); err != nil {
		t.Fatalf("AddNode(a) = %v", err)
	}
	if err := g.AddNode(Node{ID: "a"}); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("AddNode(a) twice = %v, want %v", err, ErrDuplicateNodeID)
	}
	n, _ := g.Node("a")
	if n.Meta == nil {
		t.Error("Meta should be initialized")
	}
}

func TestUpsertKindPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		kinds []NodeKind
		want  NodeKind
	}{
		{"file default", []NodeKind{KindFile}, KindFile},
		{"phony after file", []NodeKind{KindFile, KindPhony}, KindPhony},
		{"file after phony", []NodeKind{KindPhony, KindFile}, KindPhony},
		{"pattern after file", []NodeKind{KindFile, KindPattern}, KindPattern},
		{"file after pattern", []NodeKind{KindPattern, KindFile}, KindPattern},
		{"phony beats pattern", []NodeKind{KindPattern, KindPhony}, KindPhony},
		{"pattern does not demote phony", []NodeKind{KindPhony, KindPattern}, KindPhony},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			var n *Node
			for _, k := range tt.kinds {
				n = g.Upsert("x", k)
			}
			if n.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", n.Kind, tt.want)
			}
			if g.NodeCount() != 1 {
				t.Errorf("NodeCount() = %d, want 1", g.NodeCount())
			}
		})
	}
}

func TestAddEdgeDeduplicates(t *testing.T) {
	g := New()
	g.Upsert("a", KindFile)
	g.Upsert("b", KindFile)

	for range 3 {
		if err := g.AddEdge(Edge{From: "a", To: "b"}); err != nil {
			t.Fatalf("AddEdge() = %v", err)
		}
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
	if got := g.Children("a"); !slices.Equal(got, []string{"b"}) {
		t.Errorf("Children(a) = %v, want [b]", got)
	}
	if !g.HasEdge("a", "b") || g.HasEdge("b", "a") {
		t.Error("HasEdge() mismatch")
	}
}

func TestAddEdgeUnknownEndpoints(t *testing.T) {
	g := New()
	g.Upsert("a", KindFile)

	if err := g.AddEdge(Edge{From: "x", To: "a"}); !errors.Is(err, ErrUnknownSourceNode) {
		t.Errorf("AddEdge(unknown from) = %v, want %v", err, ErrUnknownSourceNode)
	}
	if err := g.AddEdge(Edge{From: "a", To: "x"}); !errors.Is(err, ErrUnknownTargetNode) {
		t.Errorf("AddEdge(unknown to) = %v, want %v", err, ErrUnknownTargetNode)
	}
}

func TestSelfLoop(t *testing.T) {
	g := New()
	g.Upsert("a", KindFile)
	if err := g.AddEdge(Edge{From: "a", To: "a"}); err != nil {
		t.Fatalf("AddEdge(a->a) = %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestInsertionOrder(t *testing.T) {
	g := New()
	ids := []string{"zeta", "alpha", "mid", "beta"}
	for _, id := range ids {
		g.Upsert(id, KindFile)
	}
	g.Upsert("alpha", KindPhony) // promotion must not move the node

	if got := NodeIDs(g.Nodes()); !slices.Equal(got, ids) {
		t.Errorf("Nodes() order = %v, want %v", got, ids)
	}

	_ = g.AddEdge(Edge{From: "mid", To: "zeta"})
	_ = g.AddEdge(Edge{From: "alpha", To: "zeta"})
	_ = g.AddEdge(Edge{From: "mid", To: "zeta"})
	edges := g.Edges()
	if len(edges) != 2 || edges[0].From != "mid" || edges[1].From != "alpha" {
		t.Errorf("Edges() = %v, want [mid->zeta alpha->zeta]", edges)
	}
}

func TestRemoveNode(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		g.Upsert(id, KindFile)
	}
	_ = g.AddEdge(Edge{From: "a", To: "b"})
	_ = g.AddEdge(Edge{From: "b", To: "c"})
	_ = g.AddEdge(Edge{From: "a", To: "c"})

	g.RemoveNode("b")

	if g.NodeCount() != 2 {
		t.Errorf("NodeCount() = %d, want 2", g.NodeCount())
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
	if g.HasEdge("a", "b") || g.HasEdge("b", "c") {
		t.Error("edges touching b should be gone")
	}
	if got := g.NodeIDs(); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("NodeIDs() = %v", got)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	g.RemoveNode("missing") // no-op
}

func TestRemoveEdgeAllowsReAdd(t *testing.T) {
	g := New()
	g.Upsert("a", KindFile)
	g.Upsert("b", KindFile)
	_ = g.AddEdge(Edge{From: "a", To: "b"})
	g.RemoveEdge("a", "b")
	if g.EdgeCount() != 0 || len(g.Children("a")) != 0 || len(g.Parents("b")) != 0 {
		t.Fatal("RemoveEdge() left residue")
	}
	_ = g.AddEdge(Edge{From: "a", To: "b"})
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() after re-add = %d, want 1", g.EdgeCount())
	}
}

func TestSourcesAndSinks(t *testing.T) {
	g := New()
	for _, id := range []string{"all", "build", "main.c"} {
		g.Upsert(id, KindFile)
	}
	_ = g.AddEdge(Edge{From: "build", To: "all"})
	_ = g.AddEdge(Edge{From: "main.c", To: "build"})

	if got := NodeIDs(g.Sources()); !slices.Equal(got, []string{"main.c"}) {
		t.Errorf("Sources() = %v", got)
	}
	if got := NodeIDs(g.Sinks()); !slices.Equal(got, []string{"all"}) {
		t.Errorf("Sinks() = %v", got)
	}
}

func TestNodeKindString(t *testing.T) {
	for _, k := range []NodeKind{KindFile, KindPhony, KindPattern} {
		if got := ParseNodeKind(k.String()); got != k {
			t.Errorf("ParseNodeKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if ParseNodeKind("bogus") != KindFile {
		t.Error("unknown kind should default to file")
	}
}

func TestPosMap(t *testing.T) {
	m := PosMap([]string{"x", "y"})
	if m["x"] != 0 || m["y"] != 1 {
		t.Errorf("PosMap() = %v", m)
	}
}
