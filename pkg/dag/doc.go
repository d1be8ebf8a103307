// Package dag provides the dependency graph that makegraph builds from a
// Makefile.
//
// # Overview
//
// A [DAG] holds one [Node] per target or file name and one [Edge] per
// prerequisite relation, pointing from the prerequisite to the target that
// depends on it. Node identity is the name: the graph keeps an ordered map
// from ID to node and an ordered set of edges, so adding the same node or
// edge twice collapses to one entry.
//
// Despite the name the graph may contain cycles. Makefiles occasionally
// declare circular or self-referential rules and those must stay visible in
// the rendered output; cycle reporting lives in the [transform] subpackage.
//
// # Basic Usage
//
//	g := dag.New()
//	g.Upsert("all", dag.KindPhony)
//	g.Upsert("build", dag.KindFile)
//	g.AddEdge(dag.Edge{From: "build", To: "all"})
//
// [DAG.Upsert] is the builder's entry point: it creates missing nodes and
// promotes existing ones when a later rule declares them phony or pattern.
// [DAG.AddNode] is the strict variant that rejects duplicates.
//
// # Ordering
//
// [DAG.Nodes], [DAG.Edges], [DAG.Sources] and [DAG.Sinks] all return their
// results in first-insertion order. Renderers rely on this to produce
// byte-identical output for identical input.
//
// # Node Kinds
//
//   - [KindFile]: an ordinary target or file (the default)
//   - [KindPhony]: a target declared as a prerequisite of .PHONY
//   - [KindPattern]: a pattern rule target containing '%'
//
// # Concurrency
//
// DAG instances are not safe for concurrent use.
//
// [transform]: github.com/matzehuels/makegraph/pkg/dag/transform
package dag
