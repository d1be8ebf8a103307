// Package graph builds and serializes Makefile dependency graphs.
//
// # Building
//
// [Build] consumes parsed rule records and produces a [dag.DAG] whose edges
// point from prerequisites to the targets that need them:
//
//	p := makefile.NewParser()
//	g, warnings := graph.Build(p.Records(in.Blocks), graph.BuildOptions{})
//
// Targets and prerequisites are deduplicated by name. A name declared phony
// anywhere is phony everywhere. Pattern rule targets such as "%.o" are
// removed after building unless they were instantiated into concrete files.
// Cycles, including self loops, stay in the graph and are reported as
// CYCLE_WARNING diagnostics.
//
// # Serialization
//
// Graphs use a simple node-link JSON format that keeps first-seen order:
//
//	{
//	  "nodes": [{"id": "all", "kind": "phony"}, {"id": "app", "kind": "file"}],
//	  "edges": [{"from": "app", "to": "all"}]
//	}
//
// Common operations:
//
//	g, _ := graph.ReadGraphFile("deps.json")    // File → DAG
//	graph.WriteGraphFile(dag, "output.json")    // DAG → File
//	data, _ := graph.MarshalGraph(dag)          // DAG → []byte
//	g, _ = graph.ReadGraph(bytes.NewReader(data)) // []byte → DAG
//
// # Node Metadata
//
// The builder writes these meta keys:
//
//	origin    "Makefile:12" of the first rule defining the node
//	recipe    true when some rule for the node has a recipe
//	implicit  pattern rule the node's prerequisites came from
//	submake   sub-makefile prefix the node was loaded from
package graph
