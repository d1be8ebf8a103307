// Package transform provides analyses and transformations over a dependency
// graph.
//
// # Cycle Detection
//
// [FindCycles] reports every strongly connected component with more than one
// node, plus every self loop. It uses gonum's Tarjan implementation and does
// not modify the graph: Makefile cycles are reported, never broken.
//
// # Pattern Pruning
//
// [PrunePatterns] drops uninstantiated pattern rule targets ("%.o") and the
// edges touching them.
//
// # Transitive Reduction
//
// [TransitiveReduction] removes redundant edges that can be inferred through
// other paths. If A→B and B→C exist, then A→C is redundant and removed. Edges
// inside a cycle are kept.
//
// # Filtering
//
// [Exclude] removes nodes whose names match glob patterns ("*.h",
// "**/vendor/**"), and [Focus] restricts the graph to one target and what it
// transitively depends on.
//
// # Usage
//
// The optional transformations are bundled by [Apply]:
//
//	res, err := transform.Apply(g, transform.Options{
//	    Exclude: []string{"*.h"},
//	    Focus:   "all",
//	    Reduce:  true,
//	})
package transform
