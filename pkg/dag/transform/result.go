package transform

import "github.com/matzehuels/makegraph/pkg/dag"

// Result contains metrics about transformations applied to a graph.
//
// Result is returned by [Apply] to provide visibility into what changed. The
// pipeline logs it at debug level.
type Result struct {
	// ExcludedNodes is the number of nodes removed by the exclude globs.
	ExcludedNodes int

	// UnfocusedNodes is the number of nodes dropped because the focus target
	// does not depend on them.
	UnfocusedNodes int

	// TransitiveEdgesRemoved is the number of redundant edges removed by
	// transitive reduction.
	TransitiveEdgesRemoved int
}

// Options configures which transformations [Apply] runs.
//
// The zero value applies nothing.
type Options struct {
	// Exclude lists glob patterns of node IDs to drop.
	Exclude []string

	// Focus keeps only this target and its transitive prerequisites.
	Focus string

	// Reduce enables transitive reduction.
	Reduce bool
}

// Apply runs the configured transformations on g in a fixed order: exclude,
// focus, then reduction. Excluding first lets a focus target survive only if
// it was not itself excluded.
func Apply(g *dag.DAG, opts Options) (Result, error) {
	var res Result
	var err error

	if len(opts.Exclude) > 0 {
		if res.ExcludedNodes, err = Exclude(g, opts.Exclude); err != nil {
			return res, err
		}
	}
	if opts.Focus != "" {
		if res.UnfocusedNodes, err = Focus(g, opts.Focus); err != nil {
			return res, err
		}
	}
	if opts.Reduce {
		res.TransitiveEdgesRemoved = TransitiveReduction(g)
	}
	return res, nil
}
