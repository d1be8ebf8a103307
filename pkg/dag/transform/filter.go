package transform

import (
	"errors"
	"fmt"

	"github.com/gobwas/glob"

	"github.com/matzehuels/makegraph/pkg/dag"
)

// ErrUnknownFocus is returned by [Focus] when the requested target is not in
// the graph.
var ErrUnknownFocus = errors.New("focus target not in graph")

// PrunePatterns removes every node of kind [dag.KindPattern] together with
// the edges touching it, and returns how many nodes were removed.
//
// Pattern rule targets such as "%.o" are templates rather than build nodes;
// their concrete instantiations are separate file nodes and are kept.
func PrunePatterns(g *dag.DAG) int {
	removed := 0
	for _, n := range g.Nodes() {
		if n.Kind == dag.KindPattern {
			g.RemoveNode(n.ID)
			removed++
		}
	}
	return removed
}

// CompileGlobs compiles shell-style patterns with '/' as the separator, so
// "*.o" matches "main.o" but not "lib/main.o" while "**.o" matches both.
func CompileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		gl, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		globs = append(globs, gl)
	}
	return globs, nil
}

// Exclude removes every node whose ID matches one of the glob patterns, and
// returns how many nodes were removed.
func Exclude(g *dag.DAG, patterns []string) (int, error) {
	globs, err := CompileGlobs(patterns)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, n := range g.Nodes() {
		for _, gl := range globs {
			if gl.Match(n.ID) {
				g.RemoveNode(n.ID)
				removed++
				break
			}
		}
	}
	return removed, nil
}

// Focus restricts g to target and everything it transitively depends on.
// It returns the number of nodes removed, or ErrUnknownFocus.
func Focus(g *dag.DAG, target string) (int, error) {
	if _, ok := g.Node(target); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFocus, target)
	}

	keep := map[string]bool{target: true}
	stack := []string{target}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range g.Parents(id) {
			if !keep[p] {
				keep[p] = true
				stack = append(stack, p)
			}
		}
	}

	removed := 0
	for _, id := range g.NodeIDs() {
		if !keep[id] {
			g.RemoveNode(id)
			removed++
		}
	}
	return removed, nil
}
