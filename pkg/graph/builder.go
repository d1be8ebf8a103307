package graph

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/makegraph/pkg/dag"
	"github.com/matzehuels/makegraph/pkg/dag/transform"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/makefile"
)

// BuildOptions tunes [Build].
type BuildOptions struct {
	// InstantiatePatterns applies pattern rules to targets without a recipe
	// the way make's implicit rule search does. In database mode make only
	// searches the targets its default goal reaches; records marked
	// ImplicitSearched are left alone and the rest are instantiated here.
	InstantiatePatterns bool

	// Dir resolves relative names when checking whether an instantiated
	// prerequisite exists on disk. Defaults to the working directory.
	Dir string

	// FileExists overrides the on-disk check. Used by tests.
	FileExists func(name string) bool
}

// Build turns records into a dependency graph:
//
//  1. every target and prerequisite becomes a node, phony and pattern
//     declarations overriding the file default wherever they appear;
//  2. every (record, prerequisite) pair becomes a prerequisite → target
//     edge, duplicates collapsing;
//  3. pattern nodes are pruned with their edges;
//  4. cycles are reported as warnings and left in the graph.
//
// Nodes and edges keep first-seen order. Build never fails; everything it
// finds wrong is returned as a warning.
func Build(records iter.Seq[makefile.Record], opts BuildOptions) (*dag.DAG, []errors.Warning) {
	g := dag.New()
	var patterns []makefile.Record
	searched := make(map[string]bool)

	for rec := range records {
		target := g.Upsert(rec.Target, kindOf(rec))
		annotate(target, rec)
		if rec.Pattern && rec.HasRecipe {
			patterns = append(patterns, rec)
		}
		if rec.ImplicitSearched {
			searched[rec.Target] = true
		}
		for _, p := range rec.Prerequisites {
			kind := dag.KindFile
			if makefile.IsPattern(p) {
				kind = dag.KindPattern
			}
			g.Upsert(p, kind)
			_ = g.AddEdge(dag.Edge{From: p, To: rec.Target})
		}
	}

	if opts.InstantiatePatterns && len(patterns) > 0 {
		instantiate(g, patterns, searched, opts.fileExists())
	}
	transform.PrunePatterns(g)

	return g, cycleWarnings(g)
}

// BuildSlice is Build over an already collected slice.
func BuildSlice(records []makefile.Record, opts BuildOptions) (*dag.DAG, []errors.Warning) {
	return Build(func(yield func(makefile.Record) bool) {
		for _, r := range records {
			if !yield(r) {
				return
			}
		}
	}, opts)
}

func kindOf(rec makefile.Record) dag.NodeKind {
	switch {
	case rec.Phony:
		return dag.KindPhony
	case rec.Pattern:
		return dag.KindPattern
	default:
		return dag.KindFile
	}
}

// annotate records where a node was first defined and whether any of its
// rules has a recipe.
func annotate(n *dag.Node, rec makefile.Record) {
	if _, ok := n.Meta[dag.MetaOrigin]; !ok && rec.Origin != "" && !rec.Submake {
		n.Meta[dag.MetaOrigin] = rec.Origin
	}
	if rec.HasRecipe {
		n.Meta[dag.MetaRecipe] = true
	}
	if rec.Makefile != "" {
		if _, ok := n.Meta[dag.MetaSubmake]; !ok {
			n.Meta[dag.MetaSubmake] = rec.Makefile
		}
	}
}

// instantiate gives every recipe-less file node the prerequisites of the
// first pattern rule whose target matches it and whose prerequisites all
// exist, either as nodes or on disk. Instantiated prerequisites are not
// searched again, so chains of implicit rules are not followed. Nodes in
// searched were already resolved by make.
func instantiate(g *dag.DAG, patterns []makefile.Record, searched map[string]bool, exists func(string) bool) {
	for _, n := range g.Nodes() {
		if n.Kind != dag.KindFile || n.Meta[dag.MetaRecipe] == true || searched[n.ID] {
			continue
		}
		for _, pat := range patterns {
			if pat.Target == makefile.PatternChar {
				continue
			}
			stem, ok := makefile.MatchPattern(pat.Target, n.ID)
			if !ok {
				continue
			}
			prereqs := make([]string, len(pat.Prerequisites))
			usable := true
			for i, p := range pat.Prerequisites {
				prereqs[i] = makefile.Instantiate(p, stem)
				if _, known := g.Node(prereqs[i]); !known && !exists(prereqs[i]) {
					usable = false
					break
				}
			}
			if !usable {
				continue
			}
			for _, p := range prereqs {
				g.Upsert(p, dag.KindFile)
				_ = g.AddEdge(dag.Edge{From: p, To: n.ID})
			}
			n.Meta[dag.MetaImplicit] = pat.Target
			break
		}
	}
}

func (o BuildOptions) fileExists() func(string) bool {
	if o.FileExists != nil {
		return o.FileExists
	}
	return func(name string) bool {
		if !filepath.IsAbs(name) && o.Dir != "" {
			name = filepath.Join(o.Dir, name)
		}
		_, err := os.Stat(name)
		return err == nil
	}
}

func cycleWarnings(g *dag.DAG) []errors.Warning {
	var out []errors.Warning
	for _, c := range transform.FindCycles(g) {
		origin := ""
		if n, ok := g.Node(c[0]); ok {
			origin, _ = n.Meta[dag.MetaOrigin].(string)
		}
		msg := fmt.Sprintf("target %s depends on itself", c[0])
		if len(c) > 1 {
			msg = fmt.Sprintf("dependency cycle among %s", strings.Join(c, ", "))
		}
		out = append(out, errors.Warning{Code: errors.WarnCodeCycle, Origin: origin, Message: msg})
	}
	return out
}
