// Package nodelink renders Makefile dependency graphs as node-link diagrams.
//
// # Usage
//
// Write the graph as Graphviz DOT, the textual format makegraph emits by
// default:
//
//	err := nodelink.WriteDOT(os.Stdout, g, nodelink.Options{RankDir: "TB"})
//
// or lay it out in-process:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot, 2.0)  // 2x scale
//
// # DOT Format
//
// The document has a header with graph-wide attributes, one statement per
// node in first-seen order, one "from -> to" statement per edge in
// first-seen order, and a closing brace. Edges point from a prerequisite
// to the target that needs it. Every ID is quoted.
//
// Node styles depend on the node kind:
//
//   - file: rounded white box
//   - phony: dashed grey ellipse
//   - pattern: dotted box (only reachable for graphs read from JSON)
//
// Output is deterministic: the same graph always renders to the same
// bytes, so DOT files can be committed and diffed.
//
// # Dependencies
//
// SVG layout uses [github.com/goccy/go-graphviz], which embeds Graphviz as
// WebAssembly. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
