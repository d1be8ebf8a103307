// Package render turns dependency graphs into output documents.
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg):
//
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0)  // 2x scale
//
// # Node-Link Diagrams
//
// The [nodelink] subpackage writes graphs as Graphviz DOT, the default
// makegraph output, and lays them out in-process for SVG:
//
//	err := nodelink.WriteDOT(os.Stdout, g, nodelink.Options{})
//
// [nodelink]: github.com/matzehuels/makegraph/pkg/render/nodelink
package render
