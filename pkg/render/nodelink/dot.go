package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/makegraph/pkg/dag"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/render"
)

// Rank directions accepted by [Options.RankDir].
const (
	RankTopBottom = "TB"
	RankLeftRight = "LR"
	RankBottomTop = "BT"
	RankRightLeft = "RL"
)

// DefaultRankDir is used when [Options.RankDir] is empty.
const DefaultRankDir = RankLeftRight

// Options configures node-link diagram rendering.
type Options struct {
	// RankDir is the Graphviz rank direction. Prerequisites are drawn
	// before the targets that need them along this axis.
	RankDir string

	// Detailed adds node metadata (origin, recipe, ...) to labels.
	// When false, only the node ID is shown.
	Detailed bool

	// Name is the graph identifier in the DOT header. Defaults to "makefile".
	Name string
}

// ValidRankDir reports whether dir is a Graphviz rank direction.
func ValidRankDir(dir string) bool {
	switch dir {
	case RankTopBottom, RankLeftRight, RankBottomTop, RankRightLeft:
		return true
	}
	return false
}

// ToDOT converts a DAG to Graphviz DOT source.
//
// Nodes are written in the graph's first-seen order followed by edges in
// first-seen order; nothing is sorted or randomized, so the same graph
// always yields the same text. Phony targets are drawn as dashed grey
// ellipses, files as rounded boxes.
func ToDOT(g *dag.DAG, opts Options) string {
	name := opts.Name
	if name == "" {
		name = "makefile"
	}
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = DefaultRankDir
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %s {\n", quote(name))
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=14];\n")
	buf.WriteString("  edge [color=\"#555555\", arrowsize=0.7];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		label := fmtLabel(*n, opts.Detailed)
		attrs := fmtAttrs(*n, label)
		fmt.Fprintf(&buf, "  %s [%s];\n", quote(n.ID), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %s -> %s;\n", quote(e.From), quote(e.To))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// WriteDOT renders g as DOT and writes it to w in a single call. The only
// failure is a rejected write, reported as RENDER_ERROR.
func WriteDOT(w io.Writer, g *dag.DAG, opts Options) error {
	if _, err := io.WriteString(w, ToDOT(g, opts)); err != nil {
		return errors.Wrap(errors.ErrCodeRender, err, "write DOT output")
	}
	return nil
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// quote makes s a DOT double-quoted ID. Make target names may contain
// any character except whitespace, so every ID is quoted.
func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

func fmtLabel(n dag.Node, detailed bool) string {
	if !detailed || len(n.Meta) == 0 {
		return n.ID
	}

	parts := []string{n.ID}
	for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n dag.Node, label string) []string {
	attrs := []string{"label=" + quote(label)}
	switch n.Kind {
	case dag.KindPhony:
		attrs = append(attrs, "shape=ellipse", "style=\"filled,dashed\"", "fillcolor=lightgrey")
	case dag.KindPattern:
		attrs = append(attrs, "style=\"rounded,dotted\"")
	}
	return attrs
}

// RenderSVG lays out DOT source with the embedded Graphviz engine and
// returns SVG bytes ready for display or conversion with [render.ToPDF]
// or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "render SVG")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders DOT source as PDF via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders DOT source as PNG via SVG conversion. A scale of 2.0
// produces an image suitable for high-DPI displays.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
