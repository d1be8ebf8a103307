package nodelink

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/matzehuels/makegraph/pkg/dag"
	mgerrors "github.com/matzehuels/makegraph/pkg/errors"
)

func sampleGraph() *dag.DAG {
	g := dag.New()
	g.Upsert("all", dag.KindPhony)
	g.Upsert("build", dag.KindFile)
	g.Upsert("test", dag.KindPhony)
	g.Upsert("main.c", dag.KindFile)
	_ = g.AddEdge(dag.Edge{From: "build", To: "all"})
	_ = g.AddEdge(dag.Edge{From: "test", To: "all"})
	_ = g.AddEdge(dag.Edge{From: "main.c", To: "build"})
	_ = g.AddEdge(dag.Edge{From: "build", To: "test"})
	return g
}

func TestToDOT_Basic(t *testing.T) {
	dot := ToDOT(sampleGraph(), Options{})

	if !strings.HasPrefix(dot, "digraph \"makefile\" {\n") {
		t.Errorf("ToDOT() header = %q", strings.SplitN(dot, "\n", 2)[0])
	}
	if !strings.HasSuffix(dot, "}\n") {
		t.Error("ToDOT() output missing closing brace")
	}
	if !strings.Contains(dot, "rankdir=LR;") {
		t.Error("ToDOT() output missing default rankdir")
	}
	for _, want := range []string{`"build" -> "all";`, `"test" -> "all";`, `"main.c" -> "build";`, `"build" -> "test";`} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() output missing edge %s", want)
		}
	}
}

func TestToDOT_FirstSeenOrder(t *testing.T) {
	dot := ToDOT(sampleGraph(), Options{})

	var nodes, edges []string
	for _, line := range strings.Split(dot, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.Contains(line, " -> "):
			edges = append(edges, line)
		case strings.HasPrefix(line, `"`):
			nodes = append(nodes, line[:strings.Index(line, " ")])
		}
	}

	wantNodes := []string{`"all"`, `"build"`, `"test"`, `"main.c"`}
	if strings.Join(nodes, ",") != strings.Join(wantNodes, ",") {
		t.Errorf("node order = %v, want %v", nodes, wantNodes)
	}
	wantEdges := []string{`"build" -> "all";`, `"test" -> "all";`, `"main.c" -> "build";`, `"build" -> "test";`}
	if strings.Join(edges, ",") != strings.Join(wantEdges, ",") {
		t.Errorf("edge order = %v, want %v", edges, wantEdges)
	}
}

func TestToDOT_Deterministic(t *testing.T) {
	g := sampleGraph()
	first := ToDOT(g, Options{Detailed: true})
	for i := 0; i < 10; i++ {
		if got := ToDOT(g, Options{Detailed: true}); got != first {
			t.Fatalf("render %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
	if got := ToDOT(sampleGraph(), Options{Detailed: true}); got != first {
		t.Error("equal graphs rendered differently")
	}
}

func TestToDOT_PhonyStyle(t *testing.T) {
	dot := ToDOT(sampleGraph(), Options{})

	phony := `"all" [label="all", shape=ellipse, style="filled,dashed", fillcolor=lightgrey];`
	if !strings.Contains(dot, phony) {
		t.Errorf("ToDOT() phony node missing, want line %s", phony)
	}
	if !strings.Contains(dot, `"build" [label="build"];`) {
		t.Error("ToDOT() file node should use default style")
	}
}

func TestToDOT_Options(t *testing.T) {
	dot := ToDOT(dag.New(), Options{RankDir: RankTopBottom, Name: "lib"})

	if !strings.Contains(dot, "rankdir=TB;") {
		t.Error("ToDOT() ignored RankDir")
	}
	if !strings.HasPrefix(dot, `digraph "lib" {`) {
		t.Error("ToDOT() ignored Name")
	}
}

func TestToDOT_Quoting(t *testing.T) {
	g := dag.New()
	g.Upsert(`out/"weird".o`, dag.KindFile)
	g.Upsert(`C:\tmp`, dag.KindFile)

	dot := ToDOT(g, Options{})
	if !strings.Contains(dot, `"out/\"weird\".o"`) {
		t.Errorf("quotes not escaped:\n%s", dot)
	}
	if !strings.Contains(dot, `"C:\\tmp"`) {
		t.Errorf("backslash not escaped:\n%s", dot)
	}
}

func TestToDOT_SelfLoop(t *testing.T) {
	g := dag.New()
	g.Upsert("a", dag.KindFile)
	_ = g.AddEdge(dag.Edge{From: "a", To: "a"})

	if dot := ToDOT(g, Options{}); !strings.Contains(dot, `"a" -> "a";`) {
		t.Error("ToDOT() dropped self loop")
	}
}

func TestFmtLabel_Simple(t *testing.T) {
	n := dag.Node{ID: "test-node", Meta: dag.Metadata{"origin": "Makefile:1"}}
	label := fmtLabel(n, false)

	if label != "test-node" {
		t.Errorf("fmtLabel() simple mode = %q, want %q", label, "test-node")
	}
}

func TestFmtLabel_Detailed(t *testing.T) {
	n := dag.Node{
		ID:   "app",
		Meta: dag.Metadata{dag.MetaRecipe: true, dag.MetaOrigin: "Makefile:3"},
	}
	label := fmtLabel(n, true)

	if want := "app\norigin: Makefile:3\nrecipe: true"; label != want {
		t.Errorf("fmtLabel() detailed = %q, want %q", label, want)
	}
}

func TestFmtAttrs(t *testing.T) {
	tests := []struct {
		kind dag.NodeKind
		want int
		has  string
	}{
		{dag.KindFile, 1, "label="},
		{dag.KindPhony, 4, "dashed"},
		{dag.KindPattern, 2, "dotted"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			attrs := fmtAttrs(dag.Node{ID: "x", Kind: tt.kind}, "x")
			if len(attrs) != tt.want {
				t.Errorf("fmtAttrs() = %v, want %d attrs", attrs, tt.want)
			}
			if !strings.Contains(strings.Join(attrs, " "), tt.has) {
				t.Errorf("fmtAttrs() = %v, missing %q", attrs, tt.has)
			}
		})
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteDOT(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDOT(&buf, sampleGraph(), Options{}); err != nil {
		t.Fatalf("WriteDOT() error: %v", err)
	}
	if buf.String() != ToDOT(sampleGraph(), Options{}) {
		t.Error("WriteDOT() output differs from ToDOT()")
	}
}

func TestWriteDOT_WriteFailure(t *testing.T) {
	err := WriteDOT(failWriter{}, sampleGraph(), Options{})
	if !mgerrors.Is(err, mgerrors.ErrCodeRender) {
		t.Errorf("WriteDOT() error = %v, want RENDER_ERROR", err)
	}
}

func TestValidRankDir(t *testing.T) {
	for _, dir := range []string{"TB", "LR", "BT", "RL"} {
		if !ValidRankDir(dir) {
			t.Errorf("ValidRankDir(%q) = false", dir)
		}
	}
	if ValidRankDir("lr") {
		t.Error("ValidRankDir(\"lr\") = true, want false")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	tests := []struct {
		name string
		svg  string
		want string
	}{
		{
			name: "with viewBox",
			svg:  `<svg viewBox="10 20 800 600" xmlns="http://www.w3.org/2000/svg">content</svg>`,
			want: `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 800.00 600.00" width="800" height="600">content</svg>`,
		},
		{
			name: "no viewBox",
			svg:  `<svg xmlns="http://www.w3.org/2000/svg">content</svg>`,
			want: `<svg xmlns="http://www.w3.org/2000/svg">content</svg>`,
		},
		{
			name: "zero dimensions",
			svg:  `<svg viewBox="0 0 0 0">content</svg>`,
			want: `<svg viewBox="0 0 0 0">content</svg>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeViewBox([]byte(tt.svg))
			if string(got) != tt.want {
				t.Errorf("normalizeViewBox() = %q, want %q", string(got), tt.want)
			}
		})
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(sampleGraph(), Options{}))
	if err != nil {
		t.Fatalf("RenderSVG() error: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Error("RenderSVG() output missing <svg> tag")
	}
}

func TestRenderSVG_InvalidDOT(t *testing.T) {
	_, err := RenderSVG(context.Background(), `not valid DOT {{{`)
	if !mgerrors.Is(err, mgerrors.ErrCodeRender) {
		t.Errorf("RenderSVG() error = %v, want RENDER_ERROR", err)
	}
}
