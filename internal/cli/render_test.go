package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/makegraph/pkg/errors"
)

func saveGraphJSON(t *testing.T) string {
	t.Helper()
	path := writeTestMakefile(t, testMakefile)
	out := filepath.Join(t.TempDir(), "graph.json")
	if _, _, err := runCLI(t, "graph", "--source", "scan", "--format", "json", "-o", out, path); err != nil {
		t.Fatalf("graph error: %v", err)
	}
	return out
}

func TestRenderCommand(t *testing.T) {
	saved := saveGraphJSON(t)

	stdout, stderr, err := runCLI(t, "render", saved)
	if err != nil {
		t.Fatalf("render error: %v\n%s", err, stderr)
	}
	for _, want := range []string{
		`digraph "makefile" {`,
		`"build" -> "all";`,
		`"main.c" -> "build";`,
		`"build" -> "test";`,
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestRenderCommandTransforms(t *testing.T) {
	saved := saveGraphJSON(t)

	stdout, _, err := runCLI(t, "render", "--focus", "test", saved)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if strings.Contains(stdout, `"all"`) {
		t.Errorf("focus should drop targets test does not need:\n%s", stdout)
	}
	if !strings.Contains(stdout, `"build" -> "test";`) {
		t.Errorf("focused graph missing edge:\n%s", stdout)
	}
}

func TestRenderCommandOutputFile(t *testing.T) {
	saved := saveGraphJSON(t)
	out := filepath.Join(t.TempDir(), "again.json")

	if _, _, err := runCLI(t, "render", "--format", "json", "-o", out, saved); err != nil {
		t.Fatalf("render error: %v", err)
	}
	want, err := os.ReadFile(saved)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("re-rendered JSON differs:\ngot  %s\nwant %s", got, want)
	}
}

func TestRenderCommandBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCLI(t, "render", path)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("render error = %v, want INVALID_INPUT", err)
	}
}
