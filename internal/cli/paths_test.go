package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/matzehuels/makegraph/pkg/config"
	"github.com/matzehuels/makegraph/pkg/makefile"
)

func TestCacheDirXDG(t *testing.T) {
	customCache := "/tmp/custom-cache"
	t.Setenv("XDG_CACHE_HOME", customCache)

	dir, err := cacheDir(nil)
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	expected := filepath.Join(customCache, appName)
	if dir != expected {
		t.Errorf("cacheDir() with XDG_CACHE_HOME = %q, want %q", dir, expected)
	}
}

func TestCacheDirConfigured(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/ignored")
	cfg := config.Defaults()
	cfg.CacheDir = "/srv/makegraph-cache"

	dir, err := cacheDir(&cfg)
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if dir != cfg.CacheDir {
		t.Errorf("cacheDir() = %q, want %q", dir, cfg.CacheDir)
	}
}

func TestResolveMakefile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "build.mk")
	if err := os.WriteFile(file, []byte("all:\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "default", want: "Makefile"},
		{name: "file", args: []string{file}, want: file},
		{name: "directory", args: []string{dir}, want: filepath.Join(dir, "Makefile")},
		{name: "missing file passes through", args: []string{"nope/Makefile"}, want: "nope/Makefile"},
		{name: "control characters", args: []string{"Make\x01file"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveMakefile(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveMakefile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveMakefile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWatchedFiles(t *testing.T) {
	inputs := []*makefile.Input{
		{
			Path:  "/src/Makefile",
			Mode:  makefile.ModeScan,
			Files: []string{"/src/Makefile", "/src/rules.mk"},
		},
		{
			Path: "/src/lib/Makefile",
			Mode: makefile.ModeDatabase,
			Vars: map[string]string{"MAKEFILE_LIST": " Makefile ../common.mk"},
		},
	}

	want := []string{"/src/Makefile", "/src/rules.mk", "/src/lib/Makefile", "/src/common.mk"}
	if got := watchedFiles(inputs); !slices.Equal(got, want) {
		t.Errorf("watchedFiles() = %q, want %q", got, want)
	}
}

func TestWriteOutput(t *testing.T) {
	data := []byte("digraph \"makefile\" {\n}\n")

	var stdout bytes.Buffer
	if err := writeOutput(&stdout, "", data); err != nil {
		t.Fatalf("writeOutput(stdout) error: %v", err)
	}
	if stdout.String() != string(data) {
		t.Errorf("stdout = %q, want %q", stdout.String(), data)
	}

	path := filepath.Join(t.TempDir(), "graph.dot")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := writeOutput(&stdout, path, data); err != nil {
		t.Fatalf("writeOutput(file) error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Errorf("file = %q, want %q", got, data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestWriteOutputBadDirectory(t *testing.T) {
	err := writeOutput(nil, filepath.Join(t.TempDir(), "missing", "graph.dot"), []byte("x"))
	if err == nil {
		t.Error("writeOutput() should fail when the directory does not exist")
	}
}
