package makefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/makegraph/pkg/errors"
)

// sampleDump is a trimmed make --print-data-base --question run over
//
//	CC := cc
//	.PHONY: all
//	all: app
//	app: main.o
//		$(CC) -o $@ $^
//	%.o: %.c
//		$(CC) -c $<
const sampleDump = `# GNU Make 4.4.1
# Built for x86_64-pc-linux-gnu

# Make data base, printed on Mon Jan  1 00:00:00 2024

# Variables

# environment
HOME = /root
# makefile (from 'Makefile', line 1)
CC := cc
# default
MAKE_VERSION := 4.4.1
# makefile
.DEFAULT_GOAL := all
# makefile (from 'Makefile', line 9)
define HELP
usage: make
endef

# Directories

# 2 files in 0 directories.

# Implicit Rules

%.o: %.c
#  recipe to execute (from 'Makefile', line 7):
	$(CC) -c $<

# 1 implicit rules, 0 (0.0%) terminal.

# Files

# Not a target:
Makefile:
#  Implicit rule search has been done.
#  File does not exist.

app: main.o
#  Implicit rule search has not been done.
#  File does not exist.
#  recipe to execute (from 'Makefile', line 5):
	$(CC) -o $@ $^

all: app
#  Phony target (prerequisite of .PHONY).
#  Implicit rule search has not been done.

.PHONY: all
#  Implicit rule search has not been done.

# Not a target:
main.o:
#  Implicit rule search has been done.

# files hash-table stats:
# Load=4/1024=0%, Rehash=0, Collisions=0/8=0%

# VPATH Search Paths

# No 'vpath' search paths.

# finished making data base
`

func TestParseDatabase(t *testing.T) {
	blocks, vars, err := ParseDatabase(strings.NewReader(sampleDump), "/src/Makefile")
	if err != nil {
		t.Fatalf("ParseDatabase() error: %v", err)
	}

	want := []Block{
		{
			Line:   "%.o: %.c",
			Recipe: []string{"$(CC) -c $<"},
			Notes:  []string{"  recipe to execute (from 'Makefile', line 7):"},
			Origin: "Makefile:7",
		},
		{
			Line:   "app: main.o",
			Recipe: []string{"$(CC) -o $@ $^"},
			Notes: []string{
				"  Implicit rule search has not been done.",
				"  File does not exist.",
				"  recipe to execute (from 'Makefile', line 5):",
			},
			Origin: "Makefile:5",
		},
		{
			Line: "all: app",
			Notes: []string{
				"  Phony target (prerequisite of .PHONY).",
				"  Implicit rule search has not been done.",
			},
			Origin: "Makefile (make database line 46)",
		},
		{
			Line:   ".PHONY: all",
			Notes:  []string{"  Implicit rule search has not been done."},
			Origin: "Makefile (make database line 50)",
		},
	}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("blocks =\n%+v\nwant\n%+v", blocks, want)
	}

	if vars["CC"] != "cc" {
		t.Errorf("CC = %q, want cc", vars["CC"])
	}
	if vars[".DEFAULT_GOAL"] != "all" {
		t.Errorf(".DEFAULT_GOAL = %q, want all", vars[".DEFAULT_GOAL"])
	}
	for _, name := range []string{"HOME", "MAKE_VERSION", "HELP"} {
		if _, ok := vars[name]; ok {
			t.Errorf("%s should not be collected", name)
		}
	}

	recs, warnings := ParseRules(blocks)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	var got []string
	for _, r := range recs {
		got = append(got, fmt.Sprintf("%s phony=%v pattern=%v recipe=%v", r.Target, r.Phony, r.Pattern, r.HasRecipe))
	}
	wantRecs := []string{
		"%.o phony=false pattern=true recipe=true",
		"app phony=false pattern=false recipe=true",
		"all phony=true pattern=false recipe=false",
	}
	if !reflect.DeepEqual(got, wantRecs) {
		t.Errorf("records = %q, want %q", got, wantRecs)
	}
}

func writeMakefile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "Makefile")
	if err := os.WriteFile(p, []byte("all:\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDatabaseSourceLoad(t *testing.T) {
	path := writeMakefile(t)

	tests := []struct {
		name     string
		output   string
		err      error
		wantCode errors.Code
	}{
		{name: "success", output: sampleDump},
		{name: "question exit status", output: sampleDump, err: &ExitError{Command: "make", Code: 1}},
		{name: "error exit status", err: &ExitError{Command: "make", Code: 2, Stderr: "*** No rule"}, wantCode: errors.ErrCodeSource},
		{name: "missing binary", err: fmt.Errorf("%w: make", ErrCommandNotFound), wantCode: errors.ErrCodeSource},
		{name: "deadline", err: context.DeadlineExceeded, wantCode: errors.ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockRunner{MockOutput: []byte(tt.output), MockError: tt.err}
			src := &DatabaseSource{Runner: runner}
			in, err := src.Load(context.Background(), path)

			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("Load() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if in.Mode != ModeDatabase || len(in.Blocks) != 4 {
				t.Errorf("Mode = %s, %d blocks", in.Mode, len(in.Blocks))
			}

			call := runner.Calls[0]
			if call.Name != DefaultMake || call.Dir != filepath.Dir(path) {
				t.Errorf("ran %s in %s", call.Name, call.Dir)
			}
			wantArgs := append(append([]string{}, DatabaseFlags...), "-f", path)
			if !reflect.DeepEqual(call.Args, wantArgs) {
				t.Errorf("args = %v, want %v", call.Args, wantArgs)
			}
		})
	}
}

func TestDatabaseSourceMissingMakefile(t *testing.T) {
	runner := &MockRunner{}
	_, err := (&DatabaseSource{Runner: runner}).Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, errors.ErrCodeSource) {
		t.Errorf("Load() error = %v, want SOURCE_ERROR", err)
	}
	if len(runner.Calls) != 0 {
		t.Error("make should not run for a missing Makefile")
	}
}

func TestDatabaseSourceTimeout(t *testing.T) {
	path := writeMakefile(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := (&DatabaseSource{Runner: &MockRunner{}}).Load(ctx, path)
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("Load() error = %v, want TIMEOUT", err)
	}
}

func TestParseDatabaseSourceOrder(t *testing.T) {
	const dump = `# Variables

# makefile
MAKEFILE_LIST :=  Makefile inc.mk

# Files

y: x
#  recipe to execute (from 'Makefile', line 9):
	touch y

x:
#  recipe to execute (from 'Makefile', line 6):
	touch x

b: a

a:
#  recipe to execute (from 'inc.mk', line 2):
	touch a

# finished making data base
`
	blocks, _, err := ParseDatabase(strings.NewReader(dump), "/src/Makefile")
	if err != nil {
		t.Fatalf("ParseDatabase() error: %v", err)
	}
	var got []string
	for _, b := range blocks {
		got = append(got, b.Line)
	}
	// b has no known origin and keeps its slot.
	want := []string{"x:", "y: x", "b: a", "a:"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}
