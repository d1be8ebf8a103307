package makefile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestVarsExpand(t *testing.T) {
	v := NewVars("")
	v.Assign("SRCS", OpRecursive, "main.c util.c")
	v.Assign("OBJS", OpRecursive, "$(SRCS:.c=.o)")
	v.Assign("BIN", OpSimple, "bin/app")
	v.Assign("X", OpRecursive, "x")

	tests := []struct {
		in   string
		want string
	}{
		{"$(BIN): $(OBJS)", "bin/app: main.o util.o"},
		{"${BIN}", "bin/app"},
		{"$X", "x"},
		{"$$HOME", "$HOME"},
		{"$(UNDEFINED)", ""},
		{"$@ $< $^", "$@ $< $^"},
		{"$(SRCS:%.c=obj/%.o)", "obj/main.o obj/util.o"},
		{"$(patsubst %.c,%.o,$(SRCS))", "main.o util.o"},
		{"$(subst .c,.h,$(SRCS))", "main.h util.h"},
		{"$(addprefix src/,$(SRCS))", "src/main.c src/util.c"},
		{"$(addsuffix .bak,a b)", "a.bak b.bak"},
		{"$(filter %.c,a.c b.h c.c)", "a.c c.c"},
		{"$(filter-out %.c,a.c b.h c.c)", "b.h"},
		{"$(sort c a b a)", "a b c"},
		{"$(word 2,a b c)", "b"},
		{"$(words a b c)", "3"},
		{"$(firstword a b c)", "a"},
		{"$(lastword a b c)", "c"},
		{"$(dir src/a.c b.c)", "src/ ./"},
		{"$(notdir src/a.c b.c)", "a.c b.c"},
		{"$(suffix a.c b)", ".c"},
		{"$(basename src/a.c b)", "src/a b"},
		{"$(join a b,.c .h)", "a.c b.h"},
		{"$(strip   a   b  )", "a b"},
		{"$(findstring an,banana)", "an"},
		{"$(if $(X),yes,no)", "yes"},
		{"$(if $(UNDEFINED),yes,no)", "no"},
		{"$(or ,$(X))", "x"},
		{"$(and $(X),last)", "last"},
		{"$(unclosed", "$(unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := v.Expand(tt.in); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestVarsAssign(t *testing.T) {
	v := NewVars("")
	v.Assign("A", OpRecursive, "$(B)")
	v.Assign("S", OpSimple, "$(B)")
	v.Assign("B", OpRecursive, "late")

	if got := v.Expand("$(A)"); got != "late" {
		t.Errorf("recursive A = %q, want late", got)
	}
	if got := v.Expand("$(S)"); got != "" {
		t.Errorf("simple S = %q, want empty (B was undefined at assignment)", got)
	}

	v.Assign("B", OpConditional, "ignored")
	if got := v.Expand("$(B)"); got != "late" {
		t.Errorf("?= overwrote B: %q", got)
	}
	v.Assign("C", OpConditional, "set")
	if got := v.Expand("$(C)"); got != "set" {
		t.Errorf("?= on undefined C = %q, want set", got)
	}

	v.Assign("B", OpAppend, "more")
	if got := v.Expand("$(B)"); got != "late more" {
		t.Errorf("+= B = %q, want %q", got, "late more")
	}

	v.Assign("SH", OpShell, "date")
	if got := v.Expand("$(SH)"); got != "" {
		t.Errorf("!= SH = %q, want empty", got)
	}
	if got := v.Unresolved(); !reflect.DeepEqual(got, []string{"shell"}) {
		t.Errorf("Unresolved() = %v, want [shell]", got)
	}

	v.Unset("B")
	if _, ok := v.Get("B"); ok {
		t.Error("Unset did not remove B")
	}
}

func TestVarsUnresolvedFunctions(t *testing.T) {
	v := NewVars("")
	if got := v.Expand("a $(shell ls) $(call f,x) b"); got != "a   b" {
		t.Errorf("Expand = %q", got)
	}
	if got := v.Unresolved(); !reflect.DeepEqual(got, []string{"shell", "call"}) {
		t.Errorf("Unresolved() = %v, want [shell call]", got)
	}
	if got := v.Unresolved(); got != nil {
		t.Errorf("second Unresolved() = %v, want nil", got)
	}
}

func TestVarsWildcard(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.c", "a.c", "x.h"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	v := NewVars(dir)
	if got := v.Expand("$(wildcard *.c)"); got != "a.c b.c" {
		t.Errorf("wildcard = %q, want %q", got, "a.c b.c")
	}
}

func TestVarsMap(t *testing.T) {
	v := NewVars("")
	v.Assign("A", OpRecursive, "$(B)/x")
	v.Assign("B", OpRecursive, "dir")
	want := map[string]string{"A": "dir/x", "B": "dir"}
	if got := v.Map(); !reflect.DeepEqual(got, want) {
		t.Errorf("Map() = %v, want %v", got, want)
	}
}

func TestVarsSelfReference(t *testing.T) {
	tests := []struct {
		name   string
		assign map[string]string
		expr   string
		want   string
		refs   []string
	}{
		{
			name:   "doubling",
			assign: map[string]string{"A": "$(A) $(A) x"},
			expr:   "$(A)",
			want:   "  x",
			refs:   []string{"A"},
		},
		{
			name:   "mutual",
			assign: map[string]string{"A": "a $(B)", "B": "b $(A)"},
			expr:   "$(A)",
			want:   "a b ",
			refs:   []string{"A"},
		},
		{
			name:   "repeated use is not a cycle",
			assign: map[string]string{"O": "x.o", "L": "$(O) $(O)"},
			expr:   "$(L)",
			want:   "x.o x.o",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVars("")
			for k, val := range tt.assign {
				v.Assign(k, OpRecursive, val)
			}
			if got := v.Expand(tt.expr); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.expr, got, tt.want)
			}
			if got := v.SelfReferences(); !reflect.DeepEqual(got, tt.refs) {
				t.Errorf("SelfReferences() = %v, want %v", got, tt.refs)
			}
		})
	}
}

func TestVarsSelfReferenceTerminates(t *testing.T) {
	v := NewVars("")
	v.Assign("A", OpRecursive, "$(A) $(A) $(A) $(A)")
	done := make(chan string, 1)
	go func() { done <- v.Expand("$(A)") }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("expansion of a self-referencing variable did not finish")
	}
}
