package makefile

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/makegraph/pkg/errors"
)

// DefaultMaxDepth bounds how many levels of recursive make a [Walker]
// follows.
const DefaultMaxDepth = 8

// makefileNames are tried in order when a sub-make names no file, as make
// itself does.
var makefileNames = []string{"GNUmakefile", "makefile", "Makefile"}

// Invocation is a recursive make call found in a recipe.
type Invocation struct {
	Target string   // Target whose recipe runs make
	Dir    string   // Directory make runs in, relative to the invoking Makefile
	File   string   // Value of -f, empty for the default Makefile
	Goals  []string // Goals passed on the command line
	Origin string
}

// FindInvocations returns the recursive make calls in rec's recipe that
// switch to another Makefile with -C/--directory, -f/--file or a preceding
// "cd dir &&". vars expands references such as $(MAKE) and $(SUBDIRS); it
// may be nil when the recipe is already expanded.
func FindInvocations(rec Record, vars *Vars) []Invocation {
	var out []Invocation
	for _, line := range rec.Recipe {
		line = strings.NewReplacer("$@", rec.Target, "$(@)", rec.Target).Replace(line)
		if vars != nil {
			line = vars.Expand(line)
			vars.Unresolved()
			vars.SelfReferences()
		}
		dir := ""
		for _, cmd := range splitCommands(line) {
			words := shellWords(cmd)
			if len(words) == 0 {
				continue
			}
			if words[0] == "cd" {
				if len(words) > 1 {
					dir = joinDir(dir, words[1])
				}
				continue
			}
			if !isMake(words[0], vars) {
				continue
			}
			inv, ok := parseMakeArgs(words[1:])
			if !ok && dir == "" {
				continue
			}
			inv.Target = rec.Target
			inv.Origin = rec.Origin
			inv.Dir = joinDir(dir, inv.Dir)
			out = append(out, inv)
		}
	}
	return out
}

// splitCommands cuts a recipe line at shell command separators.
func splitCommands(line string) []string {
	line = strings.TrimLeft(line, "@-+ \t")
	for _, sep := range []string{"&&", "||", ";", "|"} {
		line = strings.ReplaceAll(line, sep, "\n")
	}
	return strings.Split(line, "\n")
}

func shellWords(cmd string) []string {
	var words []string
	for _, w := range strings.Fields(cmd) {
		w = strings.Trim(w, `()"'`)
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

func isMake(word string, vars *Vars) bool {
	switch path.Base(word) {
	case "make", "gmake":
		return true
	}
	if vars != nil {
		if m, ok := vars.Get("MAKE"); ok && m != "" && word == m {
			return true
		}
	}
	return false
}

func joinDir(base, dir string) string {
	switch {
	case dir == "":
		return base
	case path.IsAbs(dir) || base == "":
		return dir
	default:
		return path.Join(base, dir)
	}
}

// flagsWithArg are make options whose argument is a separate word.
var flagsWithArg = map[string]bool{
	"-I": true, "-o": true, "-W": true,
	"--include-dir": true, "--old-file": true, "--new-file": true, "--what-if": true,
}

// parseMakeArgs reads make's command line. ok reports whether it selects a
// different directory or file.
func parseMakeArgs(args []string) (inv Invocation, ok bool) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch {
		case a == "-C" || a == "--directory":
			inv.Dir = joinDir(inv.Dir, next())
		case strings.HasPrefix(a, "--directory="):
			inv.Dir = joinDir(inv.Dir, strings.TrimPrefix(a, "--directory="))
		case strings.HasPrefix(a, "-C"):
			inv.Dir = joinDir(inv.Dir, a[2:])
		case a == "-f" || a == "--file" || a == "--makefile":
			inv.File = next()
		case strings.HasPrefix(a, "--file=") || strings.HasPrefix(a, "--makefile="):
			_, inv.File, _ = strings.Cut(a, "=")
		case strings.HasPrefix(a, "-f"):
			inv.File = a[2:]
		case flagsWithArg[a]:
			next()
		case strings.HasPrefix(a, "-"):
		case strings.Contains(a, "="):
			// VAR=value override
		default:
			inv.Goals = append(inv.Goals, a)
		}
	}
	return inv, inv.Dir != "" || inv.File != ""
}

// Walker loads a Makefile and, when Follow is set, every Makefile its
// recipes run make on. Records of sub-makefiles are namespaced by their
// directory relative to the root Makefile, e.g. "lib/all".
type Walker struct {
	Source   Source
	Follow   bool
	MaxDepth int // DefaultMaxDepth when zero
	Logger   *log.Logger
}

// WalkResult is everything a walk collected.
type WalkResult struct {
	Records  []Record
	Inputs   []*Input
	Warnings []errors.Warning
}

type walkItem struct {
	abs    string
	prefix string
	depth  int
}

// link is a pending edge from a sub-make's goals to the invoking target.
type link struct {
	target string
	child  string
	goals  []string
	origin string
	prefix string
}

// Walk loads root breadth first. A failure to load root is returned; a
// failure to load a sub-makefile becomes a warning. Every Makefile is loaded
// at most once.
func (w *Walker) Walk(ctx context.Context, root string) (*WalkResult, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "resolve %s", root)
	}
	rootDir := filepath.Dir(rootAbs)
	maxDepth := w.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	res := &WalkResult{}
	prefixes := map[string]string{rootAbs: ""}
	taken := map[string]bool{"": true}
	defaultGoals := make(map[string]string)
	var links []link

	queue := []walkItem{{abs: rootAbs}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		in, err := w.Source.Load(ctx, item.abs)
		if err != nil {
			if item.depth == 0 {
				return nil, err
			}
			res.Warnings = append(res.Warnings, errors.Warning{
				Code:    errors.WarnCodeParse,
				Origin:  item.prefix,
				Message: fmt.Sprintf("cannot load sub-makefile: %s", errors.UserMessage(err)),
			})
			continue
		}
		if w.Logger != nil {
			w.Logger.Debug("loaded makefile", "path", in.Path, "source", describe(in), "blocks", len(in.Blocks))
		}
		res.Inputs = append(res.Inputs, in)
		for _, wn := range in.Warnings {
			wn.Origin = namespaced(item.prefix, wn.Origin)
			res.Warnings = append(res.Warnings, wn)
		}

		p := NewParser()
		var recs []Record
		for rec := range p.Records(in.Blocks) {
			recs = append(recs, rec)
		}
		for _, wn := range p.Warnings() {
			wn.Origin = namespaced(item.prefix, wn.Origin)
			res.Warnings = append(res.Warnings, wn)
		}
		defaultGoals[item.abs] = defaultGoal(in, recs)

		var vars *Vars
		if w.Follow {
			vars = inputVars(in)
		}
		for _, rec := range recs {
			if w.Follow {
				for _, inv := range FindInvocations(rec, vars) {
					child, ok := resolveInvocation(filepath.Dir(item.abs), inv)
					if !ok {
						res.Warnings = append(res.Warnings, errors.Warning{
							Code:    errors.WarnCodeParse,
							Origin:  namespaced(item.prefix, inv.Origin),
							Message: fmt.Sprintf("sub-make in %s has no makefile", inv.Dir),
						})
						continue
					}
					links = append(links, link{
						target: rec.Target,
						child:  child,
						goals:  inv.Goals,
						origin: inv.Origin,
						prefix: item.prefix,
					})
					if _, seen := prefixes[child]; seen {
						continue
					}
					if item.depth+1 > maxDepth {
						res.Warnings = append(res.Warnings, errors.Warning{
							Code:    errors.WarnCodeParse,
							Origin:  namespaced(item.prefix, inv.Origin),
							Message: fmt.Sprintf("sub-make depth limit %d reached, not following %s", maxDepth, child),
						})
						continue
					}
					prefix := childPrefix(rootDir, child)
					if taken[prefix] {
						prefix = path.Join(prefix, filepath.Base(child))
					}
					taken[prefix] = true
					prefixes[child] = prefix
					queue = append(queue, walkItem{abs: child, prefix: prefixes[child], depth: item.depth + 1})
				}
			}
			res.Records = append(res.Records, namespace(rec, item.prefix))
		}
	}

	for _, l := range links {
		prefix, queued := prefixes[l.child]
		if !queued {
			continue
		}
		goals := l.goals
		if len(goals) == 0 {
			if g := defaultGoals[l.child]; g != "" {
				goals = []string{g}
			} else {
				continue
			}
		}
		prereqs := make([]string, len(goals))
		for i, g := range goals {
			prereqs[i] = namespaced(prefix, g)
		}
		res.Records = append(res.Records, Record{
			Target:        namespaced(l.prefix, l.target),
			Prerequisites: prereqs,
			Origin:        namespaced(l.prefix, l.origin),
			Makefile:      l.prefix,
			Submake:       true,
		})
	}
	return res, nil
}

// inputVars rebuilds a variable table from an input's expanded values.
func inputVars(in *Input) *Vars {
	dir := filepath.Dir(in.Path)
	v := NewVars(dir)
	for k, val := range in.Vars {
		v.Assign(k, OpRecursive, val)
	}
	if _, ok := v.Get("MAKE"); !ok {
		v.Assign("MAKE", OpSimple, DefaultMake)
	}
	if _, ok := v.Get("CURDIR"); !ok {
		v.Assign("CURDIR", OpSimple, dir)
	}
	return v
}

// defaultGoal is .DEFAULT_GOAL when set, else the first target that is
// neither a pattern nor starts with a dot.
func defaultGoal(in *Input, recs []Record) string {
	if g := strings.TrimSpace(in.Vars[".DEFAULT_GOAL"]); g != "" {
		return g
	}
	for _, r := range recs {
		if !r.Pattern && !strings.HasPrefix(r.Target, ".") {
			return r.Target
		}
	}
	return ""
}

// resolveInvocation returns the absolute path of the Makefile inv runs.
func resolveInvocation(dir string, inv Invocation) (string, bool) {
	if inv.Dir != "" {
		if filepath.IsAbs(inv.Dir) {
			dir = inv.Dir
		} else {
			dir = filepath.Join(dir, filepath.FromSlash(inv.Dir))
		}
	}
	if inv.File != "" {
		f := filepath.FromSlash(inv.File)
		if !filepath.IsAbs(f) {
			f = filepath.Join(dir, f)
		}
		return f, true
	}
	for _, name := range makefileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// childPrefix names a sub-makefile by its directory relative to rootDir, or
// by its file name when it shares the root's directory.
func childPrefix(rootDir, abs string) string {
	dir := filepath.Dir(abs)
	if dir == rootDir {
		return filepath.Base(abs)
	}
	if rel, err := filepath.Rel(rootDir, dir); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(dir)
}

func namespace(rec Record, prefix string) Record {
	if prefix == "" {
		return rec
	}
	rec.Target = namespaced(prefix, rec.Target)
	prereqs := make([]string, len(rec.Prerequisites))
	for i, p := range rec.Prerequisites {
		prereqs[i] = namespaced(prefix, p)
	}
	rec.Prerequisites = prereqs
	rec.Origin = namespaced(prefix, rec.Origin)
	rec.Makefile = prefix
	return rec
}

// namespaced prefixes name without cleaning it, so "../foo" in lib stays
// distinct from the root's "foo".
func namespaced(prefix, name string) string {
	if prefix == "" || name == "" || path.IsAbs(name) {
		return name
	}
	return prefix + "/" + name
}
