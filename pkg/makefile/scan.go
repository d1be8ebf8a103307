package makefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/makegraph/pkg/errors"
)

// ScanSource reads a Makefile directly instead of asking make. It is the
// lower-fidelity fallback: it joins continuation lines, strips comments,
// follows include directives, records variable assignments and expands
// references in rule lines, but it evaluates both branches of every
// conditional and cannot run $(shell ...) or user-defined functions.
type ScanSource struct {
	// Env seeds the variable table before the Makefile is read, the way
	// make imports the environment. It is empty by default so that scans
	// do not depend on the caller's environment.
	Env map[string]string
}

// Load reads the Makefile at path and every file it includes.
func (s *ScanSource) Load(ctx context.Context, path string) (*Input, error) {
	abs, err := resolveMakefile(path)
	if err != nil {
		return nil, err
	}

	sc := &scanner{
		ctx:     ctx,
		rootDir: filepath.Dir(abs),
		vars:    NewVars(filepath.Dir(abs)),
		stack:   make(map[string]bool),
		warned:  make(map[string]bool),
		cur:     -1,
		in:      &Input{Path: abs, Mode: ModeScan},
	}
	for k, v := range s.Env {
		sc.vars.Assign(k, OpRecursive, v)
	}
	sc.vars.Assign("CURDIR", OpSimple, sc.rootDir)
	sc.vars.Assign("MAKE", OpSimple, DefaultMake)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "read makefile %s", path)
	}
	if err := sc.file(abs, data); err != nil {
		return nil, err
	}

	sc.in.Vars = sc.vars.Map()
	return sc.in, nil
}

type scanner struct {
	ctx     context.Context
	rootDir string
	vars    *Vars
	stack   map[string]bool // files currently being read, for include cycles
	warned  map[string]bool // unsupported functions and self references already reported
	cur     int             // index of the block accepting recipe lines, -1 if none
	in      *Input
}

// logicalLine is a source line with continuations joined.
type logicalLine struct {
	text   string
	lineNo int
	recipe bool
}

func (s *scanner) file(abs string, data []byte) error {
	if err := s.ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeTimeout, err, "scan %s", abs)
	}

	s.stack[abs] = true
	defer delete(s.stack, abs)
	s.in.Files = append(s.in.Files, abs)
	rel := s.rel(abs)
	s.vars.Assign("MAKEFILE_LIST", OpAppend, rel)

	lines := joinLines(strings.Split(string(data), "\n"))
	for i := 0; i < len(lines); i++ {
		ll := lines[i]
		origin := fmt.Sprintf("%s:%d", rel, ll.lineNo)

		if ll.recipe && s.cur >= 0 {
			b := &s.in.Blocks[s.cur]
			b.Recipe = append(b.Recipe, ll.text[1:])
			continue
		}

		text := strings.TrimSpace(stripComment(ll.text))
		if text == "" {
			continue
		}
		word, rest := firstWord(text)

		switch word {
		case "ifeq", "ifneq", "ifdef", "ifndef", "else", "endif":
			// Both branches are scanned.
			continue
		case "define":
			i = s.define(lines, i, rest)
			s.cur = -1
			continue
		case "endef", "vpath", "unexport", "load", "-load":
			continue
		case "undefine":
			s.vars.Unset(s.expand(rest, origin))
			continue
		case "include", "-include", "sinclude":
			s.include(abs, origin, word == "include", rest)
			s.cur = -1
			continue
		case "export", "override", "private":
			if w, r := firstWord(rest); w == "define" {
				i = s.define(lines, i, r)
				s.cur = -1
				continue
			}
			if _, _, _, ok := splitAssignment(rest); !ok {
				// "export NAME" and friends only change attributes.
				continue
			}
			text = rest
		}

		if name, op, value, ok := splitAssignment(text); ok {
			s.vars.Assign(s.expand(name, origin), op, value)
			s.noteUnresolved(origin)
			s.cur = -1
			continue
		}

		rule, recipe, hasRecipe := cutTopLevel(text, ';')
		expanded := strings.TrimSpace(s.expand(rule, origin))
		line := expanded
		if hasRecipe {
			line += ";" + recipe
		}
		s.in.Blocks = append(s.in.Blocks, Block{Line: line, Origin: origin})
		if strings.Contains(expanded, ":") {
			s.cur = len(s.in.Blocks) - 1
		} else {
			s.cur = -1
		}
	}
	return nil
}

// define consumes a define ... endef block starting at lines[i] and returns
// the index of its endef line.
func (s *scanner) define(lines []logicalLine, i int, header string) int {
	name, op := header, OpRecursive
	for _, candidate := range []string{OpSimplePOSIX, OpSimple, OpConditional, OpAppend, OpRecursive} {
		if n, ok := strings.CutSuffix(strings.TrimSpace(header), candidate); ok {
			name, op = n, candidate
			break
		}
	}
	name = strings.TrimSpace(name)

	var body []string
	depth := 1
	j := i + 1
	for ; j < len(lines); j++ {
		w, _ := firstWord(strings.TrimSpace(lines[j].text))
		switch w {
		case "define":
			depth++
		case "endef":
			depth--
		}
		if depth == 0 {
			break
		}
		body = append(body, lines[j].text)
	}
	if name != "" {
		s.vars.Assign(name, op, strings.Join(body, "\n"))
	}
	return j
}

func (s *scanner) include(from, origin string, required bool, rest string) {
	for _, name := range strings.Fields(s.expand(rest, origin)) {
		paths := s.resolveInclude(from, name)
		if len(paths) == 0 {
			if required {
				s.warn(origin, "included file %s not found", name)
			}
			continue
		}
		for _, p := range paths {
			if s.stack[p] {
				s.warn(origin, "circular include of %s skipped", s.rel(p))
				continue
			}
			data, err := os.ReadFile(p)
			if err != nil {
				if required {
					s.warn(origin, "cannot read included file %s: %v", name, err)
				}
				continue
			}
			cur := s.cur
			s.cur = -1
			if err := s.file(p, data); err != nil {
				s.warn(origin, "%v", err)
			}
			s.cur = cur
		}
	}
}

// resolveInclude finds an included file the way make does: relative to the
// directory make runs in (the root Makefile's), then relative to the
// including file. Glob patterns expand to every match.
func (s *scanner) resolveInclude(from, name string) []string {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		candidates = []string{
			filepath.Join(s.rootDir, name),
			filepath.Join(filepath.Dir(from), name),
		}
	}
	for _, c := range candidates {
		if strings.ContainsAny(name, "*?[") {
			if matches, _ := filepath.Glob(c); len(matches) > 0 {
				return matches
			}
			continue
		}
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return []string{c}
		}
	}
	return nil
}

func (s *scanner) expand(text, origin string) string {
	out := s.vars.Expand(text)
	s.noteUnresolved(origin)
	return out
}

func (s *scanner) noteUnresolved(origin string) {
	for _, fn := range s.vars.Unresolved() {
		if s.warned[fn] {
			continue
		}
		s.warned[fn] = true
		s.warn(origin, "$(%s ...) cannot be evaluated without make; expanded to nothing", fn)
	}
	for _, name := range s.vars.SelfReferences() {
		if s.warned["var:"+name] {
			continue
		}
		s.warned["var:"+name] = true
		s.warn(origin, "recursive variable %q references itself; inner reference expanded to nothing", name)
	}
}

func (s *scanner) warn(origin, format string, args ...any) {
	s.in.Warnings = append(s.in.Warnings, errors.Warning{
		Code:    errors.WarnCodeParse,
		Origin:  origin,
		Message: fmt.Sprintf(format, args...),
	})
}

func (s *scanner) rel(abs string) string {
	if r, err := filepath.Rel(s.rootDir, abs); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return abs
}

// joinLines folds backslash-newline continuations. Outside recipes the
// backslash, the newline and surrounding whitespace collapse to one space;
// recipe lines keep their text but are still joined into one logical line.
func joinLines(raw []string) []logicalLine {
	var out []logicalLine
	for i := 0; i < len(raw); i++ {
		line := strings.TrimSuffix(raw[i], "\r")
		ll := logicalLine{lineNo: i + 1, recipe: strings.HasPrefix(line, "\t")}
		for continued(line) && i+1 < len(raw) {
			line = strings.TrimRight(line[:len(line)-1], " \t")
			i++
			next := strings.TrimSuffix(raw[i], "\r")
			if ll.recipe {
				next = strings.TrimPrefix(next, "\t")
			}
			line += " " + strings.TrimLeft(next, " \t")
		}
		ll.text = line
		out = append(out, ll)
	}
	return out
}

// continued reports whether line ends in an odd number of backslashes.
func continued(line string) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// stripComment removes an unescaped '#' and everything after it. "\#" is
// unescaped to a literal '#'. References like $(#) are not special-cased.
func stripComment(line string) string {
	if !strings.Contains(line, "#") {
		return line
	}
	var b strings.Builder
	escaped := false
	for _, r := range line {
		if escaped {
			if r != '#' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if r == '#' {
			break
		}
		b.WriteRune(r)
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}

func firstWord(s string) (string, string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// splitAssignment recognizes "NAME op value" for every make assignment
// operator. Rule lines, including target-specific assignments such as
// "prog: CFLAGS += -g", are rejected because their name part holds a colon.
func splitAssignment(line string) (name, op, value string, ok bool) {
	depth := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			lhs := line[:i]
			op = OpRecursive
			for _, candidate := range []string{OpSimplePOSIX, OpSimple, OpConditional, OpAppend, OpShell} {
				prefix := strings.TrimSuffix(candidate, "=")
				if strings.HasSuffix(lhs, prefix) {
					op = candidate
					lhs = strings.TrimSuffix(lhs, prefix)
					break
				}
			}
			name = strings.TrimSpace(lhs)
			if name == "" || strings.ContainsAny(name, " \t") || containsTopLevel(name, ':') {
				return "", "", "", false
			}
			return name, op, strings.TrimLeft(line[i+1:], " \t"), true
		case ':':
			if depth == 0 && !strings.HasPrefix(line[i:], ":=") && !strings.HasPrefix(line[i:], "::=") {
				return "", "", "", false
			}
		}
	}
	return "", "", "", false
}

// containsTopLevel reports whether c occurs in s outside $(...) references.
func containsTopLevel(s string, c byte) bool {
	_, _, ok := cutTopLevel(s, c)
	return ok
}

// cutTopLevel splits s around the first unescaped c outside $(...)
// references.
func cutTopLevel(s string, c byte) (before, after string, found bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(', '{':
			depth++
		case ')', '}':
			if depth > 0 {
				depth--
			}
		case c:
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}
