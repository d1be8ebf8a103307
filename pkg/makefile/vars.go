package makefile

import (
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// maxExpandDepth bounds nested expansion through computed variable names,
// which the in-progress check in lookup cannot see.
const maxExpandDepth = 32

// Vars is a flat make variable table. It implements the subset of make's
// expansion language the direct scan needs: $(NAME) and ${NAME} references,
// single-letter $X references, $$ escapes, substitution references
// ($(SRCS:.c=.o)) and the pure text functions listed in [Vars.Expand].
//
// Vars is not safe for concurrent use.
type Vars struct {
	values map[string]string
	simple map[string]bool // assigned with := or ::=, already expanded

	// Dir is the directory $(wildcard) patterns are resolved against.
	Dir string

	// unresolved collects function names that could not be evaluated.
	unresolved []string

	// expanding holds the recursive variables currently being expanded.
	expanding map[string]bool
	// selfRefs collects variables whose expansion reached themselves.
	selfRefs []string
}

// NewVars returns an empty variable table rooted at dir.
func NewVars(dir string) *Vars {
	return &Vars{
		values:    make(map[string]string),
		simple:    make(map[string]bool),
		expanding: make(map[string]bool),
		Dir:       dir,
	}
}

// Assignment operators understood by [Vars.Assign].
const (
	OpRecursive   = "="
	OpSimple      = ":="
	OpSimplePOSIX = "::="
	OpConditional = "?="
	OpAppend      = "+="
	OpShell       = "!="
)

// Assign applies a make assignment. Recursive values are stored verbatim and
// expanded on use; simple values are expanded immediately. Shell assignments
// are never executed and leave the variable empty.
func (v *Vars) Assign(name, op, value string) {
	switch op {
	case OpSimple, OpSimplePOSIX:
		v.values[name] = v.Expand(value)
		v.simple[name] = true
	case OpConditional:
		if _, ok := v.values[name]; !ok {
			v.values[name] = value
			v.simple[name] = false
		}
	case OpAppend:
		if v.simple[name] {
			value = v.Expand(value)
		}
		if old, ok := v.values[name]; ok && old != "" {
			value = old + " " + value
		}
		v.values[name] = value
	case OpShell:
		v.values[name] = ""
		v.simple[name] = true
		v.unresolved = append(v.unresolved, "shell")
	default:
		v.values[name] = value
		v.simple[name] = false
	}
}

// Get returns the raw (unexpanded) value of name.
func (v *Vars) Get(name string) (string, bool) {
	s, ok := v.values[name]
	return s, ok
}

// Unset removes name from the table.
func (v *Vars) Unset(name string) {
	delete(v.values, name)
	delete(v.simple, name)
}

// Map returns a copy of the table with every value fully expanded.
func (v *Vars) Map() map[string]string {
	out := make(map[string]string, len(v.values))
	for k := range v.values {
		out[k] = v.expand("$("+k+")", 0)
	}
	return out
}

// Unresolved returns, and clears, the names of functions that expansion met
// but could not evaluate (for example "shell" or "call").
func (v *Vars) Unresolved() []string {
	out := v.unresolved
	v.unresolved = nil
	return out
}

// SelfReferences returns, and clears, the recursive variables whose
// expansion referenced themselves. make stops with an error on these; here
// the inner reference expands to nothing.
func (v *Vars) SelfReferences() []string {
	out := v.selfRefs
	v.selfRefs = nil
	return out
}

// Expand expands every variable reference in s. Undefined variables expand
// to the empty string, as in make.
//
// Supported functions: subst, patsubst, strip, findstring, filter,
// filter-out, sort, word, words, firstword, lastword, dir, notdir, suffix,
// basename, addsuffix, addprefix, join, wildcard, abspath, if, or and and.
// Anything else expands to the empty string and is recorded in
// [Vars.Unresolved].
func (v *Vars) Expand(s string) string {
	return v.expand(s, 0)
}

func (v *Vars) expand(s string, depth int) string {
	if depth > maxExpandDepth || !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		next := s[i+1]
		switch next {
		case '$':
			b.WriteByte('$')
			i++
		case '(', '{':
			end := matchClose(s, i+1)
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(v.reference(s[i+2:end], depth))
			i = end
		default:
			// $@, $<, $^ and friends only have meaning inside recipes.
			if strings.IndexByte("@<^+?*%|", next) >= 0 {
				b.WriteByte('$')
				b.WriteByte(next)
			} else {
				b.WriteString(v.lookup(string(next), depth))
			}
			i++
		}
	}
	return b.String()
}

// matchClose returns the index of the bracket closing the one at s[open].
func matchClose(s string, open int) int {
	o := s[open]
	cl := byte(')')
	if o == '{' {
		cl = '}'
	}
	depth := 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case o:
			depth++
		case cl:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func (v *Vars) lookup(name string, depth int) string {
	val, ok := v.values[name]
	if !ok {
		return ""
	}
	if v.simple[name] {
		return val
	}
	if v.expanding[name] {
		if !slices.Contains(v.selfRefs, name) {
			v.selfRefs = append(v.selfRefs, name)
		}
		return ""
	}
	v.expanding[name] = true
	defer delete(v.expanding, name)
	return v.expand(val, depth+1)
}

// reference evaluates the body of a $(...) reference.
func (v *Vars) reference(body string, depth int) string {
	if fn, args, ok := splitFunction(body); ok {
		return v.call(fn, args, depth)
	}

	name := v.expand(body, depth+1)
	if colon := strings.IndexByte(name, ':'); colon > 0 {
		if eq := strings.IndexByte(name[colon:], '='); eq > 0 {
			from, to := name[colon+1:colon+eq], name[colon+eq+1:]
			if !strings.Contains(from, "%") {
				from, to = "%"+from, "%"+to
			}
			return patsubst(from, to, v.lookup(name[:colon], depth))
		}
	}
	return v.lookup(name, depth)
}

var knownFunctions = map[string]bool{
	"subst": true, "patsubst": true, "strip": true, "findstring": true,
	"filter": true, "filter-out": true, "sort": true, "word": true,
	"words": true, "firstword": true, "lastword": true, "dir": true,
	"notdir": true, "suffix": true, "basename": true, "addsuffix": true,
	"addprefix": true, "join": true, "wildcard": true, "abspath": true,
	"if": true, "or": true, "and": true,
	// Recognized so they are reported, never evaluated.
	"shell": true, "call": true, "eval": true, "foreach": true, "origin": true,
	"value": true, "info": true, "warning": true, "error": true, "file": true,
	"flavor": true, "realpath": true, "let": true, "intcmp": true, "guile": true,
}

// splitFunction splits "name arg1,arg2" into the function name and its
// top-level comma-separated arguments.
func splitFunction(body string) (string, []string, bool) {
	sp := strings.IndexAny(body, " \t")
	if sp <= 0 || !knownFunctions[body[:sp]] {
		return "", nil, false
	}
	rest := strings.TrimLeft(body[sp:], " \t")

	var args []string
	depth, start := 0, 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, rest[start:i])
				start = i + 1
			}
		}
	}
	args = append(args, rest[start:])
	return body[:sp], args, true
}

func (v *Vars) call(fn string, raw []string, depth int) string {
	arg := func(i int) string {
		if i >= len(raw) {
			return ""
		}
		return v.expand(raw[i], depth+1)
	}
	words := func(i int) []string { return strings.Fields(arg(i)) }
	mapWords := func(ws []string, f func(string) string) string {
		out := make([]string, 0, len(ws))
		for _, w := range ws {
			out = append(out, f(w))
		}
		return strings.Join(out, " ")
	}

	switch fn {
	case "subst":
		return strings.ReplaceAll(arg(2), arg(0), arg(1))
	case "patsubst":
		return patsubst(strings.TrimSpace(arg(0)), strings.TrimSpace(arg(1)), arg(2))
	case "strip":
		return strings.Join(words(0), " ")
	case "findstring":
		if strings.Contains(arg(1), arg(0)) {
			return arg(0)
		}
		return ""
	case "filter", "filter-out":
		pats := words(0)
		var out []string
		for _, w := range words(1) {
			hit := slices.ContainsFunc(pats, func(p string) bool { _, ok := matchPattern(p, w); return ok })
			if hit == (fn == "filter") {
				out = append(out, w)
			}
		}
		return strings.Join(out, " ")
	case "sort":
		ws := words(0)
		slices.Sort(ws)
		return strings.Join(slices.Compact(ws), " ")
	case "word":
		n, err := strconv.Atoi(strings.TrimSpace(arg(0)))
		ws := words(1)
		if err != nil || n < 1 || n > len(ws) {
			return ""
		}
		return ws[n-1]
	case "words":
		return strconv.Itoa(len(words(0)))
	case "firstword":
		if ws := words(0); len(ws) > 0 {
			return ws[0]
		}
		return ""
	case "lastword":
		if ws := words(0); len(ws) > 0 {
			return ws[len(ws)-1]
		}
		return ""
	case "dir":
		return mapWords(words(0), func(w string) string {
			if i := strings.LastIndexByte(w, '/'); i >= 0 {
				return w[:i+1]
			}
			return "./"
		})
	case "notdir":
		return mapWords(words(0), func(w string) string { return w[strings.LastIndexByte(w, '/')+1:] })
	case "suffix":
		var out []string
		for _, w := range words(0) {
			if ext := path.Ext(w); ext != "" {
				out = append(out, ext)
			}
		}
		return strings.Join(out, " ")
	case "basename":
		return mapWords(words(0), func(w string) string { return strings.TrimSuffix(w, path.Ext(w)) })
	case "addsuffix":
		suf := arg(0)
		return mapWords(words(1), func(w string) string { return w + suf })
	case "addprefix":
		pre := arg(0)
		return mapWords(words(1), func(w string) string { return pre + w })
	case "join":
		a, b := words(0), words(1)
		out := make([]string, max(len(a), len(b)))
		for i := range out {
			if i < len(a) {
				out[i] = a[i]
			}
			if i < len(b) {
				out[i] += b[i]
			}
		}
		return strings.Join(out, " ")
	case "wildcard":
		var out []string
		for _, pat := range words(0) {
			full := pat
			if !filepath.IsAbs(pat) {
				full = filepath.Join(v.Dir, pat)
			}
			matches, _ := filepath.Glob(full)
			for _, m := range matches {
				if !filepath.IsAbs(pat) {
					if rel, err := filepath.Rel(v.Dir, m); err == nil {
						m = filepath.ToSlash(rel)
					}
				}
				out = append(out, m)
			}
		}
		return strings.Join(out, " ")
	case "abspath":
		return mapWords(words(0), func(w string) string {
			if !filepath.IsAbs(w) {
				w = filepath.Join(v.Dir, w)
			}
			return filepath.ToSlash(filepath.Clean(w))
		})
	case "if":
		if strings.TrimSpace(arg(0)) != "" {
			return arg(1)
		}
		return arg(2)
	case "or":
		for i := range raw {
			if s := arg(i); strings.TrimSpace(s) != "" {
				return s
			}
		}
		return ""
	case "and":
		last := ""
		for i := range raw {
			if last = arg(i); strings.TrimSpace(last) == "" {
				return ""
			}
		}
		return last
	}

	v.unresolved = append(v.unresolved, fn)
	return ""
}

// patsubst replaces every whitespace-separated word of text matching pattern
// with replacement. A '%' in pattern matches any stem, which is substituted
// for the first '%' in replacement.
func patsubst(pattern, replacement, text string) string {
	ws := strings.Fields(text)
	for i, w := range ws {
		if stem, ok := matchPattern(pattern, w); ok {
			if strings.Contains(pattern, "%") {
				ws[i] = strings.Replace(replacement, "%", stem, 1)
			} else {
				ws[i] = replacement
			}
		}
	}
	return strings.Join(ws, " ")
}

// matchPattern matches word against a make pattern with at most one '%'
// and returns the stem the '%' matched.
func matchPattern(pattern, word string) (string, bool) {
	pct := strings.IndexByte(pattern, '%')
	if pct < 0 {
		return "", pattern == word
	}
	prefix, suffix := pattern[:pct], pattern[pct+1:]
	if len(word) < len(prefix)+len(suffix) ||
		!strings.HasPrefix(word, prefix) || !strings.HasSuffix(word, suffix) {
		return "", false
	}
	return word[len(prefix) : len(word)-len(suffix)], true
}
