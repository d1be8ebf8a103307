package makefile

import (
	"fmt"
	"iter"
	"strings"

	"github.com/matzehuels/makegraph/pkg/errors"
)

// Parser turns rule blocks into records. Malformed lines never abort
// parsing; they are skipped and reported through [Parser.Warnings].
type Parser struct {
	warnings []errors.Warning
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Records lazily yields one record per target of every rule block, in block
// order. The .PHONY declarations are collected from all blocks before the
// first record is yielded, so a target declared phony after its rule is
// still marked. A phony name that no rule defines yields a record without
// prerequisites at the .PHONY line. Warnings are reset each time the
// sequence is iterated.
func (p *Parser) Records(blocks []Block) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		p.warnings = nil
		decl := declarations(blocks)
		for _, b := range blocks {
			for _, rec := range p.parse(b, decl) {
				if !yield(rec) {
					return
				}
			}
		}
	}
}

// Warnings returns the warnings collected during the last iteration.
func (p *Parser) Warnings() []errors.Warning {
	return p.warnings
}

// ParseRules parses every block eagerly.
func ParseRules(blocks []Block) ([]Record, []errors.Warning) {
	p := NewParser()
	var recs []Record
	for r := range p.Records(blocks) {
		recs = append(recs, r)
	}
	return recs, p.Warnings()
}

// rule is the shape of one rule line before it is split per target.
type rule struct {
	targets      []string
	prereqs      []string
	targetPat    string // static pattern rules only
	prereqPats   []string
	static       bool
	doubleColon  bool
	inline       string
	hasInline    bool
	assignment   bool // target-specific variable or a stray assignment
	missingColon bool
}

// splitRule breaks a rule line into its parts without judging them.
func splitRule(line string) rule {
	var r rule
	text, recipe, inline := cutTopLevel(line, ';')
	if inline {
		r.inline, r.hasInline = strings.TrimSpace(recipe), true
	}

	head, tail, ok := cutTopLevel(text, ':')
	if !ok {
		r.missingColon = true
		return r
	}
	if strings.HasPrefix(tail, ":") {
		r.doubleColon = true
		tail = tail[1:]
	}
	// "a b &: c" declares grouped targets; the '&' is syntax, not a name.
	if trimmed := strings.TrimRight(head, " \t"); strings.HasSuffix(trimmed, "&") && !strings.HasSuffix(trimmed, `\&`) {
		head = trimmed[:len(trimmed)-1]
	}
	r.targets = namesOf(head)
	if strings.HasPrefix(tail, "=") || containsTopLevel(tail, '=') {
		r.assignment = true
		return r
	}

	if pats, rest, ok := cutTopLevel(tail, ':'); ok && !r.doubleColon {
		r.static = true
		r.targetPat = strings.TrimSpace(pats)
		tail = rest
	}

	normal, orderOnly, _ := cutTopLevel(tail, '|')
	prereqs := append(namesOf(normal), namesOf(orderOnly)...)
	if r.static {
		r.prereqPats = prereqs
	} else {
		r.prereqs = prereqs
	}
	return r
}

// declared holds what the whole input says about target names.
type declared struct {
	phony map[string]bool // prerequisites of .PHONY
	ruled map[string]bool // names with at least one rule of their own
}

func declarations(blocks []Block) declared {
	d := declared{phony: make(map[string]bool), ruled: make(map[string]bool)}
	for _, b := range blocks {
		r := splitRule(b.Line)
		if r.missingColon || r.assignment {
			continue
		}
		for _, t := range r.targets {
			if t != ".PHONY" {
				d.ruled[t] = true
				continue
			}
			for _, name := range r.prereqs {
				d.phony[name] = true
			}
		}
	}
	return d
}

func (p *Parser) parse(b Block, decl declared) []Record {
	r := splitRule(b.Line)
	switch {
	case r.missingColon:
		p.warn(b.Origin, "missing ':' separator in %q", b.Line)
		return nil
	case len(r.targets) == 0:
		p.warn(b.Origin, "rule has no target: %q", b.Line)
		return nil
	case r.assignment:
		return nil
	}

	annotatedPhony, searched := false, false
	for _, n := range b.Notes {
		switch {
		case strings.Contains(n, "Phony target"):
			annotatedPhony = true
		case strings.Contains(n, "Implicit rule search has been done"):
			searched = true
		}
	}

	var recipe []string
	if r.hasInline && r.inline != "" {
		recipe = append(recipe, r.inline)
	}
	recipe = append(recipe, b.Recipe...)

	var out []Record
	for _, target := range r.targets {
		if target == ".PHONY" {
			// A phony name without a rule of its own still becomes a node.
			for _, name := range r.prereqs {
				if !decl.ruled[name] {
					out = append(out, Record{Target: name, Phony: true, Origin: b.Origin})
				}
			}
			continue
		}
		if IsSpecialTarget(target) {
			continue
		}
		prereqs := r.prereqs
		if r.static {
			stem, ok := matchPattern(r.targetPat, target)
			if !ok {
				p.warn(b.Origin, "target %s does not match pattern %s", target, r.targetPat)
				continue
			}
			prereqs = make([]string, len(r.prereqPats))
			for i, pat := range r.prereqPats {
				prereqs[i] = Instantiate(pat, stem)
			}
		}
		out = append(out, Record{
			Target:        target,
			Prerequisites: prereqs,
			Phony:         decl.phony[target] || annotatedPhony,
			Pattern:       IsPattern(target),
			HasRecipe:     r.hasInline || len(b.Recipe) > 0,
			DoubleColon:   r.doubleColon,
			Recipe:        recipe,
			Origin:        b.Origin,

			ImplicitSearched: searched,
		})
	}
	return out
}

func (p *Parser) warn(origin, format string, args ...any) {
	p.warnings = append(p.warnings, errors.Warning{
		Code:    errors.WarnCodeParse,
		Origin:  origin,
		Message: fmt.Sprintf(format, args...),
	})
}

// namesOf splits a target or prerequisite list on whitespace and unescapes
// "\:" so that escaped colons survive as part of a name.
func namesOf(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, `\:`, ":")
	}
	return fields
}
