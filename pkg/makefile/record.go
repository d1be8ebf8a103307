package makefile

import (
	"strings"

	"github.com/matzehuels/makegraph/pkg/errors"
)

// Block is one chunk of raw rule text handed from a [Source] to the [Parser]:
// a single rule line plus whatever belongs to it.
type Block struct {
	// Line is the rule line, "targets: prerequisites", with continuations
	// joined. In direct-scan mode variables are already expanded.
	Line string `json:"line"`

	// Recipe holds the recipe lines without their leading tab.
	Recipe []string `json:"recipe,omitempty"`

	// Notes holds the comment annotations make attaches to a database entry,
	// without the leading '#'. Empty in direct-scan mode.
	Notes []string `json:"notes,omitempty"`

	// Origin locates the rule line as "path:line".
	Origin string `json:"origin,omitempty"`
}

// Mode names how an [Input] was obtained.
type Mode string

const (
	ModeDatabase Mode = "database" // make --print-data-base
	ModeScan     Mode = "scan"     // direct textual scan
)

// Input is everything a [Source] extracted from one Makefile.
type Input struct {
	Path     string            // Absolute path of the Makefile
	Mode     Mode              // How the blocks were obtained
	Blocks   []Block           // Rule blocks in file order
	Vars     map[string]string // Expanded variable values, used to resolve sub-make paths
	Files    []string          // Every file read, root first (scan mode only)
	Warnings []errors.Warning  // Recoverable problems met while reading

	// FallbackReason is set when an AutoSource fell back to scanning and
	// explains why the database could not be used.
	FallbackReason string
}

// Record is one parsed rule for one target. A line with several targets
// yields one record per target, and a target defined by several rules yields
// several records; merging is the graph builder's job.
type Record struct {
	Target        string   `json:"target"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	Phony         bool     `json:"phony,omitempty"`
	Pattern       bool     `json:"pattern,omitempty"`
	HasRecipe     bool     `json:"has_recipe,omitempty"`
	DoubleColon   bool     `json:"double_colon,omitempty"`
	Recipe        []string `json:"recipe,omitempty"`
	Origin        string   `json:"origin,omitempty"`

	// ImplicitSearched marks a database entry make already ran implicit
	// rule search on, so its prerequisites are final.
	ImplicitSearched bool `json:"implicit_searched,omitempty"`

	// Makefile is the namespace prefix of a record loaded from a sub-make,
	// relative to the root Makefile's directory. Empty for the root.
	Makefile string `json:"makefile,omitempty"`

	// Submake marks a record synthesized from a recipe that runs make on
	// another Makefile. Its prerequisites are goals of that Makefile.
	Submake bool `json:"submake,omitempty"`
}

// PatternChar is make's wildcard in pattern rules.
const PatternChar = "%"

// IsPattern reports whether name is a pattern rule target or prerequisite.
func IsPattern(name string) bool { return strings.Contains(name, PatternChar) }

// MatchPattern matches name against a pattern rule target such as "%.o" and
// returns the stem matched by '%'.
func MatchPattern(pattern, name string) (stem string, ok bool) {
	return matchPattern(pattern, name)
}

// Instantiate replaces the first '%' of pattern with stem.
func Instantiate(pattern, stem string) string {
	return strings.Replace(pattern, PatternChar, stem, 1)
}

// specialTargets never become graph nodes. .PHONY is consumed by the parser;
// the others only change make's behavior.
var specialTargets = map[string]bool{
	".PHONY":                true,
	".SUFFIXES":             true,
	".DEFAULT":              true,
	".PRECIOUS":             true,
	".INTERMEDIATE":         true,
	".NOTINTERMEDIATE":      true,
	".SECONDARY":            true,
	".SECONDEXPANSION":      true,
	".DELETE_ON_ERROR":      true,
	".IGNORE":               true,
	".LOW_RESOLUTION_TIME":  true,
	".SILENT":               true,
	".EXPORT_ALL_VARIABLES": true,
	".NOTPARALLEL":          true,
	".ONESHELL":             true,
	".POSIX":                true,
	".WAIT":                 true,
}

// IsSpecialTarget reports whether name is one of make's built-in special
// targets.
func IsSpecialTarget(name string) bool { return specialTargets[name] }
