// Package pipeline runs the makegraph pipeline: load rules, build the graph,
// transform it and render it.
//
// This package is shared by the graph, rules and watch commands so all of
// them load and render Makefiles the same way.
//
// # Architecture
//
// The pipeline consists of four stages, run strictly in sequence:
//
//  1. Source: obtain rule blocks from make's database or a direct scan,
//     following sub-makes when asked
//  2. Build: parse records and merge them into a deduplicated graph
//  3. Transform: optional exclude, focus and transitive reduction
//  4. Render: serialize the graph (DOT, JSON, SVG, PNG or PDF) into memory
//
// Everything is computed before any byte is written, so a fatal error never
// leaves partial output behind.
//
// # Usage
//
//	runner := pipeline.NewRunner(logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Makefile: "Makefile"})
//	if err != nil {
//	    return err
//	}
//	os.Stdout.Write(result.Output)
//
// Run individual stages:
//
//	walk, err := runner.Load(ctx, opts)
//	g, warnings, err := runner.Build(walk, opts)
//	out, err := pipeline.Render(ctx, g, opts)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/makegraph/pkg/dag"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/makefile"
	"github.com/matzehuels/makegraph/pkg/render/nodelink"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Config
// =============================================================================

const (
	// DefaultMakefile is read when no path is given.
	DefaultMakefile = "Makefile"

	// DefaultFormat is the output format when none is requested.
	DefaultFormat = FormatDOT

	// DefaultPNGScale renders PNGs at 2x for high-DPI displays.
	DefaultPNGScale = 2.0
)

// Format constants for output formats.
const (
	FormatDOT  = "dot"
	FormatJSON = "json"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT:  true,
	FormatJSON: true,
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
}

// ValidSources is the set of supported rule sources.
var ValidSources = map[string]bool{
	makefile.SourceAuto:     true,
	makefile.SourceDatabase: true,
	makefile.SourceScan:     true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one pipeline run.
type Options struct {
	// Source options
	Makefile       string        `json:"makefile"`
	Source         string        `json:"source,omitempty"` // auto, database or scan
	Make           string        `json:"make,omitempty"`   // make binary for database mode
	Fallback       bool          `json:"fallback,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty"` // zero waits forever
	FollowSubmakes bool          `json:"follow_submakes,omitempty"`
	MaxDepth       int           `json:"max_depth,omitempty"`

	// Transform options
	Exclude []string `json:"exclude,omitempty"`
	Focus   string   `json:"focus,omitempty"`
	Reduce  bool     `json:"reduce,omitempty"`

	// Render options
	Format   string  `json:"format,omitempty"`
	RankDir  string  `json:"rankdir,omitempty"`
	Detailed bool    `json:"detailed,omitempty"`
	PNGScale float64 `json:"png_scale,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger            `json:"-"`
	Runner makefile.CommandRunner `json:"-"` // ExecRunner when nil
	Env    map[string]string      `json:"-"` // seeds scan-mode variables
	Exists func(string) bool      `json:"-"` // on-disk check for pattern rule instantiation

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the transformed dependency graph.
	Graph *dag.DAG

	// Records are the parsed rules the graph was built from.
	Records []makefile.Record

	// Inputs describe every Makefile that was loaded, root first.
	Inputs []*makefile.Input

	// Warnings are the recoverable diagnostics, parse warnings first.
	Warnings []errors.Warning

	// Output is the rendered document.
	Output []byte

	// Stats contains timing and size information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Mode          makefile.Mode // how the root Makefile was read
	NodeCount     int
	EdgeCount     int
	Goals         []string // targets nothing depends on, in first-seen order
	Leaves        int      // nodes without prerequisites
	ParseWarnings int
	CycleWarnings int
	SourceTime    time.Duration
	BuildTime     time.Duration
	RenderTime    time.Duration
}

// HasCycles reports whether the graph contained a dependency cycle.
func (r *Result) HasCycles() bool {
	return r.Stats.CycleWarnings > 0
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: dot, json, svg, png, pdf)", format)
	}
	return nil
}

// ValidateSource checks that a source mode is valid.
func ValidateSource(source string) error {
	if !ValidSources[source] {
		return errors.New(errors.ErrCodeInvalidInput,
			"invalid source: %q (must be one of: auto, database, scan)", source)
	}
	return nil
}

// ValidateRankDir checks that a rank direction is valid.
func ValidateRankDir(dir string) error {
	if !nodelink.ValidRankDir(dir) {
		return errors.New(errors.ErrCodeInvalidInput,
			"invalid rankdir: %q (must be one of: TB, LR, BT, RL)", dir)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks every field and fills in defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if o.Makefile == "" {
		o.Makefile = DefaultMakefile
	}
	if err := errors.ValidateMakefilePath(o.Makefile); err != nil {
		return err
	}
	if o.Source == "" {
		o.Source = makefile.SourceAuto
	}
	if err := ValidateSource(o.Source); err != nil {
		return err
	}
	if o.Make == "" {
		o.Make = makefile.DefaultMake
	}
	if o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout must not be negative")
	}
	if o.MaxDepth < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "max depth must not be negative")
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = makefile.DefaultMaxDepth
	}

	if o.Focus != "" {
		if err := errors.ValidateTargetName(o.Focus); err != nil {
			return err
		}
	}

	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if err := ValidateFormat(o.Format); err != nil {
		return err
	}
	if o.RankDir == "" {
		o.RankDir = nodelink.DefaultRankDir
	}
	if err := ValidateRankDir(o.RankDir); err != nil {
		return err
	}
	if o.PNGScale <= 0 {
		o.PNGScale = DefaultPNGScale
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// SourceOptions returns the makefile source configuration.
func (o *Options) SourceOptions() makefile.SourceOptions {
	return makefile.SourceOptions{
		Mode:     o.Source,
		Make:     o.Make,
		Runner:   o.Runner,
		Fallback: o.Fallback,
		Logger:   o.Logger,
		Env:      o.Env,
	}
}

// DOTOptions returns the renderer configuration.
func (o *Options) DOTOptions() nodelink.Options {
	return nodelink.Options{RankDir: o.RankDir, Detailed: o.Detailed}
}
