package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/makegraph/pkg/dag"
	"github.com/matzehuels/makegraph/pkg/dag/transform"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/graph"
	"github.com/matzehuels/makegraph/pkg/makefile"
	"github.com/matzehuels/makegraph/pkg/observability"
)

// Runner encapsulates pipeline execution.
//
// The Runner is stateless except for its logger - it doesn't store pipeline
// results. Multiple goroutines can safely use the same Runner with
// different options.
type Runner struct {
	Logger *log.Logger
}

// NewRunner creates a runner. If logger is nil, the default logger is used.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Logger: logger}
}

// Execute runs the complete source → build → transform → render pipeline.
// The rendered document is returned in Result.Output; nothing is written.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	result := &Result{}

	// Stage 1: Source
	sourceStart := time.Now()
	walk, err := r.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Inputs = walk.Inputs
	result.Records = walk.Records
	result.Stats.SourceTime = time.Since(sourceStart)
	result.Stats.Mode = walk.Inputs[0].Mode

	r.Logger.Info("loaded rules",
		"makefiles", len(walk.Inputs),
		"records", len(walk.Records),
		"source", result.Stats.Mode,
		"duration", result.Stats.SourceTime)

	// Stage 2: Build
	buildStart := time.Now()
	g, cycles, err := r.Build(walk, opts)
	if err != nil {
		return nil, err
	}
	result.Graph = g
	result.Warnings = append(append(result.Warnings, walk.Warnings...), cycles...)
	result.Stats.BuildTime = time.Since(buildStart)
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()
	result.Stats.Goals = dag.NodeIDs(g.Sinks())
	result.Stats.Leaves = len(g.Sources())
	result.Stats.ParseWarnings = errors.CountWarnings(result.Warnings, errors.WarnCodeParse)
	result.Stats.CycleWarnings = errors.CountWarnings(result.Warnings, errors.WarnCodeCycle)
	observability.Pipeline().OnBuildComplete(ctx, g.NodeCount(), g.EdgeCount(), len(result.Warnings), result.Stats.BuildTime)

	for _, w := range result.Warnings {
		r.Logger.Warn(w.Message, "code", w.Code, "origin", w.Origin)
	}
	r.Logger.Info("built graph",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"warnings", len(result.Warnings),
		"duration", result.Stats.BuildTime)

	// Stage 3: Render
	renderStart := time.Now()
	out, err := Render(ctx, g, opts)
	if err != nil {
		return nil, err
	}
	result.Output = out
	result.Stats.RenderTime = time.Since(renderStart)

	r.Logger.Debug("rendered output",
		"format", opts.Format,
		"bytes", len(out),
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Load obtains the rules of opts.Makefile, and of every sub-makefile when
// opts.FollowSubmakes is set.
func (r *Runner) Load(ctx context.Context, opts Options) (*makefile.WalkResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	src, err := makefile.NewSource(opts.SourceOptions())
	if err != nil {
		return nil, err
	}
	walker := &makefile.Walker{
		Source:   src,
		Follow:   opts.FollowSubmakes,
		MaxDepth: opts.MaxDepth,
		Logger:   opts.Logger,
	}

	start := time.Now()
	observability.Pipeline().OnSourceStart(ctx, opts.Makefile, opts.Source)
	walk, err := walker.Walk(ctx, opts.Makefile)
	records := 0
	if walk != nil {
		records = len(walk.Records)
	}
	observability.Pipeline().OnSourceComplete(ctx, opts.Makefile, records, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return walk, nil
}

// Build turns loaded rules into a graph and applies the configured
// transforms. The returned warnings are the cycle warnings; parse warnings
// stay on the walk result.
func (r *Runner) Build(walk *makefile.WalkResult, opts Options) (*dag.DAG, []errors.Warning, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}

	buildOpts := graph.BuildOptions{InstantiatePatterns: true, FileExists: opts.Exists}
	if len(walk.Inputs) > 0 {
		buildOpts.Dir = filepath.Dir(walk.Inputs[0].Path)
	}
	g, warnings := graph.BuildSlice(walk.Records, buildOpts)

	res, err := transform.Apply(g, opts.TransformOptions())
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "transform graph")
	}
	if res != (transform.Result{}) {
		r.Logger.Debug("transformed graph",
			"excluded", res.ExcludedNodes,
			"unfocused", res.UnfocusedNodes,
			"reduced_edges", res.TransitiveEdgesRemoved)
	}
	return g, warnings, nil
}

// TransformOptions returns the graph transform configuration.
func (o *Options) TransformOptions() transform.Options {
	return transform.Options{Exclude: o.Exclude, Focus: o.Focus, Reduce: o.Reduce}
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
