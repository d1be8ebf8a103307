package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/makegraph/pkg/config"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/pipeline"
)

// graphOpts holds the graph flags that are not persistent settings.
type graphOpts struct {
	output  string // output file path (stdout if empty)
	refresh bool   // rerun make even when a cached dump exists
	watch   bool   // regenerate whenever a Makefile changes
}

// graphCommand creates the graph command, the main entry point.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph [makefile]",
		Short: "Print the dependency graph of a Makefile",
		Long: `Print the dependency graph of a Makefile.

The Makefile defaults to ./Makefile; a directory argument means the Makefile
inside it. Edges point from a prerequisite to the target that needs it.

Rules come from make's own database (make --print-data-base), so variables,
includes and pattern rules are resolved exactly as make resolves them. When
make is not installed the Makefile is scanned directly instead. The scan
expands plain variable references and common functions, follows includes and
instantiates pattern rules against files on disk, but it does not evaluate
conditionals and may miss or invent rules make would see differently. Use
--source database to refuse the fallback, or --no-fallback.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			path, err := resolveMakefile(args)
			if err != nil {
				return err
			}
			if opts.watch {
				return c.watchGraph(cmd.Context(), path, cfg, &opts)
			}
			return c.runGraph(cmd.Context(), path, cfg, &opts)
		},
	}

	d := config.Defaults()
	addSourceFlags(cmd.Flags(), d)
	cmd.Flags().StringP("format", "f", d.Format, "output format: dot, json, svg, png, pdf")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().String("rankdir", d.RankDir, "graph direction: LR, TB, RL, BT")
	cmd.Flags().Bool("detailed", d.Detailed, "show origin and recipe details in node labels")
	cmd.Flags().Bool("reduce", d.Reduce, "remove edges implied by other paths (transitive reduction)")
	cmd.Flags().StringSlice("exclude", d.Exclude, "drop targets matching these glob patterns")
	cmd.Flags().String("focus", d.Focus, "keep only this target and what it depends on")
	cmd.Flags().Bool("no-cache", !d.Cache, "do not cache make's database")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "rerun make even if a cached database exists")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "regenerate when a Makefile changes")
	cmd.Flags().Bool("strict-cycles", d.StrictCycles, "exit non-zero when the graph has a dependency cycle")

	return cmd
}

// addSourceFlags registers the flags shared by every command that reads a
// Makefile. Values are read back through the config layers.
func addSourceFlags(fs *pflag.FlagSet, d config.Config) {
	fs.String("source", d.Source, "rule source: auto, database, scan")
	fs.String("make", d.Make, "make binary used for the database")
	fs.Bool("no-fallback", !d.Fallback, "fail instead of scanning when make is unavailable")
	fs.Duration("timeout", d.Timeout, "give up on make after this long (0 waits forever)")
	fs.Bool("follow-submakes", d.FollowSubmakes, "also graph Makefiles run by recursive make")
	fs.Int("max-depth", d.MaxDepth, "maximum recursive make depth")
}

// runGraph runs the pipeline once and writes its output.
func (c *CLI) runGraph(ctx context.Context, path string, cfg *config.Config, opts *graphOpts) error {
	result, err := c.generate(ctx, path, cfg, opts)
	if err != nil {
		return err
	}
	return c.checkCycles(cfg, result)
}

// generate runs the pipeline and writes the rendered document in one call.
// Nothing is written when the pipeline fails.
func (c *CLI) generate(ctx context.Context, path string, cfg *config.Config, opts *graphOpts) (*pipeline.Result, error) {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	popts, closer := pipelineOptions(ctx, cfg, path, opts.refresh)
	defer closer.Close()

	result, err := pipeline.NewRunner(logger).Execute(ctx, popts)
	if err != nil {
		return nil, err
	}
	if err := writeOutput(c.Stdout, opts.output, result.Output); err != nil {
		return nil, err
	}

	prog.done(fmt.Sprintf("Graphed %s", path))
	printStats(c.Stderr, result.Stats)
	if opts.output != "" {
		printFile(c.Stderr, opts.output)
	}
	return result, nil
}

// checkCycles fails a strict run after its output has been written.
func (c *CLI) checkCycles(cfg *config.Config, result *pipeline.Result) error {
	if cfg.StrictCycles && result.HasCycles() {
		return errors.New(errors.ErrCodeInvalidInput,
			"graph has %s (--strict-cycles)", plural(result.Stats.CycleWarnings, "dependency cycle"))
	}
	return nil
}

// writeOutput writes data to path, or to stdout when path is empty. Files
// are replaced atomically so a reader never sees half a graph.
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		if _, err := stdout.Write(data); err != nil {
			return errors.Wrap(errors.ErrCodeRender, err, "write output")
		}
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeRender, err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeRender, err, "write %s", path)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}
