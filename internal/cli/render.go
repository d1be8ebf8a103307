package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/makegraph/pkg/config"
	"github.com/matzehuels/makegraph/pkg/dag/transform"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/graph"
	"github.com/matzehuels/makegraph/pkg/pipeline"
)

// renderCommand creates the render command, which re-renders a graph saved
// with --format json without running make again.
func (c *CLI) renderCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "render <graph.json>",
		Short: "Render a graph saved with --format json",
		Long: `Render a graph saved with "makegraph graph --format json".

The exclude, focus and reduce transforms can be applied again, so one saved
graph can be drawn several ways without rerunning make.`,
		Example: `  makegraph graph --format json -o graph.json
  makegraph render graph.json --format svg -o graph.svg
  makegraph render graph.json --focus install --reduce`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], cfg, output)
		},
	}

	d := config.Defaults()
	cmd.Flags().StringP("format", "f", d.Format, "output format: dot, json, svg, png, pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().String("rankdir", d.RankDir, "graph direction: LR, TB, RL, BT")
	cmd.Flags().Bool("detailed", d.Detailed, "show origin and recipe details in node labels")
	cmd.Flags().Bool("reduce", d.Reduce, "remove edges implied by other paths (transitive reduction)")
	cmd.Flags().StringSlice("exclude", d.Exclude, "drop targets matching these glob patterns")
	cmd.Flags().String("focus", d.Focus, "keep only this target and what it depends on")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, input string, cfg *config.Config, output string) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	if err := errors.ValidateMakefilePath(input); err != nil {
		return err
	}
	g, err := graph.ReadGraphFile(input)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "load graph %s", input)
	}

	opts := cfg.PipelineOptions(input)
	opts.Logger = logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	res, err := transform.Apply(g, opts.TransformOptions())
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "transform graph")
	}
	logger.Debug("transformed graph",
		"excluded", res.ExcludedNodes,
		"unfocused", res.UnfocusedNodes,
		"reduced_edges", res.TransitiveEdgesRemoved)

	if cycles := transform.FindCycles(g); len(cycles) > 0 {
		printWarning(c.Stderr, "graph has %s", plural(len(cycles), "dependency cycle"))
	}

	data, err := pipeline.Render(ctx, g, opts)
	if err != nil {
		return err
	}
	if err := writeOutput(c.Stdout, output, data); err != nil {
		return err
	}

	prog.done(fmt.Sprintf("Rendered %s", input))
	printDetail(c.Stderr, "%s, %s", plural(g.NodeCount(), "node"), plural(g.EdgeCount(), "edge"))
	if output != "" {
		printFile(c.Stderr, output)
	}
	return nil
}
