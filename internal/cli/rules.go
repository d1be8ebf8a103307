package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/makegraph/pkg/config"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/makefile"
	"github.com/matzehuels/makegraph/pkg/pipeline"
)

// rulesCommand creates the rules command, which prints parsed records
// without building a graph.
func (c *CLI) rulesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rules [makefile]",
		Short: "Print the rules makegraph reads from a Makefile",
		Long: `Print one line per parsed rule record: where it was defined, its target and
prerequisites. Useful to see why an edge does or does not appear in the graph.`,
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
			return c.runRules(cmd.Context(), path, cfg, asJSON)
		},
	}

	addSourceFlags(cmd.Flags(), config.Defaults())
	cmd.Flags().Bool("no-cache", false, "do not cache make's database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")

	return cmd
}

func (c *CLI) runRules(ctx context.Context, path string, cfg *config.Config, asJSON bool) error {
	logger := loggerFromContext(ctx)

	opts, closer := pipelineOptions(ctx, cfg, path, false)
	defer closer.Close()

	walk, err := pipeline.NewRunner(logger).Load(ctx, opts)
	if err != nil {
		return err
	}

	if asJSON {
		if err := writeRecordsJSON(c.Stdout, walk.Records); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(c.Stdout, recordTable(walk.Records))
	}

	printWarnings(c.Stderr, walk.Warnings)
	for _, in := range walk.Inputs {
		printDetail(c.Stderr, "%s read via %s", in.Path, in.Mode)
	}
	return nil
}

func writeRecordsJSON(w io.Writer, records []makefile.Record) error {
	if records == nil {
		records = []makefile.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return errors.Wrap(errors.ErrCodeRender, err, "write records")
	}
	return nil
}

// recordTable renders records in file order.
func recordTable(records []makefile.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Origin,
			r.Target,
			strings.Join(r.Prerequisites, " "),
			recordFlags(r),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cellStyle := lipgloss.NewStyle().PaddingRight(1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Origin", "Target", "Prerequisites", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 || col == 3 {
				return cellStyle.Foreground(colorGray)
			}
			return cellStyle
		})
	return t.String()
}

// recordFlags summarizes the boolean record fields.
func recordFlags(r makefile.Record) string {
	var flags []string
	if r.Phony {
		flags = append(flags, "phony")
	}
	if r.Pattern {
		flags = append(flags, "pattern")
	}
	if r.DoubleColon {
		flags = append(flags, "::")
	}
	if r.HasRecipe {
		flags = append(flags, "recipe")
	}
	if r.Submake {
		flags = append(flags, "submake")
	}
	return strings.Join(flags, ",")
}
