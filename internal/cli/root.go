package cli

import (
	"context"
	"io"

	"github.com/matzehuels/makegraph/pkg/errors"
)

// Execute runs the makegraph CLI with args and returns an error if the
// command fails. Graph output goes to stdout; logs and status lines go to
// stderr.
//
// Logging:
//   - Default: info level
//   - With --verbose (-v): debug level
//
// The logger is attached to the context and accessible to all commands via
// loggerFromContext.
//
// Example:
//
//	func main() {
//	    if err := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
//	        cli.ReportError(os.Stderr, err)
//	        os.Exit(1)
//	    }
//	}
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := New(stdout, stderr, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// ReportError prints err as a single status line. Structured errors show
// their message without the code prefix.
func ReportError(w io.Writer, err error) {
	printError(w, "%s", errors.UserMessage(err))
}
