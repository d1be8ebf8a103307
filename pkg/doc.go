// Package pkg holds the libraries behind makegraph, which turns a Makefile
// into a deterministic dependency graph.
//
// # Architecture
//
// Data flows through the packages in one direction:
//
//	Makefile
//	    ↓
//	[makefile] rule blocks from make's database or a direct scan
//	    ↓
//	[graph] records merged into a deduplicated graph
//	    ↓
//	[dag/transform] exclude, focus, transitive reduction, cycle detection
//	    ↓
//	[render/nodelink] DOT, SVG, PNG or PDF ([graph] for JSON)
//
// [pipeline] runs these stages in order and is what the CLI calls. The
// supporting packages are:
//
//   - [cache]: stores make database dumps on disk or in Redis
//   - [config]: layered settings from defaults, file, environment and flags
//   - [errors]: coded errors and non-fatal warnings
//   - [observability]: hooks around pipeline stages and cache lookups
//   - [buildinfo]: version information set at link time
//
// # Quick Start
//
//	result, err := pipeline.NewRunner(logger).Execute(ctx, pipeline.Options{
//	    Makefile: "Makefile",
//	    Format:   pipeline.FormatSVG,
//	    Reduce:   true,
//	})
//	if err != nil {
//	    return err
//	}
//	os.Stdout.Write(result.Output)
//
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/buildinfo
//
// [makefile]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/makefile
// [graph]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/graph
// [dag/transform]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/dag/transform
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/makegraph/pkg/render/nodelink
package pkg
