package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/makegraph/pkg/buildinfo"
	"github.com/matzehuels/makegraph/pkg/cache"
	"github.com/matzehuels/makegraph/pkg/config"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/makefile"
	"github.com/matzehuels/makegraph/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "makegraph"

	// redisKeyPrefix namespaces makegraph entries in a shared Redis.
	redisKeyPrefix = appName + ":"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Stdout io.Writer // graph output
	Stderr io.Writer // status lines

	configPath string
	verbose    bool
}

// New creates a new CLI instance. Logs and status lines go to stderr.
func New(stdout, stderr io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(stderr, level),
		Stdout: stdout,
		Stderr: stderr,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Makegraph draws the dependency graph of a Makefile",
		Long: `Makegraph reads a Makefile, asks make for its rule database (or scans the
file directly when make is unavailable) and prints the target dependency
graph as Graphviz DOT, JSON, SVG, PNG or PDF.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := LogInfo
			if c.verbose {
				level = LogDebug
			}
			c.SetLogLevel(level)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.Stdout)
	root.SetErr(c.Stderr)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+config.FileName+")")

	// Register all subcommands
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.rulesCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig merges the config layers, letting flags changed on cmd win.
func (c *CLI) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.Options{Path: c.configPath, Flags: cmd.Flags()})
}

// =============================================================================
// Runner Factory
// =============================================================================

// openCache returns the dump cache selected by cfg. A Redis server that
// cannot be reached is logged and replaced by no cache at all.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, cache.Keyer) {
	logger := loggerFromContext(ctx)
	if !cfg.Cache {
		return cache.NewNullCache(), nil
	}

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis cache unavailable, caching disabled", "error", err)
			return cache.NewNullCache(), nil
		}
		return rc, cache.NewScopedKeyer(cache.NewDefaultKeyer(), redisKeyPrefix)
	}

	dir, err := cacheDir(cfg)
	if err != nil {
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		logger.Warn("cache directory unusable, caching disabled", "path", dir, "error", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// pipelineOptions builds the options for one run over path. The returned
// closer releases the cache.
func pipelineOptions(ctx context.Context, cfg *config.Config, path string, refresh bool) (pipeline.Options, io.Closer) {
	store, keyer := openCache(ctx, cfg)
	opts := cfg.PipelineOptions(path)
	opts.Logger = loggerFromContext(ctx)
	opts.Runner = &cache.Runner{
		Inner:   makefile.NewExecRunner(),
		Cache:   store,
		Keyer:   keyer,
		TTL:     cfg.CacheTTL,
		Refresh: refresh,
		Logger:  opts.Logger,
	}
	return opts, store
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, or the XDG default
// (~/.cache/makegraph/).
func cacheDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.CacheDir != "" {
		return cfg.CacheDir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	return cache.DefaultDir()
}

// resolveMakefile turns the optional positional argument into a Makefile
// path. A directory stands for the Makefile inside it.
func resolveMakefile(args []string) (string, error) {
	if len(args) == 0 {
		return pipeline.DefaultMakefile, nil
	}
	path := args[0]
	if err := errors.ValidateMakefilePath(path); err != nil {
		return "", err
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, pipeline.DefaultMakefile), nil
	}
	return path, nil
}
