// Package config loads makegraph settings from defaults, a makegraph.toml
// file, MAKEGRAPH_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	koanftoml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/matzehuels/makegraph/pkg/cache"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/makefile"
	"github.com/matzehuels/makegraph/pkg/pipeline"
	"github.com/matzehuels/makegraph/pkg/render/nodelink"
)

// FileName is the config file looked up in the working directory.
const FileName = "makegraph.toml"

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MAKEGRAPH_"

// Config holds every persistent setting. Keys match the TOML file, the
// lower-cased environment variable suffix and the flag name with dashes
// replaced by underscores.
type Config struct {
	Make           string        `koanf:"make"`
	Source         string        `koanf:"source"`
	Fallback       bool          `koanf:"fallback"`
	Timeout        time.Duration `koanf:"timeout"`
	Format         string        `koanf:"format"`
	RankDir        string        `koanf:"rankdir"`
	Detailed       bool          `koanf:"detailed"`
	FollowSubmakes bool          `koanf:"follow_submakes"`
	MaxDepth       int           `koanf:"max_depth"`
	Reduce         bool          `koanf:"reduce"`
	Exclude        []string      `koanf:"exclude"`
	Focus          string        `koanf:"focus"`
	Cache          bool          `koanf:"cache"`
	CacheDir       string        `koanf:"cache_dir"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	RedisURL       string        `koanf:"redis_url"`
	StrictCycles   bool          `koanf:"strict_cycles"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Make:     makefile.DefaultMake,
		Source:   makefile.SourceAuto,
		Fallback: true,
		Format:   pipeline.DefaultFormat,
		RankDir:  nodelink.DefaultRankDir,
		MaxDepth: makefile.DefaultMaxDepth,
		Cache:    true,
		CacheTTL: cache.DefaultTTL,
	}
}

func (c Config) asMap() map[string]any {
	return map[string]any{
		"make":            c.Make,
		"source":          c.Source,
		"fallback":        c.Fallback,
		"timeout":         c.Timeout,
		"format":          c.Format,
		"rankdir":         c.RankDir,
		"detailed":        c.Detailed,
		"follow_submakes": c.FollowSubmakes,
		"max_depth":       c.MaxDepth,
		"reduce":          c.Reduce,
		"exclude":         c.Exclude,
		"focus":           c.Focus,
		"cache":           c.Cache,
		"cache_dir":       c.CacheDir,
		"cache_ttl":       c.CacheTTL,
		"redis_url":       c.RedisURL,
		"strict_cycles":   c.StrictCycles,
	}
}

// negated maps flags that switch a setting off to the key they control.
var negated = map[string]string{
	"no-fallback": "fallback",
	"no-cache":    "cache",
}

// Options controls where Load looks for settings.
type Options struct {
	// Path is an explicit config file. It must exist when set; otherwise
	// FileName in the working directory is read if present.
	Path string

	// Flags are applied last. Only flags the user changed override
	// earlier layers.
	Flags *pflag.FlagSet

	// Environ replaces os.Environ, for tests.
	Environ func() []string
}

// Load merges defaults, the config file, the environment and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(mapProvider(Defaults().asMap()), nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load defaults")
	}

	// 2. Config file
	path, err := configPath(opts.Path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), koanftoml.Parser()); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
		}
	}

	// 3. Environment, e.g. MAKEGRAPH_REDIS_URL=redis://localhost:6379
	if err := k.Load(envProvider(opts.Environ), nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read environment")
	}

	// 4. Flags
	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagValue(opts.Flags)), nil); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", explicit)
		}
		return explicit, nil
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}
	return "", nil
}

func envProvider(environ func() []string) koanf.Provider {
	cb := func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "exclude" {
			return key, splitList(value)
		}
		return key, value
	}
	if environ == nil {
		return env.ProviderWithValue(EnvPrefix, ".", cb)
	}
	return &environProvider{environ: environ, cb: cb}
}

// flagValue renames flags to config keys. Flags without a config key
// (output path, watch mode and the like) are skipped.
func flagValue(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if key, ok := negated[f.Name]; ok {
			on, _ := posflag.FlagVal(fs, f).(bool)
			return key, !on
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, ok := Defaults().asMap()[key]; !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the values that the pipeline would otherwise reject later,
// so a bad config file is reported with its key name.
func (c *Config) Validate() error {
	if err := pipeline.ValidateSource(c.Source); err != nil {
		return err
	}
	if err := pipeline.ValidateFormat(c.Format); err != nil {
		return err
	}
	if err := pipeline.ValidateRankDir(c.RankDir); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout must not be negative")
	}
	if c.CacheTTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache_ttl must not be negative")
	}
	if c.MaxDepth < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "max_depth must not be negative")
	}
	return nil
}

// PipelineOptions returns the pipeline configuration for the Makefile at path.
func (c *Config) PipelineOptions(path string) pipeline.Options {
	return pipeline.Options{
		Makefile:       path,
		Source:         c.Source,
		Make:           c.Make,
		Fallback:       c.Fallback,
		Timeout:        c.Timeout,
		FollowSubmakes: c.FollowSubmakes,
		MaxDepth:       c.MaxDepth,
		Exclude:        c.Exclude,
		Focus:          c.Focus,
		Reduce:         c.Reduce,
		Format:         c.Format,
		RankDir:        c.RankDir,
		Detailed:       c.Detailed,
	}
}

// =============================================================================
// TOML output
// =============================================================================

// fileView is the on-disk shape of Config. Durations are written as Go
// duration strings ("30s") which Load reads back.
type fileView struct {
	Make           string   `toml:"make"`
	Source         string   `toml:"source"`
	Fallback       bool     `toml:"fallback"`
	Timeout        string   `toml:"timeout"`
	Format         string   `toml:"format"`
	RankDir        string   `toml:"rankdir"`
	Detailed       bool     `toml:"detailed"`
	FollowSubmakes bool     `toml:"follow_submakes"`
	MaxDepth       int      `toml:"max_depth"`
	Reduce         bool     `toml:"reduce"`
	Exclude        []string `toml:"exclude"`
	Focus          string   `toml:"focus"`
	Cache          bool     `toml:"cache"`
	CacheDir       string   `toml:"cache_dir"`
	CacheTTL       string   `toml:"cache_ttl"`
	RedisURL       string   `toml:"redis_url"`
	StrictCycles   bool     `toml:"strict_cycles"`
}

// WriteTOML encodes c in the config file format.
func (c *Config) WriteTOML(w io.Writer) error {
	exclude := c.Exclude
	if exclude == nil {
		exclude = []string{}
	}
	view := fileView{
		Make:           c.Make,
		Source:         c.Source,
		Fallback:       c.Fallback,
		Timeout:        c.Timeout.String(),
		Format:         c.Format,
		RankDir:        c.RankDir,
		Detailed:       c.Detailed,
		FollowSubmakes: c.FollowSubmakes,
		MaxDepth:       c.MaxDepth,
		Reduce:         c.Reduce,
		Exclude:        exclude,
		Focus:          c.Focus,
		Cache:          c.Cache,
		CacheDir:       c.CacheDir,
		CacheTTL:       c.CacheTTL.String(),
		RedisURL:       c.RedisURL,
		StrictCycles:   c.StrictCycles,
	}
	if err := toml.NewEncoder(w).Encode(view); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// WriteDefault creates a config file holding the defaults at path. An
// existing file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if os.IsExist(err) {
		return errors.New(errors.ErrCodeInvalidPath, "%s already exists (use --force to overwrite)", path)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	defaults := Defaults()
	if err := defaults.WriteTOML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// =============================================================================
// Providers
// =============================================================================

// mapProvider serves a fixed map to koanf.
type mapProvider map[string]any

func (p mapProvider) Read() (map[string]any, error) { return p, nil }

func (p mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

// environProvider is env.ProviderWithValue over an injected environment.
type environProvider struct {
	environ func() []string
	cb      func(key, value string) (string, any)
}

func (p *environProvider) Read() (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range p.environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if k, v := p.cb(key, value); k != "" {
			out[k] = v
		}
	}
	return out, nil
}

func (p *environProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
