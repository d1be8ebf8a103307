package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/makegraph/pkg/makefile"
	"github.com/matzehuels/makegraph/pkg/observability"
)

// keyType labels dump entries in cache hooks.
const keyType = "dump"

// DefaultTTL is how long a dump stays cached when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Runner is a [makefile.CommandRunner] that serves repeated make database
// dumps from a Cache. Successful runs and runs exiting with status 1
// (make --question for an out-of-date goal) are stored; anything else is
// passed through uncached.
type Runner struct {
	Inner   makefile.CommandRunner
	Cache   Cache
	Keyer   Keyer         // NewDefaultKeyer when nil
	TTL     time.Duration // DefaultTTL when zero
	Refresh bool          // skip lookups but still store results
	Logger  *log.Logger

	// Environ returns the environment make inherits; os.Environ when nil.
	Environ func() []string
}

var _ makefile.CommandRunner = (*Runner)(nil)

type runEntry struct {
	Stdout   []byte `json:"stdout"`
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr,omitempty"`

	// Files maps every Makefile the dump was read from to its content hash.
	Files map[string]string `json:"files,omitempty"`
}

// Run returns the cached output for the invocation or runs Inner and stores
// the result. Cache failures are logged and never fail the run.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	key, err := r.key(dir, name, args)
	if err != nil {
		r.logger().Debug("cache key unavailable", "error", err)
		return r.Inner.Run(ctx, dir, name, args...)
	}

	if !r.Refresh {
		if entry, ok := r.lookup(ctx, key); ok {
			return entry.result(name)
		}
	}

	out, runErr := r.Inner.Run(ctx, dir, name, args...)
	if entry, ok := cacheable(out, runErr); ok {
		entry.Files = FileHashes(makefile.DumpMakefiles(out, dir))
		r.store(ctx, key, entry)
	}
	return out, runErr
}

func (r *Runner) lookup(ctx context.Context, key string) (runEntry, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.logger().Warn("cache read failed", "error", err)
		return runEntry{}, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		r.logger().Debug("cache miss", "key", shortKey(key))
		return runEntry{}, false
	}

	var entry runEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = r.Cache.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, keyType)
		return runEntry{}, false
	}
	if file, changed := entry.changed(); changed {
		_ = r.Cache.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, keyType)
		r.logger().Debug("cache stale", "key", shortKey(key), "changed", file)
		return runEntry{}, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	r.logger().Debug("cache hit", "key", shortKey(key))
	return entry, true
}

// changed returns the first recorded Makefile whose content differs from
// when the entry was stored.
func (e runEntry) changed() (string, bool) {
	files := make([]string, 0, len(e.Files))
	for f := range e.Files {
		files = append(files, f)
	}
	slices.Sort(files)

	current := FileHashes(files)
	for _, f := range files {
		if current[f] != e.Files[f] {
			return f, true
		}
	}
	return "", false
}

// result replays the stored run, including its exit status.
func (e runEntry) result(name string) ([]byte, error) {
	if e.ExitCode != 0 {
		return e.Stdout, &makefile.ExitError{Command: name, Code: e.ExitCode, Stderr: e.Stderr}
	}
	return e.Stdout, nil
}

func (r *Runner) store(ctx context.Context, key string, entry runEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	ttl := r.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.logger().Warn("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

func cacheable(out []byte, err error) (runEntry, bool) {
	if err == nil {
		return runEntry{Stdout: out}, true
	}
	var exitErr *makefile.ExitError
	if errors.As(err, &exitErr) && exitErr.Code == 1 {
		return runEntry{Stdout: out, ExitCode: exitErr.Code, Stderr: exitErr.Stderr}, true
	}
	return runEntry{}, false
}

func (r *Runner) key(dir, name string, args []string) (string, error) {
	var extra []string
	for i, a := range args {
		if a == "-f" && i+1 < len(args) {
			f := args[i+1]
			if !filepath.IsAbs(f) {
				f = filepath.Join(dir, f)
			}
			extra = append(extra, f)
		}
	}
	fp, err := Fingerprint(dir, extra...)
	if err != nil {
		return "", err
	}

	keyer := r.Keyer
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	environ := r.Environ
	if environ == nil {
		environ = os.Environ
	}
	return keyer.DumpKey(DumpKeyOpts{
		Make:        name,
		Args:        args,
		Dir:         dir,
		Fingerprint: fp,
		Env:         EnvHash(environ()),
	}), nil
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

func shortKey(key string) string {
	if len(key) > 16 {
		return key[:16]
	}
	return key
}
