// Package cache stores make database dumps between runs.
//
// Running make in database mode is the slow part of makegraph on large
// build trees. The [Runner] wraps a [makefile.CommandRunner] and keeps its
// output in a [Cache], keyed by the make binary, its arguments, the
// environment and a hash of the Makefiles in the working directory. Each
// entry also records the content hash of every file in the dump's
// MAKEFILE_LIST, so editing an included file anywhere invalidates it.
//
// Backends:
//   - [FileCache]: one JSON file per entry under the user cache directory
//   - [RedisCache]: shared entries for CI runners and teams
//   - [NullCache]: disables caching (--no-cache)
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the entry for key. A missing or expired entry is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// DumpKey identifies one make database dump.
	DumpKey(opts DumpKeyOpts) string
}

// DumpKeyOpts are the inputs that determine a database dump.
type DumpKeyOpts struct {
	Make        string   // Binary name as configured
	Args        []string // Full argument list, including -f
	Dir         string   // Working directory make ran in
	Fingerprint string   // Hash over the Makefiles make may read
	Env         string   // Hash over the environment make inherits
}

// DefaultKeyer produces "dump:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// DumpKey hashes every field of opts.
func (DefaultKeyer) DumpKey(opts DumpKeyOpts) string {
	return hashKey("dump", opts.Make, opts.Args, opts.Dir, opts.Fingerprint, opts.Env)
}
