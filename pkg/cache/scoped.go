package cache

// ScopedKeyer wraps a Keyer with a prefix so several tools or projects can
// share one Redis database without colliding.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "makegraph:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// DumpKey generates a prefixed key for a make database dump.
func (k *ScopedKeyer) DumpKey(opts DumpKeyOpts) string {
	return k.prefix + k.inner.DumpKey(opts)
}
