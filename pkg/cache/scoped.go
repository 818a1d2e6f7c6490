package cache

// ScopedKeyer wraps a Keyer with a prefix for per-project isolation.
// This is useful when several projects share one Redis instance and must not
// read each other's entries even when file contents coincide.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "project:"+Hash([]byte(root))[:12]+":")
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

// ScanKey generates a prefixed key for scanned import lists.
func (k *ScopedKeyer) ScanKey(contentHash, loader string) string {
	return k.prefix + k.inner.ScanKey(contentHash, loader)
}

// TransformKey generates a prefixed key for transform outputs.
func (k *ScopedKeyer) TransformKey(contentHash string, opts TransformKeyOpts) string {
	return k.prefix + k.inner.TransformKey(contentHash, opts)
}
