package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments can share
// one backend without seeing each other's entries.
//
// Example usage:
//
//	// Entries of the staging server
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "staging:")
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

// SolutionKey generates a prefixed solution key.
func (k *ScopedKeyer) SolutionKey(fingerprint string) string {
	return k.prefix + k.inner.SolutionKey(fingerprint)
}

// LayoutKey generates a prefixed layout key.
func (k *ScopedKeyer) LayoutKey(inputHash string, opts any) string {
	return k.prefix + k.inner.LayoutKey(inputHash, opts)
}
