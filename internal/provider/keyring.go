package provider

import "sync/atomic"

// KeyRing hands out proxy-held API keys round-robin. Safe for concurrent
// callers; keys are shared (pool read), not one-time exclusive.
type KeyRing struct {
	keys []string
	next atomic.Uint64
}

// NewKeyRing builds a ring over the configured keys, dropping empties.
func NewKeyRing(keys []string) *KeyRing {
	kept := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			kept = append(kept, k)
		}
	}
	return &KeyRing{keys: kept}
}

// Len returns the number of usable keys.
func (r *KeyRing) Len() int { return len(r.keys) }

// Next returns the next key in rotation, or ErrNoKeys when empty.
func (r *KeyRing) Next() (string, error) {
	if len(r.keys) == 0 {
		return "", ErrNoKeys
	}
	n := r.next.Add(1) - 1
	return r.keys[n%uint64(len(r.keys))], nil
}
