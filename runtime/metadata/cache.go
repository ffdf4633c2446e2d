package metadata

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// instantiationCache uniques metadata for one descriptor. Entries map an
// argument-vector key to the canonical metadata pointer. The map grows
// monotonically; entries are never removed or overwritten once published.
type instantiationCache struct {
	entries sync.Map // argument key (string) -> *Metadata

	// canonical counts published entries; it lags entries during a race
	// window but only ever grows.
	canonical atomic.Int64
}

// cacheFor returns the uniquing cache for a descriptor, creating it on
// first use.
func (r *Runtime) cacheFor(desc *TypeDescriptor) *instantiationCache {
	if c, ok := r.caches.Load(desc); ok {
		return c.(*instantiationCache)
	}
	c, _ := r.caches.LoadOrStore(desc, &instantiationCache{})
	return c.(*instantiationCache)
}

// argKey builds the uniquing key for an argument vector. Every distinct
// argument value is interned to a process-unique id, and the key is the
// packed id sequence, so equal vectors collide exactly and unequal vectors
// never do. The empty vector keys to the empty string, which is how
// non-generic types share the machinery.
func (r *Runtime) argKey(args []GenericArg) string {
	if len(args) == 0 {
		return ""
	}
	buf := make([]byte, 0, len(args)*8)
	for _, a := range args {
		buf = binary.LittleEndian.AppendUint64(buf, r.argID(a))
	}
	return string(buf)
}

// argID interns one argument value. Racing callers may burn an id, but the
// stored mapping is decided by a single LoadOrStore, so every caller
// observes the same id for the same value.
func (r *Runtime) argID(a GenericArg) uint64 {
	if id, ok := r.argIDs.Load(a); ok {
		return id.(uint64)
	}
	id := r.nextArgID.Add(1)
	actual, _ := r.argIDs.LoadOrStore(a, id)
	return actual.(uint64)
}

// RequestMetadata returns the canonical metadata for (desc, args), driven
// to at least the requested state if possible. On a cache miss the argument
// vector is instantiated privately and then installed; if a concurrent
// request installed an entry for the same key first, the local object is
// discarded unpublished and the winner is adopted. There is no retry loop:
// one LoadOrStore resolves the race.
func (r *Runtime) RequestMetadata(req State, desc *TypeDescriptor, args []GenericArg) Response {
	cache := r.cacheFor(desc)
	key := r.argKey(args)

	if v, ok := cache.entries.Load(key); ok {
		return r.CheckMetadataState(req, v.(*Metadata))
	}

	md := r.instantiate(desc, args)

	if v, raced := cache.entries.LoadOrStore(key, md); raced {
		// The loser was never published; dropping it here leaks
		// nothing an observer can reach.
		md = v.(*Metadata)
	} else {
		cache.canonical.Add(1)
	}

	return r.CheckMetadataState(req, md)
}
