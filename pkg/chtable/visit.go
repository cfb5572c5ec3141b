// visit.go implements the closure-under-lock protocols: Visit (mutable,
// exclusive lock) and CVisit (read-only, shared lock).
//
// © 2025 chtable authors. MIT License.
package chtable

import "github.com/shardwell/chashtable/internal/bucket"

// Entry mirrors internal/bucket.Entry at the public API boundary so callers
// never import an internal package. Closures receive a *Entry[K,V] that must
// not be retained beyond the closure call — the pointer is only valid while
// the relevant shard lock is held.
type Entry[K comparable, V any] = bucket.Entry[K, V]

// Visit calls f on the entry for key if present, under the shard's
// exclusive lock, so f may mutate the entry's Value in place. Returns true
// iff key was found.
func (t *Table[K, V]) Visit(key K, f func(*Entry[K, V])) bool {
	hash, _, s := t.shardFor(key)
	return s.Visit(hash, key, f) == 1
}

// CVisit calls f on the entry for key if present, under the shard's shared
// lock; f should treat the entry as read-only even though Go cannot enforce
// that at the type level. Returns true iff key was found.
func (t *Table[K, V]) CVisit(key K, f func(*Entry[K, V])) bool {
	hash, _, s := t.shardFor(key)
	return s.CVisit(hash, key, f) == 1
}

// Contains reports whether key is present.
func (t *Table[K, V]) Contains(key K) bool {
	return t.CVisit(key, func(*Entry[K, V]) {})
}

// Count returns 1 if key is present, 0 otherwise — this table enforces
// unique keys, so Count never exceeds 1. Kept distinct from Contains for
// parity with the canonical set/map operation naming.
func (t *Table[K, V]) Count(key K) int {
	if t.Contains(key) {
		return 1
	}
	return 0
}

// VisitAll applies f to every live entry exactly once, sequentially across
// shards under each shard's shared lock. f returning false stops the walk
// early.
func (t *Table[K, V]) VisitAll(f func(*Entry[K, V]) bool) {
	for _, s := range t.shards {
		if !s.Walk(f) {
			return
		}
	}
}

// CVisitAll is an alias of VisitAll: the concurrent core exposes no mutable
// vs. read-only distinction for the aggregate walk beyond what the closure
// itself does.
func (t *Table[K, V]) CVisitAll(f func(*Entry[K, V]) bool) {
	t.VisitAll(f)
}
