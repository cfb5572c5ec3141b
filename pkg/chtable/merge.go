// merge.go implements Table.Merge and Table.Swap.
//
// Merge walks `other` with erase-on-insert-success semantics: for each
// entry in other, try to insert into *this; if inserted, erase from other.
// Because that touches two shards at once, locks are acquired in
// ascending-address order to avoid deadlock, using each shard's Addr() as
// the ordering key (internal/shard/shard.go).
//
// © 2025 chtable authors. MIT License.
package chtable

import "github.com/shardwell/chashtable/internal/bucket"

// Merge moves every entry of other into t that doesn't already exist in t.
// Entries whose key collides with an existing key in t are left in other
// untouched.
func (t *Table[K, V]) Merge(other *Table[K, V]) {
	if t == other {
		return
	}
	for oi, os := range other.shards {
		// Collect keys to move first: walking os while concurrently erasing
		// from it under its own lock, one entry at a time, keeps each
		// individual critical section short and matches the "acquire in
		// ascending-address order" requirement, which only needs to hold
		// for the *pair* of locks taken to move one entry.
		var toMove []bucket.Entry[K, V]
		os.RLock()
		os.WalkLocked(func(e *bucket.Entry[K, V]) bool {
			toMove = append(toMove, *e)
			return true
		})
		os.RUnlock()

		for _, e := range toMove {
			hash := t.hasher.Hash(e.Key)
			ti := hash & t.shardMask
			ts := t.shards[ti]
			t.lockPairAscending(ts, os, func() {
				inserted, _ := ts.EmplaceLocked(hash, e.Key, e.Value)
				if inserted {
					otherHash := other.hasher.Hash(e.Key)
					os.EraseLocked(otherHash, e.Key)
				}
			})
			t.recordShardMetrics(int(ti), ts)
			other.recordShardMetrics(oi, os)
		}
	}
}

// lockPairAscending acquires a's and b's exclusive locks in ascending
// address order (or just a's, if a == b) and runs f, then releases in
// reverse order.
func (t *Table[K, V]) lockPairAscending(a, b addrLocker, f func()) {
	if a == b {
		a.Lock()
		defer a.Unlock()
		f()
		return
	}
	first, second := a, b
	if b.Addr() < a.Addr() {
		first, second = b, a
	}
	first.Lock()
	defer first.Unlock()
	second.Lock()
	defer second.Unlock()
	f()
}

// addrLocker is the subset of *shard.Shard[K,V] needed for ascending-address
// lock ordering, kept as an interface so lockPairAscending does not need to
// import internal/shard directly.
type addrLocker interface {
	Addr() uintptr
	Lock()
	Unlock()
}

// Swap exchanges t's and other's shard sets in O(1): no element-wise move.
// The hasher and key-equality functors move with the shards, since each
// shard's entries are placed by its own table's hasher. Both tables must
// share the same shard count; Swap panics otherwise, since swapping tables
// with differently-shaped shard arrays would silently corrupt both.
func (t *Table[K, V]) Swap(other *Table[K, V]) {
	if len(t.shards) != len(other.shards) {
		panic("chtable: Swap requires tables with the same shard count")
	}
	t.shards, other.shards = other.shards, t.shards
	t.hasher, other.hasher = other.hasher, t.hasher
	t.keyEq, other.keyEq = other.keyEq, t.keyEq
}
