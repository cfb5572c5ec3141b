// visitby.go implements heterogeneous lookup: finding an entry by a value of
// a different type Q without constructing a K. Go forbids adding a new type
// parameter to a method of an already-generic type, so this cannot be
// expressed as a Table[K,V] method parameterised over Q; it is instead a
// free function taking the hash/equality functions for Q explicitly. The
// core does not attempt to verify that hashQ/eqQK are consistent with the
// table's own Hasher/KeyEqual — that consistency is a capability the caller
// asserts.
//
// © 2025 chtable authors. MIT License.
package chtable

// VisitBy looks up an entry by a value q of a different type Q, using
// caller-supplied hashQ/eqQK functions that must agree with the table's own
// Hasher[K]/KeyEqual[K] on any K that could compare equal to q. f is called
// under the owning shard's shared lock if a match is found. Returns true iff
// a match was found.
//
// Since Q is fully generic, matching cannot go through the table's own
// Find(tag, key, ...) (which needs a real K and the table's own KeyEqual);
// VisitBy instead pays for a full shard walk via eqQK, rather than the O(1)
// group probe a same-type Visit gets.
func VisitBy[K comparable, V any, Q any](t *Table[K, V], q Q, hashQ func(Q) uint64, eqQK func(Q, K) bool, f func(*Entry[K, V])) bool {
	hash := hashQ(q)
	s := t.shards[hash&t.shardMask]
	found := false
	s.Walk(func(e *Entry[K, V]) bool {
		if eqQK(q, e.Key) {
			f(e)
			found = true
			return false
		}
		return true
	})
	return found
}
