// erase.go implements Erase/EraseIf.
//
// © 2025 chtable authors. MIT License.
package chtable

// Erase removes key iff present and pred(entry) returns true (pred may be
// nil to mean "always erase"), returning true iff an entry was removed.
func (t *Table[K, V]) Erase(key K, pred func(*Entry[K, V]) bool) bool {
	hash, idx, s := t.shardFor(key)
	erased := s.Erase(hash, key, pred) == 1
	t.recordShardMetrics(idx, s)
	return erased
}

// Delete is a convenience alias of Erase with no predicate.
func (t *Table[K, V]) Delete(key K) bool {
	return t.Erase(key, nil)
}

// EraseIf walks every entry in every shard and erases those for which f
// returns true, returning the total count erased.
func (t *Table[K, V]) EraseIf(f func(*Entry[K, V]) bool) int {
	total := 0
	for i, s := range t.shards {
		total += s.EraseIf(f)
		t.recordShardMetrics(i, s)
	}
	return total
}
