// emplace.go implements the insert/emplace family of operations, dispatching
// to internal/shard.Emplace with the appropriate Policy
// (internal/shard/emplace.go). Since Go values are always fully constructed
// before being passed in, every variant here takes a ready-made V rather
// than constructor arguments.
//
// © 2025 chtable authors. MIT License.
package chtable

import "github.com/shardwell/chashtable/internal/shard"

// Emplace inserts (key, value) if key is absent; if present, the existing
// entry is left untouched. Returns true iff a new entry was inserted.
func (t *Table[K, V]) Emplace(key K, value V) (bool, error) {
	hash, idx, s := t.shardFor(key)
	inserted, err := s.Emplace(hash, key, value, shard.PolicyTryInsert, nil)
	t.recordShardMetrics(idx, s)
	return inserted, wrapAllocErr(err)
}

// TryEmplace is an alias of Emplace: construct only if absent.
func (t *Table[K, V]) TryEmplace(key K, value V) (bool, error) {
	return t.Emplace(key, value)
}

// Insert is an alias of Emplace under the STL-flavoured name.
func (t *Table[K, V]) Insert(key K, value V) (bool, error) {
	return t.Emplace(key, value)
}

// InsertOrAssign inserts (key, value) if absent, otherwise overwrites the
// existing entry's value. Returns true iff a new entry was inserted.
func (t *Table[K, V]) InsertOrAssign(key K, value V) (bool, error) {
	hash, idx, s := t.shardFor(key)
	inserted, err := s.Emplace(hash, key, value, shard.PolicyAssign, nil)
	t.recordShardMetrics(idx, s)
	return inserted, wrapAllocErr(err)
}

// EmplaceOrVisit inserts (key, value) if absent, otherwise calls f on the
// existing entry under the same exclusive lock so f may mutate it in place.
// Returns true iff a new entry was inserted.
func (t *Table[K, V]) EmplaceOrVisit(key K, value V, f func(*Entry[K, V])) (bool, error) {
	hash, idx, s := t.shardFor(key)
	inserted, err := s.Emplace(hash, key, value, shard.PolicyVisitExisting, f)
	t.recordShardMetrics(idx, s)
	return inserted, wrapAllocErr(err)
}

// EmplaceOrCVisit behaves like EmplaceOrVisit; Go has no const-reference
// type to statically forbid f from mutating the entry, so the distinction
// from EmplaceOrVisit is purely a documentation / calling-convention
// signal — both still run under the shard's exclusive lock because
// inserting may be required.
func (t *Table[K, V]) EmplaceOrCVisit(key K, value V, f func(*Entry[K, V])) (bool, error) {
	return t.EmplaceOrVisit(key, value, f)
}

// TryEmplaceOrVisit constructs only if key is absent; if present, the
// existing entry is visited by f but the supplied value is discarded.
func (t *Table[K, V]) TryEmplaceOrVisit(key K, value V, f func(*Entry[K, V])) (bool, error) {
	return t.EmplaceOrVisit(key, value, f)
}

// TryEmplaceOrCVisit is the read-only-closure counterpart of
// TryEmplaceOrVisit.
func (t *Table[K, V]) TryEmplaceOrCVisit(key K, value V, f func(*Entry[K, V])) (bool, error) {
	return t.EmplaceOrVisit(key, value, f)
}

// InsertOrVisit is an alias of EmplaceOrVisit under the STL-flavoured name.
func (t *Table[K, V]) InsertOrVisit(key K, value V, f func(*Entry[K, V])) (bool, error) {
	return t.EmplaceOrVisit(key, value, f)
}

// InsertOrCVisit is an alias of EmplaceOrCVisit under the STL-flavoured
// name.
func (t *Table[K, V]) InsertOrCVisit(key K, value V, f func(*Entry[K, V])) (bool, error) {
	return t.EmplaceOrVisit(key, value, f)
}
