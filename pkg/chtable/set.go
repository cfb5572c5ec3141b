// set.go implements Set[K], the concurrent-set counterpart to Table. A Set
// is a Table[K, struct{}]: no value storage, same sharded bucket-group core
// underneath.
//
// © 2025 chtable authors. MIT License.
package chtable

// Set is a sharded, lock-striped set built on the same core as Table.
type Set[K comparable] struct {
	t *Table[K, struct{}]
}

// NewSet constructs a Set with the given shard count policy.
func NewSet[K comparable](policy ShardsPolicy, opts ...Option[K, struct{}]) (*Set[K], error) {
	t, err := New[K, struct{}](policy, opts...)
	if err != nil {
		return nil, err
	}
	return &Set[K]{t: t}, nil
}

// Size returns the number of elements in the set.
func (s *Set[K]) Size() int { return s.t.Size() }

// Empty reports whether the set is empty.
func (s *Set[K]) Empty() bool { return s.t.Empty() }

// Contains reports whether key is a member of the set.
func (s *Set[K]) Contains(key K) bool { return s.t.Contains(key) }

// Insert adds key to the set, returning true iff it was not already a
// member.
func (s *Set[K]) Insert(key K) (bool, error) { return s.t.Emplace(key, struct{}{}) }

// Erase removes key from the set, returning true iff it was a member.
func (s *Set[K]) Erase(key K) bool { return s.t.Delete(key) }

// EraseIf removes every member for which f returns true, returning the
// count removed.
func (s *Set[K]) EraseIf(f func(key K) bool) int {
	return s.t.EraseIf(func(e *Entry[K, struct{}]) bool { return f(e.Key) })
}

// VisitAll applies f to every member exactly once; f returning false stops
// the walk early.
func (s *Set[K]) VisitAll(f func(key K) bool) {
	s.t.VisitAll(func(e *Entry[K, struct{}]) bool { return f(e.Key) })
}

// Clear removes every member.
func (s *Set[K]) Clear() { s.t.Clear() }

// Merge moves every member of other into s that isn't already present.
func (s *Set[K]) Merge(other *Set[K]) { s.t.Merge(other.t) }
