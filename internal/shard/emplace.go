package shard

import (
	"github.com/shardwell/chashtable/internal/bucket"
)

// Policy controls what Emplace does when the key is already present. It
// travels as a plain argument rather than a second type parameter — Go
// methods on a generic type cannot take further type parameters of their
// own — and the shard's single generic Emplace switches on it.
type Policy uint8

const (
	// PolicyTryInsert inserts only if the key is absent; if present, the
	// existing entry is left untouched and visitFn (if non-nil) is not
	// called. Backs Table.TryEmplace / Table.Insert.
	PolicyTryInsert Policy = iota
	// PolicyAssign inserts if absent, otherwise overwrites the existing
	// entry's value. Backs Table.InsertOrAssign.
	PolicyAssign
	// PolicyVisitExisting inserts if absent, otherwise calls visitFn on the
	// existing entry instead of touching it directly. Backs
	// Table.EmplaceOrVisit / Table.EmplaceOrCVisit / Table.InsertOrVisit /
	// Table.InsertOrCVisit.
	PolicyVisitExisting
)

// Emplace inserts (key, value) if key is absent, or applies policy to the
// existing entry otherwise. It returns inserted true iff a brand-new entry
// was created. When the key was already present
// and policy is PolicyVisitExisting, visitFn is invoked on the existing
// entry under the same exclusive lock; visitFn may be nil for the other
// policies.
func (s *Shard[K, V]) Emplace(hash uint64, key K, value V, policy Policy, visitFn func(*bucket.Entry[K, V])) (inserted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, idx, ok := s.locate(hash, key); ok {
		switch policy {
		case PolicyAssign:
			g.At(idx).Value = value
		case PolicyVisitExisting:
			if visitFn != nil {
				visitFn(g.At(idx))
			}
		case PolicyTryInsert:
			// leave existing entry untouched
		}
		return false, nil
	}

	if err := s.insertNew(hash, key, value); err != nil {
		return false, err
	}
	s.size.Add(1)

	if s.loadFactor() > s.maxLoadFactor || s.chainFraction() > 1.0/chainNodesPerGroupsThreshold {
		if err := s.rehashLocked(s.nextCapacity()); err != nil {
			// Strong guarantee: a failed rehash must leave size and the
			// bucket array exactly as they were before this call, so undo
			// the insert this call just performed before surfacing the
			// error.
			if g, idx, ok := s.locate(hash, key); ok {
				s.eraseFrom(hash, g, idx)
			}
			return false, err
		}
	}
	return true, nil
}

// insertNew places (key,value) assuming the key is not already present.
// Caller holds the exclusive lock.
func (s *Shard[K, V]) insertNew(hash uint64, key K, value V) error {
	tag := bucket.Tag(hash)
	entry := bucket.Entry[K, V]{Key: key, Value: value}

	main := &s.groups[s.groupIndex(hash)]
	if main.TryPlace(tag, entry) {
		return nil
	}
	for cur := main; ; cur = cur.Overflow {
		if cur.Overflow == nil {
			node, err := s.allocChainNode()
			if err != nil {
				return err
			}
			cur.Overflow = node
			s.chainNodes++
		}
		if cur.Overflow.TryPlace(tag, entry) {
			return nil
		}
	}
}

// allocChainNode returns a recycled node from the free list, or asks the
// allocator for a fresh one.
func (s *Shard[K, V]) allocChainNode() (*bucket.Group[K, V], error) {
	if g := s.free.Get(); g != nil {
		return g, nil
	}
	groups, err := s.alloc.AllocGroups(1)
	if err != nil {
		return nil, err
	}
	return &groups[0], nil
}

func (s *Shard[K, V]) loadFactor() float64 {
	return float64(s.size.Load()) / float64(s.groupCount()*bucket.GroupCapacity)
}

func (s *Shard[K, V]) chainFraction() float64 {
	return float64(s.chainNodes) / float64(s.groupCount())
}

/* -------------------------------------------------------------------------
   Erase
   ------------------------------------------------------------------------- */

// Erase removes key iff present and pred(entry) returns true, returning 1 if
// it erased an entry or 0 otherwise.
func (s *Shard[K, V]) Erase(hash uint64, key K, pred func(*bucket.Entry[K, V]) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, idx, ok := s.locate(hash, key)
	if !ok {
		return 0
	}
	if pred != nil && !pred(g.At(idx)) {
		return 0
	}
	s.eraseFrom(hash, g, idx)
	return 1
}

// EraseIf walks every live entry and erases those for which f returns true,
// returning the count erased.
func (s *Shard[K, V]) EraseIf(f func(*bucket.Entry[K, V]) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for gi := range s.groups {
		main := &s.groups[gi]
		for cur := main; cur != nil; cur = cur.Overflow {
			i := 0
			for i < cur.Count() {
				if f(cur.At(i)) {
					cur.EraseAt(i)
					s.size.Add(-1)
					n++
					continue // EraseAt moved the last slot into i; re-check it
				}
				i++
			}
		}
		s.compactChain(main)
	}
	return n
}

// eraseFrom removes the entry at (g, idx), which must belong to the chain
// rooted at the main group for hash, and recycles any chain node emptied by
// the removal.
func (s *Shard[K, V]) eraseFrom(hash uint64, g *bucket.Group[K, V], idx int) {
	g.EraseAt(idx)
	s.size.Add(-1)
	main := &s.groups[s.groupIndex(hash)]
	s.compactChain(main)
}

// compactChain unlinks and recycles any now-empty chain nodes hanging off
// main: once an emptied node's count reaches 0 it is unlinked and returned
// to the free list.
func (s *Shard[K, V]) compactChain(main *bucket.Group[K, V]) {
	prev := main
	cur := main.Overflow
	for cur != nil {
		next := cur.Overflow
		if cur.Count() == 0 {
			prev.Overflow = next
			cur.Overflow = nil
			s.free.Put(cur)
			s.chainNodes--
			cur = next
			continue
		}
		prev = cur
		cur = next
	}
}
