package shard

import (
	"github.com/shardwell/chashtable/internal/bucket"
	"github.com/shardwell/chashtable/internal/freelist"
)

// nextCapacity picks the next power-of-two group count that brings the load
// factor below half of maxLoadFactor after a rehash.
func (s *Shard[K, V]) nextCapacity() int {
	target := 0.5 * s.maxLoadFactor
	if target <= 0 {
		target = 0.35
	}
	need := float64(s.size.Load()) / (target * float64(bucket.GroupCapacity))
	n := 1
	for float64(n) < need {
		n *= 2
	}
	if n <= s.groupCount() {
		n = s.groupCount() * 2
	}
	return n
}

// Rehash grows (or reshapes) the shard to have at least minGroups bucket
// groups, always rounded up to a power of two. It is exposed so
// pkg/chtable.Reserve/Rehash can force a specific capacity ahead of load.
func (s *Shard[K, V]) Rehash(minGroups int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 1
	for n < minGroups {
		n *= 2
	}
	if n < s.groupCount() {
		n = s.groupCount()
	}
	return s.rehashLocked(n)
}

// rehashLocked grows or reshapes the group array in place. Caller holds the
// exclusive lock. On allocator failure, the old array is left completely
// untouched: the new array is discarded before any entry is moved into it,
// so the shard keeps serving requests at its previous capacity.
func (s *Shard[K, V]) rehashLocked(newGroupCount int) error {
	if newGroupCount == s.groupCount() {
		return nil
	}
	newGroups, err := s.alloc.AllocGroups(newGroupCount)
	if err != nil {
		return err
	}

	newShardBits := s.shardBits // shard bit count never changes; only group bits do
	mask := uint64(newGroupCount - 1)

	newChainNodes := 0
	place := func(e bucket.Entry[K, V], h uint64) {
		tag := bucket.Tag(h)
		idx := int((h >> newShardBits) & mask)
		main := &newGroups[idx]
		for cur := main; ; cur = cur.Overflow {
			if cur.TryPlace(tag, e) {
				return
			}
			if cur.Overflow == nil {
				cur.Overflow = &bucket.Group[K, V]{}
				newChainNodes++
			}
		}
	}

	hashOf := s.hashEntry
	for i := range s.groups {
		for cur := &s.groups[i]; cur != nil; cur = cur.Overflow {
			cur.Walk(func(e *bucket.Entry[K, V]) bool {
				place(*e, hashOf(e.Key))
				return true
			})
		}
	}

	s.groups = newGroups
	s.chainNodes = int64(newChainNodes)
	s.free = freelist.New[K, V]()
	s.rehashes.Add(1)
	return nil
}

// hashEntry calls the hashFn supplied to New so rehash can re-derive each
// entry's hash without the shard storing one per slot (the
// tag byte alone is not enough to pick the right group after resize).
func (s *Shard[K, V]) hashEntry(key K) uint64 {
	if s.hashFn == nil {
		panic("shard: hashFn not configured")
	}
	return s.hashFn(key)
}
