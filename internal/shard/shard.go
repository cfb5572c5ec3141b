// Package shard implements one independently-locked partition of the
// concurrent hash table core: a bucket-group array, its reader-writer lock,
// a per-shard size counter and free list, and the primitive operations
// (visit, emplace, erase, erase_if, walk) that pkg/chtable composes into the
// public Table API.
//
// A shard owns only a bucket-group array and its overflow chains; there is
// no eviction policy here — capacity pressure is handled purely by rehash
// (grow).
//
// © 2025 chtable authors. MIT License.
package shard

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/shardwell/chashtable/internal/bucket"
	"github.com/shardwell/chashtable/internal/freelist"
)

// GroupAllocator abstracts the one allocation that can meaningfully fail in
// this core: sizing a shard's bucket-group array. Implementations may inject
// failures to test strong exception-safety behaviour.
type GroupAllocator[K comparable, V any] interface {
	AllocGroups(n int) ([]bucket.Group[K, V], error)
}

// DefaultAllocator is the GroupAllocator used when none is supplied: a plain
// Go slice allocation.
type DefaultAllocator[K comparable, V any] struct{}

// AllocGroups implements GroupAllocator.
func (DefaultAllocator[K, V]) AllocGroups(n int) ([]bucket.Group[K, V], error) {
	return make([]bucket.Group[K, V], n), nil
}

// chainNodesPerGroupsThreshold triggers a rehash once overflow chain nodes
// grow denser than one per this many groups, keeping probe chains short.
const chainNodesPerGroupsThreshold = 32

// Shard owns one slice of the key space: its own bucket-group array, lock,
// size counter and overflow free list. Zero value is not usable; construct
// with New.
type Shard[K comparable, V any] struct {
	mu sync.RWMutex

	groups    []bucket.Group[K, V] // len is always a power of two
	shardBits uint8                // bits already consumed by table shard selection

	size          atomic.Int64 // live entries in this shard; relaxed atomic read/write
	chainNodes    int64        // number of allocated overflow nodes across all groups
	rehashes      atomic.Uint64
	maxLoadFactor float64

	free   *freelist.Pool[K, V]
	alloc  GroupAllocator[K, V]
	eq     func(a, b K) bool
	hashFn func(K) uint64
}

// New constructs a shard with an initial single-group array. shardBits is
// the number of low hash bits already consumed by the table to pick this
// shard. hashFn must be the same hash function the owning table uses, so
// that rehash can re-derive each entry's hash.
func New[K comparable, V any](shardBits uint8, maxLoadFactor float64, eq func(a, b K) bool, hashFn func(K) uint64, alloc GroupAllocator[K, V]) *Shard[K, V] {
	if alloc == nil {
		alloc = DefaultAllocator[K, V]{}
	}
	groups, err := alloc.AllocGroups(1)
	if err != nil {
		// A fresh shard's first allocation failing is not recoverable — New
		// has no error result. Every shard is built at table construction
		// time; fault-injecting test allocators let this first call succeed.
		panic(err)
	}
	return &Shard[K, V]{
		groups:        groups,
		shardBits:     shardBits,
		maxLoadFactor: maxLoadFactor,
		free:          freelist.New[K, V](),
		alloc:         alloc,
		eq:            eq,
		hashFn:        hashFn,
	}
}

func (s *Shard[K, V]) groupCount() int { return len(s.groups) }

func (s *Shard[K, V]) groupIndex(hash uint64) int {
	return int((hash >> s.shardBits) & uint64(s.groupCount()-1))
}

// Addr returns a stable address-derived identity used only to order lock
// acquisition across two shards in Table.Merge, so two goroutines merging
// in opposite directions can never deadlock. Never used for anything else.
func (s *Shard[K, V]) Addr() uintptr { return uintptr(unsafe.Pointer(s)) }

// Size returns the shard's live entry count via a relaxed atomic read.
func (s *Shard[K, V]) Size() int64 { return s.size.Load() }

// Rehashes returns the number of rehashes this shard has performed, exposed
// for metrics (chtable_shard_rehashes_total).
func (s *Shard[K, V]) Rehashes() uint64 { return s.rehashes.Load() }

// GroupCount returns the number of bucket groups currently allocated.
func (s *Shard[K, V]) GroupCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupCount()
}

// ChainNodes returns the number of overflow chain nodes currently linked in.
func (s *Shard[K, V]) ChainNodes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainNodes
}

// LoadFactor returns size / (groupCount * GroupCapacity) under a shared lock.
func (s *Shard[K, V]) LoadFactor() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadFactor()
}

// MaxLoadFactor returns the configured max load factor.
func (s *Shard[K, V]) MaxLoadFactor() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxLoadFactor
}

// SetMaxLoadFactor updates the max load factor under the exclusive lock.
func (s *Shard[K, V]) SetMaxLoadFactor(f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxLoadFactor = f
}

// Clear removes every entry and resets the shard to a single empty group,
// releasing the previous bucket-group array and free list.
func (s *Shard[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups, err := s.alloc.AllocGroups(1)
	if err != nil {
		// Falling back to a plain slice allocation guarantees Clear never
		// fails, regardless of what allocator the shard was configured with.
		groups = make([]bucket.Group[K, V], 1)
	}
	s.groups = groups
	s.free = freelist.New[K, V]()
	s.chainNodes = 0
	s.size.Store(0)
}

// Lock/Unlock/RLock/RUnlock expose the shard's mutex for Table.Merge, which
// must hold two shards' locks at once in a globally consistent order to
// avoid deadlock.
func (s *Shard[K, V]) Lock()    { s.mu.Lock() }
func (s *Shard[K, V]) Unlock()  { s.mu.Unlock() }
func (s *Shard[K, V]) RLock()   { s.mu.RLock() }
func (s *Shard[K, V]) RUnlock() { s.mu.RUnlock() }

// EmplaceLocked is Emplace's body without acquiring the lock, for use by
// Table.Merge once it already holds both shards' locks.
func (s *Shard[K, V]) EmplaceLocked(hash uint64, key K, value V) (inserted bool, err error) {
	if _, _, ok := s.locate(hash, key); ok {
		return false, nil
	}
	if err := s.insertNew(hash, key, value); err != nil {
		return false, err
	}
	s.size.Add(1)
	if s.loadFactor() > s.maxLoadFactor || s.chainFraction() > 1.0/chainNodesPerGroupsThreshold {
		if err := s.rehashLocked(s.nextCapacity()); err != nil {
			if g, idx, ok := s.locate(hash, key); ok {
				s.eraseFrom(hash, g, idx)
			}
			return false, err
		}
	}
	return true, nil
}

// EraseLocked is Erase's body without acquiring the lock, for Table.Merge.
func (s *Shard[K, V]) EraseLocked(hash uint64, key K) int {
	g, idx, ok := s.locate(hash, key)
	if !ok {
		return 0
	}
	s.eraseFrom(hash, g, idx)
	return 1
}

// WalkLocked is Walk's body without acquiring the lock, for Table.Merge
// (which holds the *other* table's shard lock while walking it).
func (s *Shard[K, V]) WalkLocked(f func(*bucket.Entry[K, V]) bool) bool {
	for i := range s.groups {
		for cur := &s.groups[i]; cur != nil; cur = cur.Overflow {
			if !cur.Walk(f) {
				return false
			}
		}
	}
	return true
}

/* -------------------------------------------------------------------------
   Find helper: scans the main group then its overflow chain.
   ------------------------------------------------------------------------- */

// locate returns the group holding key (main or chain) and the slot index,
// or ok=false. Caller must hold at least a read lock.
func (s *Shard[K, V]) locate(hash uint64, key K) (g *bucket.Group[K, V], idx int, ok bool) {
	tag := bucket.Tag(hash)
	g = &s.groups[s.groupIndex(hash)]
	for cur := g; cur != nil; cur = cur.Overflow {
		if i, found := cur.Find(tag, key, s.eq); found {
			return cur, i, true
		}
	}
	return nil, 0, false
}

/* -------------------------------------------------------------------------
   Visit / CVisit
   ------------------------------------------------------------------------- */

// Visit takes the shard's exclusive lock and calls f on the matching entry
// if present, returning 1 if it was found (and f invoked) or 0 otherwise.
// Visit is the mutable variant, used when f may modify the entry's value in
// place; the read-only variant that only needs a shared lock is CVisit
// below.
func (s *Shard[K, V]) Visit(hash uint64, key K, f func(*bucket.Entry[K, V])) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, idx, ok := s.locate(hash, key)
	if !ok {
		return 0
	}
	f(g.At(idx))
	return 1
}

// CVisit takes the shard's shared lock and calls f on the matching entry
// read-only, returning the match count (0 or 1).
func (s *Shard[K, V]) CVisit(hash uint64, key K, f func(*bucket.Entry[K, V])) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, idx, ok := s.locate(hash, key)
	if !ok {
		return 0
	}
	f(g.At(idx))
	return 1
}

/* -------------------------------------------------------------------------
   Walk / WalkChain
   ------------------------------------------------------------------------- */

// Walk applies f to every live entry under a shared lock, stopping early if
// f returns false. Returns false iff the walk was stopped early.
func (s *Shard[K, V]) Walk(f func(*bucket.Entry[K, V]) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.groups {
		for cur := &s.groups[i]; cur != nil; cur = cur.Overflow {
			if !cur.Walk(f) {
				return false
			}
		}
	}
	return true
}
