// Package flatmap implements the single-threaded counterpart to
// pkg/chtable.Table: the same fixed-capacity bucket group and overflow chain
// layout (internal/bucket), but with no shard striping and no locking at
// all. It exists for callers that already serialise access externally (a
// single goroutine, or a structure already guarded by some outer lock) and
// want to avoid paying for sync.RWMutex and atomic size counters they will
// never contend on.
//
// © 2025 chtable authors. MIT License.
package flatmap

import (
	"hash/maphash"
	"math/bits"

	"github.com/shardwell/chashtable/internal/bucket"
	"github.com/shardwell/chashtable/internal/freelist"
	"github.com/shardwell/chashtable/internal/unsafehelpers"
)

// GroupAllocator abstracts the one allocation that can meaningfully fail:
// sizing the map's bucket-group array.
type GroupAllocator[K comparable, V any] interface {
	AllocGroups(n int) ([]bucket.Group[K, V], error)
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocGroups(n int) ([]bucket.Group[K, V], error) {
	return make([]bucket.Group[K, V], n), nil
}

const chainNodesPerGroupsThreshold = 32

// Entry is a key, or a key/value pair, exactly as returned by Table.
type Entry[K comparable, V any] = bucket.Entry[K, V]

// Map is an unsynchronised open-addressed hash table sharing the
// bucket-group-plus-overflow-chain layout used by the concurrent Table. Not
// safe for concurrent use; callers must serialise access themselves.
type Map[K comparable, V any] struct {
	groups []bucket.Group[K, V]
	size   int
	chainNodes int
	rehashes   uint64

	maxLoadFactor float64
	free          *freelist.Pool[K, V]
	alloc         GroupAllocator[K, V]
	eq            func(a, b K) bool
	hashFn        func(K) uint64
}

// Option configures a Map at construction time.
type Option[K comparable, V any] func(*Map[K, V])

// WithHashEqual overrides the hash and equality functions. Required whenever
// K should not be compared with plain ==, or hashed via the default
// reflection-free byte hash.
func WithHashEqual[K comparable, V any](hashFn func(K) uint64, eq func(a, b K) bool) Option[K, V] {
	return func(m *Map[K, V]) {
		m.hashFn = hashFn
		m.eq = eq
	}
}

// WithGroupAllocator overrides the default bucket-group allocator, letting
// tests inject allocation failures.
func WithGroupAllocator[K comparable, V any](a GroupAllocator[K, V]) Option[K, V] {
	return func(m *Map[K, V]) { m.alloc = a }
}

// WithMaxLoadFactor overrides the default max load factor (0.875).
func WithMaxLoadFactor[K comparable, V any](f float64) Option[K, V] {
	return func(m *Map[K, V]) { m.maxLoadFactor = f }
}

const defaultMaxLoadFactor = 0.875

// New constructs an empty Map with a single bucket group.
func New[K comparable, V any](opts ...Option[K, V]) (*Map[K, V], error) {
	m := &Map[K, V]{
		maxLoadFactor: defaultMaxLoadFactor,
		alloc:         defaultAllocator[K, V]{},
		eq:            func(a, b K) bool { return a == b },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hashFn == nil {
		m.hashFn = defaultHash[K]
	}
	groups, err := m.alloc.AllocGroups(1)
	if err != nil {
		return nil, err
	}
	m.groups = groups
	m.free = freelist.New[K, V]()
	return m, nil
}

func (m *Map[K, V]) groupCount() int { return len(m.groups) }

func (m *Map[K, V]) groupIndex(hash uint64) int {
	return int(hash & uint64(m.groupCount()-1))
}

// Size returns the number of live entries.
func (m *Map[K, V]) Size() int { return m.size }

// Empty reports whether the map holds no entries.
func (m *Map[K, V]) Empty() bool { return m.size == 0 }

// LoadFactor returns size / (groupCount * GroupCapacity).
func (m *Map[K, V]) LoadFactor() float64 {
	return float64(m.size) / float64(m.groupCount()*bucket.GroupCapacity)
}

// Rehashes returns the number of rehashes performed so far, for metrics.
func (m *Map[K, V]) Rehashes() uint64 { return m.rehashes }

func (m *Map[K, V]) locate(hash uint64, key K) (g *bucket.Group[K, V], idx int, ok bool) {
	tag := bucket.Tag(hash)
	g = &m.groups[m.groupIndex(hash)]
	for cur := g; cur != nil; cur = cur.Overflow {
		if i, found := cur.Find(tag, key, m.eq); found {
			return cur, i, true
		}
	}
	return nil, 0, false
}

// Get returns the value for key and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	hash := m.hashFn(key)
	if g, idx, ok := m.locate(hash, key); ok {
		return g.At(idx).Value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	hash := m.hashFn(key)
	_, _, ok := m.locate(hash, key)
	return ok
}

// Emplace inserts (key, value) if key is absent, leaving an existing entry
// untouched. Returns true iff a new entry was created.
func (m *Map[K, V]) Emplace(key K, value V) (bool, error) {
	hash := m.hashFn(key)
	if _, _, ok := m.locate(hash, key); ok {
		return false, nil
	}
	if err := m.insertNew(hash, key, value); err != nil {
		return false, err
	}
	m.size++
	if m.loadFactor() > m.maxLoadFactor || m.chainFraction() > 1.0/chainNodesPerGroupsThreshold {
		if err := m.rehash(m.nextCapacity()); err != nil {
			// Strong guarantee: a failed rehash must leave size and the
			// bucket array exactly as they were before this call, so undo
			// the insert this call just performed before surfacing the
			// error.
			if g, idx, ok := m.locate(hash, key); ok {
				m.eraseAt(hash, g, idx)
			}
			return false, err
		}
	}
	return true, nil
}

// InsertOrAssign inserts (key, value) if absent, otherwise overwrites the
// existing entry's value.
func (m *Map[K, V]) InsertOrAssign(key K, value V) (bool, error) {
	hash := m.hashFn(key)
	if g, idx, ok := m.locate(hash, key); ok {
		g.At(idx).Value = value
		return false, nil
	}
	if err := m.insertNew(hash, key, value); err != nil {
		return false, err
	}
	m.size++
	if m.loadFactor() > m.maxLoadFactor || m.chainFraction() > 1.0/chainNodesPerGroupsThreshold {
		if err := m.rehash(m.nextCapacity()); err != nil {
			if g, idx, ok := m.locate(hash, key); ok {
				m.eraseAt(hash, g, idx)
			}
			return false, err
		}
	}
	return true, nil
}

func (m *Map[K, V]) insertNew(hash uint64, key K, value V) error {
	tag := bucket.Tag(hash)
	entry := bucket.Entry[K, V]{Key: key, Value: value}

	main := &m.groups[m.groupIndex(hash)]
	if main.TryPlace(tag, entry) {
		return nil
	}
	for cur := main; ; cur = cur.Overflow {
		if cur.Overflow == nil {
			node, err := m.allocChainNode()
			if err != nil {
				return err
			}
			cur.Overflow = node
			m.chainNodes++
		}
		if cur.Overflow.TryPlace(tag, entry) {
			return nil
		}
	}
}

func (m *Map[K, V]) allocChainNode() (*bucket.Group[K, V], error) {
	if g := m.free.Get(); g != nil {
		return g, nil
	}
	groups, err := m.alloc.AllocGroups(1)
	if err != nil {
		return nil, err
	}
	return &groups[0], nil
}

func (m *Map[K, V]) loadFactor() float64 {
	return float64(m.size) / float64(m.groupCount()*bucket.GroupCapacity)
}

func (m *Map[K, V]) chainFraction() float64 {
	return float64(m.chainNodes) / float64(m.groupCount())
}

// Erase removes key iff present, returning true iff it was removed.
func (m *Map[K, V]) Erase(key K) bool {
	hash := m.hashFn(key)
	g, idx, ok := m.locate(hash, key)
	if !ok {
		return false
	}
	m.eraseAt(hash, g, idx)
	return true
}

// eraseAt removes the entry at (g, idx), which must belong to the chain
// rooted at the main group for hash, and recycles any chain node emptied by
// the removal.
func (m *Map[K, V]) eraseAt(hash uint64, g *bucket.Group[K, V], idx int) {
	g.EraseAt(idx)
	m.size--
	main := &m.groups[m.groupIndex(hash)]
	m.compactChain(main)
}

// EraseIf removes every entry for which f returns true, returning the count
// removed.
func (m *Map[K, V]) EraseIf(f func(*Entry[K, V]) bool) int {
	n := 0
	for gi := range m.groups {
		main := &m.groups[gi]
		for cur := main; cur != nil; cur = cur.Overflow {
			i := 0
			for i < cur.Count() {
				if f(cur.At(i)) {
					cur.EraseAt(i)
					m.size--
					n++
					continue
				}
				i++
			}
		}
		m.compactChain(main)
	}
	return n
}

func (m *Map[K, V]) compactChain(main *bucket.Group[K, V]) {
	prev := main
	cur := main.Overflow
	for cur != nil {
		next := cur.Overflow
		if cur.Count() == 0 {
			prev.Overflow = next
			cur.Overflow = nil
			m.free.Put(cur)
			m.chainNodes--
			cur = next
			continue
		}
		prev = cur
		cur = next
	}
}

// VisitAll applies f to every live entry exactly once; f returning false
// stops the walk early.
func (m *Map[K, V]) VisitAll(f func(*Entry[K, V]) bool) {
	for i := range m.groups {
		for cur := &m.groups[i]; cur != nil; cur = cur.Overflow {
			if !cur.Walk(f) {
				return
			}
		}
	}
}

// Clear removes every entry and releases the bucket-group array.
func (m *Map[K, V]) Clear() {
	groups, err := m.alloc.AllocGroups(1)
	if err != nil {
		groups = make([]bucket.Group[K, V], 1)
	}
	m.groups = groups
	m.free = freelist.New[K, V]()
	m.chainNodes = 0
	m.size = 0
}

// Reserve grows the map, if needed, to at least ceil(n / GroupCapacity)
// bucket groups, rounded up to a power of two. That sizing is for a load
// factor of 1.0, so inserting up to n entries can still trigger a rehash
// once the load factor passes the configured maximum.
func (m *Map[K, V]) Reserve(n int) error {
	groupsNeeded := (n + bucket.GroupCapacity - 1) / bucket.GroupCapacity
	if groupsNeeded < 1 {
		groupsNeeded = 1
	}
	target := 1
	for target < groupsNeeded {
		target *= 2
	}
	if target <= m.groupCount() {
		return nil
	}
	return m.rehash(target)
}

func (m *Map[K, V]) nextCapacity() int {
	target := 0.5 * m.maxLoadFactor
	if target <= 0 {
		target = 0.35
	}
	need := float64(m.size) / (target * float64(bucket.GroupCapacity))
	n := 1
	for float64(n) < need {
		n *= 2
	}
	if n <= m.groupCount() {
		n = m.groupCount() * 2
	}
	return n
}

func (m *Map[K, V]) rehash(newGroupCount int) error {
	if newGroupCount == m.groupCount() {
		return nil
	}
	newGroups, err := m.alloc.AllocGroups(newGroupCount)
	if err != nil {
		return err
	}

	mask := uint64(newGroupCount - 1)
	newChainNodes := 0
	place := func(e bucket.Entry[K, V], h uint64) {
		tag := bucket.Tag(h)
		idx := int(h & mask)
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

	for i := range m.groups {
		for cur := &m.groups[i]; cur != nil; cur = cur.Overflow {
			cur.Walk(func(e *bucket.Entry[K, V]) bool {
				place(*e, m.hashFn(e.Key))
				return true
			})
		}
	}

	m.groups = newGroups
	m.chainNodes = newChainNodes
	m.free = freelist.New[K, V]()
	m.rehashes++
	return nil
}

var defaultSeed = maphash.MakeSeed()

// defaultHash hashes key's raw in-memory bytes via a seeded hash/maphash,
// then rotates the result so low-entropy bit patterns (small integers)
// still spread across the group index range. Callers hashing strings or
// []byte heavily should supply WithHashEqual using xxhash directly, the way
// pkg/chtable's default hasher does.
func defaultHash[K comparable](key K) uint64 {
	var mh maphash.Hash
	mh.SetSeed(defaultSeed)
	mh.Write(unsafehelpers.ScalarBytes(&key))
	sum := mh.Sum64()
	return bits.RotateLeft64(sum, 31)
}
