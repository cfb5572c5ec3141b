// table.go implements Table[K,V]: hash once, choose shard, forward the
// operation to one of the shard primitives (visit/emplace/erase/erase_if/
// walk).
//
// © 2025 chtable authors. MIT License.
package chtable

import (
	"math/bits"

	"go.uber.org/zap"

	"github.com/shardwell/chashtable/internal/bucket"
	"github.com/shardwell/chashtable/internal/shard"
)

// Table is a sharded, lock-striped, open-addressed hash table. The zero
// value is not usable; construct with New or WithCapacity.
type Table[K comparable, V any] struct {
	shards    []*shard.Shard[K, V]
	shardMask uint64
	shardBits uint8

	hasher Hasher[K]
	keyEq  KeyEqual[K]

	metrics metricsSink
	logger  *zap.Logger
}

// New constructs a Table with the given shard count policy. Options may
// override the hasher, key-equality functor, group allocator, max load
// factor, logger and metrics registry.
func New[K comparable, V any](policy ShardsPolicy, opts ...Option[K, V]) (*Table[K, V], error) {
	cfg := defaultConfig[K, V](policy)
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}
	return newFromConfig[K, V](cfg)
}

// WithCapacity constructs a Table sized so each shard starts pre-rehashed to
// comfortably hold its share of n entries: n is distributed across shards
// and each shard rehashes independently to fit its quota.
func WithCapacity[K comparable, V any](n int, policy ShardsPolicy, opts ...Option[K, V]) (*Table[K, V], error) {
	t, err := New[K, V](policy, opts...)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		if err := t.Reserve(n); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func newFromConfig[K comparable, V any](cfg *config[K, V]) (*Table[K, V], error) {
	numShards := int(cfg.shards)
	shardBits := uint8(bits.Len(uint(numShards - 1)))
	if numShards == 1 {
		shardBits = 0
	}

	hasher := cfg.hasher
	if hasher == nil {
		hasher = newDefaultHasher[K]()
	}
	keyEq := cfg.keyEq
	if keyEq == nil {
		keyEq = defaultKeyEqual[K]{}
	}

	t := &Table[K, V]{
		shards:    make([]*shard.Shard[K, V], numShards),
		shardMask: uint64(numShards - 1),
		shardBits: shardBits,
		hasher:    hasher,
		keyEq:     keyEq,
		metrics:   newMetricsSink(numShards, cfg.registry),
		logger:    cfg.logger,
	}
	for i := range t.shards {
		t.shards[i] = shard.New[K, V](shardBits, cfg.maxLoadFactor, keyEq.Equal, hasher.Hash, cfg.alloc)
	}
	return t, nil
}

// shardFor returns the full hash, the owning shard's index, and the shard
// that owns key.
func (t *Table[K, V]) shardFor(key K) (hash uint64, idx int, s *shard.Shard[K, V]) {
	hash = t.hasher.Hash(key)
	i := hash & t.shardMask
	return hash, int(i), t.shards[i]
}

// recordShardMetrics pushes shard i's current counters into t.metrics. Called
// after every operation that can change a shard's size, chain density, or
// rehash count; a no-op sink makes this free when metrics aren't enabled.
func (t *Table[K, V]) recordShardMetrics(i int, s *shard.Shard[K, V]) {
	if _, ok := t.metrics.(noopMetrics); ok {
		return
	}
	t.metrics.observeShard(i, s.Size(), s.Rehashes(), s.ChainNodes(), s.LoadFactor())
}

// Size returns the sum of per-shard sizes via relaxed atomic reads.
// Concurrent writers on other shards may make this a torn read across the
// whole table: callers should treat it as an inconsistent snapshot, not a
// linearizable count.
func (t *Table[K, V]) Size() int {
	var total int64
	for _, s := range t.shards {
		total += s.Size()
	}
	return int(total)
}

// Empty reports whether the table currently holds no entries.
func (t *Table[K, V]) Empty() bool { return t.Size() == 0 }

// MaxLoadFactor returns shard 0's configured max load factor (all shards
// share the same value; set via WithMaxLoadFactor or SetMaxLoadFactor).
func (t *Table[K, V]) MaxLoadFactor() float64 { return t.shards[0].MaxLoadFactor() }

// SetMaxLoadFactor updates the max load factor on every shard.
func (t *Table[K, V]) SetMaxLoadFactor(f float64) {
	for _, s := range t.shards {
		s.SetMaxLoadFactor(f)
	}
}

// LoadFactor returns the table-wide load factor: total size divided by
// total capacity across all shards.
func (t *Table[K, V]) LoadFactor() float64 {
	var size, capacity float64
	for _, s := range t.shards {
		size += float64(s.Size())
		capacity += float64(s.GroupCount()) * float64(bucket.GroupCapacity)
	}
	if capacity == 0 {
		return 0
	}
	return size / capacity
}

// Clear removes every entry from every shard.
func (t *Table[K, V]) Clear() {
	for i, s := range t.shards {
		s.Clear()
		t.recordShardMetrics(i, s)
	}
}

// Rehash forces every shard to have enough bucket groups to hold n entries
// in total across the table.
func (t *Table[K, V]) Rehash(n int) error {
	perShard := n / len(t.shards)
	if perShard < 1 {
		perShard = 1
	}
	groupsNeeded := (perShard + bucket.GroupCapacity - 1) / bucket.GroupCapacity
	if groupsNeeded < 1 {
		groupsNeeded = 1
	}
	for i, s := range t.shards {
		if err := s.Rehash(groupsNeeded); err != nil {
			return wrapAllocErr(err)
		}
		t.recordShardMetrics(i, s)
	}
	return nil
}

// Reserve distributes n across shards so each can rehash independently to
// fit its quota.
func (t *Table[K, V]) Reserve(n int) error {
	return t.Rehash(n)
}
