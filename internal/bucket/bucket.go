// Package bucket implements the fixed-capacity bucket group and overflow
// chain node shared by the concurrent shard (internal/shard) and the
// single-threaded flat variant (pkg/flatmap). Every exported method assumes
// external synchronisation: a Group never locks anything itself.
//
// © 2025 chtable authors. MIT License.
package bucket

import (
	"github.com/shardwell/chashtable/internal/swar"
)

// GroupCapacity is the number of slots per bucket group. 16 is chosen so the
// tag array splits evenly into two 64-bit SWAR words; callers and tests
// should derive B from this constant rather than hardcode it.
const GroupCapacity = 16

// emptyTag is the sentinel written into unused tag slots. The high bit
// (0x80) marks "occupied" on real tags, so 0x00 can never collide with a
// live tag's bit pattern during a SWAR match against a broadcast 0x80-set
// byte; matches additionally re-check count before accepting index i.
const emptyTag uint8 = 0x00

// occupiedBit marks a tag byte as belonging to a live slot; Tag() always
// sets it, Group never stores a tag without it for an occupied slot.
const occupiedBit uint8 = 0x80

// Tag derives the stored tag byte from a full 64-bit hash: the high bit is
// fixed (occupied marker) and the low 7 bits are a fingerprint taken from
// the hash's high bits, kept disjoint from the bits used to pick the group.
func Tag(hash uint64) uint8 {
	return occupiedBit | uint8(hash>>57)
}

// Entry is a key, or a key/value pair when V is not struct{}.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Group is a fixed-capacity slot cluster plus an optional link to an
// overflow chain node. Zero value is an empty, unlinked group.
type Group[K comparable, V any] struct {
	tags     [GroupCapacity]uint8
	slots    [GroupCapacity]Entry[K, V]
	count    uint8
	Overflow *Group[K, V]
}

// Count returns the number of occupied slots in this group (not its chain).
func (g *Group[K, V]) Count() int { return int(g.count) }

// Full reports whether the group has no room for another entry.
func (g *Group[K, V]) Full() bool { return int(g.count) == GroupCapacity }

// word0/word1 pack the two SWAR halves of the tag array.
func (g *Group[K, V]) word0() uint64 { return swar.PackTags(g.tags[:], 0) }
func (g *Group[K, V]) word1() uint64 { return swar.PackTags(g.tags[:], 8) }

// Find scans this group only (not its overflow chain) for tag/key, returning
// the slot index and true on a hit. Tag collisions fall through to a full
// key comparison.
func (g *Group[K, V]) Find(tag uint8, key K, eq func(a, b K) bool) (int, bool) {
	for _, base := range [2]int{0, 8} {
		var word uint64
		if base == 0 {
			word = g.word0()
		} else {
			word = g.word1()
		}
		for mask := swar.MatchByte(word, tag); mask != 0; mask = swar.ClearMatch(mask) {
			idx := base + swar.FirstMatch(mask)
			if idx >= int(g.count) {
				continue
			}
			if eq(g.slots[idx].Key, key) {
				return idx, true
			}
		}
	}
	return 0, false
}

// TryPlace inserts entry at the first free slot if the group has room,
// writing its tag and incrementing count. Returns false without touching
// memory when the group is full.
func (g *Group[K, V]) TryPlace(tag uint8, e Entry[K, V]) bool {
	if g.Full() {
		return false
	}
	i := g.count
	g.slots[i] = e
	g.tags[i] = tag
	g.count++
	return true
}

// EraseAt removes the slot at index i by moving the last occupied slot into
// its place. References into the table are not stable across this call.
func (g *Group[K, V]) EraseAt(i int) {
	last := int(g.count) - 1
	if i != last {
		g.slots[i] = g.slots[last]
		g.tags[i] = g.tags[last]
	}
	var zero Entry[K, V]
	g.slots[last] = zero
	g.tags[last] = emptyTag
	g.count--
}

// At returns a pointer to the entry at slot index i, which must be < Count().
// Used by callers (internal/shard) that need to mutate an entry found via
// Find/locate without a second lookup.
func (g *Group[K, V]) At(i int) *Entry[K, V] { return &g.slots[i] }

// Walk applies f to every occupied entry in this group only. f returning
// false stops the walk early; Walk returns false in that case so callers can
// short-circuit across a whole chain.
func (g *Group[K, V]) Walk(f func(*Entry[K, V]) bool) bool {
	for i := 0; i < int(g.count); i++ {
		if !f(&g.slots[i]) {
			return false
		}
	}
	return true
}

// Reset clears the group back to empty, unlinked state (used by
// freelist.Pool.Put when an emptied overflow chain node is recycled).
func (g *Group[K, V]) Reset() {
	*g = Group[K, V]{}
}
