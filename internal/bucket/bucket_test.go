package bucket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func eqInt(a, b int) bool { return a == b }

func TestTagSetsOccupiedBit(t *testing.T) {
	for _, h := range []uint64{0, 1, ^uint64(0), 0xdeadbeefcafef00d} {
		tag := Tag(h)
		require.NotZero(t, tag&occupiedBit)
	}
}

// hashFor spreads i into the high bits Tag reads from, so distinct i values
// get distinct tags instead of all colliding at hash>>57 == 0.
func hashFor(i int) uint64 { return uint64(i) << 57 }

func TestGroupTryPlaceAndFind(t *testing.T) {
	var g Group[int, string]
	for i := 0; i < GroupCapacity; i++ {
		ok := g.TryPlace(Tag(hashFor(i)), Entry[int, string]{Key: i, Value: "v"})
		require.True(t, ok)
	}
	require.True(t, g.Full())
	require.False(t, g.TryPlace(Tag(hashFor(999)), Entry[int, string]{Key: 999, Value: "overflow"}))

	idx, found := g.Find(Tag(hashFor(5)), 5, eqInt)
	require.True(t, found)
	require.Equal(t, "v", g.At(idx).Value)

	_, found = g.Find(Tag(hashFor(999)), 999, eqInt)
	require.False(t, found)
}

func TestGroupEraseAtCompactsWithLastSlot(t *testing.T) {
	var g Group[int, string]
	g.TryPlace(Tag(1), Entry[int, string]{Key: 1, Value: "a"})
	g.TryPlace(Tag(2), Entry[int, string]{Key: 2, Value: "b"})
	g.TryPlace(Tag(3), Entry[int, string]{Key: 3, Value: "c"})

	g.EraseAt(0) // erase "a", "c" should move into slot 0
	require.Equal(t, 2, g.Count())
	idx, found := g.Find(Tag(3), 3, eqInt)
	require.True(t, found)
	require.Equal(t, 0, idx)
	_, found = g.Find(Tag(1), 1, eqInt)
	require.False(t, found)
}

func TestGroupWalkStopsEarly(t *testing.T) {
	var g Group[int, string]
	g.TryPlace(Tag(1), Entry[int, string]{Key: 1})
	g.TryPlace(Tag(2), Entry[int, string]{Key: 2})
	g.TryPlace(Tag(3), Entry[int, string]{Key: 3})

	seen := 0
	complete := g.Walk(func(e *Entry[int, string]) bool {
		seen++
		return seen < 2
	})
	require.False(t, complete)
	require.Equal(t, 2, seen)
}

func TestGroupResetClearsChainLink(t *testing.T) {
	var g Group[int, string]
	g.TryPlace(Tag(1), Entry[int, string]{Key: 1})
	g.Overflow = &Group[int, string]{}
	g.Reset()
	require.Equal(t, 0, g.Count())
	require.Nil(t, g.Overflow)
}

func TestFindScansOverflowChainNotIncluded(t *testing.T) {
	var main, overflow Group[int, string]
	main.Overflow = &overflow
	overflow.TryPlace(Tag(42), Entry[int, string]{Key: 42, Value: "chained"})

	// Find only scans this group, not the chain.
	_, found := main.Find(Tag(42), 42, eqInt)
	require.False(t, found)
	_, found = overflow.Find(Tag(42), 42, eqInt)
	require.True(t, found)
}
