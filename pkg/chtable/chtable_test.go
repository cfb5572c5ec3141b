package chtable

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shardwell/chashtable/internal/bucket"
)

// TestBasicSingleShardLifecycle covers insert/contains/visit/erase/clear on
// a single-shard table.
func TestBasicSingleShardLifecycle(t *testing.T) {
	tbl, err := New[int, int](ShardsNone)
	require.NoError(t, err)

	for k, v := range map[int]int{1: 10, 2: 20, 3: 30} {
		inserted, err := tbl.Emplace(k, v)
		require.NoError(t, err)
		require.True(t, inserted)
	}
	require.Equal(t, 3, tbl.Size())
	require.True(t, tbl.Contains(2))

	found := tbl.Visit(2, func(e *Entry[int, int]) {
		require.Equal(t, 20, e.Value)
	})
	require.True(t, found)

	require.True(t, tbl.Delete(2))
	require.Equal(t, 2, tbl.Size())
	require.False(t, tbl.Contains(2))

	tbl.Clear()
	require.Equal(t, 0, tbl.Size())
}

// TestChainOverflowAndRehash drives a single-shard table past one bucket
// group's capacity with a constant hash, so every key lands in group 0
// before and after each rehash. That forces overflow-chain growth, which in
// turn triggers rehashes once chain nodes grow denser than the threshold;
// the test then checks every entry survives.
func TestChainOverflowAndRehash(t *testing.T) {
	tbl, err := New[int, int](ShardsNone, WithHasher[int, int](HasherFunc[int](func(int) uint64 {
		return 0
	})))
	require.NoError(t, err)

	const n = 500
	for i := 0; i < n; i++ {
		inserted, err := tbl.Emplace(i, i*i)
		require.NoError(t, err)
		require.True(t, inserted)
	}
	require.Equal(t, n, tbl.Size())

	for i := 0; i < n; i++ {
		found := tbl.CVisit(i, func(e *Entry[int, int]) {
			require.Equal(t, i*i, e.Value)
		})
		require.True(t, found)
	}
}

// TestEmplaceOrVisitHistogram exercises the counting idiom: repeated
// EmplaceOrVisit calls over a small key space accumulate into a histogram
// whose total equals the number of calls made (property B4, single
// goroutine variant).
func TestEmplaceOrVisitHistogram(t *testing.T) {
	tbl, err := New[string, int](ShardsLow)
	require.NoError(t, err)

	words := []string{"a", "b", "a", "c", "b", "a"}
	for _, w := range words {
		_, err := tbl.EmplaceOrVisit(w, 1, func(e *Entry[string, int]) {
			e.Value++
		})
		require.NoError(t, err)
	}

	total := 0
	tbl.VisitAll(func(e *Entry[string, int]) bool {
		total += e.Value
		return true
	})
	require.Equal(t, len(words), total)

	var got int
	tbl.CVisit("a", func(e *Entry[string, int]) { got = e.Value })
	require.Equal(t, 3, got)
}

// TestEmplaceOrVisitConcurrentHistogram is property B4: eight goroutines
// hammer emplace_or_visit over a small key space; the sum of final values
// must equal the total number of calls made.
func TestEmplaceOrVisitConcurrentHistogram(t *testing.T) {
	tbl, err := New[int, int](ShardsMedium)
	require.NoError(t, err)

	const goroutines = 8
	const perGoroutine = 2000
	const keySpace = 16

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				k := (seed + i) % keySpace
				_, err := tbl.EmplaceOrVisit(k, 1, func(e *Entry[int, int]) {
					e.Value++
				})
				require.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	var total int
	tbl.VisitAll(func(e *Entry[int, int]) bool {
		total += e.Value
		return true
	})
	require.Equal(t, goroutines*perGoroutine, total)
}

// TestEraseIfUnderLoad seeds many entries and removes roughly half under
// concurrent readers, then checks the predicate held for everything
// removed and everything that remains.
func TestEraseIfUnderLoad(t *testing.T) {
	tbl, err := New[int, int](ShardsMedium)
	require.NoError(t, err)

	const n = 4000
	for i := 0; i < n; i++ {
		_, err := tbl.Emplace(i, i)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				tbl.VisitAll(func(e *Entry[int, int]) bool { return true })
			}
		}
	}()

	removed := tbl.EraseIf(func(e *Entry[int, int]) bool { return e.Key%2 == 0 })
	close(stop)
	wg.Wait()

	require.Equal(t, n/2, removed)
	require.Equal(t, n/2, tbl.Size())
	tbl.VisitAll(func(e *Entry[int, int]) bool {
		require.Equal(t, 1, e.Key%2)
		return true
	})
}

// TestMergeWithSharedAndColliding keys checks that Merge moves every entry
// of other that doesn't already exist in t, and leaves colliding keys
// behind in other untouched.
func TestMergeWithSharedAndColliding(t *testing.T) {
	a, err := New[int, string](ShardsLow)
	require.NoError(t, err)
	b, err := New[int, string](ShardsLow)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := a.Emplace(i, "a-original")
		require.NoError(t, err)
	}
	for i := 25; i < 75; i++ {
		_, err := b.Emplace(i, "b-value")
		require.NoError(t, err)
	}

	a.Merge(b)

	require.Equal(t, 75, a.Size())
	require.Equal(t, 25, b.Size(), "colliding keys [25,50) stay behind in b")

	for i := 0; i < 25; i++ {
		a.CVisit(i, func(e *Entry[int, string]) { require.Equal(t, "a-original", e.Value) })
	}
	for i := 25; i < 50; i++ {
		a.CVisit(i, func(e *Entry[int, string]) { require.Equal(t, "a-original", e.Value) })
		require.True(t, b.Contains(i))
	}
	for i := 50; i < 75; i++ {
		a.CVisit(i, func(e *Entry[int, string]) { require.Equal(t, "b-value", e.Value) })
		require.False(t, b.Contains(i))
	}
}

// failingAllocator fails every AllocGroups call after the first failAfter
// calls, used to exercise strong exception safety on rehash/growth.
type failingAllocator[K comparable, V any] struct {
	failAfter int
	calls     int
}

func (a *failingAllocator[K, V]) AllocGroups(n int) ([]bucket.Group[K, V], error) {
	a.calls++
	if a.calls > a.failAfter {
		return nil, errors.New("injected allocation failure")
	}
	return make([]bucket.Group[K, V], n), nil
}

// TestEmplaceAllocationFailureLeavesTableUsable is the exception-safety
// scenario at the Table level: a GroupAllocator that starts failing after
// construction must leave prior entries intact and surface a typed error
// through Emplace, not a panic or silent data loss.
func TestEmplaceAllocationFailureLeavesTableUsable(t *testing.T) {
	alloc := &failingAllocator[int, int]{failAfter: 1}
	tbl, err := New[int, int](ShardsNone,
		WithGroupAllocator[int, int](alloc),
		WithHasher[int, int](HasherFunc[int](func(k int) uint64 { return uint64(k) })),
	)
	require.NoError(t, err)

	// When the load-factor-triggered rehash after a placement fails, Emplace
	// undoes that placement and returns inserted==false with the error, so
	// placed holds exactly the keys committed by successful calls.
	var lastErr error
	var placed []int
	for i := 0; i < 64; i++ {
		ok, err := tbl.Emplace(i, i)
		if ok {
			placed = append(placed, i)
		}
		if err != nil {
			lastErr = err
			break
		}
	}
	require.Error(t, lastErr)

	var allocErr *ErrAllocationFailure
	require.ErrorAs(t, lastErr, &allocErr)

	require.Equal(t, len(placed), tbl.Size())
	for _, k := range placed {
		require.True(t, tbl.Contains(k))
	}

	// The table stays usable for reads and for keys that don't require
	// further allocation (erasing, visiting the surviving entries).
	require.True(t, tbl.Delete(placed[0]))
	require.Equal(t, len(placed)-1, tbl.Size())
}

func TestInsertOrAssignOverwritesExisting(t *testing.T) {
	tbl, err := New[string, int](ShardsLow)
	require.NoError(t, err)

	inserted, err := tbl.InsertOrAssign("k", 1)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = tbl.InsertOrAssign("k", 2)
	require.NoError(t, err)
	require.False(t, inserted)

	var got int
	tbl.CVisit("k", func(e *Entry[string, int]) { got = e.Value })
	require.Equal(t, 2, got)
}

func TestEraseThenReinsertObservesNewValue(t *testing.T) {
	tbl, err := New[string, int](ShardsLow)
	require.NoError(t, err)

	_, err = tbl.Emplace("k", 1)
	require.NoError(t, err)
	require.True(t, tbl.Delete("k"))
	require.False(t, tbl.Contains("k"))

	_, err = tbl.Emplace("k", 2)
	require.NoError(t, err)

	var got int
	tbl.CVisit("k", func(e *Entry[string, int]) { got = e.Value })
	require.Equal(t, 2, got)
}

func TestReserveDistributesAcrossShards(t *testing.T) {
	tbl, err := WithCapacity[int, int](10_000, ShardsMedium)
	require.NoError(t, err)
	require.Equal(t, 0, tbl.Size())

	for i := 0; i < 10_000; i++ {
		_, err := tbl.Emplace(i, i)
		require.NoError(t, err)
	}
	require.Equal(t, 10_000, tbl.Size())
}

func TestSwapExchangesShardSets(t *testing.T) {
	a, err := New[int, int](ShardsLow)
	require.NoError(t, err)
	b, err := New[int, int](ShardsLow)
	require.NoError(t, err)

	a.Emplace(1, 100)
	b.Emplace(2, 200)

	a.Swap(b)

	require.True(t, a.Contains(2))
	require.False(t, a.Contains(1))
	require.True(t, b.Contains(1))
	require.False(t, b.Contains(2))
}

func TestSwapPanicsOnShardCountMismatch(t *testing.T) {
	a, err := New[int, int](ShardsLow)
	require.NoError(t, err)
	b, err := New[int, int](ShardsHigh)
	require.NoError(t, err)

	require.Panics(t, func() { a.Swap(b) })
}

func TestVisitByHeterogeneousLookup(t *testing.T) {
	tbl, err := New[string, int](ShardsLow)
	require.NoError(t, err)
	_, err = tbl.Emplace("hello", 42)
	require.NoError(t, err)

	found := VisitBy[string, int, []byte](tbl, []byte("hello"),
		func(b []byte) uint64 { return tbl.hasher.Hash(string(b)) },
		func(b []byte, k string) bool { return string(b) == k },
		func(e *Entry[string, int]) { require.Equal(t, 42, e.Value) },
	)
	require.True(t, found)

	found = VisitBy[string, int, []byte](tbl, []byte("missing"),
		func(b []byte) uint64 { return tbl.hasher.Hash(string(b)) },
		func(b []byte, k string) bool { return string(b) == k },
		func(*Entry[string, int]) {},
	)
	require.False(t, found)
}

func TestVisitAllParallelVisitsEveryEntry(t *testing.T) {
	tbl, err := New[int, int](ShardsMedium)
	require.NoError(t, err)
	const n = 2000
	for i := 0; i < n; i++ {
		_, err := tbl.Emplace(i, i)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := make(map[int]bool, n)
	err = tbl.VisitAllParallel(context.Background(), func(e *Entry[int, int]) bool {
		mu.Lock()
		seen[e.Key] = true
		mu.Unlock()
		return true
	})
	require.NoError(t, err)
	require.Len(t, seen, n)
}

func TestFromSliceAndFromMap(t *testing.T) {
	entries := []Entry[int, string]{{Key: 1, Value: "a"}, {Key: 2, Value: "b"}, {Key: 1, Value: "dup"}}
	tbl, err := FromSlice[int, string](entries, ShardsLow)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Size())
	var got string
	tbl.CVisit(1, func(e *Entry[int, string]) { got = e.Value })
	require.Equal(t, "a", got, "later duplicates must not overwrite earlier ones")

	m := map[int]string{1: "x", 2: "y", 3: "z"}
	tbl2, err := FromMap[int, string](m, ShardsLow)
	require.NoError(t, err)
	require.Equal(t, 3, tbl2.Size())
}

func TestSetBasicOperations(t *testing.T) {
	s, err := NewSet[int](ShardsLow)
	require.NoError(t, err)

	inserted, err := s.Insert(1)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.Insert(1)
	require.NoError(t, err)
	require.False(t, inserted)

	require.True(t, s.Contains(1))
	require.Equal(t, 1, s.Size())

	require.True(t, s.Erase(1))
	require.False(t, s.Contains(1))
}

func TestSetMerge(t *testing.T) {
	a, err := NewSet[int](ShardsLow)
	require.NoError(t, err)
	b, err := NewSet[int](ShardsLow)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := b.Insert(i)
		require.NoError(t, err)
	}
	a.Merge(b)
	require.Equal(t, 10, a.Size())
	require.Equal(t, 0, b.Size())
}

func TestEmptyTableInsertionIsOneAllocation(t *testing.T) {
	tbl, err := New[int, int](ShardsNone)
	require.NoError(t, err)
	require.True(t, tbl.Empty())

	inserted, err := tbl.Emplace(1, 1)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, 1, tbl.Size())
}

func TestWithMaxLoadFactorValidation(t *testing.T) {
	_, err := New[int, int](ShardsLow, WithMaxLoadFactor[int, int](0))
	require.ErrorIs(t, err, errInvalidLoadFactor)

	_, err = New[int, int](ShardsLow, WithMaxLoadFactor[int, int](1.5))
	require.ErrorIs(t, err, errInvalidLoadFactor)

	_, err = New[int, int](0)
	require.ErrorIs(t, err, errInvalidShards)
}

func TestRehashPreservesSizeAndEntries(t *testing.T) {
	tbl, err := New[int, int](ShardsLow)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		_, err := tbl.Emplace(i, i)
		require.NoError(t, err)
	}
	before := tbl.Size()

	require.NoError(t, tbl.Rehash(1000))

	require.Equal(t, before, tbl.Size())
	for i := 0; i < 200; i++ {
		require.True(t, tbl.Contains(i))
	}
}
