// Command chtable-bench is a small diagnostic binary that runs a mixed
// workload against a chtable.Table and reports throughput, final size, and
// load factor. It is ambient test tooling, not a library surface.
//
// Usage:
//   go run ./cmd/chtable-bench -keys 1000000 -shards 32 -goroutines 8
//
// © 2025 chtable authors. MIT License.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shardwell/chashtable/pkg/chtable"
)

func main() {
	var (
		numKeys    = flag.Int("keys", 1_000_000, "number of distinct keys to exercise")
		numShards  = flag.Uint("shards", uint(chtable.ShardsMedium), "shard count (power of two)")
		goroutines = flag.Int("goroutines", 8, "concurrent writer/reader goroutines")
		seed       = flag.Int64("seed", 42, "PRNG seed")
	)
	flag.Parse()

	t, err := chtable.New[uint64, uint64](chtable.ShardsPolicy(*numShards))
	if err != nil {
		fmt.Println("table init failed:", err)
		return
	}

	rnd := rand.New(rand.NewSource(*seed))
	keys := make([]uint64, *numKeys)
	for i := range keys {
		keys[i] = rnd.Uint64()
	}

	var wg sync.WaitGroup
	start := time.Now()
	perGoroutine := len(keys) / *goroutines
	for g := 0; g < *goroutines; g++ {
		lo, hi := g*perGoroutine, (g+1)*perGoroutine
		if g == *goroutines-1 {
			hi = len(keys)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				k := keys[i]
				t.EmplaceOrVisit(k, 1, func(e *chtable.Entry[uint64, uint64]) {
					e.Value++
				})
			}
		}(lo, hi)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("keys=%d shards=%d goroutines=%d\n", *numKeys, *numShards, *goroutines)
	fmt.Printf("elapsed=%s ops/sec=%.0f\n", elapsed, float64(len(keys))/elapsed.Seconds())
	fmt.Printf("final size=%d load_factor=%.4f\n", t.Size(), t.LoadFactor())
}
