// parallel.go implements a parallel variant of visit_all: each shard is
// walked by its own goroutine, so f runs on each live entry exactly once,
// but the shards are not visited in any particular order relative to one
// another. Built on golang.org/x/sync/errgroup, the idiomatic fit for
// "fan a closure out over N independent shards, collect the first error".
//
// © 2025 chtable authors. MIT License.
package chtable

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// VisitAllParallel applies f to every live entry exactly once, distributing
// shards across a worker per shard. Unlike the sequential VisitAll, f cannot
// reliably short-circuit the whole walk (other shards' goroutines are
// already running), so its return value only stops that shard's own walk
// early. ctx cancellation stops scheduling of shards not yet started.
func (t *Table[K, V]) VisitAllParallel(ctx context.Context, f func(*Entry[K, V]) bool) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range t.shards {
		s := s
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			s.Walk(f)
			return nil
		})
	}
	return g.Wait()
}
