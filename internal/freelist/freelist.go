// Package freelist implements the shard-local recycling pool for overflow
// chain nodes: a singly-linked stack of nodes emptied by erase, reused by a
// later insert before the shard asks its allocator for a fresh one.
//
// Pool is not safe for concurrent use; the owning shard serialises access
// with its own lock.
//
// © 2025 chtable authors. MIT License.
package freelist

import "github.com/shardwell/chashtable/internal/bucket"

// node wraps a recycled *bucket.Group so the pool can chain free nodes
// through a field that isn't part of the public bucket.Group API.
type node[K comparable, V any] struct {
	group *bucket.Group[K, V]
	next  *node[K, V]
}

// Pool is a shard-local stack of recycled overflow chain nodes.
type Pool[K comparable, V any] struct {
	top   *node[K, V]
	spare []*node[K, V] // recycled node wrappers, avoids reallocating them
}

// New returns an empty pool.
func New[K comparable, V any]() *Pool[K, V] {
	return &Pool[K, V]{}
}

// Get returns a recycled, reset *bucket.Group if one is available, or nil if
// the pool is empty — the caller (shard) falls back to allocating a fresh
// group via its GroupAllocator in that case.
func (p *Pool[K, V]) Get() *bucket.Group[K, V] {
	if p.top == nil {
		return nil
	}
	n := p.top
	p.top = n.next
	g := n.group
	n.group = nil
	n.next = nil
	p.spare = append(p.spare, n)
	return g
}

// Put returns g to the pool after resetting it to empty, unlinked state.
func (p *Pool[K, V]) Put(g *bucket.Group[K, V]) {
	g.Reset()
	var n *node[K, V]
	if l := len(p.spare); l > 0 {
		n = p.spare[l-1]
		p.spare = p.spare[:l-1]
	} else {
		n = &node[K, V]{}
	}
	n.group = g
	n.next = p.top
	p.top = n
}

// Len returns the number of nodes currently recycled in the pool.
func (p *Pool[K, V]) Len() int {
	n := 0
	for cur := p.top; cur != nil; cur = cur.next {
		n++
	}
	return n
}
