// hash.go defines the Hasher/KeyEqual collaborator interfaces and the
// default implementations used when a caller does not supply their own.
//
// The default hasher special-cases string/[]byte, routing them through
// github.com/cespare/xxhash/v2 directly since xxhash is a well-mixed
// (avalanching) 64-bit hash and this core has no tombstone-based
// linear-probing fallback to absorb a poorly distributed one. Every other
// comparable type falls back to hashing its raw in-memory bytes.
//
// © 2025 chtable authors. MIT License.
package chtable

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"

	"github.com/shardwell/chashtable/internal/unsafehelpers"
)

// Hasher produces a 64-bit hash for a key. Implementations must be safe for
// concurrent use by multiple goroutines: a single Hasher is shared
// immutably across all shards.
type Hasher[K comparable] interface {
	Hash(key K) uint64
}

// KeyEqual reports whether two keys are equal. Must agree with the Hasher in
// use: equal keys must hash identically.
type KeyEqual[K comparable] interface {
	Equal(a, b K) bool
}

// HasherFunc adapts a plain function to the Hasher interface.
type HasherFunc[K comparable] func(K) uint64

// Hash implements Hasher.
func (f HasherFunc[K]) Hash(key K) uint64 { return f(key) }

// KeyEqualFunc adapts a plain function to the KeyEqual interface.
type KeyEqualFunc[K comparable] func(a, b K) bool

// Equal implements KeyEqual.
func (f KeyEqualFunc[K]) Equal(a, b K) bool { return f(a, b) }

// defaultKeyEqual is used whenever a caller does not supply KeyEqual: plain
// Go == comparison, valid for any comparable K.
type defaultKeyEqual[K comparable] struct{}

func (defaultKeyEqual[K]) Equal(a, b K) bool { return a == b }

// defaultHasher routes strings and byte slices through xxhash directly
// (avalanching, no copy of the key bytes); every other
// comparable type is hashed via its raw in-memory bytes, using hash/maphash
// as the seeded mixing step since xxhash has no generic "hash arbitrary
// struct bytes" entry point.
type defaultHasher[K comparable] struct {
	seed maphash.Seed
}

func newDefaultHasher[K comparable]() *defaultHasher[K] {
	return &defaultHasher[K]{seed: maphash.MakeSeed()}
}

func (h *defaultHasher[K]) Hash(key K) uint64 {
	switch k := any(key).(type) {
	case string:
		return xxhash.Sum64String(k)
	case []byte:
		return xxhash.Sum64(k)
	default:
		var mh maphash.Hash
		mh.SetSeed(h.seed)
		mh.Write(unsafehelpers.ScalarBytes(&key))
		// Post-mix through xxhash so the final distribution is avalanching
		// even for keys whose raw byte pattern is itself low-entropy (e.g.
		// small integers).
		return xxhash.Sum64(mh.Sum(nil))
	}
}

// postMixHasher wraps a caller-supplied Hasher that may not itself be
// avalanching (e.g. an identity hash over small integers) and remixes its
// output through xxhash before it reaches the group-index/tag split. The
// table core has no tombstone-based fallback for a badly distributed hash,
// so a non-avalanching Hasher must opt into this wrapper explicitly.
type postMixHasher[K comparable] struct {
	inner Hasher[K]
}

func (h postMixHasher[K]) Hash(key K) uint64 {
	raw := h.inner.Hash(key)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(raw >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

// WithPostMix wraps h so its output is remixed through xxhash before use,
// for hashers that are not themselves avalanching.
func WithPostMix[K comparable, V any](h Hasher[K]) Option[K, V] {
	return WithHasher[K, V](postMixHasher[K]{inner: h})
}
