// config.go defines ShardsPolicy, the functional Option type and the
// internal config object assembled from them: max load factor, hasher, key
// equality, group allocator, metrics, logger.
//
// © 2025 chtable authors. MIT License.
package chtable

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shardwell/chashtable/internal/shard"
)

// ShardsPolicy selects the table's shard count from a fixed ladder. All
// values are powers of two so shard selection is a mask, never a modulo.
type ShardsPolicy uint8

const (
	ShardsNone   ShardsPolicy = 1
	ShardsLow    ShardsPolicy = 8
	ShardsMedium ShardsPolicy = 32
	ShardsHigh   ShardsPolicy = 128
)

func (p ShardsPolicy) valid() bool {
	n := uint8(p)
	return n != 0 && (n&(n-1)) == 0
}

const defaultMaxLoadFactor = 0.875

// Option is the functional option passed to New, generic over K/V so
// hasher/equality/allocator knobs stay strongly typed.
type Option[K comparable, V any] func(*config[K, V])

type config[K comparable, V any] struct {
	shards        ShardsPolicy
	maxLoadFactor float64

	hasher  Hasher[K]
	keyEq   KeyEqual[K]
	alloc   shard.GroupAllocator[K, V]
	logger  *zap.Logger
	registry *prometheus.Registry
}

func defaultConfig[K comparable, V any](shards ShardsPolicy) *config[K, V] {
	return &config[K, V]{
		shards:        shards,
		maxLoadFactor: defaultMaxLoadFactor,
		logger:        zap.NewNop(),
	}
}

// WithHasher overrides the default hash functor.
func WithHasher[K comparable, V any](h Hasher[K]) Option[K, V] {
	return func(c *config[K, V]) { c.hasher = h }
}

// WithKeyEqual overrides the default (==) key-equality functor. Required
// whenever K is not safely comparable with ==, e.g. when keys carry
// insignificant padding or case-insensitive string semantics.
func WithKeyEqual[K comparable, V any](eq KeyEqual[K]) Option[K, V] {
	return func(c *config[K, V]) { c.keyEq = eq }
}

// WithGroupAllocator overrides the default bucket-group allocator. Tests use
// this to inject allocation failures for exception-safety scenarios.
func WithGroupAllocator[K comparable, V any](a shard.GroupAllocator[K, V]) Option[K, V] {
	return func(c *config[K, V]) { c.alloc = a }
}

// WithMaxLoadFactor overrides the default max load factor (0.875). Must be
// in (0, 1].
func WithMaxLoadFactor[K comparable, V any](f float64) Option[K, V] {
	return func(c *config[K, V]) { c.maxLoadFactor = f }
}

// WithLogger plugs an external zap.Logger. The logger is stored on the
// table; no table operation writes log entries to it, and errors are only
// ever returned to the caller.
func WithLogger[K comparable, V any](l *zap.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection for the table instance.
// Passing nil disables metrics (default).
func WithMetrics[K comparable, V any](reg *prometheus.Registry) Option[K, V] {
	return func(c *config[K, V]) { c.registry = reg }
}

func applyOptions[K comparable, V any](cfg *config[K, V], opts []Option[K, V]) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if !cfg.shards.valid() {
		return errInvalidShards
	}
	if cfg.maxLoadFactor <= 0 || cfg.maxLoadFactor > 1 {
		return errInvalidLoadFactor
	}
	return nil
}

var (
	errInvalidShards     = errors.New("chtable: shards policy must be a power of two")
	errInvalidLoadFactor = errors.New("chtable: max load factor must be in (0, 1]")
)
