// metrics.go is a thin abstraction over Prometheus, adapted from the
// teacher's pkg/metrics.go: hit/miss/eviction counters become the hash
// table's own shard-level gauges and counters. When the caller passes a
// *prometheus.Registry via WithMetrics, labeled collectors are registered;
// otherwise a no-op sink is used and the hot path pays nothing for metric
// updates.
//
// ┌────────────────────────────┬───────┬────────┐
// │ Metric                     │ Type  │ Labels │
// ├────────────────────────────┼───────┼────────┤
// │ chtable_shard_size         │ Gauge │ shard  │
// │ chtable_shard_rehashes_total│ Ctr  │ shard  │
// │ chtable_shard_chain_nodes  │ Gauge │ shard  │
// │ chtable_shard_load_factor  │ Gauge │ shard  │
// └────────────────────────────┴───────┴────────┘
//
// © 2025 chtable authors. MIT License.
package chtable

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
	observeShard(shardIdx int, size int64, rehashes uint64, chainNodes int64, loadFactor float64)
}

type noopMetrics struct{}

func (noopMetrics) observeShard(int, int64, uint64, int64, float64) {}

type promMetrics struct {
	size       *prometheus.GaugeVec
	rehashes   *prometheus.CounterVec
	chainNodes *prometheus.GaugeVec
	loadFactor *prometheus.GaugeVec

	mu           sync.Mutex
	lastRehashes []uint64 // to emit counter deltas, since Shard tracks a cumulative total
}

func newPromMetrics(shardCount int, reg *prometheus.Registry) *promMetrics {
	label := []string{"shard"}
	pm := &promMetrics{
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chtable", Name: "shard_size", Help: "Live entries in this shard.",
		}, label),
		rehashes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chtable", Name: "shard_rehashes_total", Help: "Rehashes performed by this shard.",
		}, label),
		chainNodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chtable", Name: "shard_chain_nodes", Help: "Overflow chain nodes currently linked in.",
		}, label),
		loadFactor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chtable", Name: "shard_load_factor", Help: "size / (groupCount * GroupCapacity).",
		}, label),
		lastRehashes: make([]uint64, shardCount),
	}
	reg.MustRegister(pm.size, pm.rehashes, pm.chainNodes, pm.loadFactor)
	return pm
}

func (m *promMetrics) observeShard(shardIdx int, size int64, rehashes uint64, chainNodes int64, loadFactor float64) {
	label := strconv.Itoa(shardIdx)
	m.size.WithLabelValues(label).Set(float64(size))
	m.chainNodes.WithLabelValues(label).Set(float64(chainNodes))
	m.loadFactor.WithLabelValues(label).Set(loadFactor)

	// The counter delta read-modify-write needs its own lock: two goroutines
	// recording the same shard back-to-back (e.g. after racing Emplace calls
	// that both touched shardIdx) must not compute the delta from a stale
	// lastRehashes value.
	m.mu.Lock()
	if rehashes > m.lastRehashes[shardIdx] {
		m.rehashes.WithLabelValues(label).Add(float64(rehashes - m.lastRehashes[shardIdx]))
		m.lastRehashes[shardIdx] = rehashes
	}
	m.mu.Unlock()
}

func newMetricsSink(shardCount int, reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(shardCount, reg)
}
