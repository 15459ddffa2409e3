package cache

import (
	"sync"

	"github.com/ccoveille/go-safecast/v2"
	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
	"github.com/rs/zerolog"
)

// NewOtterCacheWithMetrics creates an otter cache whose metrics are exported
// under the given name. Otter bounds by entry count, so MaxCost is used as
// the maximum size and per-entry costs are only tracked for metrics.
func NewOtterCacheWithMetrics[K KeyString, V any](name string, config *Config) (Cache[K, V], error) {
	maxSize, err := safecast.Convert[int](config.MaxCost)
	if err != nil {
		return nil, err
	}

	counter := stats.NewCounter()
	options := &otter.Options[K, V]{
		MaximumSize:   maxSize,
		StatsRecorder: counter,
	}
	if config.DefaultTTL > 0 {
		options.ExpiryCalculator = otter.ExpiryWriting[K, V](config.DefaultTTL)
	}

	built, err := otter.New(options)
	if err != nil {
		return nil, err
	}

	oc := &otterCache[K, V]{name: name, cache: built, counter: counter}
	mustRegisterCache(name, oc)
	return oc, nil
}

type otterCache[K KeyString, V any] struct {
	name    string
	cache   *otter.Cache[K, V]
	counter *stats.Counter
	added   costCounter
	closed  sync.Once
}

func (oc *otterCache[K, V]) Get(key K) (V, bool) {
	return oc.cache.GetIfPresent(key)
}

func (oc *otterCache[K, V]) Set(key K, value V, cost int64) bool {
	oc.added.add(cost)
	oc.cache.Set(key, value)
	return true
}

func (oc *otterCache[K, V]) Wait() { oc.cache.CleanUp() }

func (oc *otterCache[K, V]) Close() {
	oc.closed.Do(func() {
		oc.cache.InvalidateAll()
		unregisterCache(oc.name)
	})
}

func (oc *otterCache[K, V]) GetMetrics() Metrics {
	snapshot := oc.counter.Snapshot()
	return otterMetrics{snapshot: snapshot, costAdded: oc.added.load()}
}

func (oc *otterCache[K, V]) MarshalZerologObject(e *zerolog.Event) {
	e.Str("engine", string(EngineOtter)).Str("name", oc.name)
}

// otterMetrics is a point-in-time read of the stats counter. Otter counts
// evicted entries rather than their cost.
type otterMetrics struct {
	snapshot  stats.Stats
	costAdded uint64
}

func (om otterMetrics) Hits() uint64        { return om.snapshot.Hits }
func (om otterMetrics) Misses() uint64      { return om.snapshot.Misses }
func (om otterMetrics) CostAdded() uint64   { return om.costAdded }
func (om otterMetrics) CostEvicted() uint64 { return om.snapshot.Evictions }
