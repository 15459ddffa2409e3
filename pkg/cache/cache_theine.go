package cache

import (
	"sync"
	"time"

	"github.com/Yiling-J/theine-go"
	"github.com/rs/zerolog"
)

// NewTheineCacheWithMetrics creates a theine cache whose metrics are exported
// under the given name.
func NewTheineCacheWithMetrics[K KeyString, V any](name string, config *Config) (Cache[K, V], error) {
	built, err := theine.NewBuilder[K, V](config.MaxCost).Build()
	if err != nil {
		return nil, err
	}

	tc := &theineCache[K, V]{name: name, cache: built, ttl: config.DefaultTTL}
	mustRegisterCache(name, tc)
	return tc, nil
}

type theineCache[K KeyString, V any] struct {
	name   string
	cache  *theine.Cache[K, V]
	ttl    time.Duration
	added  costCounter
	closed sync.Once
}

func (tc *theineCache[K, V]) Get(key K) (V, bool) {
	return tc.cache.Get(key)
}

func (tc *theineCache[K, V]) Set(key K, value V, cost int64) bool {
	tc.added.add(cost)
	if tc.ttl > 0 {
		return tc.cache.SetWithTTL(key, value, cost, tc.ttl)
	}
	return tc.cache.Set(key, value, cost)
}

// Wait returns immediately; theine applies writes synchronously.
func (tc *theineCache[K, V]) Wait() {}

func (tc *theineCache[K, V]) Close() {
	tc.closed.Do(func() {
		tc.cache.Close()
		unregisterCache(tc.name)
	})
}

func (tc *theineCache[K, V]) GetMetrics() Metrics { return theineMetrics[K, V]{tc} }

func (tc *theineCache[K, V]) MarshalZerologObject(e *zerolog.Event) {
	e.Str("engine", string(EngineTheine)).Str("name", tc.name)
}

type theineMetrics[K KeyString, V any] struct {
	tc *theineCache[K, V]
}

func (tm theineMetrics[K, V]) Hits() uint64      { return tm.tc.cache.Stats().Hits() }
func (tm theineMetrics[K, V]) Misses() uint64    { return tm.tc.cache.Stats().Misses() }
func (tm theineMetrics[K, V]) CostAdded() uint64 { return tm.tc.added.load() }

// CostEvicted is not reported by theine.
func (tm theineMetrics[K, V]) CostEvicted() uint64 { return 0 }
