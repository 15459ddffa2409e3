package cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/outcaste-io/ristretto"
	"github.com/outcaste-io/ristretto/z"
	"github.com/rs/zerolog"
)

const defaultBufferItems = 64

// NewRistrettoCacheWithMetrics creates a ristretto cache whose metrics are
// exported under the given name.
func NewRistrettoCacheWithMetrics[K KeyString, V any](name string, config *Config) (Cache[K, V], error) {
	built, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: defaultBufferItems,
		Metrics:     true,
		KeyToHash: func(key any) (uint64, uint64) {
			keyString, ok := key.(string)
			if !ok {
				return z.KeyToHash(key)
			}
			return z.MemHashString(keyString), xxhash.Sum64String(keyString)
		},
	})
	if err != nil {
		return nil, err
	}

	rc := &ristrettoCache[K, V]{name: name, cache: built, defaultTTL: config.DefaultTTL}
	mustRegisterCache(name, rc)
	return rc, nil
}

// ristrettoCache adapts the untyped ristretto cache. Keys are stored by their
// KeyString form.
type ristrettoCache[K KeyString, V any] struct {
	name       string
	cache      *ristretto.Cache
	defaultTTL time.Duration
	closed     sync.Once
}

func (rc *ristrettoCache[K, V]) Get(key K) (V, bool) {
	found, ok := rc.cache.Get(key.KeyString())
	if !ok {
		return *new(V), false
	}
	value, ok := found.(V)
	return value, ok
}

func (rc *ristrettoCache[K, V]) Set(key K, value V, cost int64) bool {
	if rc.defaultTTL <= 0 {
		return rc.cache.Set(key.KeyString(), value, cost)
	}
	return rc.cache.SetWithTTL(key.KeyString(), value, cost, rc.defaultTTL)
}

func (rc *ristrettoCache[K, V]) Wait() { rc.cache.Wait() }

func (rc *ristrettoCache[K, V]) Close() {
	rc.closed.Do(func() {
		rc.cache.Close()
		unregisterCache(rc.name)
	})
}

func (rc *ristrettoCache[K, V]) GetMetrics() Metrics { return rc.cache.Metrics }

func (rc *ristrettoCache[K, V]) MarshalZerologObject(e *zerolog.Event) {
	e.Str("engine", string(EngineRistretto)).Str("name", rc.name)
}
