// Package cache provides bounded in-memory caches over interchangeable
// engines, each exporting hit and eviction counters to Prometheus.
package cache

import (
	"fmt"
	"time"

	"github.com/ccoveille/go-safecast/v2"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// KeyString is implemented by cache keys. Engines that hash keys themselves
// store entries under the string form.
type KeyString interface {
	comparable
	KeyString() string
}

// StringKey is a plain string key.
type StringKey string

func (sk StringKey) KeyString() string { return string(sk) }

// Engine names a cache implementation.
type Engine string

const (
	EngineTheine    Engine = "theine"
	EngineRistretto Engine = "ristretto"
	EngineOtter     Engine = "otter"
)

// Engines lists every supported engine; the first is the default.
var Engines = []Engine{EngineTheine, EngineRistretto, EngineOtter}

// ParseEngine validates an engine name.
func ParseEngine(name string) (Engine, error) {
	for _, engine := range Engines {
		if string(engine) == name {
			return engine, nil
		}
	}
	return "", fmt.Errorf("unknown cache engine `%s`", name)
}

// Config sizes a cache.
type Config struct {
	// NumCounters is the number of keys whose access frequency is tracked.
	// Only ristretto uses it; it recommends ten times the expected entries.
	NumCounters int64

	// MaxCost bounds the total cost of the entries held.
	MaxCost int64

	// DefaultTTL expires entries this long after they are set. Zero keeps
	// them until evicted.
	DefaultTTL time.Duration
}

func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	maxCost, _ := safecast.Convert[uint64](c.MaxCost)
	e.Str("maxCost", humanize.Comma(c.MaxCost)).
		Uint64("maxCostRaw", maxCost).
		Int64("numCounters", c.NumCounters).
		Dur("defaultTTL", c.DefaultTTL)
}

// Cache is a bounded map whose entries may be evicted at any time.
type Cache[K KeyString, V any] interface {
	Get(key K) (V, bool)

	// Set stores the entry with the given cost. It returns false when the
	// engine drops the write.
	Set(key K, entry V, cost int64) bool

	// Wait blocks until buffered writes are visible to Get.
	Wait()

	// Close stops background workers and releases the cache name.
	Close()

	GetMetrics() Metrics

	zerolog.LogObjectMarshaler
}

// Metrics are the cumulative counters of a cache.
type Metrics interface {
	Hits() uint64
	Misses() uint64
	CostAdded() uint64
	CostEvicted() uint64
}

// NoopCache returns a cache that stores nothing.
func NoopCache[K KeyString, V any]() Cache[K, V] { return noopCache[K, V]{} }

type noopCache[K KeyString, V any] struct{}

func (noopCache[K, V]) Get(K) (V, bool) {
	var zero V
	return zero, false
}
func (noopCache[K, V]) Set(K, V, int64) bool { return false }
func (noopCache[K, V]) Wait()                {}
func (noopCache[K, V]) Close()               {}
func (noopCache[K, V]) GetMetrics() Metrics  { return noopMetrics{} }
func (noopCache[K, V]) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("enabled", false)
}

type noopMetrics struct{}

func (noopMetrics) Hits() uint64        { return 0 }
func (noopMetrics) Misses() uint64      { return 0 }
func (noopMetrics) CostAdded() uint64   { return 0 }
func (noopMetrics) CostEvicted() uint64 { return 0 }
