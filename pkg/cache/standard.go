package cache

import "fmt"

// NewStandardCacheWithMetrics creates the default engine's cache.
func NewStandardCacheWithMetrics[K KeyString, V any](name string, config *Config) (Cache[K, V], error) {
	return NewTheineCacheWithMetrics[K, V](name, config)
}

// NewCacheWithMetrics creates a cache backed by the given engine.
func NewCacheWithMetrics[K KeyString, V any](engine Engine, name string, config *Config) (Cache[K, V], error) {
	switch engine {
	case EngineTheine, "":
		return NewTheineCacheWithMetrics[K, V](name, config)
	case EngineRistretto:
		return NewRistrettoCacheWithMetrics[K, V](name, config)
	case EngineOtter:
		return NewOtterCacheWithMetrics[K, V](name, config)
	default:
		return nil, fmt.Errorf("unknown cache engine `%s`", engine)
	}
}
