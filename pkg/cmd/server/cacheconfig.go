package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/jzelinskie/stringz"
	"github.com/spf13/pflag"

	"github.com/authzed/jsonschemas/internal/caching"
	log "github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/pkg/cache"
)

// CacheConfig defines configuration for the parsed schema cache.
type CacheConfig struct {
	Name        string
	Engine      string
	MaxEntries  int64
	NumCounters int64
	TTL         time.Duration
	Disabled    bool
}

const (
	defaultCacheName   = "schema"
	defaultMaxEntries  = 1000
	defaultNumCounters = 1e4 // number of keys to track frequency of (10k).
)

// Complete translates the CLI cache config into a cache.
func (cc *CacheConfig) Complete() (cache.Cache[caching.Key, any], error) {
	if cc.Disabled {
		log.Info().Msg("schema cache disabled")
		return cache.NoopCache[caching.Key, any](), nil
	}

	if cc.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache max entries must be positive, got %d", cc.MaxEntries)
	}

	engine, err := cache.ParseEngine(stringz.DefaultEmpty(cc.Engine, string(cache.EngineTheine)))
	if err != nil {
		return nil, err
	}

	config := &cache.Config{
		MaxCost:     cc.MaxEntries,
		NumCounters: defaultIfUnset(cc.NumCounters, defaultNumCounters),
		DefaultTTL:  cc.TTL,
	}
	c, err := cache.NewCacheWithMetrics[caching.Key, any](engine, stringz.DefaultEmpty(cc.Name, defaultCacheName), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", engine, err)
	}

	log.Info().Str("engine", string(engine)).EmbedObject(config).Msg("configured schema cache")
	return c, nil
}

func defaultIfUnset(value, fallback int64) int64 {
	if value <= 0 {
		return fallback
	}
	return value
}

// RegisterCacheConfigFlags registers flags for the schema cache.
func RegisterCacheConfigFlags(flags *pflag.FlagSet, config *CacheConfig, flagPrefix string) {
	flagPrefix = stringz.DefaultEmpty(flagPrefix, "cache")

	engines := make([]string, 0, len(cache.Engines))
	for _, engine := range cache.Engines {
		engines = append(engines, string(engine))
	}

	flags.StringVar(&config.Engine, flagPrefix+"-engine", string(cache.EngineTheine), "cache implementation to use ("+strings.Join(engines, ", ")+")")
	flags.Int64Var(&config.MaxEntries, flagPrefix+"-max-entries", defaultMaxEntries, "the maximum number of parsed schemas to keep in the cache")
	flags.Int64Var(&config.NumCounters, flagPrefix+"-num-counters", defaultNumCounters, "the number of keys to track, used by the ristretto engine")
	flags.DurationVar(&config.TTL, flagPrefix+"-ttl", 0, "how long a parsed schema may stay cached, 0 for no limit")
	flags.BoolVar(&config.Disabled, flagPrefix+"-disabled", false, "if true, fully disables the cache")
}
