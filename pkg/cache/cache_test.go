package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	defaultEventuallyTimeout = 5 * time.Second
	defaultEventuallyTick    = 10 * time.Millisecond
)

func testConfig() *Config {
	return &Config{NumCounters: 1000, MaxCost: 100}
}

func TestEnginesGetSet(t *testing.T) {
	for _, engine := range Engines {
		t.Run(string(engine), func(t *testing.T) {
			c, err := NewCacheWithMetrics[StringKey, string](engine, "test-getset-"+string(engine), testConfig())
			require.NoError(t, err)
			defer c.Close()

			_, ok := c.Get("missing")
			require.False(t, ok)

			// Ristretto may drop sets under contention; retry until admitted.
			require.Eventually(t, func() bool {
				c.Set("key", "value", 1)
				c.Wait()
				found, ok := c.Get("key")
				return ok && found == "value"
			}, defaultEventuallyTimeout, defaultEventuallyTick)

			metrics := c.GetMetrics()
			require.Positive(t, metrics.Hits())
			require.Positive(t, metrics.Misses())
			require.Positive(t, metrics.CostAdded())
		})
	}
}

func TestDuplicateNamePanics(t *testing.T) {
	c, err := NewStandardCacheWithMetrics[StringKey, string]("test-duplicate", testConfig())
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = NewStandardCacheWithMetrics[StringKey, string]("test-duplicate", testConfig())
	})

	c.Close()

	// Closing unregisters, so the name can be reused.
	again, err := NewStandardCacheWithMetrics[StringKey, string]("test-duplicate", testConfig())
	require.NoError(t, err)
	again.Close()
}

func TestCollectorReportsRegisteredCaches(t *testing.T) {
	c, err := NewCacheWithMetrics[StringKey, int](EngineTheine, "test-collector", testConfig())
	require.NoError(t, err)
	defer c.Close()

	c.Set("a", 1, 1)
	_, _ = c.Get("a")
	_, _ = c.Get("b")

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(collector))

	count, err := testutil.GatherAndCount(registry, "jsonschemas_cache_hits_total", "jsonschemas_cache_misses_total")
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 2)
}

func TestParseEngine(t *testing.T) {
	for _, engine := range Engines {
		parsed, err := ParseEngine(string(engine))
		require.NoError(t, err)
		require.Equal(t, engine, parsed)
	}

	_, err := ParseEngine("lru")
	require.Error(t, err)

	_, err = NewCacheWithMetrics[StringKey, int](Engine("lru"), "test-unknown", testConfig())
	require.ErrorContains(t, err, fmt.Sprintf("`%s`", "lru"))
}

func TestNoopCache(t *testing.T) {
	c := NoopCache[StringKey, string]()
	require.False(t, c.Set("a", "b", 1))
	_, ok := c.Get("a")
	require.False(t, ok)
	require.Zero(t, c.GetMetrics().Hits())
}
