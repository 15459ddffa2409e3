package cache

import (
	"maps"
	"slices"
	"sync"

	"github.com/jzelinskie/stringz"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/authzed/jsonschemas/pkg/promutil"
)

func init() {
	prometheus.MustRegister(collector)
}

func metricName(name string) string {
	return stringz.Join("_", "jsonschemas", "cache", name)
}

var (
	descHits        = prometheus.NewDesc(metricName("hits_total"), "Number of cache hits", []string{"cache"}, nil)
	descMisses      = prometheus.NewDesc(metricName("misses_total"), "Number of cache misses", []string{"cache"}, nil)
	descCostAdded   = prometheus.NewDesc(metricName("cost_added"), "Cost of entries added to the cache", []string{"cache"}, nil)
	descCostEvicted = prometheus.NewDesc(metricName("cost_evicted"), "Cost of entries evicted from the cache", []string{"cache"}, nil)
)

// withMetrics is the part of a Cache the collector reads.
type withMetrics interface {
	GetMetrics() Metrics
}

// registered holds every open cache by name. A name may only be reused once
// the cache holding it is closed.
var registered = struct {
	sync.Mutex
	byName map[string]withMetrics
}{byName: map[string]withMetrics{}}

func mustRegisterCache(name string, c withMetrics) {
	registered.Lock()
	defer registered.Unlock()
	if _, ok := registered.byName[name]; ok {
		panic("two caches with the same name: " + name)
	}
	registered.byName[name] = c
}

func unregisterCache(name string) {
	registered.Lock()
	defer registered.Unlock()
	delete(registered.byName, name)
}

var collector = promutil.CollectorFunc(func(ch chan<- prometheus.Metric) {
	registered.Lock()
	names := slices.Sorted(maps.Keys(registered.byName))
	caches := make([]withMetrics, 0, len(names))
	for _, name := range names {
		caches = append(caches, registered.byName[name])
	}
	registered.Unlock()

	for i, name := range names {
		m := caches[i].GetMetrics()
		for desc, value := range map[*prometheus.Desc]uint64{
			descHits:        m.Hits(),
			descMisses:      m.Misses(),
			descCostAdded:   m.CostAdded(),
			descCostEvicted: m.CostEvicted(),
		} {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value), name)
		}
	}
})
