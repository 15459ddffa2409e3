// Package caching memoizes parsed schema documents in front of the registry.
//
// Entries are keyed by schema path and registry epoch, so a reload never
// serves documents from the registry it replaced. Concurrent misses for the
// same key collapse into a single read.
package caching

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"resenje.org/singleflight"

	"github.com/authzed/jsonschemas/pkg/cache"
	"github.com/authzed/jsonschemas/pkg/schemadoc"
)

var singleFlightCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "jsonschemas",
	Subsystem: "schema_cache",
	Name:      "single_flight_total",
	Help:      "total number of schema reads that missed the cache, by whether they were shared",
}, []string{"shared"})

// entryCost is the cost of every cached document; the cache is bounded by
// entry count.
const entryCost = 1

// Key identifies a document within one registry epoch.
type Key struct {
	Epoch uint64
	Path  string
}

func (k Key) KeyString() string {
	return k.Path + "@" + strconv.FormatUint(k.Epoch, 10)
}

// SchemaReader reads parsed schema documents.
type SchemaReader interface {
	ReadSchema(ctx context.Context, path string) (any, error)
}

// SchemaCache holds documents across registry epochs.
type SchemaCache struct {
	c     cache.Cache[Key, any]
	group singleflight.Group[Key, any]
}

// NewSchemaCache wraps the given cache. A cache.NoopCache disables caching
// but still collapses concurrent reads.
func NewSchemaCache(c cache.Cache[Key, any]) *SchemaCache {
	return &SchemaCache{c: c}
}

// Reader returns a reader for one registry epoch.
func (sc *SchemaCache) Reader(delegate SchemaReader, epoch uint64) *Reader {
	return &Reader{cache: sc, delegate: delegate, epoch: epoch}
}

// Close releases the underlying cache.
func (sc *SchemaCache) Close() {
	sc.c.Close()
}

// Reader is a SchemaReader backed by a SchemaCache.
type Reader struct {
	cache    *SchemaCache
	delegate SchemaReader
	epoch    uint64
}

// ReadSchema returns the document for the path, reading it through the
// delegate on a miss. Errors are not cached. The returned document is a copy
// owned by the caller.
func (r *Reader) ReadSchema(ctx context.Context, path string) (any, error) {
	key := Key{Epoch: r.epoch, Path: path}
	if doc, ok := r.cache.c.Get(key); ok {
		return schemadoc.DeepCopy(doc), nil
	}

	doc, isShared, err := r.cache.group.Do(ctx, key, func(innerCtx context.Context) (any, error) {
		loaded, err := r.delegate.ReadSchema(innerCtx, path)
		if err != nil {
			return nil, err
		}

		r.cache.c.Set(key, loaded, entryCost)

		// Ristretto applies sets asynchronously; wait so the next reader
		// finds the entry.
		r.cache.c.Wait()
		return loaded, nil
	})
	singleFlightCount.WithLabelValues(strconv.FormatBool(isShared)).Inc()
	if err != nil {
		return nil, err
	}

	return schemadoc.DeepCopy(doc), nil
}

// Epoch returns the registry epoch the reader serves.
func (r *Reader) Epoch() uint64 {
	return r.epoch
}
