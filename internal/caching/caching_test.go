package caching

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/authzed/jsonschemas/pkg/cache"
	"github.com/authzed/jsonschemas/pkg/schemadoc"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
	"github.com/authzed/jsonschemas/pkg/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, testutil.GoLeakIgnores()...)
}

type countingReader struct {
	reads   atomic.Int32
	release chan struct{}
	docs    map[string]string
}

func (cr *countingReader) ReadSchema(_ context.Context, path string) (any, error) {
	cr.reads.Add(1)
	if cr.release != nil {
		<-cr.release
	}

	contents, ok := cr.docs[path]
	if !ok {
		return nil, schemaerrors.NewSchemaNotFoundErr(path)
	}
	return schemadoc.MustDecode(contents), nil
}

func newTestCache(t *testing.T, name string) *SchemaCache {
	t.Helper()
	c, err := cache.NewStandardCacheWithMetrics[Key, any](name, &cache.Config{NumCounters: 1000, MaxCost: 100})
	require.NoError(t, err)
	sc := NewSchemaCache(c)
	t.Cleanup(sc.Close)
	return sc
}

func TestReadsAreCached(t *testing.T) {
	delegate := &countingReader{docs: map[string]string{"a.json": `{"type": "string"}`}}
	reader := newTestCache(t, "test-cached").Reader(delegate, 1)

	for i := 0; i < 3; i++ {
		doc, err := reader.ReadSchema(context.Background(), "a.json")
		require.NoError(t, err)
		require.Equal(t, schemadoc.MustDecode(`{"type": "string"}`), doc)
	}
	require.Equal(t, int32(1), delegate.reads.Load())
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	delegate := &countingReader{docs: map[string]string{"a.json": `{"type": "string"}`}}
	reader := newTestCache(t, "test-copies").Reader(delegate, 1)

	doc, err := reader.ReadSchema(context.Background(), "a.json")
	require.NoError(t, err)
	doc.(map[string]any)["type"] = "mutated"

	again, err := reader.ReadSchema(context.Background(), "a.json")
	require.NoError(t, err)
	require.Equal(t, "string", again.(map[string]any)["type"])
}

func TestEpochsAreSeparate(t *testing.T) {
	sc := newTestCache(t, "test-epochs")

	first := &countingReader{docs: map[string]string{"a.json": `{"version": 1}`}}
	second := &countingReader{docs: map[string]string{"a.json": `{"version": 2}`}}

	doc, err := sc.Reader(first, 1).ReadSchema(context.Background(), "a.json")
	require.NoError(t, err)
	require.Equal(t, schemadoc.MustDecode(`{"version": 1}`), doc)

	doc, err = sc.Reader(second, 2).ReadSchema(context.Background(), "a.json")
	require.NoError(t, err)
	require.Equal(t, schemadoc.MustDecode(`{"version": 2}`), doc)
	require.Equal(t, int32(1), second.reads.Load())
}

func TestErrorsAreNotCached(t *testing.T) {
	delegate := &countingReader{docs: map[string]string{}}
	reader := newTestCache(t, "test-errors").Reader(delegate, 1)

	for i := 0; i < 2; i++ {
		_, err := reader.ReadSchema(context.Background(), "missing.json")
		require.True(t, schemaerrors.IsNotFound(err))
	}
	require.Equal(t, int32(2), delegate.reads.Load())
}

func TestConcurrentMissesCollapse(t *testing.T) {
	delegate := &countingReader{
		docs:    map[string]string{"a.json": `{"properties": {"a": {"type": "string"}}}`},
		release: make(chan struct{}),
	}
	reader := newTestCache(t, "test-collapse").Reader(delegate, 1)

	const readers = 20
	var wg sync.WaitGroup
	results := make(chan any, readers)
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := reader.ReadSchema(context.Background(), "a.json")
			if err != nil {
				errs <- err
				return
			}
			results <- doc
		}()
	}

	require.Eventually(t, func() bool { return delegate.reads.Load() == 1 }, time.Second, time.Millisecond)
	// Give the other readers time to join the in-flight read.
	time.Sleep(20 * time.Millisecond)
	close(delegate.release)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	expected := schemadoc.MustDecode(`{"properties": {"a": {"type": "string"}}}`)
	count := 0
	for doc := range results {
		require.Equal(t, expected, doc)
		count++
	}
	require.Equal(t, readers, count)
	require.LessOrEqual(t, delegate.reads.Load(), int32(2))
}

func TestNoopCacheStillReads(t *testing.T) {
	delegate := &countingReader{docs: map[string]string{"a.json": `{}`}}
	reader := NewSchemaCache(cache.NoopCache[Key, any]()).Reader(delegate, 3)
	require.Equal(t, uint64(3), reader.Epoch())

	_, err := reader.ReadSchema(context.Background(), "a.json")
	require.NoError(t, err)
	_, err = reader.ReadSchema(context.Background(), "a.json")
	require.NoError(t, err)
	require.Equal(t, int32(2), delegate.reads.Load())
}

func TestKeyString(t *testing.T) {
	require.Equal(t, "a/b.json@7", Key{Epoch: 7, Path: "a/b.json"}.KeyString())
}
