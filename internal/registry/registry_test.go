package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/authzed/jsonschemas/pkg/schemadoc"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
)

func memSource(t *testing.T, name string, files map[string]string) *Source {
	t.Helper()

	fs := afero.NewMemMapFs()
	for p, contents := range files {
		require.NoError(t, afero.WriteFile(fs, "/"+p, []byte(contents), 0o644))
	}
	return NewFsSource(name, "/mem/"+name, fs)
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	return r
}

func TestRegisterSourceWalksSchemaFiles(t *testing.T) {
	r := newRegistry(t)
	source := memSource(t, "biology", map[string]string{
		"biology/animal_record_schema.json": `{"type": "object"}`,
		"biology/UPPER.JSON":                `{}`,
		"README.md":                         "not a schema",
		"nested/deeper/schema.json":         `{"type": "string"}`,
	})

	count, err := r.RegisterSource(context.Background(), source)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	paths, err := r.ListPaths()
	require.NoError(t, err)
	require.Equal(t, []string{
		"biology/UPPER.JSON",
		"biology/animal_record_schema.json",
		"nested/deeper/schema.json",
	}, paths)

	for _, p := range paths {
		found, err := r.SourceOf(p)
		require.NoError(t, err)
		require.Same(t, source, found)
	}

	doc, err := r.ReadSchema(context.Background(), "nested/deeper/schema.json")
	require.NoError(t, err)
	require.Equal(t, schemadoc.MustDecode(`{"type": "string"}`), doc)
}

func TestDuplicateAcrossSources(t *testing.T) {
	r := newRegistry(t)
	first := memSource(t, "first", map[string]string{"shared.json": `{}`})
	second := memSource(t, "second", map[string]string{
		"a_only_in_second.json": `{}`,
		"shared.json":           `{}`,
		"z_only_in_second.json": `{}`,
	})

	_, err := r.RegisterSource(context.Background(), first)
	require.NoError(t, err)

	_, err = r.RegisterSource(context.Background(), second)
	require.Error(t, err)

	var dupErr schemaerrors.ErrDuplicateSchema
	require.ErrorAs(t, err, &dupErr)
	require.Equal(t, "shared.json", dupErr.DuplicatePath())
	require.Equal(t, "/mem/first", dupErr.ExistingSource())
	require.Equal(t, "/mem/second", dupErr.NewSource())

	// Nothing from the failing source is committed.
	paths, err := r.ListPaths()
	require.NoError(t, err)
	require.Equal(t, []string{"shared.json"}, paths)
	require.False(t, r.Has("a_only_in_second.json"))
}

func TestRegisterSameSourceTwiceIsNoop(t *testing.T) {
	r := newRegistry(t)
	source := memSource(t, "only", map[string]string{"a.json": `{}`})

	_, err := r.RegisterSource(context.Background(), source)
	require.NoError(t, err)

	count, err := r.RegisterSource(context.Background(), source)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestRegisterSingle(t *testing.T) {
	r := newRegistry(t)
	first := memSource(t, "first", map[string]string{"single.json": `{"a": 1}`})
	second := memSource(t, "second", map[string]string{"single.json": `{}`})

	require.NoError(t, r.RegisterSingle(context.Background(), first, "single.json"))
	require.NoError(t, r.RegisterSingle(context.Background(), first, "single.json"))

	err := r.RegisterSingle(context.Background(), second, "single.json")
	var dupErr schemaerrors.ErrDuplicateSchema
	require.ErrorAs(t, err, &dupErr)

	err = r.RegisterSingle(context.Background(), first, "../single.json")
	var invalidErr schemaerrors.ErrInvalidPath
	require.ErrorAs(t, err, &invalidErr)

	source, err := r.SourceOf("single.json")
	require.NoError(t, err)
	require.Equal(t, "first", source.Name)
}

func TestNotFound(t *testing.T) {
	r := newRegistry(t)
	_, err := r.RegisterSource(context.Background(), memSource(t, "s", map[string]string{"a.json": `{}`}))
	require.NoError(t, err)

	_, err = r.SourceOf("missing.json")
	require.True(t, schemaerrors.IsNotFound(err))

	_, err = r.FullPath("missing.json")
	require.True(t, schemaerrors.IsNotFound(err))

	_, err = r.ReadSchema(context.Background(), "missing.json")
	require.True(t, schemaerrors.IsNotFound(err))
}

func TestTraversalIsRejected(t *testing.T) {
	r := newRegistry(t)
	_, err := r.RegisterSource(context.Background(), memSource(t, "s", map[string]string{"a.json": `{}`}))
	require.NoError(t, err)

	for _, p := range []string{"../secret.json", "/a.json", "./a.json", "sub/../a.json", ""} {
		t.Run(p, func(t *testing.T) {
			_, err := r.ReadSchema(context.Background(), p)
			var invalidErr schemaerrors.ErrInvalidPath
			require.ErrorAs(t, err, &invalidErr)
		})
	}
}

func TestMalformedSchema(t *testing.T) {
	r := newRegistry(t)
	_, err := r.RegisterSource(context.Background(), memSource(t, "s", map[string]string{"broken.json": `{"type": `}))
	require.NoError(t, err)

	raw, err := r.ReadSchemaBytes(context.Background(), "broken.json")
	require.NoError(t, err)
	require.Equal(t, `{"type": `, string(raw))

	_, err = r.ReadSchema(context.Background(), "broken.json")
	var malformedErr schemaerrors.ErrMalformedSchema
	require.ErrorAs(t, err, &malformedErr)
	require.Equal(t, "broken.json", malformedErr.MalformedPath())
}

func TestFreeze(t *testing.T) {
	r := newRegistry(t)
	r.Freeze()
	require.True(t, r.IsFrozen())

	_, err := r.RegisterSource(context.Background(), memSource(t, "s", map[string]string{"a.json": `{}`}))
	require.ErrorIs(t, err, ErrFrozen)
	require.ErrorIs(t, r.RegisterSingle(context.Background(), memSource(t, "s", nil), "a.json"), ErrFrozen)
}

func TestSourcesAndPathsForSource(t *testing.T) {
	r := newRegistry(t)
	_, err := r.RegisterSource(context.Background(), memSource(t, "zoology", map[string]string{"z/1.json": `{}`, "z/2.json": `{}`}))
	require.NoError(t, err)
	_, err = r.RegisterSource(context.Background(), memSource(t, "biology", map[string]string{"b/1.json": `{}`}))
	require.NoError(t, err)

	sources, err := r.Sources()
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, "biology", sources[0].Name)
	require.Equal(t, "zoology", sources[1].Name)

	paths, err := r.PathsForSource("zoology")
	require.NoError(t, err)
	require.Equal(t, []string{"z/1.json", "z/2.json"}, paths)
	require.Equal(t, 3, r.Len())
}

func TestOSSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "schema.json"), []byte(`{"title": "sub"}`), 0o600))

	source, err := NewOSSource("local", dir)
	require.NoError(t, err)
	require.True(t, source.IsOS())

	r := newRegistry(t)
	count, err := r.RegisterSource(context.Background(), source)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	full, err := r.FullPath("sub/schema.json")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(source.Location, "sub", "schema.json"), full)

	doc, err := r.ReadSchema(context.Background(), "sub/schema.json")
	require.NoError(t, err)
	require.Equal(t, schemadoc.MustDecode(`{"title": "sub"}`), doc)

	_, err = NewOSSource("missing", filepath.Join(dir, "does-not-exist"))
	require.Error(t, err)

	_, err = NewOSSource("file", filepath.Join(dir, "sub", "schema.json"))
	require.ErrorContains(t, err, "not a directory")
}

func TestOSSourceSkipsSymlinks(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.json")
	require.NoError(t, os.WriteFile(secret, []byte(`{"secret": true}`), 0o600))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kept.json"), []byte(`{}`), 0o600))
	require.NoError(t, os.Symlink(secret, filepath.Join(dir, "leak.json")))

	source, err := NewOSSource("local", dir)
	require.NoError(t, err)

	r := newRegistry(t)
	count, err := r.RegisterSource(context.Background(), source)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.False(t, r.Has("leak.json"))

	// Registered explicitly, the link is still never followed.
	require.NoError(t, r.RegisterSingle(context.Background(), source, "leak.json"))
	_, err = r.ReadSchemaBytes(context.Background(), "leak.json")
	require.True(t, schemaerrors.IsNotFound(err))
}

func TestRegisterSourceSkipsUnusableNames(t *testing.T) {
	r := newRegistry(t)
	count, err := r.RegisterSource(context.Background(), memSource(t, "odd", map[string]string{
		"good.json":     `{}`,
		`odd\name.json`: `{}`,
	}))
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.True(t, r.Has("good.json"))
}

func TestConcurrentReads(t *testing.T) {
	r := newRegistry(t)
	_, err := r.RegisterSource(context.Background(), memSource(t, "s", map[string]string{
		"a.json": `{"properties": {"a": {"type": "string"}}}`,
	}))
	require.NoError(t, err)
	r.Freeze()

	expected := schemadoc.MustDecode(`{"properties": {"a": {"type": "string"}}}`)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := r.ReadSchema(context.Background(), "a.json")
			if err != nil {
				errs <- err
				return
			}
			if fmt.Sprint(doc) != fmt.Sprint(expected) {
				errs <- fmt.Errorf("unexpected document %v", doc)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, r.Len())
}

func TestRegisterSourceHonorsContext(t *testing.T) {
	r := newRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RegisterSource(ctx, memSource(t, "s", map[string]string{"a.json": `{}`}))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, r.Len())
}
