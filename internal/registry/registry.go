// Package registry implements the schema store: the authoritative mapping from
// schema path to the source that contributes it.
//
// Registration happens in a single phase before serving. Every source is
// walked inside one write transaction, so a source whose registration fails
// leaves no trace in the registry. After Freeze the registry only serves
// reads, which run against immutable snapshots and need no locking.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
	"github.com/spf13/afero"

	"github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/pkg/schemadoc"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
	"github.com/authzed/jsonschemas/pkg/schemapath"
)

// ErrFrozen is returned when registering into a registry that has finished
// its registration phase.
var ErrFrozen = errors.New("registry is frozen")

// Registry maps schema paths to sources.
type Registry struct {
	db     *memdb.MemDB
	frozen atomic.Bool
}

// New creates an empty registry.
func New() (*Registry, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("unable to create registry: %w", err)
	}
	return &Registry{db: db}, nil
}

// RegisterSource walks the source and registers every schema document found.
// It returns the number of documents registered. If any path is already
// registered by another source, nothing from this source is registered and
// an ErrDuplicateSchema is returned.
func (r *Registry) RegisterSource(ctx context.Context, source *Source) (int, error) {
	if r.frozen.Load() {
		return 0, ErrFrozen
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	count := 0
	err := afero.Walk(source.Fs, string(filepath.Separator), func(walked string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || !schemapath.IsSchemaFile(info.Name()) {
			return nil
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			// A link could point anywhere on the host.
			logging.Ctx(ctx).Warn().Object("source", source).Str("file", walked).Msg("skipping symlinked schema file")
			return nil
		}

		rel, err := filepath.Rel(string(filepath.Separator), walked)
		if err != nil {
			return err
		}

		p, err := schemapath.FromFilesystem(rel)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Object("source", source).Str("file", walked).Msg("skipping schema file with unusable name")
			return nil
		}

		inserted, err := insert(txn, p, source)
		if err != nil {
			return err
		}
		if inserted {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	txn.Commit()
	logging.Ctx(ctx).Debug().Object("source", source).Int("schemas", count).Msg("registered schema source")
	return count, nil
}

// RegisterSingle registers one path for the source without walking it.
// Registering the same path for the same source again is a no-op.
func (r *Registry) RegisterSingle(_ context.Context, source *Source, p string) error {
	if r.frozen.Load() {
		return ErrFrozen
	}
	if err := schemapath.Validate(p); err != nil {
		return err
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	if _, err := insert(txn, p, source); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

// insert adds the path to the transaction, reporting false if the exact same
// registration already exists.
func insert(txn *memdb.Txn, p string, source *Source) (bool, error) {
	found, err := txn.First(tableSchemas, indexID, p)
	if err != nil {
		return false, fmt.Errorf("unable to look up schema `%s`: %w", p, err)
	}

	if found != nil {
		existing := found.(*registration).Source
		if existing.sameAs(source) {
			return false, nil
		}
		return false, schemaerrors.NewDuplicateSchemaErr(p, existing.Location, source.Location)
	}

	if err := txn.Insert(tableSchemas, &registration{Path: p, SourceName: source.Name, Source: source}); err != nil {
		return false, fmt.Errorf("unable to register schema `%s`: %w", p, err)
	}
	return true, nil
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// IsFrozen returns whether Freeze has been called.
func (r *Registry) IsFrozen() bool {
	return r.frozen.Load()
}

func (r *Registry) lookup(p string) (*registration, error) {
	if err := schemapath.Validate(p); err != nil {
		return nil, err
	}

	found, err := r.db.Txn(false).First(tableSchemas, indexID, p)
	if err != nil {
		return nil, fmt.Errorf("unable to look up schema `%s`: %w", p, err)
	}
	if found == nil {
		return nil, schemaerrors.NewSchemaNotFoundErr(p)
	}
	return found.(*registration), nil
}

// Has returns whether the path is registered.
func (r *Registry) Has(p string) bool {
	_, err := r.lookup(p)
	return err == nil
}

// SourceOf returns the source that contributes the path.
func (r *Registry) SourceOf(p string) (*Source, error) {
	reg, err := r.lookup(p)
	if err != nil {
		return nil, err
	}
	return reg.Source, nil
}

// FullPath returns the absolute location of the schema document.
func (r *Registry) FullPath(p string) (string, error) {
	reg, err := r.lookup(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(reg.Source.Location, filepath.FromSlash(p)), nil
}

// ReadSchemaBytes returns the stored bytes of the schema document.
func (r *Registry) ReadSchemaBytes(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reg, err := r.lookup(p)
	if err != nil {
		return nil, err
	}

	name := string(filepath.Separator) + filepath.FromSlash(p)
	if isSymlink(reg.Source.Fs, name) {
		return nil, schemaerrors.NewSchemaNotFoundErr(p)
	}

	data, err := afero.ReadFile(reg.Source.Fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Removed from disk since registration.
			return nil, schemaerrors.NewSchemaNotFoundErr(p)
		}
		return nil, fmt.Errorf("unable to read schema `%s`: %w", p, err)
	}
	return data, nil
}

// isSymlink reports whether the file was swapped for a link after
// registration. Filesystems without Lstat never hold links.
func isSymlink(fsys afero.Fs, name string) bool {
	lstater, ok := fsys.(afero.Lstater)
	if !ok {
		return false
	}
	info, lstatCalled, err := lstater.LstatIfPossible(name)
	return err == nil && lstatCalled && info.Mode()&fs.ModeSymlink != 0
}

// ReadSchema returns the parsed schema document. Every call returns a fresh
// document owned by the caller.
func (r *Registry) ReadSchema(ctx context.Context, p string) (any, error) {
	data, err := r.ReadSchemaBytes(ctx, p)
	if err != nil {
		return nil, err
	}

	doc, err := schemadoc.Decode(data)
	if err != nil {
		return nil, schemaerrors.NewMalformedSchemaErr(p, err)
	}
	return doc, nil
}

// ListPaths returns every registered path in sorted order.
func (r *Registry) ListPaths() ([]string, error) {
	it, err := r.db.Txn(false).Get(tableSchemas, indexID)
	if err != nil {
		return nil, fmt.Errorf("unable to list schemas: %w", err)
	}

	// The id index is a radix tree, so iteration is already ordered.
	var paths []string
	for found := it.Next(); found != nil; found = it.Next() {
		paths = append(paths, found.(*registration).Path)
	}
	return paths, nil
}

// PathsForSource returns the paths contributed by the named source.
func (r *Registry) PathsForSource(name string) ([]string, error) {
	it, err := r.db.Txn(false).Get(tableSchemas, indexSource, name)
	if err != nil {
		return nil, fmt.Errorf("unable to list schemas for source `%s`: %w", name, err)
	}

	var paths []string
	for found := it.Next(); found != nil; found = it.Next() {
		paths = append(paths, found.(*registration).Path)
	}
	return paths, nil
}

// Sources returns every source with at least one registered path, in the
// order of their names.
func (r *Registry) Sources() ([]*Source, error) {
	it, err := r.db.Txn(false).Get(tableSchemas, indexSource)
	if err != nil {
		return nil, fmt.Errorf("unable to list sources: %w", err)
	}

	var sources []*Source
	for found := it.Next(); found != nil; found = it.Next() {
		source := found.(*registration).Source
		if len(sources) == 0 || !sources[len(sources)-1].sameAs(source) {
			sources = append(sources, source)
		}
	}
	return sources, nil
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	paths, err := r.ListPaths()
	if err != nil {
		return 0
	}
	return len(paths)
}
