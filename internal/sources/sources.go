// Package sources discovers the named schema sources that populate a
// registry.
package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/internal/registry"
)

// Provider enumerates schema sources in registration order.
type Provider interface {
	Sources(ctx context.Context) ([]*registry.Source, error)
}

// Entry names a directory on the host filesystem.
type Entry struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// StaticProvider provides a fixed list of directories.
type StaticProvider struct {
	entries []Entry
}

// NewStaticProvider returns a provider for the given entries, in order.
func NewStaticProvider(entries ...Entry) *StaticProvider {
	return &StaticProvider{entries: entries}
}

// ParseStaticProvider parses `name=dir` flag values.
func ParseStaticProvider(values []string) (*StaticProvider, error) {
	entries := make([]Entry, 0, len(values))
	for _, raw := range values {
		name, dir, ok := strings.Cut(raw, "=")
		if !ok || name == "" || dir == "" {
			return nil, fmt.Errorf("invalid source `%s`: expected name=directory", raw)
		}
		entries = append(entries, Entry{Name: name, Path: dir})
	}
	return NewStaticProvider(entries...), nil
}

func (sp *StaticProvider) Sources(_ context.Context) ([]*registry.Source, error) {
	sources := make([]*registry.Source, 0, len(sp.entries))
	for _, entry := range sp.entries {
		source, err := registry.NewOSSource(entry.Name, entry.Path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// FixedProvider provides already constructed sources.
type FixedProvider []*registry.Source

func (fp FixedProvider) Sources(_ context.Context) ([]*registry.Source, error) {
	return fp, nil
}

// ChainProvider concatenates the sources of several providers.
type ChainProvider []Provider

func (cp ChainProvider) Sources(ctx context.Context) ([]*registry.Source, error) {
	var all []*registry.Source
	for _, provider := range cp {
		found, err := provider.Sources(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

// Populate registers every source of the provider into the registry, in
// order. If enabled is non-nil, only sources whose name it contains are
// registered. The first registration error aborts population.
func Populate(ctx context.Context, reg *registry.Registry, provider Provider, enabled []string) (int, error) {
	found, err := provider.Sources(ctx)
	if err != nil {
		return 0, fmt.Errorf("unable to discover schema sources: %w", err)
	}

	var allowed map[string]bool
	if enabled != nil {
		allowed = make(map[string]bool, len(enabled))
		for _, name := range enabled {
			allowed[name] = false
		}
	}

	seen := make(map[string]string, len(found))
	total := 0
	for _, source := range found {
		if allowed != nil {
			if _, ok := allowed[source.Name]; !ok {
				logging.Ctx(ctx).Debug().Object("source", source).Msg("skipping schema source that is not enabled")
				continue
			}
			allowed[source.Name] = true
		}

		if location, ok := seen[source.Name]; ok && location != source.Location {
			return 0, fmt.Errorf("schema source `%s` defined twice: `%s` and `%s`", source.Name, location, source.Location)
		}
		seen[source.Name] = source.Location

		count, err := reg.RegisterSource(ctx, source)
		if err != nil {
			return 0, err
		}
		total += count
	}

	for name, used := range allowed {
		if !used {
			logging.Ctx(ctx).Warn().Str("source", name).Msg("enabled schema source was not found")
		}
	}
	return total, nil
}
