package sources

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/authzed/jsonschemas/internal/registry"
)

// Manifest is the YAML document listing schema sources:
//
//	sources:
//	  - name: biology
//	    path: ./schemas/biology
//	  - name: drafts
//	    path: ./schemas/drafts
//	    enabled: false
type Manifest struct {
	Sources []ManifestEntry `yaml:"sources"`
}

// ManifestEntry is a source listed in a manifest. Sources are enabled unless
// the entry says otherwise.
type ManifestEntry struct {
	Entry   `yaml:",inline"`
	Enabled bool `yaml:"enabled" default:"true"`
}

func (me *ManifestEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain ManifestEntry
	var entry plain
	if err := defaults.Set(&entry); err != nil {
		return err
	}
	if err := node.Decode(&entry); err != nil {
		return err
	}
	*me = ManifestEntry(entry)
	return nil
}

// Entries returns the enabled entries, in manifest order.
func (m *Manifest) Entries() []Entry {
	entries := make([]Entry, 0, len(m.Sources))
	for _, source := range m.Sources {
		if source.Enabled {
			entries = append(entries, source.Entry)
		}
	}
	return entries
}

// ManifestProvider reads sources from a manifest file. It is re-read on every
// call, so edits are picked up on reload.
type ManifestProvider struct {
	fs   afero.Fs
	path string
}

// NewManifestProvider returns a provider for the manifest at path on the host
// filesystem.
func NewManifestProvider(path string) *ManifestProvider {
	return NewManifestProviderFs(afero.NewOsFs(), path)
}

// NewManifestProviderFs returns a provider reading the manifest from fs.
// Sources are still opened on the host filesystem.
func NewManifestProviderFs(fs afero.Fs, path string) *ManifestProvider {
	return &ManifestProvider{fs: fs, path: path}
}

// Path returns the manifest location.
func (mp *ManifestProvider) Path() string {
	return mp.path
}

// Load parses the manifest and resolves relative source paths against the
// manifest's directory.
func (mp *ManifestProvider) Load() (*Manifest, error) {
	contents, err := afero.ReadFile(mp.fs, mp.path)
	if err != nil {
		return nil, fmt.Errorf("unable to read sources manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(contents, &manifest); err != nil {
		return nil, fmt.Errorf("unable to parse sources manifest `%s`: %w", mp.path, err)
	}

	base := filepath.Dir(mp.path)
	for i, entry := range manifest.Sources {
		if entry.Name == "" || entry.Path == "" {
			return nil, fmt.Errorf("sources manifest `%s`: entry %d requires a name and a path", mp.path, i)
		}
		if !filepath.IsAbs(entry.Path) {
			manifest.Sources[i].Path = filepath.Join(base, entry.Path)
		}
	}
	return &manifest, nil
}

func (mp *ManifestProvider) Sources(ctx context.Context) ([]*registry.Source, error) {
	manifest, err := mp.Load()
	if err != nil {
		return nil, err
	}
	return NewStaticProvider(manifest.Entries()...).Sources(ctx)
}
