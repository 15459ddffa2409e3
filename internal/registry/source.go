package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Source is a named tree of schema documents. Reads go through Fs, rooted at
// the source directory; Location is the absolute place the source was
// registered from and is only used for reporting.
type Source struct {
	Name     string
	Location string
	Fs       afero.Fs
}

// NewOSSource returns a source for a directory on the host filesystem. Reads
// are confined to the directory; symlinked schema files are never registered
// or served.
func NewOSSource(name, dir string) (*Source, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid directory for source `%s`: %w", name, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("invalid directory for source `%s`: %w", name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid directory for source `%s`: `%s` is not a directory", name, abs)
	}

	return &Source{
		Name:     name,
		Location: abs,
		Fs:       afero.NewBasePathFs(afero.NewOsFs(), abs),
	}, nil
}

// NewFsSource returns a source reading from an arbitrary filesystem, such as
// an in-memory one.
func NewFsSource(name, location string, fs afero.Fs) *Source {
	return &Source{Name: name, Location: location, Fs: fs}
}

// IsOS returns whether the source reads from the host filesystem, in which
// case Location is a real directory.
func (s *Source) IsOS() bool {
	_, ok := s.Fs.(*afero.BasePathFs)
	return ok
}

// sameAs compares sources by identity rather than by pointer, so that a
// source rebuilt from the same configuration is recognized.
func (s *Source) sameAs(other *Source) bool {
	return s.Name == other.Name && s.Location == other.Location
}

func (s *Source) MarshalZerologObject(e *zerolog.Event) {
	e.Str("name", s.Name).Str("location", s.Location)
}
