// Package urlmapper converts between the external URLs under which schemas are
// served and the schema paths they are registered under.
package urlmapper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/authzed/jsonschemas/pkg/schemapath"
)

// Lookup reports whether a schema path is registered.
type Lookup interface {
	Has(path string) bool
}

// LookupFunc adapts a function to a Lookup.
type LookupFunc func(path string) bool

func (f LookupFunc) Has(path string) bool { return f(path) }

// Mapper maps schema paths to URLs of the form
// {scheme}://{host}{prefix}/{path} and back.
type Mapper struct {
	scheme string
	host   string
	prefix string
	lookup Lookup
}

// New creates a mapper. The prefix is normalized to have a leading slash and
// no trailing slash; an empty prefix serves schemas at the root.
func New(scheme, host, prefix string, lookup Lookup) (*Mapper, error) {
	if scheme == "" {
		return nil, fmt.Errorf("url scheme is required")
	}
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if strings.ContainsAny(host, "/?#") {
		return nil, fmt.Errorf("invalid host `%s`", host)
	}

	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	return &Mapper{scheme: scheme, host: host, prefix: prefix, lookup: lookup}, nil
}

// Prefix returns the normalized endpoint prefix.
func (m *Mapper) Prefix() string { return m.prefix }

// Host returns the configured host.
func (m *Mapper) Host() string { return m.host }

// BaseURL returns the URL every schema URL starts with.
func (m *Mapper) BaseURL() string {
	return (&url.URL{Scheme: m.scheme, Host: m.host, Path: m.prefix + "/"}).String()
}

// PathToURL returns the external URL of a registered path.
func (m *Mapper) PathToURL(p string) (string, bool) {
	if !m.lookup.Has(p) {
		return "", false
	}
	return m.render(p), true
}

func (m *Mapper) render(p string) string {
	return (&url.URL{Scheme: m.scheme, Host: m.host, Path: m.prefix + "/" + p}).String()
}

// URLToPath returns the registered path that the URL refers to. The scheme is
// not compared; the host must match exactly, port included.
func (m *Mapper) URLToPath(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return m.ParsedURLToPath(parsed)
}

// ParsedURLToPath is URLToPath for an already parsed URL. Query and fragment
// are ignored.
func (m *Mapper) ParsedURLToPath(u *url.URL) (string, bool) {
	if u.Host != m.host {
		return "", false
	}

	p, ok := strings.CutPrefix(u.Path, m.prefix+"/")
	if !ok {
		return "", false
	}

	if schemapath.Validate(p) != nil || !m.lookup.Has(p) {
		return "", false
	}
	return p, true
}
