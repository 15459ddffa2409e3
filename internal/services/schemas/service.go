// Package schemas serves registered schema documents over HTTP.
package schemas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ccoveille/go-safecast/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/authzed/jsonschemas/internal/caching"
	"github.com/authzed/jsonschemas/internal/compose"
	"github.com/authzed/jsonschemas/internal/reload"
	"github.com/authzed/jsonschemas/internal/resolver"
	"github.com/authzed/jsonschemas/pkg/schemadoc"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
	"github.com/authzed/jsonschemas/pkg/schemapath"
	"github.com/authzed/jsonschemas/pkg/urlmapper"
)

var tracer = otel.Tracer("jsonschemas/internal/services/schemas")

// DefaultMaxAge is the default lifetime advertised for schema responses.
const DefaultMaxAge = 72 * time.Hour

// Snapshots provides the active registry snapshot.
type Snapshots interface {
	Current() *reload.Snapshot
}

// Config configures a Service.
type Config struct {
	Scheme string
	Host   string
	Prefix string

	// TransformPrefix, when set, serves every named transform at
	// `{TransformPrefix}/{name}/{path}`. It must lie outside Prefix.
	TransformPrefix string

	// ReplaceRefsDefault and ResolveSchemaDefault apply when a request does
	// not carry the corresponding flag.
	ReplaceRefsDefault   bool
	ResolveSchemaDefault bool

	MaxAge time.Duration
	Clock  clock.Clock

	Loader   resolver.Loader
	MaxDepth int
}

// Transform selects how a schema document is rendered.
type Transform struct {
	// ReplaceRefs replaces every `$ref` with its target.
	ReplaceRefs bool

	// Resolve replaces refs and then merges every `allOf`. It implies
	// ReplaceRefs.
	Resolve bool
}

// IsRaw returns whether the stored bytes are served unchanged.
func (t Transform) IsRaw() bool {
	return !t.ReplaceRefs && !t.Resolve
}

// NamedTransforms are the transforms served under the transform prefix.
var NamedTransforms = map[string]Transform{
	"refs":     {ReplaceRefs: true},
	"resolved": {ReplaceRefs: true, Resolve: true},
}

// IndexEntry is one schema in the index.
type IndexEntry struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

var noSchemas = urlmapper.LookupFunc(func(string) bool { return false })

// Service reads and transforms schemas from the active snapshot.
type Service struct {
	cfg             Config
	base            *urlmapper.Mapper
	transformPrefix string
	snapshots Snapshots
	cache     *caching.SchemaCache
}

// NewService validates the config and creates a service.
func NewService(cfg Config, snapshots Snapshots, schemaCache *caching.SchemaCache) (*Service, error) {
	base, err := urlmapper.New(cfg.Scheme, cfg.Host, cfg.Prefix, noSchemas)
	if err != nil {
		return nil, fmt.Errorf("invalid schema URL configuration: %w", err)
	}
	transformPrefix, err := checkTransformPrefix(cfg.TransformPrefix, base.Prefix())
	if err != nil {
		return nil, err
	}
	if cfg.MaxAge < 0 {
		return nil, fmt.Errorf("max age must not be negative, got %s", cfg.MaxAge)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = resolver.DefaultMaxDepth
	}

	return &Service{
		cfg:             cfg,
		base:            base,
		transformPrefix: transformPrefix,
		snapshots:       snapshots,
		cache:           schemaCache,
	}, nil
}

// checkTransformPrefix normalizes the transform prefix the way the schema
// prefix is normalized and rejects one that overlaps schema paths.
func checkTransformPrefix(transformPrefix, schemaPrefix string) (string, error) {
	transformPrefix = strings.TrimRight(transformPrefix, "/")
	if transformPrefix == "" {
		return "", nil
	}
	if !strings.HasPrefix(transformPrefix, "/") {
		transformPrefix = "/" + transformPrefix
	}

	if schemaPrefix == "" ||
		transformPrefix == schemaPrefix ||
		strings.HasPrefix(transformPrefix, schemaPrefix+"/") ||
		strings.HasPrefix(schemaPrefix, transformPrefix+"/") {
		return "", fmt.Errorf("transform prefix `%s` overlaps the schema prefix `%s`", transformPrefix, schemaPrefix)
	}
	return transformPrefix, nil
}

// view is the state one request works against. It never changes while the
// request runs, even if the registry is reloaded.
type view struct {
	snapshot *reload.Snapshot
	mapper   *urlmapper.Mapper
	reader   *caching.Reader
}

func (s *Service) currentView() (*view, error) {
	snapshot := s.snapshots.Current()
	mapper, err := urlmapper.New(s.cfg.Scheme, s.cfg.Host, s.cfg.Prefix, snapshot.Registry)
	if err != nil {
		return nil, err
	}
	return &view{
		snapshot: snapshot,
		mapper:   mapper,
		reader:   s.cache.Reader(snapshot.Registry, snapshot.Epoch),
	}, nil
}

// Schema returns the schema at the path, rendered per the transform.
func (s *Service) Schema(ctx context.Context, p string, transform Transform) (body []byte, err error) {
	ctx, span := tracer.Start(ctx, "Schema", trace.WithAttributes(
		attribute.String("path", p),
		attribute.Bool("replace-refs", transform.ReplaceRefs),
		attribute.Bool("resolve", transform.Resolve),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if err := schemapath.Validate(p); err != nil {
		return nil, err
	}

	v, err := s.currentView()
	if err != nil {
		return nil, err
	}
	if epoch, convErr := safecast.Convert[int64](v.snapshot.Epoch); convErr == nil {
		span.SetAttributes(attribute.Int64("epoch", epoch))
	}

	if transform.IsRaw() {
		return v.snapshot.Registry.ReadSchemaBytes(ctx, p)
	}

	doc, err := v.reader.ReadSchema(ctx, p)
	if err != nil {
		return nil, err
	}

	base, ok := v.mapper.PathToURL(p)
	if !ok {
		// A frozen registry never loses a path it just served.
		return nil, schemaerrors.MustBugf("schema `%s` has no URL", p)
	}

	opts := []resolver.Option{resolver.WithMaxDepth(s.cfg.MaxDepth)}
	if s.cfg.Loader != nil {
		opts = append(opts, resolver.WithLoader(s.cfg.Loader))
	}

	doc, err = resolver.New(v.reader, v.mapper, opts...).ResolveRefs(ctx, doc, base)
	if err != nil {
		return nil, err
	}

	if transform.Resolve {
		doc = compose.MergeCompositions(doc)
	}
	return schemadoc.Encode(doc)
}

// Index lists every registered schema with its URL, sorted by path.
func (s *Service) Index(_ context.Context) ([]IndexEntry, error) {
	v, err := s.currentView()
	if err != nil {
		return nil, err
	}

	paths, err := v.snapshot.Registry.ListPaths()
	if err != nil {
		return nil, err
	}

	entries := make([]IndexEntry, 0, len(paths))
	for _, p := range paths {
		u, ok := v.mapper.PathToURL(p)
		if !ok {
			continue
		}
		entries = append(entries, IndexEntry{Path: p, URL: u})
	}
	return entries, nil
}

// BaseURL is the URL every schema URL starts with.
func (s *Service) BaseURL() string { return s.base.BaseURL() }

// Prefix is the normalized endpoint prefix.
func (s *Service) Prefix() string { return s.base.Prefix() }
