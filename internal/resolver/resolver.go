// Package resolver replaces `$ref` references in schema documents with the
// content they point to.
//
// References to schemas served by this process are read from the registry
// and never leave the process. Any other location is refused unless a trusted
// Loader has been configured for it. Reference cycles are rejected.
package resolver

import (
	"context"
	"net/url"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/pkg/schemadoc"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
)

var tracer = otel.Tracer("jsonschemas/internal/resolver")

const (
	refKey = "$ref"

	// DefaultMaxDepth bounds the number of nested references followed
	// while resolving a single document.
	DefaultMaxDepth = 64
)

// SchemaReader reads registered schema documents. The returned document is
// owned by the caller.
type SchemaReader interface {
	ReadSchema(ctx context.Context, path string) (any, error)
}

// PathMapper recognizes URLs of registered schemas.
type PathMapper interface {
	ParsedURLToPath(u *url.URL) (string, bool)
}

// Loader loads documents from locations outside the registry. Configuring a
// Loader marks every location it accepts as trusted.
type Loader interface {
	Load(ctx context.Context, uri string) (any, error)
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(ctx context.Context, uri string) (any, error)

func (f LoaderFunc) Load(ctx context.Context, uri string) (any, error) { return f(ctx, uri) }

// Option configures a Resolver.
type Option func(*Resolver)

// WithLoader sets the trusted loader used for non-registry references.
func WithLoader(loader Loader) Option {
	return func(r *Resolver) { r.loader = loader }
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) { r.maxDepth = depth }
}

// Resolver expands `$ref` references.
type Resolver struct {
	reader   SchemaReader
	mapper   PathMapper
	loader   Loader
	maxDepth int
}

// New creates a resolver reading registered schemas through reader.
func New(reader SchemaReader, mapper PathMapper, opts ...Option) *Resolver {
	r := &Resolver{reader: reader, mapper: mapper, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveRefs returns a copy of doc in which every object holding a string
// `$ref` has been replaced by the fully resolved target. Relative references
// are resolved against baseURI, the URL doc was served from. The input is
// never modified.
func (r *Resolver) ResolveRefs(ctx context.Context, doc any, baseURI string) (any, error) {
	ctx, span := tracer.Start(ctx, "ResolveRefs", trace.WithAttributes(
		attribute.String("base-uri", baseURI),
	))
	defer span.End()

	base, err := url.Parse(baseURI)
	if err != nil {
		return nil, schemaerrors.NewMalformedSchemaErr(baseURI, err)
	}

	res := &resolution{
		Resolver:  r,
		ctx:       ctx,
		documents: map[string]any{},
	}
	resolved, err := res.resolve(doc, withoutFragment(base), doc)
	span.SetAttributes(
		attribute.Int("references", res.followed),
		attribute.Int("documents", len(res.documents)),
	)
	return resolved, err
}

// resolution is the state of a single ResolveRefs call.
type resolution struct {
	*Resolver
	ctx context.Context

	// stack holds the references currently being expanded, outermost first.
	stack []string

	// documents memoizes loaded documents by URL for the duration of the
	// call. They are never handed out without being copied by resolve.
	documents map[string]any

	followed int
}

// resolve copies node, expanding references. base is the URL of the document
// node belongs to, and root is that document's unresolved top level.
func (res *resolution) resolve(node any, base *url.URL, root any) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v[refKey].(string); ok {
			return res.resolveRef(ref, base, root)
		}

		resolved := make(map[string]any, len(v))
		for key, value := range v {
			child, err := res.resolve(value, base, root)
			if err != nil {
				return nil, err
			}
			resolved[key] = child
		}
		return resolved, nil

	case []any:
		resolved := make([]any, len(v))
		for i, value := range v {
			child, err := res.resolve(value, base, root)
			if err != nil {
				return nil, err
			}
			resolved[i] = child
		}
		return resolved, nil

	default:
		return v, nil
	}
}

func (res *resolution) resolveRef(ref string, base *url.URL, root any) (any, error) {
	if err := res.ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, schemaerrors.NewMalformedSchemaErr(base.String(), err)
	}

	target := base.ResolveReference(parsed)
	uri := target.String()
	if slices.Contains(res.stack, uri) || len(res.stack) >= res.maxDepth {
		return nil, schemaerrors.NewCyclicReferenceErr(uri, append(slices.Clone(res.stack), uri))
	}

	document := withoutFragment(target)
	documentRoot, err := res.load(document, base, root)
	if err != nil {
		return nil, err
	}

	pointed, err := schemadoc.ResolvePointer(documentRoot, target.EscapedFragment())
	if err != nil {
		logging.Ctx(res.ctx).Debug().Err(err).Str("uri", uri).Msg("reference pointer does not resolve")
		return nil, schemaerrors.NewSchemaNotFoundErr(uri)
	}

	res.followed++
	res.stack = append(res.stack, uri)
	defer func() { res.stack = res.stack[:len(res.stack)-1] }()

	return res.resolve(pointed, document, documentRoot)
}

// load returns the unresolved top level of the document at the URL.
func (res *resolution) load(document, base *url.URL, root any) (any, error) {
	key := document.String()
	if key == base.String() {
		return root, nil
	}
	if loaded, ok := res.documents[key]; ok {
		return loaded, nil
	}

	var (
		loaded any
		err    error
	)
	if p, ok := res.mapper.ParsedURLToPath(document); ok {
		loaded, err = res.reader.ReadSchema(res.ctx, p)
	} else if res.loader != nil {
		logging.Ctx(res.ctx).Debug().Str("uri", key).Msg("loading schema through trusted loader")
		loaded, err = res.loader.Load(res.ctx, key)
	} else {
		return nil, schemaerrors.NewInsecureSchemaLocationErr(key)
	}
	if err != nil {
		return nil, err
	}

	res.documents[key] = loaded
	return loaded, nil
}

func withoutFragment(u *url.URL) *url.URL {
	stripped := *u
	stripped.Fragment = ""
	stripped.RawFragment = ""
	return &stripped
}
