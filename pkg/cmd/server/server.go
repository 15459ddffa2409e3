package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/sean-/sysexits"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/authzed/jsonschemas/internal/caching"
	"github.com/authzed/jsonschemas/internal/dashboard"
	log "github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/internal/reload"
	"github.com/authzed/jsonschemas/internal/resolver"
	"github.com/authzed/jsonschemas/internal/services/schemas"
	"github.com/authzed/jsonschemas/internal/sources"
	"github.com/authzed/jsonschemas/pkg/closer"
	"github.com/authzed/jsonschemas/pkg/cmd/util"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
)

const (
	DefaultSchemasHost              = "localhost"
	DefaultSchemasEndpoint          = "/schemas"
	DefaultSchemasTransformEndpoint = "/transform"
	DefaultURLScheme                = "https"
)

type Config struct {
	// External identity of the served schemas
	SchemasHost              string
	SchemasURLScheme         string
	SchemasEndpoint          string
	SchemasTransformEndpoint string

	// Transformation defaults
	ReplaceRefs   bool
	ResolveSchema bool
	MaxRefDepth   int
	Loader        resolver.Loader

	// Sources
	Sources         []string
	SourcesManifest string
	EnabledSources  []string
	Watch           bool
	WatchDebounce   time.Duration

	// Schema cache
	SchemaCache CacheConfig

	// HTTP API config
	HTTPServer             util.HTTPServerConfig
	HTTPCorsEnabled        bool
	HTTPCorsAllowedOrigins []string
	HTTPCacheMaxAge        time.Duration
	ShutdownGracePeriod    time.Duration
	MiddlewareModification []MiddlewareModification
	EnableVersionResponse  bool

	// Additional Services
	DashboardAPI util.HTTPServerConfig
	MetricsAPI   util.HTTPServerConfig

	// Clock is the time source for response expiry; nil means the wall clock.
	Clock clock.Clock
}

// DebugMap returns the config values that are safe to expose.
func (c *Config) DebugMap() map[string]any {
	return map[string]any{
		"SchemasHost":            c.SchemasHost,
		"SchemasURLScheme":       c.SchemasURLScheme,
		"SchemasEndpoint":        c.SchemasEndpoint,
		"SchemasTransform":       c.SchemasTransformEndpoint,
		"ReplaceRefs":            c.ReplaceRefs,
		"ResolveSchema":          c.ResolveSchema,
		"MaxRefDepth":            c.MaxRefDepth,
		"Sources":                c.Sources,
		"SourcesManifest":        c.SourcesManifest,
		"EnabledSources":         c.EnabledSources,
		"Watch":                  c.Watch,
		"WatchDebounce":          c.WatchDebounce.String(),
		"SchemaCacheEngine":      c.SchemaCache.Engine,
		"SchemaCacheMaxEntries":  c.SchemaCache.MaxEntries,
		"SchemaCacheDisabled":    c.SchemaCache.Disabled,
		"HTTPAddress":            c.HTTPServer.Address,
		"HTTPCorsEnabled":        c.HTTPCorsEnabled,
		"HTTPCorsAllowedOrigins": c.HTTPCorsAllowedOrigins,
		"HTTPCacheMaxAge":        c.HTTPCacheMaxAge.String(),
		"EnableVersionResponse":  c.EnableVersionResponse,
		"DashboardAddress":       c.DashboardAPI.Address,
		"MetricsAddress":         c.MetricsAPI.Address,
	}
}

// SourceProvider returns the provider described by the source flags. Static
// sources come first, in flag order, followed by the manifest's.
func (c *Config) SourceProvider() (sources.Provider, error) {
	static, err := sources.ParseStaticProvider(c.Sources)
	if err != nil {
		return nil, err
	}

	chain := sources.ChainProvider{static}
	if c.SourcesManifest != "" {
		chain = append(chain, sources.NewManifestProvider(c.SourcesManifest))
	}
	return chain, nil
}

// CompletedService is a schema service over a loaded registry, without any
// servers attached.
type CompletedService struct {
	Service  *schemas.Service
	Reloader *reload.Reloader

	closers closer.Stack
}

// Close releases the schema cache.
func (cs *CompletedService) Close() {
	if err := cs.closers.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing schema service")
	}
}

// CompleteService validates the schema settings, loads every source and
// builds the schema service. A registration failure, such as a duplicate
// schema path, is returned as a schemaerrors.TerminationError.
func (c *Config) CompleteService(ctx context.Context) (*CompletedService, error) {
	switch c.SchemasURLScheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("invalid schemas url scheme `%s`: must be http or https", c.SchemasURLScheme)
	}

	if c.SchemasHost == DefaultSchemasHost {
		log.Ctx(ctx).Warn().Str("host", c.SchemasHost).Msg("schemas host is unchanged from the default; schema URLs will only resolve locally")
	}
	if len(c.Sources) == 0 && c.SourcesManifest == "" {
		log.Ctx(ctx).Warn().Msg("no schema sources configured")
	}

	provider, err := c.SourceProvider()
	if err != nil {
		return nil, err
	}

	// An empty list from the flag means every source.
	var enabled []string
	if len(c.EnabledSources) > 0 {
		enabled = c.EnabledSources
	}

	reloader, err := reload.New(ctx, provider, enabled)
	if err != nil {
		return nil, schemaerrors.NewTerminationErrorBuilder(err).Component("registry").ExitCode(sysexits.Config).Error()
	}

	schemaCacheImpl, err := c.SchemaCache.Complete()
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}
	schemaCache := caching.NewSchemaCache(schemaCacheImpl)

	var closers closer.Stack
	closers.AddWithoutError(schemaCache.Close)

	service, err := schemas.NewService(schemas.Config{
		Scheme:               c.SchemasURLScheme,
		Host:                 c.SchemasHost,
		Prefix:               c.SchemasEndpoint,
		TransformPrefix:      c.SchemasTransformEndpoint,
		ReplaceRefsDefault:   c.ReplaceRefs,
		ResolveSchemaDefault: c.ResolveSchema,
		MaxAge:               c.HTTPCacheMaxAge,
		Clock:                c.Clock,
		Loader:               c.Loader,
		MaxDepth:             c.MaxRefDepth,
	}, reloader, schemaCache)
	if err != nil {
		return nil, multierr.Combine(err, closers.Close())
	}

	return &CompletedService{Service: service, Reloader: reloader, closers: closers}, nil
}

// Complete validates the config and fills out defaults.
// if there is no error, a completedServerConfig (with limited options for
// mutation) is returned.
func (c *Config) Complete(ctx context.Context) (RunnableServer, error) {
	completed, err := c.CompleteService(ctx)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (RunnableServer, error) {
		completed.Close()
		return nil, err
	}

	chain, err := DefaultMiddleware(MiddlewareOption{
		logLevel:              zerolog.InfoLevel,
		enableVersionResponse: c.EnableVersionResponse,
		corsEnabled:           c.HTTPCorsEnabled,
		corsAllowedOrigins:    c.HTTPCorsAllowedOrigins,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to build middleware: %w", err))
	}
	if err := chain.modify(c.MiddlewareModification...); err != nil {
		return fail(fmt.Errorf("failed to modify middleware: %w", err))
	}
	if c.HTTPCorsEnabled {
		log.Ctx(ctx).Info().Strs("origins", c.HTTPCorsAllowedOrigins).Msg("setting schemas CORS policy")
	}

	httpServer, err := c.HTTPServer.Complete(zerolog.InfoLevel, chain.Handler(completed.Service.Handler()))
	if err != nil {
		return fail(fmt.Errorf("failed to initialize schemas http server: %w", err))
	}

	metricsServer, err := c.MetricsAPI.Complete(zerolog.InfoLevel, MetricsHandler(c))
	if err != nil {
		return fail(fmt.Errorf("failed to initialize metrics server: %w", err))
	}

	dashboardServer, err := c.DashboardAPI.Complete(zerolog.InfoLevel, dashboard.NewHandler(completed.Service))
	if err != nil {
		return fail(fmt.Errorf("failed to initialize dashboard server: %w", err))
	}

	var watchPaths []string
	if c.SourcesManifest != "" {
		watchPaths = append(watchPaths, c.SourcesManifest)
	}

	return &completedServerConfig{
		completed:       completed,
		httpServer:      httpServer,
		metricsServer:   metricsServer,
		dashboardServer: dashboardServer,
		watch:           c.Watch,
		watchDebounce:   c.WatchDebounce,
		watchPaths:      watchPaths,
	}, nil
}

// RunnableServer is a schema service set ready to run
type RunnableServer interface {
	Run(ctx context.Context) error
	Service() *schemas.Service
	Reloader() *reload.Reloader

	// HTTPAddr blocks until the schemas server listens, and returns its
	// address. It must only be called while Run is running.
	HTTPAddr() net.Addr
}

// completedServerConfig holds the full configuration to run the servers,
// but is assumed have already been validated via `Complete()` on Config.
type completedServerConfig struct {
	completed       *CompletedService
	httpServer      util.RunnableHTTPServer
	metricsServer   util.RunnableHTTPServer
	dashboardServer util.RunnableHTTPServer

	watch         bool
	watchDebounce time.Duration
	watchPaths    []string
}

func (c *completedServerConfig) Service() *schemas.Service {
	return c.completed.Service
}

func (c *completedServerConfig) Reloader() *reload.Reloader {
	return c.completed.Reloader
}

func (c *completedServerConfig) HTTPAddr() net.Addr {
	return c.httpServer.Addr()
}

func (c *completedServerConfig) Run(ctx context.Context) error {
	defer c.completed.Close()

	g, ctx := errgroup.WithContext(ctx)

	stopOnCancel := func(stopFn func()) func() error {
		return func() error {
			<-ctx.Done()
			stopFn()
			return nil
		}
	}

	g.Go(c.httpServer.ListenAndServe)
	g.Go(stopOnCancel(c.httpServer.Close))

	g.Go(c.metricsServer.ListenAndServe)
	g.Go(stopOnCancel(c.metricsServer.Close))

	g.Go(c.dashboardServer.ListenAndServe)
	g.Go(stopOnCancel(c.dashboardServer.Close))

	if c.watch {
		g.Go(func() error {
			return c.completed.Reloader.Watch(ctx, c.watchDebounce, c.watchPaths...)
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("error shutting down servers")
		return err
	}

	return nil
}
