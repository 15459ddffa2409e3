package cmd

import (
	"context"
	"time"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/authzed/jsonschemas/internal/reload"
	"github.com/authzed/jsonschemas/internal/services/schemas"
	"github.com/authzed/jsonschemas/pkg/cmd/server"
	"github.com/authzed/jsonschemas/pkg/cmd/termination"
	"github.com/authzed/jsonschemas/pkg/cmd/util"
	"github.com/authzed/jsonschemas/pkg/middleware/serverversion"
	"github.com/authzed/jsonschemas/pkg/releases"
)

// RegisterSchemaFlags registers the flags describing the external identity
// of the schemas and their transformation defaults.
func RegisterSchemaFlags(flags *pflag.FlagSet, config *server.Config) {
	flags.StringVar(&config.SchemasHost, "schemas-host", server.DefaultSchemasHost, "host, with optional port, under which schemas are published")
	flags.StringVar(&config.SchemasURLScheme, "schemas-url-scheme", server.DefaultURLScheme, `scheme of published schema URLs ("http", "https")`)
	flags.StringVar(&config.SchemasEndpoint, "schemas-endpoint", server.DefaultSchemasEndpoint, "path prefix under which schemas are published")
	flags.StringVar(&config.SchemasTransformEndpoint, "schemas-transform-endpoint", server.DefaultSchemasTransformEndpoint, `path prefix serving "refs" and "resolved" transforms as {prefix}/{transform}/{path}, empty to disable; must not overlap --schemas-endpoint`)
	flags.BoolVar(&config.ReplaceRefs, "replace-refs", false, "replace $ref references when a request does not say otherwise")
	flags.BoolVar(&config.ResolveSchema, "resolve-schema", false, "replace references and merge allOf compositions when a request does not say otherwise")
	flags.IntVar(&config.MaxRefDepth, "max-ref-depth", 0, "maximum number of nested references followed while resolving a schema, 0 for the default")
}

// RegisterSourceFlags registers the flags selecting schema sources.
func RegisterSourceFlags(flags *pflag.FlagSet, config *server.Config) {
	flags.StringArrayVar(&config.Sources, "source", nil, "schema source as name=directory, may be repeated")
	flags.StringVar(&config.SourcesManifest, "sources-manifest", "", "path to a YAML file listing schema sources")
	flags.StringSliceVar(&config.EnabledSources, "enabled-sources", nil, "names of the sources to register, all sources if empty")
}

func RegisterServeFlags(cmd *cobra.Command, config *server.Config) {
	nfs := cobrautil.NewNamedFlagSets(cmd)

	schemaFlags := nfs.FlagSet(BoldBlue("Schemas"))
	RegisterSchemaFlags(schemaFlags, config)
	RegisterSourceFlags(schemaFlags, config)
	schemaFlags.BoolVar(&config.Watch, "watch", false, "reload the registry when files of a source change")
	schemaFlags.DurationVar(&config.WatchDebounce, "watch-debounce", reload.DefaultDebounce, "how long to wait for changes to settle before reloading")
	server.RegisterCacheConfigFlags(schemaFlags, &config.SchemaCache, "schema-cache")

	httpFlags := nfs.FlagSet(BoldBlue("HTTP"))
	util.RegisterHTTPServerFlags(httpFlags, &config.HTTPServer, "http", "schemas", ":8443", true)
	httpFlags.BoolVar(&config.HTTPCorsEnabled, "http-cors-enabled", false, "enable CORS on the schemas endpoint")
	httpFlags.StringSliceVar(&config.HTTPCorsAllowedOrigins, "http-cors-allowed-origins", []string{"*"}, "CORS allowed origins for the schemas endpoint")
	httpFlags.DurationVar(&config.HTTPCacheMaxAge, "http-cache-max-age", schemas.DefaultMaxAge, "max-age advertised for schema responses")
	httpFlags.DurationVar(&config.ShutdownGracePeriod, "http-shutdown-grace-period", 0*time.Second, "amount of time after receiving sigint to continue serving")

	miscFlags := nfs.FlagSet(BoldBlue("Miscellaneous"))
	miscFlags.BoolVar(&config.EnableVersionResponse, "enable-version-response", true, "report the server version to requests sending the "+serverversion.RequestHeaderKey+" header")
	util.RegisterHTTPServerFlags(miscFlags, &config.DashboardAPI, "dashboard", "dashboard", ":8080", true)
	util.RegisterHTTPServerFlags(miscFlags, &config.MetricsAPI, "metrics", "metrics", ":9090", true)

	nfs.AddFlagSets(cmd)
}

func NewServeCommand(programName string, config *server.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "serve the schema registry",
		Long:    "Registers every configured schema source and serves the schemas over HTTP",
		Args:    cobra.NoArgs,
		PreRunE: cobrautil.CommandStack(
			server.DefaultPreRunE(programName),
			releases.LogVersionRunE(releases.CurrentVersion),
		),
		RunE: termination.PublishError(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			server, err := config.Complete(ctx)
			if err != nil {
				return err
			}
			signalctx := SignalContextWithGracePeriod(
				context.Background(),
				config.ShutdownGracePeriod,
			)
			return server.Run(signalctx)
		}),
		Example: server.ServeExample(programName),
	}
}
