package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/fatih/color"
	"github.com/felixge/fgprof"
	"github.com/go-logr/zerologr"
	"github.com/jzelinskie/cobrautil/v2"
	"github.com/jzelinskie/cobrautil/v2/cobraotel"
	"github.com/jzelinskie/cobrautil/v2/cobrazerolog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/authzed/jsonschemas/internal/logging"
	logmw "github.com/authzed/jsonschemas/pkg/middleware/logging"
	"github.com/authzed/jsonschemas/pkg/middleware/requestid"
	"github.com/authzed/jsonschemas/pkg/middleware/serverversion"
	"github.com/authzed/jsonschemas/pkg/runtime"
)

// ServeExample creates an example usage string with the provided program name.
func ServeExample(programName string) string {
	return fmt.Sprintf(`	%[1]s:
		%[3]s serve --source biology=./schemas/biology --schemas-url-scheme http --schemas-host localhost:8443

	%[2]s:
		%[3]s serve --sources-manifest /etc/jsonschemas/sources.yaml --schemas-host schemas.example.com \
			--http-tls-cert-path path/to/tls/cert --http-tls-key-path path/to/tls/key \
			--replace-refs --watch
`,
		color.YellowString("No TLS and a single source"),
		color.GreenString("TLS and a sources manifest"),
		programName,
	)
}

// DefaultPreRunE sets up viper, zerolog, OpenTelemetry, and runtime flag
// handling for a command.
func DefaultPreRunE(programName string) cobrautil.CobraRunFunc {
	return cobrautil.CommandStack(
		cobrautil.SyncViperDotEnvPreRunE(programName, programName+".env", zerologr.New(&logging.Logger)),
		cobrazerolog.New(
			cobrazerolog.WithTarget(func(logger zerolog.Logger) {
				logging.SetGlobalLogger(logger)
			}),
		).RunE(),
		cobraotel.New(programName,
			cobraotel.WithLogger(zerologr.New(&logging.Logger)),
		).RunE(),
		runtime.RunE(),
	)
}

// MetricsHandler sets up an HTTP server that handles serving Prometheus
// metrics and the pprof and fgprof endpoints.
func MetricsHandler(c *Config) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/fgprof", fgprof.Handler())
	mux.HandleFunc("/debug/pprof/cmdline", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "This profile type has been disabled to avoid leaking private command-line arguments")
	})
	mux.HandleFunc("/debug/config", func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		json, err := json.MarshalIndent(c.DebugMap(), "", "  ")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, "%s", string(json))
	})

	return mux
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "jsonschemas",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "duration of schema HTTP requests",
	Buckets:   []float64{.001, .003, .006, .010, .018, .032, .056, .100, .178, .316, .562, 1.000},
}, []string{"code", "method"})

const (
	DefaultMiddlewareRequestID     = "requestid"
	DefaultMiddlewareLog           = "log"
	DefaultMiddlewareOTelHTTP      = "otelhttp"
	DefaultMiddlewarePromHTTP      = "promhttp"
	DefaultMiddlewareServerVersion = "serverversion"
	DefaultMiddlewareCORS          = "cors"
)

// MiddlewareOption configures DefaultMiddleware.
type MiddlewareOption struct {
	logLevel              zerolog.Level
	enableVersionResponse bool
	corsEnabled           bool
	corsAllowedOrigins    []string
}

// DefaultMiddleware generates the default middleware chain used for the schema
// endpoint.
func DefaultMiddleware(opts MiddlewareOption) (*MiddlewareChain, error) {
	mws := []ReferenceableMiddleware{
		{
			Name: DefaultMiddlewareRequestID,
			Middleware: func(next http.Handler) http.Handler {
				return requestid.Handler(next, requestid.GenerateIfMissing(true))
			},
		},
		{
			Name: DefaultMiddlewareLog,
			Middleware: func(next http.Handler) http.Handler {
				return logmw.Handler(next, opts.logLevel)
			},
		},
		{
			Name: DefaultMiddlewareOTelHTTP,
			Middleware: func(next http.Handler) http.Handler {
				return otelhttp.NewHandler(next, "schemas")
			},
		},
		{
			Name:     DefaultMiddlewarePromHTTP,
			Internal: true,
			Middleware: func(next http.Handler) http.Handler {
				return promhttp.InstrumentHandlerDuration(requestDuration, next)
			},
		},
		{
			Name:       DefaultMiddlewareServerVersion,
			Middleware: serverversion.Middleware(opts.enableVersionResponse),
		},
	}

	if opts.corsEnabled {
		mws = append(mws, ReferenceableMiddleware{
			Name: DefaultMiddlewareCORS,
			Middleware: func(next http.Handler) http.Handler {
				return cors.New(cors.Options{
					AllowedOrigins: opts.corsAllowedOrigins,
					AllowedMethods: []string{http.MethodGet, http.MethodHead},
					AllowedHeaders: []string{"Content-Type", requestid.HeaderKey, serverversion.RequestHeaderKey},
					ExposedHeaders: []string{requestid.HeaderKey, serverversion.ResponseHeaderKey},
					Debug:          logging.Debug().Enabled(),
				}).Handler(next)
			},
		})
	}

	chain, err := NewMiddlewareChain(mws...)
	return &chain, err
}
