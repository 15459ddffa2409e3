package util

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jzelinskie/stringz"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const readHeaderTimeout = 10 * time.Second

type HTTPServerConfig struct {
	Address     string
	TLSCertPath string
	TLSKeyPath  string
	Enabled     bool

	flagPrefix string
}

// Complete validates the config and returns a server for the handler. The
// listener is not opened until ListenAndServe.
func (c *HTTPServerConfig) Complete(level zerolog.Level, handler http.Handler) (RunnableHTTPServer, error) {
	if !c.Enabled {
		return &disabledHTTPServer{}, nil
	}

	srv := &http.Server{
		Addr:              c.Address,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var serveFunc func(l net.Listener) error
	switch {
	case c.TLSCertPath == "" && c.TLSKeyPath == "":
		serveFunc = func(l net.Listener) error {
			log.Warn().Str("addr", l.Addr().String()).Str("prefix", c.flagPrefix).Msg("http server serving plaintext")
			return srv.Serve(l)
		}

	case c.TLSCertPath != "" && c.TLSKeyPath != "":
		serveFunc = func(l net.Listener) error {
			log.WithLevel(level).Str("addr", l.Addr().String()).Str("prefix", c.flagPrefix).Msg("https server started serving")
			return srv.ServeTLS(l, c.TLSCertPath, c.TLSKeyPath)
		}

	default:
		return nil, fmt.Errorf("failed to start http server: must provide both --%s-tls-cert-path and --%s-tls-key-path",
			c.flagPrefix,
			c.flagPrefix,
		)
	}

	completed := &completedHTTPServer{ready: make(chan struct{})}
	completed.srvFunc = func() error {
		l, err := net.Listen("tcp", c.Address)
		if err != nil {
			close(completed.ready)
			return fmt.Errorf("failed to listen on addr for http server: %w", err)
		}
		completed.addr = l.Addr()
		close(completed.ready)

		if err := serveFunc(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed while serving http: %w", err)
		}
		return nil
	}
	completed.closeFunc = func() {
		if err := srv.Close(); err != nil {
			log.Warn().Str("addr", srv.Addr).Str("prefix", c.flagPrefix).Err(err).Msg("error stopping http server")
		}
		log.WithLevel(level).Str("addr", srv.Addr).Str("prefix", c.flagPrefix).Msg("http server stopped serving")
	}
	return completed, nil
}

type RunnableHTTPServer interface {
	ListenAndServe() error

	// Addr blocks until the server is listening and returns its address, or
	// nil if the server is disabled or failed to listen.
	Addr() net.Addr

	Close()
}

type completedHTTPServer struct {
	srvFunc   func() error
	closeFunc func()

	ready chan struct{}
	addr  net.Addr
}

func (c *completedHTTPServer) ListenAndServe() error {
	return c.srvFunc()
}

func (c *completedHTTPServer) Addr() net.Addr {
	<-c.ready
	return c.addr
}

func (c *completedHTTPServer) Close() {
	c.closeFunc()
}

type disabledHTTPServer struct{}

func (disabledHTTPServer) ListenAndServe() error { return nil }
func (disabledHTTPServer) Addr() net.Addr        { return nil }
func (disabledHTTPServer) Close()                {}

// RegisterHTTPServerFlags adds the following flags for use with
// HTTPServerConfig:
// - "$PREFIX-addr"
// - "$PREFIX-tls-cert-path"
// - "$PREFIX-tls-key-path"
// - "$PREFIX-enabled"
func RegisterHTTPServerFlags(flags *pflag.FlagSet, config *HTTPServerConfig, flagPrefix, serviceName, defaultAddr string, defaultEnabled bool) {
	flagPrefix = stringz.DefaultEmpty(flagPrefix, "http")
	serviceName = stringz.DefaultEmpty(serviceName, "http")
	defaultAddr = stringz.DefaultEmpty(defaultAddr, ":8443")
	config.flagPrefix = flagPrefix
	flags.StringVar(&config.Address, flagPrefix+"-addr", defaultAddr, "address to listen on to serve "+serviceName)
	flags.StringVar(&config.TLSCertPath, flagPrefix+"-tls-cert-path", "", "local path to the TLS certificate used to serve "+serviceName)
	flags.StringVar(&config.TLSKeyPath, flagPrefix+"-tls-key-path", "", "local path to the TLS key used to serve "+serviceName)
	flags.BoolVar(&config.Enabled, flagPrefix+"-enabled", defaultEnabled, "enable "+serviceName+" http server")
}
