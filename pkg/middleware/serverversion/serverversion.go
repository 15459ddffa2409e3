package serverversion

import (
	"net/http"

	log "github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/pkg/releases"
)

const (
	// RequestHeaderKey asks the server to report its version.
	RequestHeaderKey = "X-Request-Server-Version"

	// ResponseHeaderKey carries the reported version.
	ResponseHeaderKey = "X-Server-Version"
)

// HandleServerVersion defines a middleware for returning the version of the server
// when requested via the RequestHeaderKey header.
type HandleServerVersion struct {
	// IsEnabled is whether the middleware is enabled.
	IsEnabled bool

	// GetVersion is the function used to retrieve the service version.
	GetVersion func() (string, error)
}

// Handler wraps next, setting ResponseHeaderKey before next writes anything.
func (r *HandleServerVersion) Handler(next http.Handler) http.Handler {
	if !r.IsEnabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, isRequestingVersion := req.Header[RequestHeaderKey]; isRequestingVersion {
			version, err := r.GetVersion()
			if err != nil {
				log.Ctx(req.Context()).Err(err).Msg("could not load current service version")
			} else {
				w.Header().Set(ResponseHeaderKey, version)
			}
		}
		next.ServeHTTP(w, req)
	})
}

// Middleware returns a middleware reporting the version of the running binary.
func Middleware(isEnabled bool) func(http.Handler) http.Handler {
	return (&HandleServerVersion{IsEnabled: isEnabled, GetVersion: releases.CurrentVersion}).Handler
}
