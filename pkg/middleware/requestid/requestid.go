// Package requestid tags HTTP requests with a request ID, taken from the
// incoming request or generated, and echoes it on the response.
package requestid

import (
	"context"
	"net/http"

	"github.com/authzed/ctxkey"
	"github.com/rs/xid"
)

// HeaderKey is the header in which request IDs are passed.
const HeaderKey = "X-Request-Id"

// maxLength bounds caller-provided IDs, which end up in logs.
const maxLength = 128

var requestIDKey = ctxkey.NewBoxedWithDefault[string]("")

// Option instances control how the middleware is initialized.
type Option func(*handleRequestID)

// GenerateIfMissing will instruct the middleware to create a request ID if one
// isn't already on the incoming request.
//
// default: false
func GenerateIfMissing(enable bool) Option {
	return func(reporter *handleRequestID) {
		reporter.generateIfMissing = enable
	}
}

// WithIDGenerator replaces GenerateRequestID.
func WithIDGenerator(generator IDGenerator) Option {
	return func(reporter *handleRequestID) {
		reporter.requestIDGenerator = generator
	}
}

// IDGenerator functions are used to generate request IDs if a new one is needed.
type IDGenerator func() string

// GenerateRequestID generates a new request ID.
func GenerateRequestID() string {
	return xid.New().String()
}

type handleRequestID struct {
	generateIfMissing  bool
	requestIDGenerator IDGenerator
}

// FromContext returns the request ID of the request, if any.
func FromContext(ctx context.Context) (string, bool) {
	requestID := requestIDKey.Value(ctx)
	return requestID, requestID != ""
}

// Handler wraps next so that every request carries its request ID in its
// context and response headers.
func Handler(next http.Handler, opts ...Option) http.Handler {
	handler := &handleRequestID{requestIDGenerator: GenerateRequestID}
	for _, opt := range opts {
		opt(handler)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderKey)
		if len(requestID) > maxLength {
			requestID = ""
		}
		if requestID == "" && handler.generateIfMissing {
			requestID = handler.requestIDGenerator()
		}

		if requestID != "" {
			w.Header().Set(HeaderKey, requestID)
			ctx := requestIDKey.SetBox(r.Context())
			requestIDKey.Set(ctx, requestID)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}
