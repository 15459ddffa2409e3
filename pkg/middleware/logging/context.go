// Package logging attaches a request-scoped logger to HTTP requests.
package logging

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	log "github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/pkg/middleware/requestid"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// Handler gives every request a logger tagged with its request ID and logs
// each completed request at the given level. It must run inside the
// requestid handler.
func Handler(next http.Handler, level zerolog.Level) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.ContextWithFields(r.Context(), func(c zerolog.Context) zerolog.Context {
			if requestID, ok := requestid.FromContext(r.Context()); ok {
				c = c.Str("requestID", requestID)
			}
			return c
		})

		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(recorder, r.WithContext(ctx))

		if recorder.status == 0 {
			recorder.status = http.StatusOK
		}
		log.Ctx(ctx).WithLevel(level).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Int("bytes", recorder.bytes).
			Dur("duration", time.Since(start)).
			Msg("handled request")
	})
}
