package schemas

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
)

const (
	replaceRefsParam = "refs"
	resolveParam     = "resolved"

	contentTypeJSON = "application/json"
)

// Handler returns the HTTP handler serving the schema endpoint, its index and
// the named transforms.
//
// Paths are not cleaned by a mux before they reach the handler, so that
// traversal attempts are reported as bad requests rather than redirected.
func (s *Service) Handler() http.Handler {
	prefix := s.Prefix()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}

		if s.transformPrefix != "" {
			if rest, ok := strings.CutPrefix(r.URL.Path, s.transformPrefix+"/"); ok {
				s.serveTransform(w, r, rest)
				return
			}
		}

		if r.URL.Path == prefix || r.URL.Path == prefix+"/" {
			s.serveIndex(w, r)
			return
		}

		p, ok := strings.CutPrefix(r.URL.Path, prefix+"/")
		if !ok {
			writeError(w, http.StatusNotFound, "not found", r.URL.Path)
			return
		}
		s.serveSchema(w, r, p)
	})
}

func (s *Service) serveSchema(w http.ResponseWriter, r *http.Request, p string) {
	transform, err := s.transformFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), p)
		return
	}
	s.writeSchema(w, r, p, transform)
}

// serveTransform serves `{name}/{path}`. Query flags are ignored; the name
// alone selects the transform.
func (s *Service) serveTransform(w http.ResponseWriter, r *http.Request, rest string) {
	name, p, _ := strings.Cut(rest, "/")
	transform, ok := NamedTransforms[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown transform `%s`", name), p)
		return
	}
	s.writeSchema(w, r, p, transform)
}

func (s *Service) writeSchema(w http.ResponseWriter, r *http.Request, p string, transform Transform) {
	body, err := s.Schema(r.Context(), p, transform)
	if err != nil {
		s.writeSchemaError(w, r, p, err)
		return
	}

	now := s.cfg.Clock.Now()
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int64(s.cfg.MaxAge.Seconds())))
	w.Header().Set("Expires", now.Add(s.cfg.MaxAge).UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Service) transformFromQuery(r *http.Request) (Transform, error) {
	query := r.URL.Query()

	replaceRefs, err := boolParam(query.Get(replaceRefsParam), s.cfg.ReplaceRefsDefault)
	if err != nil {
		return Transform{}, fmt.Errorf("invalid value for `%s`: %w", replaceRefsParam, err)
	}

	resolve, err := boolParam(query.Get(resolveParam), s.cfg.ResolveSchemaDefault)
	if err != nil {
		return Transform{}, fmt.Errorf("invalid value for `%s`: %w", resolveParam, err)
	}

	return Transform{ReplaceRefs: replaceRefs, Resolve: resolve}, nil
}

func boolParam(value string, defaultValue bool) (bool, error) {
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("`%s` is not a boolean", value)
	}
	return parsed, nil
}

func (s *Service) writeSchemaError(w http.ResponseWriter, r *http.Request, p string, err error) {
	var (
		malformed schemaerrors.ErrMalformedSchema
		insecure  schemaerrors.ErrInsecureSchemaLocation
		cyclic    schemaerrors.ErrCyclicReference
	)

	log := logging.Ctx(r.Context())
	switch {
	case schemaerrors.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), p)

	case schemaerrors.IsInvalidPath(err):
		writeError(w, http.StatusBadRequest, err.Error(), p)

	case errors.As(err, &malformed):
		log.Error().Object("error", malformed).Msg("schema document is malformed")
		writeError(w, http.StatusInternalServerError, err.Error(), p)

	case errors.As(err, &insecure):
		log.Warn().Object("error", insecure).Str("path", p).Msg("refused to resolve reference")
		writeError(w, http.StatusInternalServerError, err.Error(), p)

	case errors.As(err, &cyclic):
		log.Warn().Object("error", cyclic).Str("path", p).Msg("schema references are cyclic")
		writeError(w, http.StatusInternalServerError, err.Error(), p)

	default:
		log.Error().Err(err).Str("path", p).Msg("unable to serve schema")
		writeError(w, http.StatusInternalServerError, "internal error", p)
	}
}

func (s *Service) serveIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Index(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("unable to list schemas")
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Schemas []IndexEntry `json:"schemas"`
	}{Schemas: entries})
}

type errorBody struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, p string) {
	writeJSON(w, status, errorBody{Error: message, Path: p})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Debug().Err(err).Msg("unable to write response body")
	}
}
