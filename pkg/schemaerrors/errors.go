package schemaerrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotFound is a shared interface for not found errors.
type ErrNotFound interface {
	IsNotFoundError() bool
}

// ErrSchemaNotFound occurs when a schema path is not in the registry, or when
// a JSON pointer does not address anything in a loaded schema.
type ErrSchemaNotFound struct {
	error
	path string
}

var _ ErrNotFound = ErrSchemaNotFound{}

func (err ErrSchemaNotFound) IsNotFoundError() bool {
	return true
}

// NotFoundPath is the schema path (or URI) that was not found.
func (err ErrSchemaNotFound) NotFoundPath() string {
	return err.path
}

// MarshalZerologObject implements zerolog object marshalling.
func (err ErrSchemaNotFound) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("path", err.path)
}

// DetailsMetadata returns the metadata for details for this error.
func (err ErrSchemaNotFound) DetailsMetadata() map[string]string {
	return map[string]string{
		"schema_path": err.path,
	}
}

// NewSchemaNotFoundErr constructs a new schema not found error.
func NewSchemaNotFoundErr(path string) error {
	return ErrSchemaNotFound{
		error: fmt.Errorf("schema `%s` not found", path),
		path:  path,
	}
}

// ErrDuplicateSchema occurs when two sources contribute the same schema path.
type ErrDuplicateSchema struct {
	error
	path           string
	existingSource string
	newSource      string
}

// DuplicatePath is the schema path claimed by both sources.
func (err ErrDuplicateSchema) DuplicatePath() string { return err.path }

// ExistingSource is the location of the source that registered the path first.
func (err ErrDuplicateSchema) ExistingSource() string { return err.existingSource }

// NewSource is the location of the source whose registration failed.
func (err ErrDuplicateSchema) NewSource() string { return err.newSource }

// MarshalZerologObject implements zerolog object marshalling.
func (err ErrDuplicateSchema) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("path", err.path).Str("existingSource", err.existingSource).Str("newSource", err.newSource)
}

// DetailsMetadata returns the metadata for details for this error.
func (err ErrDuplicateSchema) DetailsMetadata() map[string]string {
	return map[string]string{
		"schema_path":     err.path,
		"existing_source": err.existingSource,
		"new_source":      err.newSource,
	}
}

// NewDuplicateSchemaErr constructs a new duplicate schema error.
func NewDuplicateSchemaErr(path, existingSource, newSource string) error {
	return ErrDuplicateSchema{
		error:          fmt.Errorf("schema `%s` defined in multiple sources: `%s` and `%s`", path, existingSource, newSource),
		path:           path,
		existingSource: existingSource,
		newSource:      newSource,
	}
}

// ErrInsecureSchemaLocation occurs when a $ref points outside of the schemas
// served by this process and no trusted loader accepted it.
type ErrInsecureSchemaLocation struct {
	error
	uri string
}

// URI is the rejected reference.
func (err ErrInsecureSchemaLocation) URI() string { return err.uri }

// MarshalZerologObject implements zerolog object marshalling.
func (err ErrInsecureSchemaLocation) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("uri", err.uri)
}

// DetailsMetadata returns the metadata for details for this error.
func (err ErrInsecureSchemaLocation) DetailsMetadata() map[string]string {
	return map[string]string{
		"uri": err.uri,
	}
}

// NewInsecureSchemaLocationErr constructs a new insecure schema location error.
func NewInsecureSchemaLocationErr(uri string) error {
	return ErrInsecureSchemaLocation{
		error: fmt.Errorf("requested schema located on insecure location: %s", uri),
		uri:   uri,
	}
}

// ErrMalformedSchema occurs when the stored bytes for a schema are not valid JSON.
type ErrMalformedSchema struct {
	error
	path  string
	cause error
}

// MalformedPath is the path of the schema which could not be parsed.
func (err ErrMalformedSchema) MalformedPath() string { return err.path }

// Unwrap returns the parse error.
func (err ErrMalformedSchema) Unwrap() error { return err.cause }

// MarshalZerologObject implements zerolog object marshalling.
func (err ErrMalformedSchema) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("path", err.path)
}

// DetailsMetadata returns the metadata for details for this error.
func (err ErrMalformedSchema) DetailsMetadata() map[string]string {
	return map[string]string{
		"schema_path": err.path,
	}
}

// NewMalformedSchemaErr constructs a new malformed schema error.
func NewMalformedSchemaErr(path string, cause error) error {
	return ErrMalformedSchema{
		error: fmt.Errorf("schema `%s` is not valid JSON: %w", path, cause),
		path:  path,
		cause: cause,
	}
}

// ErrCyclicReference occurs when following $ref pointers revisits a reference
// that is still being resolved.
type ErrCyclicReference struct {
	error
	uri   string
	chain []string
}

// URI is the reference which closed the cycle.
func (err ErrCyclicReference) URI() string { return err.uri }

// Chain is the active resolution stack, outermost first.
func (err ErrCyclicReference) Chain() []string { return err.chain }

// MarshalZerologObject implements zerolog object marshalling.
func (err ErrCyclicReference) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("uri", err.uri).Strs("chain", err.chain)
}

// DetailsMetadata returns the metadata for details for this error.
func (err ErrCyclicReference) DetailsMetadata() map[string]string {
	return map[string]string{
		"uri":   err.uri,
		"chain": strings.Join(err.chain, " -> "),
	}
}

// NewCyclicReferenceErr constructs a new cyclic reference error.
func NewCyclicReferenceErr(uri string, chain []string) error {
	copied := make([]string, len(chain))
	copy(copied, chain)
	return ErrCyclicReference{
		error: fmt.Errorf("cyclic $ref detected at `%s`", uri),
		uri:   uri,
		chain: copied,
	}
}

// ErrInvalidPath occurs when a requested schema path is not a normalized
// relative path.
type ErrInvalidPath struct {
	error
	path string
}

// InvalidPath is the rejected path.
func (err ErrInvalidPath) InvalidPath() string { return err.path }

// MarshalZerologObject implements zerolog object marshalling.
func (err ErrInvalidPath) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("path", err.path)
}

// NewInvalidPathErr constructs a new invalid path error.
func NewInvalidPathErr(path, reason string) error {
	return ErrInvalidPath{
		error: fmt.Errorf("invalid schema path `%s`: %s", path, reason),
		path:  path,
	}
}

// IsNotFound returns true if the error, or any error it wraps, is a not
// found error.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf) && nf.IsNotFoundError()
}

// IsInvalidPath returns true if the error, or any error it wraps, rejects a
// schema path.
func IsInvalidPath(err error) bool {
	return errors.As(err, new(ErrInvalidPath))
}

// IsMalformed returns true if the error, or any error it wraps, reports a
// document that is not valid JSON.
func IsMalformed(err error) bool {
	return errors.As(err, new(ErrMalformedSchema))
}

// IsInsecureLocation returns true if the error, or any error it wraps,
// refuses a reference outside the registry.
func IsInsecureLocation(err error) bool {
	return errors.As(err, new(ErrInsecureSchemaLocation))
}

// IsCyclicReference returns true if the error, or any error it wraps, reports
// a reference cycle.
func IsCyclicReference(err error) bool {
	return errors.As(err, new(ErrCyclicReference))
}
