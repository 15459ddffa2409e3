package schemaerrors

import (
	"errors"
	"maps"
	"time"
)

// WithMetadata is implemented by errors which carry details metadata.
type WithMetadata interface {
	DetailsMetadata() map[string]string
}

// TerminationError represents an error that caused the process to terminate.
// It is serialized to the termination log so that orchestrators can surface
// the reason.
type TerminationError struct {
	error
	Component   string            `json:"component"`
	Timestamp   time.Time         `json:"timestamp"`
	ErrorString string            `json:"error"`
	Metadata    map[string]string `json:"metadata"`
	exitCode    int
}

// ExitCode returns the process exit code for the error.
func (e TerminationError) ExitCode() int {
	return e.exitCode
}

// Unwrap returns the inner, wrapped error.
func (e TerminationError) Unwrap() error {
	return e.error
}

// NewTerminationErrorBuilder returns a builder wrapping the given error.
func NewTerminationErrorBuilder(err error) *TerminationErrorBuilder {
	te := TerminationError{
		error:       err,
		ErrorString: err.Error(),
		Timestamp:   time.Now(),
		Metadata:    map[string]string{},
		exitCode:    1,
	}

	var withMetadata WithMetadata
	if errors.As(err, &withMetadata) {
		maps.Copy(te.Metadata, withMetadata.DetailsMetadata())
	}

	return &TerminationErrorBuilder{termErr: te}
}

// TerminationErrorBuilder builds a TerminationError.
type TerminationErrorBuilder struct {
	termErr TerminationError
}

func (eb *TerminationErrorBuilder) Component(component string) *TerminationErrorBuilder {
	eb.termErr.Component = component
	return eb
}

func (eb *TerminationErrorBuilder) Metadata(key, value string) *TerminationErrorBuilder {
	eb.termErr.Metadata[key] = value
	return eb
}

func (eb *TerminationErrorBuilder) ExitCode(exitCode int) *TerminationErrorBuilder {
	eb.termErr.exitCode = exitCode
	return eb
}

func (eb *TerminationErrorBuilder) Error() TerminationError {
	return eb.termErr
}
