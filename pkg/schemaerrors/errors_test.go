package schemaerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	require.True(t, IsNotFound(NewSchemaNotFoundErr("a.json")))
	require.True(t, IsNotFound(fmt.Errorf("wrapped: %w", NewSchemaNotFoundErr("a.json"))))
	require.False(t, IsNotFound(NewInsecureSchemaLocationErr("https://example.org/a.json")))
	require.False(t, IsNotFound(nil))
}

func TestKindHelpers(t *testing.T) {
	tcs := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"invalid path", NewInvalidPathErr("../a.json", "path contains a relative segment"), IsInvalidPath},
		{"malformed", NewMalformedSchemaErr("a.json", fmt.Errorf("unexpected EOF")), IsMalformed},
		{"insecure", NewInsecureSchemaLocationErr("https://example.org/a.json"), IsInsecureLocation},
		{"cyclic", NewCyclicReferenceErr("https://example.org/a.json", []string{"https://example.org/a.json"}), IsCyclicReference},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, tc.check(tc.err))
			require.True(t, tc.check(fmt.Errorf("wrapped: %w", tc.err)))
			require.False(t, tc.check(NewSchemaNotFoundErr("a.json")))
			require.False(t, tc.check(nil))
		})
	}
}

func TestDuplicateSchemaErrNamesBothSources(t *testing.T) {
	err := NewDuplicateSchemaErr("sub/a.json", "/srv/first", "/srv/second")
	require.ErrorContains(t, err, "/srv/first")
	require.ErrorContains(t, err, "/srv/second")

	var dup ErrDuplicateSchema
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "sub/a.json", dup.DuplicatePath())
	require.Equal(t, "/srv/first", dup.ExistingSource())
	require.Equal(t, "/srv/second", dup.NewSource())
}

func TestMalformedSchemaUnwrapsCause(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := NewMalformedSchemaErr("a.json", cause)
	require.ErrorIs(t, err, cause)

	var malformed ErrMalformedSchema
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, "a.json", malformed.MalformedPath())
}

func TestCyclicReferenceCopiesChain(t *testing.T) {
	chain := []string{"https://h/schemas/a.json", "https://h/schemas/b.json"}
	err := NewCyclicReferenceErr("https://h/schemas/a.json", chain)
	chain[0] = "mutated"

	var cyclic ErrCyclicReference
	require.ErrorAs(t, err, &cyclic)
	require.Equal(t, "https://h/schemas/a.json", cyclic.Chain()[0])
	require.Equal(t, "https://h/schemas/a.json -> https://h/schemas/b.json", cyclic.DetailsMetadata()["chain"])
}

func TestTerminationErrorCarriesMetadata(t *testing.T) {
	err := NewDuplicateSchemaErr("a.json", "/one", "/two")
	termErr := NewTerminationErrorBuilder(err).Component("registry").ExitCode(3).Error()

	require.Equal(t, "registry", termErr.Component)
	require.Equal(t, 3, termErr.ExitCode())
	require.Equal(t, "/one", termErr.Metadata["existing_source"])
	require.ErrorIs(t, termErr, err)
}
