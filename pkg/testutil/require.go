// Package testutil implements various utilities to reduce boilerplate in unit
// tests a la testify.
package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/authzed/jsonschemas/pkg/schemadoc"
)

// RequireEqualEmptyNil is a version of require.Equal, but considers nil
// slices/maps to be equal to empty slices/maps.
func RequireEqualEmptyNil(t testing.TB, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	opts := []cmp.Option{cmpopts.EquateEmpty()}
	msgAndArgs = append(msgAndArgs, cmp.Diff(expected, actual, opts...))
	require.Truef(t, cmp.Equal(expected, actual, opts...), "Should be equal", msgAndArgs...)
}

// RequireJSONDocument decodes the given JSON and requires it to equal the
// document.
func RequireJSONDocument(t testing.TB, expectedJSON string, actual any, msgAndArgs ...any) {
	t.Helper()
	expected, err := schemadoc.Decode([]byte(expectedJSON))
	require.NoError(t, err, "invalid expected JSON")
	RequireEqualEmptyNil(t, expected, actual, msgAndArgs...)
}

// RequireJSONBytes requires the encoded JSON to decode to the same document as
// the expected JSON.
func RequireJSONBytes(t testing.TB, expectedJSON string, actual []byte, msgAndArgs ...any) {
	t.Helper()
	decoded, err := schemadoc.Decode(actual)
	require.NoError(t, err, "invalid JSON: %s", string(actual))
	RequireJSONDocument(t, expectedJSON, decoded, msgAndArgs...)
}
