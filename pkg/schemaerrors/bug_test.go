package schemaerrors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMustBugfPanicsUnderTest(t *testing.T) {
	require.True(t, isInTests())
	require.PanicsWithValue(t, "schema `a.json` has no URL", func() {
		_ = MustBugf("schema `%s` has no URL", "a.json")
	})
}
