package termination

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/authzed/jsonschemas/pkg/schemaerrors"
)

func newCommand(t *testing.T, logPath string, runErr error) (*cobra.Command, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	cmd := &cobra.Command{
		Use: "test",
		RunE: publishErrorTo(fs, func(*cobra.Command, []string) error {
			return runErr
		}),
	}
	RegisterFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Set(terminationLogFlagName, logPath))
	return cmd, fs
}

func TestPublishDuplicateError(t *testing.T) {
	dup := schemaerrors.NewDuplicateSchemaErr("biology/animal.json", "first", "second")
	termErr := schemaerrors.NewTerminationErrorBuilder(dup).Component("registry").Error()

	cmd, fs := newCommand(t, "/var/log/termination.log", termErr)
	err := cmd.RunE(cmd, nil)
	require.ErrorIs(t, err, dup)

	data, err := afero.ReadFile(fs, "/var/log/termination.log")
	require.NoError(t, err)

	var published map[string]any
	require.NoError(t, json.Unmarshal(data, &published))
	require.Equal(t, "registry", published["component"])
	require.Contains(t, published["error"], "biology/animal.json")
	require.NotEmpty(t, published["metadata"])
}

func TestPublishIgnoresOtherErrors(t *testing.T) {
	cmd, fs := newCommand(t, "/termination.log", errors.New("plain"))
	require.Error(t, cmd.RunE(cmd, nil))

	exists, err := afero.Exists(fs, "/termination.log")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestPublishTruncatesMetadata(t *testing.T) {
	builder := schemaerrors.NewTerminationErrorBuilder(errors.New("too much"))
	builder.Metadata("huge", strings.Repeat("x", kubeTerminationLogLimit))

	cmd, fs := newCommand(t, "/termination.log", builder.Error())
	require.Error(t, cmd.RunE(cmd, nil))

	data, err := afero.ReadFile(fs, "/termination.log")
	require.NoError(t, err)
	require.LessOrEqual(t, len(data), kubeTerminationLogLimit)
	require.NotContains(t, string(data), "xxxx")
}
