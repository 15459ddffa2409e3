package releases

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	log "github.com/authzed/jsonschemas/internal/logging"
)

func TestIsReleased(t *testing.T) {
	for version, released := range map[string]bool{
		"v1.2.3":                             true,
		"v1.2.3-rc.1":                        false,
		"v0.0.0-20240101000000-abcdef123456": false,
		"(devel)":                            false,
		"":                                   false,
	} {
		require.Equal(t, released, IsReleased(version), version)
	}
}

func TestLogVersionRunE(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.SetGlobalLogger(zerolog.New(&buf))
	t.Cleanup(func() { log.SetGlobalLogger(previous) })

	require.NoError(t, LogVersionRunE(func() (string, error) { return "v1.0.0", nil })(nil, nil))
	require.Contains(t, buf.String(), "running released version")

	buf.Reset()
	require.NoError(t, LogVersionRunE(func() (string, error) { return "(devel)", nil })(nil, nil))
	require.Contains(t, buf.String(), "not running a released version")

	buf.Reset()
	require.NoError(t, LogVersionRunE(func() (string, error) { return "", errors.New("no build info") })(nil, nil))
	require.Contains(t, buf.String(), "no build info")
}

func TestCurrentVersion(t *testing.T) {
	version, err := CurrentVersion()
	require.NoError(t, err)
	require.NotEmpty(t, version)
}
