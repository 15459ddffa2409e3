package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCtxFallsBackToGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := Logger
	SetGlobalLogger(zerolog.New(&buf))
	t.Cleanup(func() { SetGlobalLogger(previous) })

	Ctx(context.Background()).Info().Msg("hello")
	require.Contains(t, buf.String(), `"message":"hello"`)
}

func TestContextWithFields(t *testing.T) {
	var buf bytes.Buffer
	previous := Logger
	SetGlobalLogger(zerolog.New(&buf))
	t.Cleanup(func() { SetGlobalLogger(previous) })

	ctx := ContextWithFields(context.Background(), func(c zerolog.Context) zerolog.Context {
		return c.Str("requestID", "abc")
	})
	Ctx(ctx).Warn().Msg("scoped")

	require.Contains(t, buf.String(), `"requestID":"abc"`)
	require.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	Info().Msg("global")
	require.NotContains(t, buf.String(), "requestID")
}
