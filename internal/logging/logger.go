// Package logging holds the process-wide zerolog logger.
//
// Code with a request context logs through Ctx, which falls back to the
// global logger when the context carries none.
package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

var Logger zerolog.Logger

func init() {
	SetGlobalLogger(zerolog.Nop())
}

func SetGlobalLogger(logger zerolog.Logger) {
	Logger = logger
	zerolog.DefaultContextLogger = &Logger
}

func With() zerolog.Context { return Logger.With() }

func Err(err error) *zerolog.Event { return Logger.Err(err) }

func Debug() *zerolog.Event { return Logger.Debug() }

func Info() *zerolog.Event { return Logger.Info() }

func Warn() *zerolog.Event { return Logger.Warn() }

func Error() *zerolog.Event { return Logger.Error() }

func Fatal() *zerolog.Event { return Logger.Fatal() }

func Ctx(ctx context.Context) *zerolog.Logger { return zerolog.Ctx(ctx) }

// ContextWithFields returns a child context whose logger adds the fields set
// by fn to everything it logs.
func ContextWithFields(ctx context.Context, fn func(zerolog.Context) zerolog.Context) context.Context {
	logger := fn(Ctx(ctx).With()).Logger()
	return logger.WithContext(ctx)
}

// Slog returns a slog.Logger writing to the global logger, for libraries that
// log through slog.
func Slog() *slog.Logger {
	return slog.New(slogzerolog.Option{Level: slog.LevelDebug, Logger: &Logger}.NewZerologHandler())
}
