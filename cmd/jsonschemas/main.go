package main

import (
	"errors"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/sean-/sysexits"

	log "github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/pkg/cmd"
	"github.com/authzed/jsonschemas/pkg/cmd/server"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
)

const programName = "jsonschemas"

func main() {
	// Set up root logger
	// This will typically be overwritten by the logging setup for a given command.
	var output io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		output = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	log.SetGlobalLogger(zerolog.New(output).With().Timestamp().Logger().Level(zerolog.InfoLevel))

	rootCmd := cmd.NewRootCommand(programName)
	cmd.RegisterRootFlags(rootCmd)

	var serverConfig server.Config
	serveCmd := cmd.NewServeCommand(programName, &serverConfig)
	cmd.RegisterServeFlags(serveCmd, &serverConfig)
	rootCmd.AddCommand(serveCmd)

	var offlineConfig server.Config
	rootCmd.AddCommand(cmd.NewListCommand(programName, &offlineConfig))
	rootCmd.AddCommand(cmd.NewResolveCommand(programName, &offlineConfig))
	rootCmd.AddCommand(cmd.NewVersionCommand(programName))
	rootCmd.AddCommand(cmd.NewManCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode logs err and maps it to a sysexits code.
func exitCode(err error) int {
	var termErr schemaerrors.TerminationError
	if errors.As(err, &termErr) {
		log.Error().Err(err).Str("component", termErr.Component).Msg("terminated")
		return termErr.ExitCode()
	}

	log.Error().Err(err).Msg("terminated")
	switch {
	case schemaerrors.IsNotFound(err):
		return sysexits.NoInput
	case schemaerrors.IsInvalidPath(err):
		return sysexits.Usage
	case schemaerrors.IsMalformed(err),
		schemaerrors.IsCyclicReference(err),
		schemaerrors.IsInsecureLocation(err):
		return sysexits.DataErr
	default:
		return sysexits.Software
	}
}
