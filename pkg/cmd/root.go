package cmd

import (
	"github.com/fatih/color"
	"github.com/jzelinskie/cobrautil/v2/cobraotel"
	"github.com/jzelinskie/cobrautil/v2/cobrazerolog"
	"github.com/spf13/cobra"

	"github.com/authzed/jsonschemas/pkg/cmd/server"
	"github.com/authzed/jsonschemas/pkg/cmd/termination"
	"github.com/authzed/jsonschemas/pkg/runtime"
)

// BoldBlue renders flag set titles in help output.
var BoldBlue = color.New(color.FgBlue, color.Bold).SprintFunc()

func RegisterRootFlags(cmd *cobra.Command) {
	cobrazerolog.New().RegisterFlags(cmd.PersistentFlags())
	cobraotel.New(cmd.Use).RegisterFlags(cmd.PersistentFlags())
	termination.RegisterFlags(cmd.PersistentFlags())
	runtime.RegisterFlags(cmd.PersistentFlags())
}

func NewRootCommand(programName string) *cobra.Command {
	return &cobra.Command{
		Use:           programName,
		Short:         "A JSON Schema registry",
		Long:          "A server that registers JSON Schema documents from local sources and serves them, optionally with references replaced and compositions merged",
		Example:       server.ServeExample(programName),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
}
