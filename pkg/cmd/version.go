package cmd

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"

	"github.com/authzed/jsonschemas/pkg/releases"
)

func usageVersion(programName string, includeDeps bool) string {
	version, err := releases.CurrentVersion()
	if err != nil {
		version = "(unknown)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", programName, version)
	if !includeDeps {
		return b.String()
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			fmt.Fprintf(&b, "\n%s %s", dep.Path, dep.Version)
		}
	}
	return b.String()
}

func NewVersionCommand(programName string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays the version of " + programName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), usageVersion(programName, cobrautil.MustGetBool(cmd, "include-deps")))
			return err
		},
	}
	cmd.Flags().Bool("include-deps", false, "include versions of dependencies")
	return cmd
}
