// Package releases reports the version of the running binary.
package releases

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	log "github.com/authzed/jsonschemas/internal/logging"
)

// CurrentVersion returns the current version of the binary.
func CurrentVersion() (string, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", fmt.Errorf("failed to read BuildInfo because the program was compiled with Go %s", runtime.Version())
	}

	return cobrautil.VersionWithFallbacks(bi), nil
}

// IsReleased reports whether version names a tagged release rather than a
// development or prerelease build.
func IsReleased(version string) bool {
	return semver.IsValid(version) && semver.Prerelease(version) == "" && semver.Build(version) == ""
}

// LogVersionRunE returns a run function that logs the running version, with
// a warning for builds that are not a release.
func LogVersionRunE(getVersion func() (string, error)) cobrautil.CobraRunFunc {
	return func(cmd *cobra.Command, _ []string) error {
		version, err := getVersion()
		if err != nil {
			log.Warn().Err(err).Msg("could not determine the running version")
			return nil
		}

		if !IsReleased(version) {
			log.Warn().Str("version", version).Msg("not running a released version")
			return nil
		}

		log.Info().Str("version", version).Msg("running released version")
		return nil
	}
}
