package runtime

import (
	"fmt"
	"runtime"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/ccoveille/go-safecast/v2"
	"github.com/dustin/go-humanize"
	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	log "github.com/authzed/jsonschemas/internal/logging"
)

const defaultMemoryLimitRatio = 0.9

// RegisterFlags adds flags for configuring the Go runtime.
//
// The following flags are added:
// - "pprof-mutex-profile-rate"
// - "pprof-block-profile-rate"
// - "memory-limit-ratio"
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Int("pprof-mutex-profile-rate", 0, "sets the mutex profile sampling rate")
	flags.Int("pprof-block-profile-rate", 0, "sets the block profile sampling rate")
	flags.Float64("memory-limit-ratio", defaultMemoryLimitRatio, "ratio of the container or system memory to use as the Go memory limit, 0 to leave GOMEMLIMIT untouched")
}

// RunE returns a Cobra RunFunc that configures profiles and the memory limit.
//
// The required flags can be added to a command by using RegisterFlags().
func RunE() cobrautil.CobraRunFunc {
	return func(cmd *cobra.Command, args []string) error {
		if cobrautil.IsBuiltinCommand(cmd) {
			return nil // No-op for builtins
		}

		runtime.SetMutexProfileFraction(cobrautil.MustGetInt(cmd, "pprof-mutex-profile-rate"))
		runtime.SetBlockProfileRate(cobrautil.MustGetInt(cmd, "pprof-block-profile-rate"))

		ratio := cobrautil.MustGetFloat64(cmd, "memory-limit-ratio")
		if ratio <= 0 {
			return nil
		}
		if ratio > 1 {
			return fmt.Errorf("memory-limit-ratio must be at most 1, got %v", ratio)
		}

		limit, err := memlimit.SetGoMemLimitWithOpts(
			memlimit.WithRatio(ratio),
			memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
			memlimit.WithLogger(log.Slog()),
		)
		if err != nil {
			// Not fatal: outside a container there may be nothing to read.
			log.Debug().Err(err).Msg("unable to set memory limit")
			return nil
		}

		limitBytes, _ := safecast.Convert[uint64](limit)
		log.Info().Str("limit", humanize.IBytes(limitBytes)).Float64("ratio", ratio).Msg("set go memory limit")
		return nil
	}
}
