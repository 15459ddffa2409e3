package termination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	log "github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
)

const (
	terminationLogFlagName  = "termination-log-path"
	kubeTerminationLogLimit = 4096
)

// PublishError returns a new wrapping cobra run function that executes the provided argument runFunc, and
// writes to disk an error returned by the latter if it is of type schemaerrors.TerminationError.
func PublishError(runFunc cobrautil.CobraRunFunc) cobrautil.CobraRunFunc {
	return publishErrorTo(afero.NewOsFs(), runFunc)
}

func publishErrorTo(fs afero.Fs, runFunc cobrautil.CobraRunFunc) cobrautil.CobraRunFunc {
	return func(cmd *cobra.Command, args []string) error {
		runFuncErr := runFunc(cmd, args)

		var termErr schemaerrors.TerminationError
		if runFuncErr == nil || !errors.As(runFuncErr, &termErr) {
			return runFuncErr
		}

		ctx := context.Background()
		if cmd.Context() != nil {
			ctx = cmd.Context()
		}

		terminationLogPath := cobrautil.MustGetString(cmd, terminationLogFlagName)
		if terminationLogPath == "" {
			return runFuncErr
		}

		if err := writeTerminationLog(ctx, fs, terminationLogPath, termErr); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to report termination log")
		}
		return runFuncErr
	}
}

func writeTerminationLog(ctx context.Context, fs afero.Fs, terminationLogPath string, termErr schemaerrors.TerminationError) error {
	bytes, err := json.Marshal(termErr)
	if err != nil {
		return fmt.Errorf("unable to marshal termination log: %w", err)
	}

	if len(bytes) > kubeTerminationLogLimit {
		log.Ctx(ctx).Warn().Msg("termination log exceeds 4096 bytes limit, metadata will be truncated")
		termErr.Metadata = nil
		bytes, err = json.Marshal(termErr)
		if err != nil {
			return fmt.Errorf("unable to marshal termination log: %w", err)
		}
	}

	if err := fs.MkdirAll(filepath.Dir(terminationLogPath), 0o700); err != nil {
		return fmt.Errorf("unable to create directory for termination log: %w", err)
	}
	if err := afero.WriteFile(fs, terminationLogPath, bytes, 0o600); err != nil {
		return fmt.Errorf("unable to write termination log file: %w", err)
	}
	return nil
}

// RegisterFlags registers the termination log flag
func RegisterFlags(flagset *flag.FlagSet) {
	flagset.String(terminationLogFlagName,
		"",
		"define the path to the termination log file, which contains a JSON payload to surface as reason for termination - disabled by default",
	)
}
