package reload

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/authzed/jsonschemas/internal/logging"
)

// DefaultDebounce is how long the watcher waits for changes to settle before
// reloading.
const DefaultDebounce = 250 * time.Millisecond

// A failed reload, for instance while a file is half written, is retried with
// exponential backoff until it succeeds or another change arrives.
const (
	retryInitialInterval = time.Second
	retryMaxElapsedTime  = 5 * time.Minute
)

// Watch reloads the registry whenever a file in a host filesystem source
// changes, until the context is canceled. extraPaths, such as a sources
// manifest, are watched as well.
func (r *Reloader) Watch(ctx context.Context, debounce time.Duration, extraPaths ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	r.watchSources(ctx, watcher, extraPaths)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = retryInitialInterval
	retry.MaxElapsedTime = retryMaxElapsedTime

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	schedule := func(after time.Duration) {
		if timer == nil {
			timer = time.NewTimer(after)
		} else {
			timer.Reset(after)
		}
		trigger = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}

			logging.Ctx(ctx).Debug().Str("path", event.Name).Stringer("op", event.Op).Msg("schema source changed")
			retry.Reset()
			schedule(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Ctx(ctx).Warn().Err(err).Msg("error watching schema sources")

		case <-trigger:
			trigger = nil
			if err := r.Reload(ctx); err != nil {
				if next := retry.NextBackOff(); next != backoff.Stop {
					logging.Ctx(ctx).Info().Dur("retryIn", next).Msg("retrying schema registry reload")
					schedule(next)
				}
				continue
			}

			retry.Reset()
			// Pick up directories created since the last load.
			r.watchSources(ctx, watcher, extraPaths)
		}
	}
}

func (r *Reloader) watchSources(ctx context.Context, watcher *fsnotify.Watcher, extraPaths []string) {
	for _, path := range extraPaths {
		// Watch the directory so that editors replacing the file are seen.
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("unable to watch path")
		}
	}

	for _, source := range r.Current().Sources {
		if !source.IsOS() {
			continue
		}

		err := filepath.WalkDir(source.Location, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.IsDir() {
				return nil
			}
			return watcher.Add(path)
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Ctx(ctx).Warn().Err(err).Object("source", source).Msg("unable to watch schema source")
		}
	}
}
