// Package reload owns the active registry and replaces it when sources
// change.
//
// Every successful load produces a new, frozen registry tagged with a
// monotonically increasing epoch. Readers take a snapshot and use it for the
// whole request; a failed reload leaves the previous snapshot in place.
package reload

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/authzed/jsonschemas/internal/logging"
	"github.com/authzed/jsonschemas/internal/registry"
	"github.com/authzed/jsonschemas/internal/sources"
)

var (
	reloadCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jsonschemas",
		Subsystem: "registry",
		Name:      "reloads_total",
		Help:      "total number of registry loads, by result",
	}, []string{"result"})

	registrySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jsonschemas",
		Subsystem: "registry",
		Name:      "schemas",
		Help:      "number of schemas in the active registry",
	})
)

// Snapshot is one loaded registry.
type Snapshot struct {
	Registry *registry.Registry
	Sources  []*registry.Source
	Epoch    uint64
	LoadedAt time.Time
}

// Reloader holds the active snapshot.
type Reloader struct {
	provider sources.Provider
	enabled  []string

	current atomic.Pointer[Snapshot]

	// mu serializes loads, keeping the registry single-writer.
	mu    sync.Mutex
	epoch uint64
}

// New performs the initial load. Unlike later reloads, a failure here is
// returned, since there is no previous registry to fall back to.
func New(ctx context.Context, provider sources.Provider, enabled []string) (*Reloader, error) {
	r := &Reloader{provider: provider, enabled: enabled}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns the active snapshot.
func (r *Reloader) Current() *Snapshot {
	return r.current.Load()
}

// Reload builds a new registry from the provider and swaps it in. On error
// the active snapshot is unchanged.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	snapshot, err := r.load(ctx)
	if err != nil {
		reloadCount.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Error().Err(err).Uint64("epoch", r.epoch).Msg("failed to load schema registry, keeping the previous one")
		return err
	}

	r.current.Store(snapshot)
	reloadCount.WithLabelValues("success").Inc()
	registrySize.Set(float64(snapshot.Registry.Len()))
	logging.Ctx(ctx).Info().
		Uint64("epoch", snapshot.Epoch).
		Int("schemas", snapshot.Registry.Len()).
		Int("sources", len(snapshot.Sources)).
		Dur("duration", time.Since(start)).
		Msg("loaded schema registry")
	return nil
}

func (r *Reloader) load(ctx context.Context) (*Snapshot, error) {
	found, err := r.provider.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to discover schema sources: %w", err)
	}

	reg, err := registry.New()
	if err != nil {
		return nil, err
	}

	fixed := sources.FixedProvider(found)
	if _, err := sources.Populate(ctx, reg, fixed, r.enabled); err != nil {
		return nil, err
	}
	reg.Freeze()

	r.epoch++
	return &Snapshot{
		Registry: reg,
		Sources:  found,
		Epoch:    r.epoch,
		LoadedAt: time.Now(),
	}, nil
}
