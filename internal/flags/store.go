// Package flags caches the feature flag table in process memory.
//
// Reads are served from an immutable snapshot that is swapped atomically.
// When the snapshot is older than the TTL, the caller that notices reloads
// the whole table itself; concurrent callers may each reload and the last
// successful load wins. A failed reload keeps the previous snapshot.
package flags

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/metrics"
)

// DefaultTTL is how long a loaded table is served before the next read reloads it.
const DefaultTTL = 60 * time.Second

// Loader reads the persisted flag table. repo.FlagRepo satisfies it.
type Loader interface {
	AllFlags(ctx context.Context) ([]domain.FeatureFlag, error)
}

// State reports which path answered a read.
type State int

const (
	// Fresh: the snapshot is within its TTL, or was reloaded for this read.
	Fresh State = iota
	// StaleFallback: the reload failed and an older snapshot was served.
	StaleFallback
	// DefaultEmpty: nothing was ever loaded, so every flag reads false.
	DefaultEmpty
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case StaleFallback:
		return "stale_fallback"
	case DefaultEmpty:
		return "default_empty"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Lookup is a single flag read together with the cache state that served it.
type Lookup struct {
	Value bool  `json:"value"`
	State State `json:"state"`
}

type snapshot struct {
	values   map[string]bool
	loadedAt time.Time // zero means expired
	loaded   bool      // at least one successful load happened
}

type Config struct {
	Loader  Loader
	Clock   clock.Clock
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

type Store struct {
	loader  Loader
	clock   clock.Clock
	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Collector

	snap atomic.Pointer[snapshot]
	// gen is bumped by Invalidate. A reload that started under an older
	// generation stores its result already expired.
	gen atomic.Uint64
}

func New(cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Store{
		loader:  cfg.Loader,
		clock:   cfg.Clock,
		ttl:     cfg.TTL,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	s.snap.Store(&snapshot{values: map[string]bool{}})
	return s
}

// Get reports whether key is enabled. Unknown keys are false.
func (s *Store) Get(ctx context.Context, key string) bool {
	return s.Lookup(ctx, key).Value
}

func (s *Store) Lookup(ctx context.Context, key string) Lookup {
	snap, state := s.current(ctx)
	return Lookup{Value: snap.values[key], State: state}
}

// GetAll returns a copy of every cached flag.
func (s *Store) GetAll(ctx context.Context) map[string]bool {
	all, _ := s.Snapshot(ctx)
	return all
}

// Snapshot is GetAll plus the state that served it.
func (s *Store) Snapshot(ctx context.Context) (map[string]bool, State) {
	snap, state := s.current(ctx)
	out := make(map[string]bool, len(snap.values))
	for k, v := range snap.values {
		out[k] = v
	}
	return out, state
}

// Invalidate expires the current snapshot. The next read reloads.
func (s *Store) Invalidate() {
	s.gen.Add(1)
	cur := s.snap.Load()
	s.snap.Store(&snapshot{values: cur.values, loaded: cur.loaded})
	s.log.Debug("flags_invalidated")
}

func (s *Store) current(ctx context.Context) (*snapshot, State) {
	snap := s.snap.Load()
	if snap.loaded && !snap.loadedAt.IsZero() && s.clock.Now().Sub(snap.loadedAt) < s.ttl {
		s.metrics.FlagLookup(Fresh.String())
		return snap, Fresh
	}

	next, err := s.reload(ctx)
	if err != nil {
		state := StaleFallback
		if !snap.loaded {
			state = DefaultEmpty
		}
		s.log.Warn("flags_reload_failed",
			zap.String("serving", state.String()),
			zap.Int("cached_flags", len(snap.values)),
			zap.Error(err),
		)
		s.metrics.FlagReload("error")
		s.metrics.FlagLookup(state.String())
		return snap, state
	}
	s.snap.Store(next)
	s.metrics.FlagReload("ok")
	s.metrics.FlagLookup(Fresh.String())
	return next, Fresh
}

func (s *Store) reload(ctx context.Context) (*snapshot, error) {
	gen := s.gen.Load()
	rows, err := s.loader.AllFlags(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[string]bool, len(rows))
	for _, f := range rows {
		values[f.Key] = f.Value
	}
	next := &snapshot{values: values, loadedAt: s.clock.Now(), loaded: true}
	if s.gen.Load() != gen {
		// Invalidated while reading: serve it to this caller only once.
		next.loadedAt = time.Time{}
		s.log.Debug("flags_reload_superseded", zap.Int("count", len(values)))
		return next, nil
	}
	s.log.Debug("flags_reloaded", zap.Int("count", len(values)))
	return next, nil
}
