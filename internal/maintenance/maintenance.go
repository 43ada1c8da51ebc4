// Package maintenance runs periodic background tasks for the API server as
// Go tickers.
//
// Only Postgres stores can push append events. The catch-up sweep covers
// the rest, and any Postgres event missed while the listener reconnects, by
// polling each store's newest timestamp.
package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/albapepper/buzzwatch/internal/cache"
	"github.com/albapepper/buzzwatch/internal/store"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CatchUpInterval time.Duration // Poll stores for appends the listener missed
	HealthInterval  time.Duration // Ping stores and log failures
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		CatchUpInterval: 1 * time.Minute,
		HealthInterval:  5 * time.Minute,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, stores map[string]store.Store, c *cache.Cache, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"catchup", cfg.CatchUpInterval,
		"health", cfg.HealthInterval)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.CatchUpInterval > 0 {
		sweep := NewSweeper(stores, c, logger)
		t := time.NewTicker(cfg.CatchUpInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "catchup", func() { sweep.Run(ctx) })
	}

	if cfg.HealthInterval > 0 {
		t := time.NewTicker(cfg.HealthInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "health", func() { pingStores(ctx, stores, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// Sweeper remembers the newest time_fetched seen per source.
type Sweeper struct {
	stores map[string]store.Store
	cache  *cache.Cache
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewSweeper creates a sweeper. The first Run only records timestamps.
func NewSweeper(stores map[string]store.Store, c *cache.Cache, logger *slog.Logger) *Sweeper {
	return &Sweeper{stores: stores, cache: c, logger: logger, seen: map[string]time.Time{}}
}

// Run invalidates the cached responses of every source whose newest
// timestamp moved since the previous run. Returns the sources invalidated.
func (s *Sweeper) Run(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for source, st := range s.stores {
		snap, err := st.Latest(ctx)
		if err != nil {
			s.logger.Warn("Catch-up: failed to read latest snapshot", "source", source, "error", err)
			continue
		}
		prev, known := s.seen[source]
		s.seen[source] = snap.FetchedAt
		if !known || prev.Equal(snap.FetchedAt) {
			continue
		}
		n := s.cache.InvalidatePrefix(cache.SourcePrefix(source))
		s.logger.Info("Catch-up: new snapshot found", "source", source, "time_fetched", snap.FetchedAt, "keys_invalidated", n)
		changed = append(changed, source)
	}
	return changed
}

func pingStores(ctx context.Context, stores map[string]store.Store, logger *slog.Logger) {
	for source, st := range stores {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := st.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("Health: store unreachable", "source", source, "error", err)
		}
	}
}
