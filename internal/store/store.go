// Package store defines the append-only history that the change detector
// reads from and the jobs write to.
//
// Backends register themselves by URL scheme (csv, postgres, mysql, sqlite)
// the way database/sql drivers do; callers open a store explicitly, pass it
// down, and close it when the run ends.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/albapepper/buzzwatch/internal/provider"
)

// Column names shared by every backend.
const (
	ColumnID          = "id"
	ColumnKey         = "name"
	ColumnLabel       = "label"
	ColumnTimeFetched = "time_fetched"
)

// Store is an append-only sequence of previously processed records.
type Store interface {
	// Latest returns the rows sharing the most recent time_fetched, in
	// insertion order. An empty store yields an empty snapshot and no error.
	Latest(ctx context.Context) (provider.Snapshot, error)
	// Records returns the full history in insertion order.
	Records(ctx context.Context) ([]provider.Record, error)
	// Append adds the snapshot's records, skipping (key, time_fetched)
	// pairs that are already stored. Returns the number of rows written.
	Append(ctx context.Context, s provider.Snapshot) (int, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Table describes where a store keeps its rows and which metrics it holds.
type Table struct {
	Name    string
	Source  string
	Metrics []string
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that the table and metric names are safe SQL identifiers.
func (t Table) Validate() error {
	if !identPattern.MatchString(t.Name) {
		return fmt.Errorf("invalid table name %q", t.Name)
	}
	if len(t.Metrics) == 0 {
		return fmt.Errorf("table %s: no metric columns", t.Name)
	}
	seen := map[string]bool{ColumnID: true, ColumnKey: true, ColumnLabel: true, ColumnTimeFetched: true}
	for _, m := range t.Metrics {
		if !identPattern.MatchString(m) {
			return fmt.Errorf("table %s: invalid metric column %q", t.Name, m)
		}
		if seen[m] {
			return fmt.Errorf("table %s: duplicate or reserved column %q", t.Name, m)
		}
		seen[m] = true
	}
	return nil
}

// Columns returns every column except the auto-increment id, in storage order.
func (t Table) Columns() []string {
	cols := []string{ColumnKey, ColumnLabel}
	cols = append(cols, t.Metrics...)
	return append(cols, ColumnTimeFetched)
}

// --------------------------------------------------------------------------
// Backend registry
// --------------------------------------------------------------------------

// PoolConfig tunes connection pools for the SQL backends that have one.
type PoolConfig struct {
	MinConns        int
	MaxConns        int
	MaxConnLifetime time.Duration
}

// Options carries everything a backend needs to open a store.
type Options struct {
	Table  Table
	Pool   PoolConfig
	Logger *slog.Logger
}

// OpenFunc opens a store for a backend-specific DSN (the URL with or
// without its scheme, as the backend prefers).
type OpenFunc func(ctx context.Context, rawURL string, opts Options) (Store, error)

var (
	mu       sync.RWMutex
	backends = map[string]OpenFunc{}
)

// Register makes a backend available under one or more URL schemes.
func Register(fn OpenFunc, schemes ...string) {
	mu.Lock()
	defer mu.Unlock()
	for _, s := range schemes {
		if _, dup := backends[s]; dup {
			panic("store: Register called twice for scheme " + s)
		}
		backends[s] = fn
	}
}

// Schemes lists the registered URL schemes.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(backends))
	for s := range backends {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open picks the backend from rawURL's scheme and opens the store.
func Open(ctx context.Context, rawURL string, opts Options) (Store, error) {
	if err := opts.Table.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	scheme, _, ok := strings.Cut(rawURL, "://")
	if !ok {
		return nil, fmt.Errorf("store URL %q has no scheme", Redact(rawURL))
	}
	mu.RLock()
	fn, found := backends[scheme]
	mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("unknown store scheme %q (registered: %s)", scheme, strings.Join(Schemes(), ", "))
	}
	s, err := fn(ctx, rawURL, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s store %s: %w", scheme, opts.Table.Name, err)
	}
	return s, nil
}

// StripScheme returns rawURL without its "scheme://" prefix.
func StripScheme(rawURL string) string {
	if _, rest, ok := strings.Cut(rawURL, "://"); ok {
		return rest
	}
	return rawURL
}

var credentialPattern = regexp.MustCompile(`://([^:/@]+):([^@]*)@`)

// Redact hides the password of a store URL for logging.
func Redact(rawURL string) string {
	return credentialPattern.ReplaceAllString(rawURL, "://$1:***@")
}

// --------------------------------------------------------------------------
// Helpers shared by backends
// --------------------------------------------------------------------------

// LatestOf returns the records sharing the greatest FetchedAt, keeping
// their relative order.
func LatestOf(source string, records []provider.Record) provider.Snapshot {
	var newest time.Time
	for _, r := range records {
		if r.FetchedAt.After(newest) {
			newest = r.FetchedAt
		}
	}
	if newest.IsZero() {
		return provider.Snapshot{Source: source}
	}
	var latest []provider.Record
	for _, r := range records {
		if r.FetchedAt.Equal(newest) {
			latest = append(latest, r)
		}
	}
	return provider.Snapshot{Source: source, FetchedAt: newest, Records: latest}
}

// RowKey identifies a stored row for duplicate detection.
type RowKey struct {
	Key       string
	FetchedAt int64
}

// KeyOf returns the (key, time_fetched) identity of a record.
func KeyOf(r provider.Record) RowKey {
	return RowKey{Key: r.Key, FetchedAt: provider.NormalizeTime(r.FetchedAt).Unix()}
}

// MetricValue returns the record's metric or nil when it is missing, so SQL
// backends store NULL instead of a fabricated zero.
func MetricValue(r provider.Record, metric string) any {
	if v, ok := r.Metric(metric); ok {
		return v
	}
	return nil
}
