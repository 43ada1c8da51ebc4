// Package pgstore provides a pgxpool-backed store with prepared statement
// registration, schema bootstrap and an append notification for listeners.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/buzzwatch/internal/provider"
	"github.com/albapepper/buzzwatch/internal/store"
)

// NotifyChannel receives an AppendEvent every time rows are appended.
const NotifyChannel = "buzzwatch_appended"

// AppendEvent is the JSON payload sent on NotifyChannel.
type AppendEvent struct {
	Source      string    `json:"source"`
	Table       string    `json:"table"`
	Rows        int       `json:"rows"`
	TimeFetched time.Time `json:"time_fetched"`
}

func init() {
	store.Register(func(ctx context.Context, rawURL string, opts store.Options) (store.Store, error) {
		return New(ctx, rawURL, opts)
	}, "postgres", "postgresql")
}

// Store wraps pgxpool.Pool with the statements for one table.
type Store struct {
	pool   *pgxpool.Pool
	table  store.Table
	stmts  statements
	logger *slog.Logger
}

type statements struct {
	latest  string
	records string
	insert  string
}

// New creates and validates a connection pool for the table.
func New(ctx context.Context, databaseURL string, opts store.Options) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.Pool.MinConns > 0 {
		poolCfg.MinConns = int32(opts.Pool.MinConns)
	}
	if opts.Pool.MaxConns > 0 {
		poolCfg.MaxConns = int32(opts.Pool.MaxConns)
	}
	if opts.Pool.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = opts.Pool.MaxConnLifetime
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Store{table: opts.Table, logger: opts.Logger}
	s.stmts = statements{
		latest:  opts.Table.Name + "_latest",
		records: opts.Table.Name + "_records",
		insert:  opts.Table.Name + "_insert",
	}

	// Make sure the table exists, then prepare statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, createTableSQL(s.table)); err != nil {
			return fmt.Errorf("create table %s: %w", s.table.Name, err)
		}
		return s.registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s.pool = pool
	return s, nil
}

// Pool exposes the underlying pool for health checks and listeners.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func createTableSQL(t store.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	b.WriteString("\tid BIGSERIAL PRIMARY KEY,\n")
	b.WriteString("\tname TEXT NOT NULL,\n")
	b.WriteString("\tlabel TEXT,\n")
	for _, m := range t.Metrics {
		fmt.Fprintf(&b, "\t%s DOUBLE PRECISION,\n", m)
	}
	b.WriteString("\ttime_fetched TIMESTAMPTZ NOT NULL,\n")
	b.WriteString("\tUNIQUE (name, time_fetched)\n)")
	return b.String()
}

// registerPreparedStatements registers the statements this store uses.
func (s *Store) registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	cols := strings.Join(s.table.Columns(), ", ")
	placeholders := make([]string, len(s.table.Columns()))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	stmts := map[string]string{
		s.stmts.latest: fmt.Sprintf(
			"SELECT %s FROM %s WHERE time_fetched = (SELECT MAX(time_fetched) FROM %s) ORDER BY id",
			cols, s.table.Name, s.table.Name),
		s.stmts.records: fmt.Sprintf("SELECT %s FROM %s ORDER BY id", cols, s.table.Name),
		s.stmts.insert: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (name, time_fetched) DO NOTHING",
			s.table.Name, cols, strings.Join(placeholders, ",")),
		"health_check": "SELECT 1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

// Latest returns the rows of the most recent fetch.
func (s *Store) Latest(ctx context.Context) (provider.Snapshot, error) {
	recs, err := s.query(ctx, s.stmts.latest)
	if err != nil {
		return provider.Snapshot{}, fmt.Errorf("latest %s: %w", s.table.Name, err)
	}
	return store.LatestOf(s.table.Source, recs), nil
}

// Records returns the full history ordered by id.
func (s *Store) Records(ctx context.Context) ([]provider.Record, error) {
	recs, err := s.query(ctx, s.stmts.records)
	if err != nil {
		return nil, fmt.Errorf("records %s: %w", s.table.Name, err)
	}
	return recs, nil
}

func (s *Store) query(ctx context.Context, stmt string) ([]provider.Record, error) {
	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []provider.Record
	for rows.Next() {
		var (
			key     string
			label   *string
			metrics = make([]*float64, len(s.table.Metrics))
			fetched time.Time
		)
		dest := []any{&key, &label}
		for i := range metrics {
			dest = append(dest, &metrics[i])
		}
		dest = append(dest, &fetched)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r := provider.Record{
			Key:       key,
			Metrics:   make(map[string]float64, len(metrics)),
			FetchedAt: fetched.UTC(),
		}
		if label != nil {
			r.Label = *label
		}
		for i, m := range s.table.Metrics {
			if metrics[i] != nil {
				r.Metrics[m] = *metrics[i]
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Append inserts the snapshot in one transaction and notifies listeners.
func (s *Store) Append(ctx context.Context, snap provider.Snapshot) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	written := 0
	for _, r := range snap.Records {
		args := []any{r.Key, r.Label}
		for _, m := range s.table.Metrics {
			args = append(args, store.MetricValue(r, m))
		}
		args = append(args, provider.NormalizeTime(r.FetchedAt))

		tag, err := tx.Exec(ctx, s.stmts.insert, args...)
		if err != nil {
			return 0, fmt.Errorf("insert %q into %s: %w", r.Key, s.table.Name, err)
		}
		written += int(tag.RowsAffected())
	}

	if written > 0 {
		payload, err := json.Marshal(AppendEvent{
			Source:      s.table.Source,
			Table:       s.table.Name,
			Rows:        written,
			TimeFetched: provider.NormalizeTime(snap.FetchedAt),
		})
		if err != nil {
			return 0, fmt.Errorf("encode append event: %w", err)
		}
		if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(payload)); err != nil {
			return 0, fmt.Errorf("notify %s: %w", NotifyChannel, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("rows appended", "table", s.table.Name, "rows", written)
	return written, nil
}

// Ping runs a trivial query to verify the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	var n int
	return s.pool.QueryRow(ctx, "health_check").Scan(&n)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
