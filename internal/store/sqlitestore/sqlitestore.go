// Package sqlitestore keeps store history in a local SQLite file using the
// pure-Go modernc.org/sqlite driver (no CGO).
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/albapepper/buzzwatch/internal/provider"
	"github.com/albapepper/buzzwatch/internal/store"
)

func init() {
	store.Register(func(ctx context.Context, rawURL string, opts store.Options) (store.Store, error) {
		return New(ctx, store.StripScheme(rawURL), opts.Table, opts.Logger)
	}, "sqlite")
}

// time_fetched is stored as fixed-width UTC text so MAX() orders correctly.
const timeLayout = "2006-01-02T15:04:05Z"

// Store is a SQLite-backed store.Store.
type Store struct {
	db     *sql.DB
	table  store.Table
	logger *slog.Logger
}

// New opens (or creates) the SQLite file at path and creates the table if it
// does not exist. The caller must call Close when done.
func New(ctx context.Context, path string, table store.Table, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, table: table, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", s.table.Name)
	b.WriteString("    id           INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	b.WriteString("    name         TEXT NOT NULL,\n")
	b.WriteString("    label        TEXT,\n")
	for _, m := range s.table.Metrics {
		fmt.Fprintf(&b, "    %s REAL,\n", m)
	}
	b.WriteString("    time_fetched TEXT NOT NULL,\n")
	b.WriteString("    UNIQUE (name, time_fetched)\n);\n")
	fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_time_fetched ON %s(time_fetched);", s.table.Name, s.table.Name)

	if _, err := s.db.ExecContext(ctx, b.String()); err != nil {
		return fmt.Errorf("create %s table: %w", s.table.Name, err)
	}
	s.logger.Debug("SQLite migration applied", "table", s.table.Name)
	return nil
}

// Latest returns the rows of the most recent fetch.
func (s *Store) Latest(ctx context.Context) (provider.Snapshot, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM %s WHERE time_fetched = (SELECT MAX(time_fetched) FROM %s) ORDER BY id",
		strings.Join(s.table.Columns(), ", "), s.table.Name, s.table.Name)
	recs, err := s.query(ctx, q)
	if err != nil {
		return provider.Snapshot{}, fmt.Errorf("latest %s: %w", s.table.Name, err)
	}
	return store.LatestOf(s.table.Source, recs), nil
}

// Records returns the full history ordered by id.
func (s *Store) Records(ctx context.Context) ([]provider.Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(s.table.Columns(), ", "), s.table.Name)
	recs, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("records %s: %w", s.table.Name, err)
	}
	return recs, nil
}

func (s *Store) query(ctx context.Context, q string) ([]provider.Record, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []provider.Record
	for rows.Next() {
		var (
			key     string
			label   sql.NullString
			metrics = make([]sql.NullFloat64, len(s.table.Metrics))
			fetched string
		)
		dest := []any{&key, &label}
		for i := range metrics {
			dest = append(dest, &metrics[i])
		}
		dest = append(dest, &fetched)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ts, err := time.Parse(timeLayout, fetched)
		if err != nil {
			return nil, fmt.Errorf("parse time_fetched %q: %w", fetched, err)
		}

		r := provider.Record{
			Key:       key,
			Label:     label.String,
			Metrics:   make(map[string]float64, len(metrics)),
			FetchedAt: ts,
		}
		for i, m := range s.table.Metrics {
			if metrics[i].Valid {
				r.Metrics[m] = metrics[i].Float64
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Append stores a snapshot in a single transaction.
func (s *Store) Append(ctx context.Context, snap provider.Snapshot) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	cols := s.table.Columns()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		s.table.Name, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, r := range snap.Records {
		args := []any{r.Key, r.Label}
		for _, m := range s.table.Metrics {
			args = append(args, store.MetricValue(r, m))
		}
		args = append(args, provider.NormalizeTime(r.FetchedAt).Format(timeLayout))

		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("exec insert for %s: %w", r.Key, err)
		}
		n, _ := res.RowsAffected()
		written += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("snapshot persisted", "table", s.table.Name, "rows", written)
	return written, nil
}

// Ping verifies the database file is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
