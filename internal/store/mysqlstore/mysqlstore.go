// Package mysqlstore keeps store history in a MySQL table through gorm.
package mysqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/albapepper/buzzwatch/internal/provider"
	"github.com/albapepper/buzzwatch/internal/store"
)

func init() {
	store.Register(func(ctx context.Context, rawURL string, opts store.Options) (store.Store, error) {
		return New(ctx, store.StripScheme(rawURL), opts)
	}, "mysql")
}

// Store is a MySQL-backed store.Store.
type Store struct {
	db     *gorm.DB
	table  store.Table
	logger *slog.Logger
}

// New connects with a go-sql-driver DSN (user:pass@tcp(host:3306)/db) and
// creates the table if it does not exist.
func New(ctx context.Context, dsn string, opts store.Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	db, err := gorm.Open(mysql.Open(normalizeDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if opts.Pool.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(opts.Pool.MaxConns)
	}
	if opts.Pool.MinConns > 0 {
		sqlDB.SetMaxIdleConns(opts.Pool.MinConns)
	}
	if opts.Pool.MaxConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.Pool.MaxConnLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &Store{db: db, table: opts.Table, logger: opts.Logger}
	if err := s.initTable(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// normalizeDSN makes DATETIME columns scan into time.Time in UTC.
func normalizeDSN(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "parseTime=") {
		params = append(params, "parseTime=true")
	}
	if !strings.Contains(dsn, "loc=") {
		params = append(params, "loc=UTC")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func createTableSQL(t store.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	b.WriteString("\tid BIGINT AUTO_INCREMENT PRIMARY KEY,\n")
	b.WriteString("\tname VARCHAR(191) NOT NULL,\n")
	b.WriteString("\tlabel VARCHAR(255),\n")
	for _, m := range t.Metrics {
		fmt.Fprintf(&b, "\t%s DOUBLE NULL,\n", m)
	}
	b.WriteString("\ttime_fetched DATETIME NOT NULL,\n")
	b.WriteString("\tUNIQUE KEY uq_name_time_fetched (name, time_fetched),\n")
	b.WriteString("\tINDEX idx_time_fetched (time_fetched)\n)")
	return b.String()
}

func (s *Store) initTable(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(createTableSQL(s.table)).Error; err != nil {
		return fmt.Errorf("create table %s: %w", s.table.Name, err)
	}
	return nil
}

// Latest returns the rows of the most recent fetch.
func (s *Store) Latest(ctx context.Context) (provider.Snapshot, error) {
	maxFetched := s.db.Table(s.table.Name).Select("MAX(time_fetched)")
	rows, err := s.db.WithContext(ctx).
		Table(s.table.Name).
		Select(s.table.Columns()).
		Where("time_fetched = (?)", maxFetched).
		Order("id").
		Rows()
	if err != nil {
		return provider.Snapshot{}, fmt.Errorf("latest %s: %w", s.table.Name, err)
	}
	recs, err := s.scan(rows)
	if err != nil {
		return provider.Snapshot{}, fmt.Errorf("latest %s: %w", s.table.Name, err)
	}
	return store.LatestOf(s.table.Source, recs), nil
}

// Records returns the full history ordered by id.
func (s *Store) Records(ctx context.Context) ([]provider.Record, error) {
	rows, err := s.db.WithContext(ctx).
		Table(s.table.Name).
		Select(s.table.Columns()).
		Order("id").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("records %s: %w", s.table.Name, err)
	}
	recs, err := s.scan(rows)
	if err != nil {
		return nil, fmt.Errorf("records %s: %w", s.table.Name, err)
	}
	return recs, nil
}

func (s *Store) scan(rows *sql.Rows) ([]provider.Record, error) {
	defer rows.Close()

	var out []provider.Record
	for rows.Next() {
		var (
			key     string
			label   sql.NullString
			metrics = make([]sql.NullFloat64, len(s.table.Metrics))
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
			Label:     label.String,
			Metrics:   make(map[string]float64, len(metrics)),
			FetchedAt: fetched.UTC(),
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

// Append inserts the snapshot in one transaction using INSERT IGNORE so
// existing (name, time_fetched) pairs are skipped.
func (s *Store) Append(ctx context.Context, snap provider.Snapshot) (int, error) {
	written := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range snap.Records {
			row := map[string]any{
				store.ColumnKey:         r.Key,
				store.ColumnLabel:       r.Label,
				store.ColumnTimeFetched: provider.NormalizeTime(r.FetchedAt),
			}
			for _, m := range s.table.Metrics {
				row[m] = store.MetricValue(r, m)
			}
			res := tx.Table(s.table.Name).Clauses(clause.Insert{Modifier: "IGNORE"}).Create(row)
			if res.Error != nil {
				return fmt.Errorf("insert %q into %s: %w", r.Key, s.table.Name, res.Error)
			}
			written += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("rows appended", "table", s.table.Name, "rows", written)
	return written, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
