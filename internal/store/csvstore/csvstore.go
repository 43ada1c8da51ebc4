// Package csvstore keeps store history in a flat CSV file.
//
// The file starts with a header row (name, label, metrics..., time_fetched)
// and only ever grows; rows are appended, never rewritten.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/albapepper/buzzwatch/internal/provider"
	"github.com/albapepper/buzzwatch/internal/store"
)

func init() {
	store.Register(func(_ context.Context, rawURL string, opts store.Options) (store.Store, error) {
		return New(store.StripScheme(rawURL), opts.Table, opts.Logger)
	}, "csv", "file")
}

const timeLayout = time.RFC3339

// Store is a CSV-file backed store.Store.
type Store struct {
	mu     sync.Mutex
	path   string
	table  store.Table
	logger *slog.Logger
}

// New returns a store writing to path, creating its directory if needed.
// The file itself is created on the first append.
func New(path string, table store.Table, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("csv store path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{path: path, table: table, logger: logger}, nil
}

// Path returns the CSV file location.
func (s *Store) Path() string { return s.path }

// Latest returns the rows of the most recent fetch.
func (s *Store) Latest(ctx context.Context) (provider.Snapshot, error) {
	recs, err := s.Records(ctx)
	if err != nil {
		return provider.Snapshot{}, err
	}
	return store.LatestOf(s.table.Source, recs), nil
}

// Records reads the whole file.
func (s *Store) Records(_ context.Context) ([]provider.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() ([]provider.Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", s.path, err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, col := range []string{store.ColumnKey, store.ColumnTimeFetched} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", s.path, col)
		}
	}

	var out []provider.Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		rec, err := s.decode(idx, row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) decode(idx map[string]int, row []string) (provider.Record, error) {
	cell := func(col string) string {
		if i, ok := idx[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	ts, err := time.Parse(timeLayout, cell(store.ColumnTimeFetched))
	if err != nil {
		return provider.Record{}, fmt.Errorf("parse %s: %w", store.ColumnTimeFetched, err)
	}
	rec := provider.Record{
		Key:       cell(store.ColumnKey),
		Label:     cell(store.ColumnLabel),
		Metrics:   make(map[string]float64, len(s.table.Metrics)),
		FetchedAt: ts.UTC(),
	}
	for _, m := range s.table.Metrics {
		if v := cell(m); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return provider.Record{}, fmt.Errorf("parse %s: %w", m, err)
			}
			rec.Metrics[m] = f
		}
	}
	return rec, nil
}

// Append writes the snapshot's new rows at the end of the file.
func (s *Store) Append(_ context.Context, snap provider.Snapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil {
		return 0, err
	}
	seen := make(map[store.RowKey]bool, len(existing))
	for _, r := range existing {
		seen[store.KeyOf(r)] = true
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(s.table.Columns()); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
	}

	written := 0
	for _, r := range snap.Records {
		k := store.KeyOf(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		if err := w.Write(s.encode(r)); err != nil {
			return written, fmt.Errorf("write row %q: %w", r.Key, err)
		}
		written++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return written, fmt.Errorf("flush %s: %w", s.path, err)
	}
	s.logger.Debug("csv rows appended", "path", s.path, "rows", written)
	return written, nil
}

func (s *Store) encode(r provider.Record) []string {
	row := []string{r.Key, r.Label}
	for _, m := range s.table.Metrics {
		if v, ok := r.Metric(m); ok {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		} else {
			row = append(row, "")
		}
	}
	return append(row, provider.NormalizeTime(r.FetchedAt).Format(timeLayout))
}

// Ping checks that the data directory is reachable.
func (s *Store) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

// Close is a no-op; the file is opened per operation.
func (s *Store) Close() error { return nil }
