package mysqlstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/buzzwatch/internal/provider"
	"github.com/albapepper/buzzwatch/internal/store"
)

func TestNormalizeDSN(t *testing.T) {
	assert.Equal(t,
		"me:pw@tcp(localhost:3306)/fantasy?parseTime=true&loc=UTC",
		normalizeDSN("me:pw@tcp(localhost:3306)/fantasy"))
	assert.Equal(t,
		"me:pw@tcp(localhost:3306)/fantasy?charset=utf8mb4&parseTime=true&loc=UTC",
		normalizeDSN("me:pw@tcp(localhost:3306)/fantasy?charset=utf8mb4"))
	assert.Equal(t,
		"me:pw@tcp(localhost:3306)/fantasy?parseTime=true&loc=Local",
		normalizeDSN("me:pw@tcp(localhost:3306)/fantasy?parseTime=true&loc=Local"))
}

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL(store.Table{Name: "yahoo_buzz", Metrics: []string{"adds"}})
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS yahoo_buzz (")
	assert.Contains(t, sql, "adds DOUBLE NULL,")
	assert.Contains(t, sql, "UNIQUE KEY uq_name_time_fetched (name, time_fetched)")
}

// TestStoreRoundTrip needs a disposable database:
//
//	BUZZWATCH_TEST_MYSQL_DSN='root:pw@tcp(localhost:3306)/buzzwatch_test' go test ./internal/store/mysqlstore
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("BUZZWATCH_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("BUZZWATCH_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	table := store.Table{
		Name:    fmt.Sprintf("buzz_test_%d", time.Now().UnixNano()),
		Source:  "yahoo",
		Metrics: []string{"adds", "total"},
	}
	s, err := New(ctx, dsn, store.Options{Table: table})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.db.Exec("DROP TABLE IF EXISTS " + table.Name)
		s.Close()
	})

	t1 := time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC)
	snap := provider.NewSnapshot("yahoo", t1, []provider.Record{
		{Key: "A", Label: "LAL - PG", Metrics: map[string]float64{"adds": 10, "total": 12}},
		{Key: "B", Metrics: map[string]float64{"adds": 4}},
	})
	n, err := s.Append(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Append(ctx, snap)
	require.NoError(t, err)
	assert.Zero(t, n)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, latest.Keys())
	assert.True(t, latest.FetchedAt.Equal(t1))
	_, ok := latest.Records[1].Metric("total")
	assert.False(t, ok)
}
