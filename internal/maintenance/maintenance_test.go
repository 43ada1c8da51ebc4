package maintenance

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/buzzwatch/internal/cache"
	"github.com/albapepper/buzzwatch/internal/provider"
	"github.com/albapepper/buzzwatch/internal/store"
	"github.com/albapepper/buzzwatch/internal/store/csvstore"
)

func TestSweeperInvalidatesOnNewSnapshot(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := csvstore.New(filepath.Join(t.TempDir(), "espn.csv"),
		store.Table{Name: "espn_free_agents", Source: "espn", Metrics: []string{"pct_rost"}}, logger)
	require.NoError(t, err)

	c := cache.New(true)
	sweep := NewSweeper(map[string]store.Store{"espn": st}, c, logger)
	ctx := context.Background()

	appendAt := func(at time.Time) {
		_, err := st.Append(ctx, provider.NewSnapshot("espn", at, []provider.Record{
			{Key: "Jalen W.", Metrics: map[string]float64{"pct_rost": 45}},
		}))
		require.NoError(t, err)
	}

	t0 := time.Date(2026, 1, 10, 17, 0, 0, 0, time.UTC)
	appendAt(t0)
	assert.Empty(t, sweep.Run(ctx), "first run only records timestamps")

	c.Set(cache.SnapshotKey("espn", "latest"), []byte("old"), time.Hour)
	assert.Empty(t, sweep.Run(ctx))
	_, _, ok := c.Get(cache.SnapshotKey("espn", "latest"))
	assert.True(t, ok)

	appendAt(t0.Add(24 * time.Hour))
	assert.Equal(t, []string{"espn"}, sweep.Run(ctx))
	_, _, ok = c.Get(cache.SnapshotKey("espn", "latest"))
	assert.False(t, ok)
}
