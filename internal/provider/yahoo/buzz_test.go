package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fetchedAt = time.Date(2026, 1, 10, 17, 35, 12, 0, time.UTC)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/buzzindex.html")
	require.NoError(t, err)
	return raw
}

func TestParseBuzzTable(t *testing.T) {
	snap, err := ParseBuzzTable(strings.NewReader(string(loadFixture(t))), fetchedAt)
	require.NoError(t, err)

	assert.Equal(t, Source, snap.Source)
	assert.Equal(t, []string{"Jalen Williams", "Ayo Dosunmu", "Nick Richards"}, snap.Keys())

	first := snap.Records[0]
	assert.Equal(t, "OKC - SG,SF", first.Label)
	assert.Equal(t, 120.0, first.Metrics[MetricDrops])
	assert.Equal(t, 1480.0, first.Metrics[MetricAdds])
	assert.Equal(t, 1603.0, first.Metrics[MetricTotal])
	assert.True(t, first.FetchedAt.Equal(fetchedAt))

	_, hasTrades := first.Metric("trades")
	assert.False(t, hasTrades)

	// 1480 / (1603 + 905 + 853) = 0.44034... -> 0.44 -> 44.0
	assert.InDelta(t, 44.0, first.Metrics[MetricPctOfTotalAdds], 1e-9)
	assert.InDelta(t, 25.6, snap.Records[1].Metrics[MetricPctOfTotalAdds], 1e-9)
	assert.Equal(t, "CHA - C", snap.Records[2].Label)
}

func TestParseBuzzTableMissingTable(t *testing.T) {
	_, err := ParseBuzzTable(strings.NewReader("<html><body><table><tr><td>x</td></tr></table></body></html>"), fetchedAt)
	assert.ErrorContains(t, err, "not found")
}

func TestParseBuzzTableMissingAdds(t *testing.T) {
	html := `<table class="Tst-table Table"><thead><tr><th>Player</th><th>Drops</th></tr></thead>
<tbody><tr><td>Player Note A B BOS - C</td><td>1</td></tr></tbody></table>`
	_, err := ParseBuzzTable(strings.NewReader(html), fetchedAt)
	assert.ErrorContains(t, err, "no adds column")
}

func TestParseBuzzTableBadPlayerCell(t *testing.T) {
	html := `<table class="Tst-table Table"><thead><tr><th>Player</th><th>Adds</th><th>Total</th></tr></thead>
<tbody><tr><td>Somebody</td><td>1</td><td>1</td></tr></tbody></table>`
	_, err := ParseBuzzTable(strings.NewReader(html), fetchedAt)
	assert.ErrorContains(t, err, "no team/position")
}

func TestParseBuzzTableBadMetricCell(t *testing.T) {
	html := `<table class="Tst-table Table"><thead><tr><th>Player</th><th>Drops</th><th>Adds</th><th>Total</th></tr></thead>
<tbody><tr><td>Player Note Al Horford BOS - C</td><td>4</td><td>10</td><td>n/a</td></tr></tbody></table>`
	_, err := ParseBuzzTable(strings.NewReader(html), fetchedAt)
	assert.ErrorContains(t, err, `unparseable total "n/a" for "Al Horford"`)
}

func TestParseBuzzTableBlankMetricCell(t *testing.T) {
	html := `<table class="Tst-table Table"><thead><tr><th>Player</th><th>Drops</th><th>Adds</th><th>Total</th></tr></thead>
<tbody><tr><td>Player Note Al Horford BOS - C</td><td>--</td><td>10</td><td>12</td></tr></tbody></table>`
	snap, err := ParseBuzzTable(strings.NewReader(html), fetchedAt)
	require.NoError(t, err)

	_, hasDrops := snap.Records[0].Metric(MetricDrops)
	assert.False(t, hasDrops)
	assert.InDelta(t, 83.3, snap.Records[0].Metrics[MetricPctOfTotalAdds], 1e-9)
}

func TestCleanPlayerName(t *testing.T) {
	cases := map[string]string{
		"Player Note LeBron James LAL - SF,PF":        "LeBron James",
		"No new player Notes Ayo Dosunmu CHI - PG,SG": "Ayo Dosunmu",
		"Nick Richards CHA - C":                       "Nick Richards",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanPlayerName(in), in)
	}
}

func TestFetchPage(t *testing.T) {
	fixture := loadFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write(fixture)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 600, nil)
	body, err := c.FetchPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixture, body)
}

func TestFetchPageHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 600, nil).FetchPage(context.Background())
	assert.ErrorContains(t, err, "returned 503")
}
