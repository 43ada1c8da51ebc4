package espn

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fetchedAt = time.Date(2026, 1, 10, 17, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", "freeagents.html"))
	require.NoError(t, err)
	return string(b)
}

func TestParseFreeAgents(t *testing.T) {
	snap, err := ParseFreeAgents(loadFixture(t), fetchedAt)
	require.NoError(t, err)

	assert.Equal(t, Source, snap.Source)
	assert.Equal(t, []string{"Jalen W.", "Ayo D.", "Nick R."}, snap.Keys())

	first := snap.Records[0]
	assert.Equal(t, "Jalen Williams", first.Label)
	assert.Equal(t, fetchedAt, first.FetchedAt)
	want := map[string]float64{
		"pr15":        4.21,
		MetricPctRost: 45.3,
		"rost_change": 12.1,
		"avg":         28.4,
	}
	if diff := cmp.Diff(want, first.Metrics); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}

	third := snap.Records[2]
	assert.Equal(t, map[string]float64{MetricPctRost: 30, "rost_change": 3}, third.Metrics)
}

func TestParseFreeAgentsDropsColumns(t *testing.T) {
	snap, err := ParseFreeAgents(loadFixture(t), fetchedAt)
	require.NoError(t, err)
	for _, rec := range snap.Records {
		for _, dropped := range []string{"action", "opp", "status", "type"} {
			_, ok := rec.Metrics[dropped]
			assert.False(t, ok, "%s should not be a metric of %s", dropped, rec.Key)
		}
	}
}

func TestParseFreeAgentsNeedsTwoTables(t *testing.T) {
	_, err := ParseFreeAgents(`<table><thead><tr><th>Player</th></tr></thead></table>`, fetchedAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 free-agent tables")
}

func TestParseFreeAgentsRowMismatch(t *testing.T) {
	markup := `<table><thead><tr><th>Player</th></tr></thead><tbody><tr><td>A B</td></tr></tbody></table>
<table><thead><tr><th>%ROST</th></tr></thead><tbody></tbody></table>`
	_, err := ParseFreeAgents(markup, fetchedAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 and 0 rows")
}

func TestParseFreeAgentsNoRostColumn(t *testing.T) {
	markup := `<table><thead><tr><th>Player</th></tr></thead><tbody><tr><td>A B</td></tr></tbody></table>
<table><thead><tr><th>AVG</th></tr></thead><tbody><tr><td>1</td></tr></tbody></table>`
	_, err := ParseFreeAgents(markup, fetchedAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "%ROST")
}

func TestAbbreviate(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Jalen Williams", "Jalen W."},
		{"Karl-Anthony Towns", "Karl-Anthony T."},
		{"Jaren Jackson Jr.", "Jaren J."},
		{"  Ayo   Dosunmu ", "Ayo D."},
		{"Nenê", "Nenê"},
		{"Luka Dončić", "Luka D."},
		{"Šarūnas Jasikevičius", "Šarūnas J."},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Abbreviate(tc.in), tc.in)
	}
}

func TestScreenshotPath(t *testing.T) {
	now := time.Date(2026, 1, 10, 17, 35, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("screenshots", "screenshot 2026-01-10 05-35 PM.png"), ScreenshotPath("screenshots", now))

	morning := time.Date(2026, 3, 2, 7, 5, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("shots", "screenshot 2026-03-02 07-05 AM.png"), ScreenshotPath("shots", morning))

	// The file is named .png, so the capture must be PNG encoded.
	assert.Equal(t, 100, screenshotQuality)
}

func TestFreeAgentsURL(t *testing.T) {
	assert.Equal(t, "https://fantasy.espn.com/basketball/players/add?leagueId=1079777210", FreeAgentsURL("1079777210"))
}
