package espn

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/albapepper/buzzwatch/internal/provider"
)

// Source names the free-agent list in snapshots and stores.
const Source = "espn"

// MetricPctRost is the share of leagues rostering the player.
const MetricPctRost = "pct_rost"

// Metrics lists the stored columns in table order.
var Metrics = []string{MetricPctRost}

// Columns removed before the table is used.
var droppedColumns = map[string]bool{
	"action": true,
	"opp":    true,
	"status": true,
}

// Header cells with a fixed metric name.
var renamedColumns = map[string]string{
	"%rost": MetricPctRost,
	"+/-":   "rost_change",
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// ParseFreeAgents reads the rendered free-agent page. ESPN splits the list
// into two side-by-side tables (players and stats) whose rows line up, so
// the first two tables are joined column-wise.
func ParseFreeAgents(markup string, at time.Time) (provider.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return provider.Snapshot{}, fmt.Errorf("parse html: %w", err)
	}
	tables := doc.Find("table")
	if tables.Length() < 2 {
		return provider.Snapshot{}, fmt.Errorf("expected 2 free-agent tables, found %d", tables.Length())
	}

	left := readTable(tables.Eq(0))
	right := readTable(tables.Eq(1))
	if len(left.rows) != len(right.rows) {
		return provider.Snapshot{}, fmt.Errorf("free-agent tables have %d and %d rows", len(left.rows), len(right.rows))
	}

	headers := append(append([]string{}, left.headers...), right.headers...)
	playerCol, rostCol := -1, -1
	for i, h := range headers {
		switch metricName(h) {
		case "player":
			if playerCol < 0 {
				playerCol = i
			}
		case MetricPctRost:
			rostCol = i
		}
	}
	if playerCol < 0 {
		return provider.Snapshot{}, fmt.Errorf("free-agent table has no player column (headers: %v)", headers)
	}
	if rostCol < 0 {
		return provider.Snapshot{}, fmt.Errorf("free-agent table has no %%ROST column (headers: %v)", headers)
	}

	records := make([]provider.Record, 0, len(left.rows))
	for i := range left.rows {
		cells := append(append([]cell{}, left.rows[i]...), right.rows[i]...)
		if playerCol >= len(cells) {
			continue
		}
		full := cells[playerCol].name
		if full == "" {
			continue
		}
		rec := provider.Record{
			Key:     Abbreviate(full),
			Label:   full,
			Metrics: map[string]float64{},
		}
		for j, h := range headers {
			if j == playerCol || j >= len(cells) {
				continue
			}
			name := metricName(h)
			if name == "" || droppedColumns[strings.ToLower(h)] {
				continue
			}
			if v, ok := provider.ParseNumber(cells[j].text); ok {
				rec.Metrics[name] = v
			}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return provider.Snapshot{}, fmt.Errorf("free-agent table has no player rows")
	}
	return provider.NewSnapshot(Source, at, records), nil
}

// Abbreviate turns "Jalen Williams" into "Jalen W.". One-word names are
// returned unchanged.
func Abbreviate(name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return strings.Join(parts, "")
	}
	initial := []rune(parts[1])[0]
	return parts[0] + " " + string(initial) + "."
}

type cell struct {
	text string
	name string // first link text, the player name in player cells
}

type table struct {
	headers []string
	rows    [][]cell
}

// readTable takes column names from the last header row; the rows above it
// only group columns.
func readTable(sel *goquery.Selection) table {
	var t table
	headRow := sel.Find("thead tr").Last()
	headRow.Find("th, td").Each(func(_ int, th *goquery.Selection) {
		h := provider.CollapseSpace(th.Text())
		span := 1
		if v, ok := th.Attr("colspan"); ok {
			fmt.Sscanf(v, "%d", &span)
		}
		for k := 0; k < max(span, 1); k++ {
			t.headers = append(t.headers, h)
		}
	})
	sel.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() == 0 {
			return
		}
		row := make([]cell, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) {
			c := cell{text: provider.CollapseSpace(td.Text())}
			if a := td.Find("a").First(); a.Length() > 0 {
				c.name = provider.CollapseSpace(a.Text())
			}
			if c.name == "" {
				c.name = c.text
			}
			row = append(row, c)
		})
		t.rows = append(t.rows, row)
	})
	return t
}

// metricName maps a header cell to a snake_case metric column.
func metricName(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	if renamed, ok := renamedColumns[h]; ok {
		return renamed
	}
	return strings.Trim(nonWord.ReplaceAllString(h, "_"), "_")
}
