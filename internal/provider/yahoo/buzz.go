package yahoo

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/albapepper/buzzwatch/internal/provider"
)

// Source names the buzz index in snapshots and stores.
const Source = "yahoo"

// Metric columns written for every buzz row.
const (
	MetricDrops          = "drops"
	MetricAdds           = "adds"
	MetricTotal          = "total"
	MetricPctOfTotalAdds = "pct_of_total_adds"
)

// Metrics lists the stored columns in table order.
var Metrics = []string{MetricDrops, MetricAdds, MetricTotal, MetricPctOfTotalAdds}

const tableSelector = "table.Tst-table.Table"

var (
	teamPositionPattern = regexp.MustCompile(`\w{2,3}\s-\s[A-Z,]+`)
	notesPrefixPattern  = regexp.MustCompile(`.+Notes?\s+`)
	teamSuffixPattern   = regexp.MustCompile(`\s\w{2,3}\s-.+`)
)

// Columns removed before the table is used.
var droppedColumns = map[string]bool{
	"trades":     true,
	"adds drops": true,
}

// ParseBuzzTable reads the buzz index page and returns one record per
// player row, stamped with at.
func ParseBuzzTable(r io.Reader, at time.Time) (provider.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return provider.Snapshot{}, fmt.Errorf("parse html: %w", err)
	}
	table := doc.Find(tableSelector).First()
	if table.Length() == 0 {
		return provider.Snapshot{}, fmt.Errorf("trends table %q not found", tableSelector)
	}

	headers := headerCells(table)
	playerCol := -1
	for i, h := range headers {
		if h == "player" {
			playerCol = i
		}
	}
	if playerCol < 0 {
		return provider.Snapshot{}, fmt.Errorf("trends table has no player column (headers: %v)", headers)
	}
	if !contains(headers, MetricAdds) {
		return provider.Snapshot{}, fmt.Errorf("trends table has no adds column (headers: %v)", headers)
	}

	var (
		records []provider.Record
		rowErr  error
	)
	table.Find("tbody tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return true
		}
		rec, err := parseRow(headers, playerCol, cells)
		if err != nil {
			rowErr = fmt.Errorf("row %d: %w", i+1, err)
			return false
		}
		records = append(records, rec)
		return true
	})
	if rowErr != nil {
		return provider.Snapshot{}, rowErr
	}
	if len(records) == 0 {
		return provider.Snapshot{}, fmt.Errorf("trends table has no rows")
	}

	addPctOfTotalAdds(records)
	return provider.NewSnapshot(Source, at, records), nil
}

// headerCells returns the lowercased header of the last header row.
func headerCells(table *goquery.Selection) []string {
	row := table.Find("thead tr").Last()
	if row.Length() == 0 {
		row = table.Find("tr").First()
	}
	var headers []string
	row.Find("th,td").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.ToLower(provider.CollapseSpace(th.Text())))
	})
	return headers
}

func parseRow(headers []string, playerCol int, cells *goquery.Selection) (provider.Record, error) {
	rec := provider.Record{Metrics: make(map[string]float64, len(Metrics))}

	for i := 0; i < cells.Length() && i < len(headers); i++ {
		name := headers[i]
		if droppedColumns[name] {
			continue
		}
		text := provider.CollapseSpace(cells.Eq(i).Text())
		if i == playerCol {
			teamPos := teamPositionPattern.FindString(text)
			if teamPos == "" {
				return rec, fmt.Errorf("no team/position in player cell %q", text)
			}
			rec.Label = teamPos
			rec.Key = CleanPlayerName(text)
			continue
		}
		v, ok := provider.ParseNumber(text)
		switch {
		case ok:
			rec.Metrics[name] = v
		case name == MetricAdds || !provider.IsBlank(text):
			return rec, fmt.Errorf("unparseable %s %q for %q", name, text, rec.Key)
		}
	}
	if rec.Key == "" {
		return rec, fmt.Errorf("empty player name")
	}
	return rec, nil
}

// CleanPlayerName strips the note prefix and team/position suffix from a
// player cell, e.g. "Player Note LeBron James LAL - SF,PF" -> "LeBron James".
func CleanPlayerName(cell string) string {
	name := notesPrefixPattern.ReplaceAllString(cell, "")
	name = teamSuffixPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// addPctOfTotalAdds sets each row's share of all transactions,
// round(adds / sum(total), 3) * 100.
func addPctOfTotalAdds(records []provider.Record) {
	var sum float64
	for _, r := range records {
		sum += r.Metrics[MetricTotal]
	}
	if sum == 0 {
		return
	}
	for _, r := range records {
		adds, ok := r.Metrics[MetricAdds]
		if !ok {
			continue
		}
		r.Metrics[MetricPctOfTotalAdds] = math.Round(adds/sum*1000) / 1000 * 100
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
