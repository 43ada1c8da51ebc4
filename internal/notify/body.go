// Package notify delivers free-agent alerts.
//
// An alert body is a small table of player rows. It is rendered twice, as
// plain text and as an HTML table, so the email reads well in any client.
package notify

import (
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/albapepper/buzzwatch/internal/provider"
)

// Row is one line of an alert, keyed by column name.
type Row map[string]string

// Body is an ordered set of rows with a fixed column order.
type Body struct {
	Columns []string
	Rows    []Row
}

// BodyFromRecords lays records out as name, the given metrics, then
// time_fetched.
func BodyFromRecords(records []provider.Record, metrics []string) Body {
	cols := append(append([]string{"name"}, metrics...), "time_fetched")
	b := Body{Columns: cols, Rows: make([]Row, 0, len(records))}
	for _, r := range records {
		row := Row{
			"name":         r.Key,
			"time_fetched": r.FetchedAt.UTC().Format(time.DateTime),
		}
		for _, m := range metrics {
			if v, ok := r.Metric(m); ok {
				row[m] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}

// Len reports the number of rows.
func (b Body) Len() int { return len(b.Rows) }

// Text renders the body as a plain-text table.
func (b Body) Text() string {
	return b.writer().Render()
}

// HTML renders the body as an HTML table.
func (b Body) HTML() string {
	return b.writer().RenderHTML()
}

func (b Body) writer() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	header := make(table.Row, 0, len(b.Columns))
	for _, c := range b.Columns {
		header = append(header, c)
	}
	t.AppendHeader(header)

	for _, r := range b.Rows {
		line := make(table.Row, 0, len(b.Columns))
		for _, c := range b.Columns {
			line = append(line, r[c])
		}
		t.AppendRow(line)
	}
	return t
}

// Names returns the name column of every row, in order.
func (b Body) Names() []string {
	out := make([]string, 0, len(b.Rows))
	for _, r := range b.Rows {
		out = append(out, r["name"])
	}
	return out
}

// summary is a one-line description used in logs.
func (b Body) summary() string {
	return strings.Join(b.Names(), ", ")
}
