// Package report renders stored records for people: a console table for the
// CLI and an xlsx workbook for export.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xuri/excelize/v2"

	"github.com/albapepper/buzzwatch/internal/provider"
)

// DefaultSheet is the worksheet name used when none is given.
const DefaultSheet = "history"

// Header returns the column titles for records with the given metrics.
func Header(metrics []string) []string {
	h := []string{"name", "label"}
	h = append(h, metrics...)
	return append(h, "time_fetched")
}

// MetricsOf returns the union of metric names across records, sorted.
func MetricsOf(records []provider.Record) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range records {
		for _, m := range r.MetricNames() {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Table writes a snapshot to w as a console table. A nil metrics slice
// shows every metric present in the snapshot.
func Table(w io.Writer, snap provider.Snapshot, metrics []string) {
	if metrics == nil {
		metrics = MetricsOf(snap.Records)
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s @ %s (%d rows)", snap.Source, snap.FetchedAt.Format(time.DateTime), snap.Len()))

	header := table.Row{}
	for _, h := range Header(metrics) {
		header = append(header, h)
	}
	t.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(metrics))
	for i := range metrics {
		configs = append(configs, table.ColumnConfig{Number: i + 3, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)

	for _, r := range snap.Records {
		row := table.Row{r.Key, r.Label}
		for _, m := range metrics {
			if v, ok := r.Metric(m); ok {
				row = append(row, v)
			} else {
				row = append(row, "")
			}
		}
		row = append(row, r.FetchedAt.Format(time.DateTime))
		t.AppendRow(row)
	}
	t.Render()
}

// ExportXLSX writes records to a new workbook at path, one row per record
// under a header row. Missing metrics are left blank.
func ExportXLSX(path, sheet string, records []provider.Record, metrics []string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	if metrics == nil {
		metrics = MetricsOf(records)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, 0, len(metrics)+3)
	for _, h := range Header(metrics) {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		row := make([]any, 0, len(header))
		row = append(row, r.Key, r.Label)
		for _, m := range metrics {
			if v, ok := r.Metric(m); ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		row = append(row, r.FetchedAt.UTC().Format(time.RFC3339))

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
