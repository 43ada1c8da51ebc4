// Package provider defines the canonical data types that every fetch source
// normalizes into. These structs are the contract between the scrapers and
// the rest of the system. Scrapers output these, stores persist them and the
// change detector compares them.
//
// Adding a new source means implementing a function that returns a Snapshot.
// The stores and the detector never change.
package provider

import (
	"sort"
	"time"
)

// Record is one observed entity (a player) at a point in time.
type Record struct {
	Key       string             `json:"key"`
	Label     string             `json:"label,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
	FetchedAt time.Time          `json:"time_fetched"`
}

// Metric returns the named metric and whether it is present.
func (r Record) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}

// MetricNames returns the record's metric names in sorted order.
func (r Record) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for k := range r.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot is an ordered set of records captured from a single fetch.
type Snapshot struct {
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"time_fetched"`
	Records   []Record  `json:"records"`
}

// NewSnapshot builds a snapshot and stamps every record with its timestamp.
// Timestamps are stored in UTC at whole-second resolution so that every
// backend round-trips them unchanged.
func NewSnapshot(source string, at time.Time, records []Record) Snapshot {
	at = NormalizeTime(at)
	for i := range records {
		records[i].FetchedAt = at
	}
	return Snapshot{Source: source, FetchedAt: at, Records: records}
}

// Empty reports whether the snapshot holds no records.
func (s Snapshot) Empty() bool { return len(s.Records) == 0 }

// Len returns the number of records.
func (s Snapshot) Len() int { return len(s.Records) }

// Keys returns the record keys in snapshot order.
func (s Snapshot) Keys() []string {
	keys := make([]string, len(s.Records))
	for i, r := range s.Records {
		keys[i] = r.Key
	}
	return keys
}

// NormalizeTime truncates t to whole seconds in UTC.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
