// Package detect decides whether a freshly fetched snapshot carries anything
// that has not been persisted or reported yet.
//
// Two independent policies:
//   - NeedsPersist guards the store against duplicate snapshots.
//   - NeedsNotify guards recipients against repeated alerts for the same key
//     inside a cooldown window.
package detect

import (
	"fmt"
	"time"

	"github.com/albapepper/buzzwatch/internal/provider"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// DefaultCooldown is the minimum time between two alerts for the same key.
const DefaultCooldown = 7 * 24 * time.Hour

// Mode selects how NeedsPersist aligns the two snapshots.
type Mode string

const (
	// ByPosition compares row i of the current snapshot with row i of the
	// last one. Reordered rows count as a change.
	ByPosition Mode = "position"
	// ByKey compares each key's metric with the same key in the last snapshot.
	ByKey Mode = "key"
)

// ParseMode validates a mode name. Empty means ByPosition.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ByPosition:
		return ByPosition, nil
	case ByKey:
		return ByKey, nil
	default:
		return "", fmt.Errorf("unknown compare mode %q (want %q or %q)", s, ByPosition, ByKey)
	}
}

// --------------------------------------------------------------------------
// Persist policy
// --------------------------------------------------------------------------

// NeedsPersist reports whether current should be appended to the store given
// the most recently persisted snapshot. Only column is compared, row by row.
// An empty last snapshot (first run) always needs persisting.
func NeedsPersist(current, last provider.Snapshot, column string) bool {
	return NeedsPersistMode(current, last, column, ByPosition)
}

// NeedsPersistMode is NeedsPersist with an explicit alignment mode.
func NeedsPersistMode(current, last provider.Snapshot, column string, mode Mode) bool {
	if last.Empty() {
		return !current.Empty()
	}
	if mode == ByKey {
		return keyedDiffers(current, last, column)
	}
	if current.Len() != last.Len() {
		return true
	}
	for i := range current.Records {
		if !sameMetric(current.Records[i], last.Records[i], column) {
			return true
		}
	}
	return false
}

func keyedDiffers(current, last provider.Snapshot, column string) bool {
	if current.Len() != last.Len() {
		return true
	}
	prev := make(map[string]provider.Record, last.Len())
	for _, r := range last.Records {
		prev[r.Key] = r
	}
	for _, r := range current.Records {
		p, ok := prev[r.Key]
		if !ok || !sameMetric(r, p, column) {
			return true
		}
	}
	return false
}

// sameMetric treats a missing metric as equal only to another missing metric.
func sameMetric(a, b provider.Record, column string) bool {
	av, aok := a.Metric(column)
	bv, bok := b.Metric(column)
	if aok != bok {
		return false
	}
	return !aok || av == bv
}

// --------------------------------------------------------------------------
// Notify policy
// --------------------------------------------------------------------------

// Candidates returns the records whose metric is at least threshold.
func Candidates(s provider.Snapshot, metric string, threshold float64) []provider.Record {
	var out []provider.Record
	for _, r := range s.Records {
		if v, ok := r.Metric(metric); ok && v >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// NeedsNotify returns the candidates that may be alerted at now: keys never
// notified before, and keys whose most recent notification is older than
// cooldown. An empty result means no alert and no append.
func NeedsNotify(candidates, notified []provider.Record, cooldown time.Duration, now time.Time) []provider.Record {
	last := LastNotified(notified)
	cutoff := now.Add(-cooldown)

	var out []provider.Record
	for _, c := range candidates {
		ts, seen := last[c.Key]
		if !seen || ts.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out
}

// LastNotified maps each key to its most recent notification time.
func LastNotified(notified []provider.Record) map[string]time.Time {
	last := make(map[string]time.Time, len(notified))
	for _, r := range notified {
		if ts, ok := last[r.Key]; !ok || r.FetchedAt.After(ts) {
			last[r.Key] = r.FetchedAt
		}
	}
	return last
}

// CooldownDays converts a day count into a cooldown duration.
func CooldownDays(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
