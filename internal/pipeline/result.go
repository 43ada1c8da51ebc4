// Package pipeline runs one fetch job end to end: fetch, parse, decide,
// notify and persist.
//
// A run either completes or persists nothing. Failures come back as *Error
// tagged with the step that failed.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Result holds the counts of a single run.
type Result struct {
	RunID      string
	Source     string
	Started    time.Time
	Duration   time.Duration
	Fetched    int
	Candidates int
	Notified   int
	Persisted  int

	tic time.Time
}

func newResult(source string, now time.Time) *Result {
	return &Result{
		RunID:   uuid.NewString(),
		Source:  source,
		Started: now,
		tic:     time.Now(),
	}
}

// Summary returns a one-line description of the run.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"source=%s run=%s fetched=%d candidates=%d notified=%d persisted=%d dur=%s",
		r.Source, r.RunID, r.Fetched, r.Candidates, r.Notified, r.Persisted,
		r.Duration.Round(time.Millisecond),
	)
}

// finish stamps the duration and logs the outcome.
func (r *Result) finish(err error, logger *slog.Logger) {
	r.Duration = time.Since(r.tic)
	if err != nil {
		logger.Error("Run failed", "source", r.Source, "run_id", r.RunID, "kind", KindOf(err), "error", err)
		return
	}
	logger.Info("Run complete", "summary", r.Summary())
}

func nowFunc(f func() time.Time) func() time.Time {
	if f == nil {
		return time.Now
	}
	return f
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
