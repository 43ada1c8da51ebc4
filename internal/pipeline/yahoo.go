package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/albapepper/buzzwatch/internal/detect"
	"github.com/albapepper/buzzwatch/internal/notify"
	"github.com/albapepper/buzzwatch/internal/provider"
	"github.com/albapepper/buzzwatch/internal/provider/yahoo"
	"github.com/albapepper/buzzwatch/internal/store"
)

// SubjectBuzzAlert is the subject line of the optional adds alert.
const SubjectBuzzAlert = "Yahoo Buzz Alert"

// PageFetcher downloads the buzz index page.
type PageFetcher interface {
	FetchPage(ctx context.Context) ([]byte, error)
}

// YahooDeps wires a buzz index run.
type YahooDeps struct {
	Fetcher PageFetcher
	Store   store.Store
	// Column is the metric compared against the last snapshot.
	Column string
	Mode   detect.Mode

	// Adds alerts are off unless AlertAdds > 0.
	AlertAdds  float64
	AlertStore store.Store
	Notifier   notify.Notifier
	Recipient  string
	// Zero selects detect.DefaultCooldown.
	Cooldown time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// RunYahoo fetches the buzz index and appends it when the compared column
// changed since the last stored snapshot. Adds alerts run after the
// snapshot is stored, so a snapshot store failure sends no mail.
func RunYahoo(ctx context.Context, d YahooDeps) (res *Result, err error) {
	now := nowFunc(d.Now)()
	logger := loggerOr(d.Logger).With("source", yahoo.Source)
	res = newResult(yahoo.Source, now)
	defer func() { res.finish(err, logger) }()

	column := d.Column
	if column == "" {
		column = yahoo.MetricAdds
	}

	page, err := d.Fetcher.FetchPage(ctx)
	if err != nil {
		return res, wrap(KindFetch, yahoo.Source, "fetch buzz index", err)
	}
	current, err := yahoo.ParseBuzzTable(bytes.NewReader(page), now)
	if err != nil {
		return res, wrap(KindParse, yahoo.Source, "parse buzz index", err)
	}
	res.Fetched = current.Len()

	last, err := d.Store.Latest(ctx)
	if err != nil {
		return res, wrap(KindPersist, yahoo.Source, "load latest snapshot", err)
	}

	if detect.NeedsPersistMode(current, last, column, d.Mode) {
		n, err := d.Store.Append(ctx, current)
		if err != nil {
			return res, wrap(KindPersist, yahoo.Source, "append snapshot", err)
		}
		res.Persisted = n
	} else {
		logger.Info("Buzz index unchanged", "column", column, "last_fetched", last.FetchedAt)
	}

	if d.AlertAdds > 0 {
		if err := alertAdds(ctx, d, current, now, res, logger); err != nil {
			return res, err
		}
	}
	return res, nil
}

// alertAdds mails players whose adds reached the threshold, at most once
// per cooldown, and records them in the alert store.
func alertAdds(ctx context.Context, d YahooDeps, current provider.Snapshot, now time.Time, res *Result, logger *slog.Logger) error {
	candidates := detect.Candidates(current, yahoo.MetricAdds, d.AlertAdds)
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		return nil
	}

	notified, err := d.AlertStore.Records(ctx)
	if err != nil {
		return wrap(KindPersist, yahoo.Source, "load alert history", err)
	}
	eligible := detect.NeedsNotify(candidates, notified, cooldownOr(d.Cooldown), now)
	if len(eligible) == 0 {
		logger.Info("No new adds alerts", "candidates", len(candidates))
		return nil
	}

	body := notify.BodyFromRecords(eligible, []string{yahoo.MetricAdds, yahoo.MetricPctOfTotalAdds})
	err = d.Notifier.Send(ctx, d.Recipient, SubjectBuzzAlert, body)
	if errors.Is(err, notify.ErrNotDelivered) {
		logger.Warn("Adds alert not delivered, players stay eligible", "players", len(eligible))
		return nil
	}
	if err != nil {
		return wrap(KindNotify, yahoo.Source, "send adds alert", err)
	}
	res.Notified = len(eligible)

	if _, err := d.AlertStore.Append(ctx, provider.Snapshot{Source: yahoo.Source, FetchedAt: current.FetchedAt, Records: eligible}); err != nil {
		return wrap(KindPersist, yahoo.Source, "record adds alert", err)
	}
	return nil
}
