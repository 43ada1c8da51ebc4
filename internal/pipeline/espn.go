package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/albapepper/buzzwatch/internal/detect"
	"github.com/albapepper/buzzwatch/internal/notify"
	"github.com/albapepper/buzzwatch/internal/provider"
	"github.com/albapepper/buzzwatch/internal/provider/espn"
	"github.com/albapepper/buzzwatch/internal/store"
)

// ESPNDeps wires a free-agent run.
type ESPNDeps struct {
	OpenSession func(ctx context.Context) (espn.Session, error)
	URL         string
	Username    string
	Password    string

	// Store holds the players already mailed.
	Store     store.Store
	Notifier  notify.Notifier
	Recipient string
	Threshold float64
	// Zero selects detect.DefaultCooldown.
	Cooldown time.Duration

	ScreenshotDir string
	Now           func() time.Time
	Logger        *slog.Logger
}

// RunESPN reads the free-agent list, mails the highly rostered players not
// mailed within the cooldown, then records them. The send happens before
// the append so a failed send leaves the store untouched.
func RunESPN(ctx context.Context, d ESPNDeps) (res *Result, err error) {
	clock := nowFunc(d.Now)
	now := clock()
	logger := loggerOr(d.Logger).With("source", espn.Source)
	res = newResult(espn.Source, now)
	defer func() { res.finish(err, logger) }()

	sess, err := d.OpenSession(ctx)
	if err != nil {
		return res, wrap(KindFetch, espn.Source, "start browser", err)
	}
	defer func() {
		if err != nil && d.ScreenshotDir != "" {
			path := espn.ScreenshotPath(d.ScreenshotDir, clock())
			if shotErr := sess.Screenshot(context.WithoutCancel(ctx), path); shotErr != nil {
				logger.Warn("screenshot failed", "error", shotErr)
			} else {
				logger.Info("Saved screenshot", "path", path)
			}
		}
		if closeErr := sess.Close(); closeErr != nil {
			logger.Warn("close browser failed", "error", closeErr)
		}
	}()

	if err = sess.Navigate(ctx, d.URL); err != nil {
		return res, wrap(KindFetch, espn.Source, "load free agents", err)
	}
	if err = sess.Authenticate(ctx, d.Username, d.Password); err != nil {
		return res, wrap(KindFetch, espn.Source, "log in", err)
	}
	markup, err := sess.CurrentPageMarkup(ctx)
	if err != nil {
		return res, wrap(KindFetch, espn.Source, "read page", err)
	}

	current, err := espn.ParseFreeAgents(markup, now)
	if err != nil {
		return res, wrap(KindParse, espn.Source, "parse free agents", err)
	}
	res.Fetched = current.Len()

	candidates := detect.Candidates(current, espn.MetricPctRost, d.Threshold)
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		logger.Info("No highly rostered free agents", "threshold", d.Threshold)
		return res, nil
	}

	notified, err := d.Store.Records(ctx)
	if err != nil {
		return res, wrap(KindPersist, espn.Source, "load notified players", err)
	}
	cooldown := cooldownOr(d.Cooldown)
	eligible := detect.NeedsNotify(candidates, notified, cooldown, now)
	if len(eligible) == 0 {
		logger.Info("All candidates notified within cooldown", "candidates", len(candidates), "cooldown", cooldown)
		return res, nil
	}

	body := notify.BodyFromRecords(eligible, espn.Metrics)
	err = d.Notifier.Send(ctx, d.Recipient, notify.SubjectFreeAgents, body)
	if errors.Is(err, notify.ErrNotDelivered) {
		logger.Warn("Alert not delivered, players stay eligible", "players", len(eligible))
		return res, nil
	}
	if err != nil {
		return res, wrap(KindNotify, espn.Source, "send alert", err)
	}
	res.Notified = len(eligible)

	n, err := d.Store.Append(ctx, provider.Snapshot{Source: espn.Source, FetchedAt: current.FetchedAt, Records: eligible})
	if err != nil {
		return res, wrap(KindPersist, espn.Source, "record notified players", err)
	}
	res.Persisted = n
	return res, nil
}

// cooldownOr returns d, or detect.DefaultCooldown when d is unset.
func cooldownOr(d time.Duration) time.Duration {
	if d == 0 {
		return detect.DefaultCooldown
	}
	return d
}
