package main

import (
	"context"
	"fmt"

	"github.com/albapepper/buzzwatch/internal/config"
	"github.com/albapepper/buzzwatch/internal/detect"
	"github.com/albapepper/buzzwatch/internal/notify"
	"github.com/albapepper/buzzwatch/internal/pipeline"
	"github.com/albapepper/buzzwatch/internal/provider/espn"
	"github.com/albapepper/buzzwatch/internal/provider/yahoo"
	"github.com/albapepper/buzzwatch/internal/store"
)

func yahooTable(cfg *config.Config) store.Table {
	return store.Table{Name: cfg.YahooTable, Source: yahoo.Source, Metrics: yahoo.Metrics}
}

func yahooAlertTable(cfg *config.Config) store.Table {
	return store.Table{Name: cfg.YahooAlertTable, Source: yahoo.Source, Metrics: []string{yahoo.MetricAdds, yahoo.MetricPctOfTotalAdds}}
}

func espnTable(cfg *config.Config) store.Table {
	return store.Table{Name: cfg.ESPNTable, Source: espn.Source, Metrics: espn.Metrics}
}

func openStore(ctx context.Context, cfg *config.Config, rawURL string, table store.Table) (store.Store, store.Table, error) {
	st, err := store.Open(ctx, rawURL, store.Options{
		Table: table,
		Pool: store.PoolConfig{
			MinConns:        cfg.DBPoolMinConns,
			MaxConns:        cfg.DBPoolMaxConns,
			MaxConnLifetime: cfg.DBPoolMaxLife,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, table, fmt.Errorf("open %s store %s: %w", table.Source, store.Redact(rawURL), err)
	}
	return st, table, nil
}

func newNotifier(cfg *config.Config) notify.Notifier {
	return notify.New(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
}

// runYahoo opens the stores, runs one buzz index job and closes them.
func runYahoo(ctx context.Context, cfg *config.Config) (*pipeline.Result, error) {
	mode, err := detect.ParseMode(cfg.CompareMode)
	if err != nil {
		return nil, err
	}

	st, _, err := openStore(ctx, cfg, cfg.YahooStoreURL, yahooTable(cfg))
	if err != nil {
		return nil, &pipeline.Error{Kind: pipeline.KindPersist, Source: yahoo.Source, Op: "open store", Err: err}
	}
	defer st.Close()

	deps := pipeline.YahooDeps{
		Fetcher:   yahoo.NewClient(cfg.YahooBuzzURL, cfg.RequestsPerMinute, logger),
		Store:     st,
		Column:    yahoo.MetricAdds,
		Mode:      mode,
		AlertAdds: cfg.YahooAlertAdds,
		Notifier:  newNotifier(cfg),
		Recipient: cfg.AlertRecipient,
		Cooldown:  cfg.NotifyCooldown,
		Logger:    logger,
	}
	if cfg.YahooAlertAdds > 0 {
		alerts, _, err := openStore(ctx, cfg, cfg.YahooAlertStoreURL, yahooAlertTable(cfg))
		if err != nil {
			return nil, &pipeline.Error{Kind: pipeline.KindPersist, Source: yahoo.Source, Op: "open alert store", Err: err}
		}
		defer alerts.Close()
		deps.AlertStore = alerts
	}
	return pipeline.RunYahoo(ctx, deps)
}

// runESPN opens the notified store and a browser, runs one free-agent job
// and closes both.
func runESPN(ctx context.Context, cfg *config.Config) (*pipeline.Result, error) {
	st, _, err := openStore(ctx, cfg, cfg.ESPNStoreURL, espnTable(cfg))
	if err != nil {
		return nil, &pipeline.Error{Kind: pipeline.KindPersist, Source: espn.Source, Op: "open store", Err: err}
	}
	defer st.Close()

	return pipeline.RunESPN(ctx, pipeline.ESPNDeps{
		OpenSession: func(ctx context.Context) (espn.Session, error) {
			sess, err := espn.NewChromeSession(ctx, espn.ChromeOptions{
				ExecPath: cfg.ChromePath,
				PageWait: cfg.ESPNPageWait,
				Headless: cfg.ChromeHeadless,
			}, logger)
			if err != nil {
				return nil, err
			}
			return sess, nil
		},
		URL:           espn.FreeAgentsURL(cfg.ESPNLeagueID),
		Username:      cfg.ESPNUsername,
		Password:      cfg.ESPNPassword,
		Store:         st,
		Notifier:      newNotifier(cfg),
		Recipient:     cfg.AlertRecipient,
		Threshold:     cfg.ESPNRosteredThreshold,
		Cooldown:      cfg.NotifyCooldown,
		ScreenshotDir: cfg.ScreenshotDir,
		Logger:        logger,
	})
}
