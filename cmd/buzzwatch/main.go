// Command buzzwatch fetches fantasy basketball pages, stores what changed and
// mails alerts for players worth picking up.
//
// Usage:
//
//	buzzwatch fetch yahoo
//	buzzwatch fetch espn
//	buzzwatch schedule run
//	buzzwatch schedule times --start 5 --end 23 --step 5
//	buzzwatch show yahoo
//	buzzwatch export espn --out espn.xlsx
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/buzzwatch/internal/config"
	"github.com/albapepper/buzzwatch/internal/pipeline"
	"github.com/albapepper/buzzwatch/internal/report"
	"github.com/albapepper/buzzwatch/internal/schedule"
	"github.com/albapepper/buzzwatch/internal/store"

	_ "github.com/albapepper/buzzwatch/internal/store/all" // store backends
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "buzzwatch",
		Short:         "Fantasy basketball buzz and free-agent watcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(fetchCmd())
	root.AddCommand(scheduleCmd())
	root.AddCommand(showCmd())
	root.AddCommand(exportCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err, "kind", pipeline.KindOf(err))
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// fetch command
// --------------------------------------------------------------------------

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one fetch job now",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "yahoo",
		Short: "Fetch the Yahoo buzz index and store it if the adds changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(func(ctx context.Context, cfg *config.Config) error {
				return timed("yahoo", func() error {
					_, err := runYahoo(ctx, cfg)
					return err
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "espn",
		Short: "Check ESPN free agents and mail the highly rostered ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(func(ctx context.Context, cfg *config.Config) error {
				return timed("espn", func() error {
					_, err := runESPN(ctx, cfg)
					return err
				})
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// schedule command
// --------------------------------------------------------------------------

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run fetch jobs on a timetable",
	}
	cmd.AddCommand(scheduleRunCmd())
	cmd.AddCommand(scheduleTimesCmd())
	return cmd
}

func scheduleRunCmd() *cobra.Command {
	var (
		yahooEvery string
		espnEvery  string
		skipESPN   bool
		skipYahoo  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(func(ctx context.Context, cfg *config.Config) error {
				if yahooEvery == "" {
					yahooEvery = schedule.FetchTimes(cfg.ScheduleStartHour, cfg.ScheduleEndHour, cfg.ScheduleStepMinutes)
				}
				if espnEvery == "" {
					espnEvery = cfg.ESPNSchedule
				}

				s := schedule.New(cfg.ScheduleLocation, logger)
				if !skipYahoo {
					if err := s.Schedule("yahoo", yahooEvery, func(ctx context.Context) error {
						_, err := runYahoo(ctx, cfg)
						return err
					}); err != nil {
						return err
					}
				}
				if !skipESPN {
					if err := s.Schedule("espn", espnEvery, func(ctx context.Context) error {
						_, err := runESPN(ctx, cfg)
						return err
					}); err != nil {
						return err
					}
				}
				if len(s.Jobs()) == 0 {
					return fmt.Errorf("no jobs to schedule")
				}

				s.Start()
				for _, j := range s.Jobs() {
					logger.Info("Next run", "job", j.Name, "at", j.Next.Format(time.DateTime))
				}

				<-ctx.Done()
				logger.Info("Shutting down scheduler...")
				stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()
				return s.Stop(stopCtx)
			})
		},
	}
	cmd.Flags().StringVar(&yahooEvery, "yahoo-every", "", "Yahoo times (@H:MM,...) or cron spec; default from SCHEDULE_* settings")
	cmd.Flags().StringVar(&espnEvery, "espn-every", "", "ESPN times (@H:MM,...) or cron spec; default ESPN_SCHEDULE")
	cmd.Flags().BoolVar(&skipYahoo, "no-yahoo", false, "Do not schedule the Yahoo job")
	cmd.Flags().BoolVar(&skipESPN, "no-espn", false, "Do not schedule the ESPN job")
	return cmd
}

func scheduleTimesCmd() *cobra.Command {
	var start, end, step int
	cmd := &cobra.Command{
		Use:   "times",
		Short: "Print the fetch time list for a range of hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			if start < 0 || end > 23 || start > end || step < 1 {
				return fmt.Errorf("invalid range %d-%d step %d", start, end, step)
			}
			fmt.Fprintln(cmd.OutOrStdout(), schedule.FetchTimes(start, end, step))
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 5, "First hour")
	cmd.Flags().IntVar(&end, "end", 23, "Last hour")
	cmd.Flags().IntVar(&step, "step", 5, "Minutes between runs")
	return cmd
}

// --------------------------------------------------------------------------
// show / export commands
// --------------------------------------------------------------------------

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "show <yahoo|espn>",
		Short:     "Print the latest stored snapshot of a source",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"yahoo", "espn"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(func(ctx context.Context, cfg *config.Config) error {
				st, table, err := openSourceStore(ctx, cfg, args[0])
				if err != nil {
					return err
				}
				defer st.Close()

				snap, err := st.Latest(ctx)
				if err != nil {
					return err
				}
				if snap.Empty() {
					fmt.Fprintf(cmd.OutOrStdout(), "no %s snapshots stored yet\n", args[0])
					return nil
				}
				report.Table(cmd.OutOrStdout(), snap, table.Metrics)
				return nil
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var out, sheet string
	cmd := &cobra.Command{
		Use:   "export <yahoo|espn>",
		Short: "Write the stored history of a source to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(func(ctx context.Context, cfg *config.Config) error {
				st, table, err := openSourceStore(ctx, cfg, args[0])
				if err != nil {
					return err
				}
				defer st.Close()

				records, err := st.Records(ctx)
				if err != nil {
					return err
				}
				if out == "" {
					out = table.Name + ".xlsx"
				}
				if err := report.ExportXLSX(out, sheet, records, table.Metrics); err != nil {
					return err
				}
				logger.Info("Exported history", "source", args[0], "rows", len(records), "path", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output path (default <table>.xlsx)")
	cmd.Flags().StringVar(&sheet, "sheet", report.DefaultSheet, "Worksheet name")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runJob handles config loading, logger level and context cancellation.
func runJob(fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = cfg.NewLogger()
	slog.SetDefault(logger)

	return fn(ctx, cfg)
}

// timed logs the wall time of a one-off job the way the cron log reads it.
func timed(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	logger.Info(fmt.Sprintf("%s Finished in %.3f seconds", time.Now().Format("2006-01-02 03-04 PM"), time.Since(start).Seconds()),
		"job", name, "ok", err == nil)
	return err
}

// openSourceStore opens the configured store of a source.
func openSourceStore(ctx context.Context, cfg *config.Config, source string) (store.Store, store.Table, error) {
	switch source {
	case "yahoo":
		return openStore(ctx, cfg, cfg.YahooStoreURL, yahooTable(cfg))
	case "espn":
		return openStore(ctx, cfg, cfg.ESPNStoreURL, espnTable(cfg))
	default:
		return nil, store.Table{}, fmt.Errorf("unknown source %q (want yahoo or espn)", source)
	}
}
