package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name  string    `json:"name"`
	Every string    `json:"every"`
	Next  time.Time `json:"next"`
}

type entry struct {
	id    cron.EntryID
	every string
	run   cron.Job
}

// Scheduler runs named jobs in-process. Invocations of the same job never
// overlap: a trigger that arrives while the job is still running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]entry
}

// New creates a stopped scheduler evaluating times in loc.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{logger: logger}),
			cron.WithLocation(loc),
		),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		jobs:   map[string]entry{},
	}
}

// ParseEvery accepts either a "@H:MM,..." list or a standard cron spec.
func ParseEvery(every string) (cron.Schedule, error) {
	every = strings.TrimSpace(every)
	if strings.HasPrefix(every, "@") && strings.Contains(every, ":") {
		clocks, err := ParseTimes(every)
		if err != nil {
			return nil, err
		}
		return dailyTimes(clocks), nil
	}
	sched, err := cron.ParseStandard(every)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", every, err)
	}
	return sched, nil
}

// Schedule registers job under name, replacing any job with that name.
func (s *Scheduler) Schedule(name, every string, job Job) error {
	sched, err := ParseEvery(every)
	if err != nil {
		return err
	}

	logger := s.logger.With("job", name)
	run := cron.NewChain(
		cron.Recover(cronLogger{logger: logger}),
		cron.SkipIfStillRunning(cronLogger{logger: logger}),
	).Then(cron.FuncJob(func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			logger.Error("job failed", "error", err, "duration", time.Since(start).Round(time.Millisecond))
			return
		}
		logger.Info("job finished", "duration", time.Since(start).Round(time.Millisecond))
	}))

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old.id)
	}
	id := s.cron.Schedule(sched, run)
	s.jobs[name] = entry{id: id, every: every, run: run}
	logger.Info("Job scheduled", "every", summarize(every))
	return nil
}

// Kill removes a job. Returns false if no job had that name.
func (s *Scheduler) Kill(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.jobs, name)
	s.logger.Info("Job killed", "job", name)
	return true
}

// Trigger runs a job now, in the calling goroutine. It is skipped if the
// job is already running.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no job named %q", name)
	}
	e.run.Run()
	return nil
}

// Jobs lists scheduled jobs by name. Next is zero until the scheduler is
// started.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		out = append(out, JobInfo{
			Name:  name,
			Every: e.every,
			Next:  s.cron.Entry(e.id).Next,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.Jobs()))
}

// Stop halts the scheduler, cancels running jobs and waits for them to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// summarize shortens long time lists for logs.
func summarize(every string) string {
	parts := strings.Split(every, ",")
	if len(parts) <= 4 {
		return every
	}
	return fmt.Sprintf("%s,%s,...,%s (%d times)", parts[0], parts[1], parts[len(parts)-1], len(parts))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
