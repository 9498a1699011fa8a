package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"TdxBridge/internal/financial"
	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
	"TdxBridge/internal/notifier"
	"TdxBridge/internal/recorder"
)

// Sync triggers recorded with each pass.
const (
	TriggerCron    = "cron"
	TriggerStartup = "startup"
	TriggerAPI     = "api"
	TriggerChat    = "chat"
	TriggerCLI     = "cli"
)

// Refresher re-warms the provider's candlestick cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Synchronizer runs one financial sync pass.
type Synchronizer interface {
	Synchronize(ctx context.Context) model.SyncResult
}

// Options wires the scheduler's collaborators.
type Options struct {
	Refresher Refresher
	Syncer    Synchronizer
	Store     *financial.Store
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Location  *time.Location
	DataDir   string
}

// Scheduler runs the daily refresh and sync job.
type Scheduler struct {
	Cron      *cron.Cron
	Refresher Refresher
	Syncer    Synchronizer
	Store     *financial.Store
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Ctx       context.Context

	dataDir string
	loc     *time.Location
	logger  *logging.Logger

	mu      sync.Mutex
	entryID cron.EntryID
}

// NewScheduler creates a new Scheduler. Jobs run with ctx.
func NewScheduler(ctx context.Context, opts Options, logger *logging.Logger) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	if opts.Notifier == nil {
		opts.Notifier = notifier.Noop{}
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	cl := cronLogger{logger}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Refresher: opts.Refresher,
		Syncer:    opts.Syncer,
		Store:     opts.Store,
		Notifier:  opts.Notifier,
		Recorder:  opts.Recorder,
		Ctx:       ctx,
		dataDir:   opts.DataDir,
		loc:       loc,
		logger:    logger,
	}
}

// Register schedules the daily job.
func (s *Scheduler) Register(dailyCron string) error {
	id, err := s.Cron.AddFunc(dailyCron, s.dailyJob)
	if err != nil {
		return fmt.Errorf("register daily job: %w", err)
	}
	s.mu.Lock()
	s.entryID = id
	s.mu.Unlock()
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Time("next_run", s.NextRun()).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// NextRun returns the next trigger time of the daily job, or zero when none is registered.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	e := s.Cron.Entry(id)
	if !e.Valid() {
		return time.Time{}
	}
	if !e.Next.IsZero() {
		return e.Next
	}
	return e.Schedule.Next(time.Now().In(s.loc))
}

// RunDailyNow executes the daily job immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunDailyNow() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("daily job panicked")
		}
	}()
	s.runDaily(TriggerStartup)
}

func (s *Scheduler) dailyJob() {
	s.runDaily(TriggerCron)
}

// runDaily refreshes the bar cache, then syncs report archives. A failed
// refresh is logged and does not prevent the sync.
func (s *Scheduler) runDaily(trigger string) {
	s.logger.Info().Str("trigger", trigger).Msg("running daily job")

	if s.Refresher != nil {
		started := time.Now()
		err := s.Refresher.Refresh(s.Ctx)
		s.recordJob("refresh_bars", started, err)
		if err != nil {
			s.logger.Error().Err(err).Msg("bar cache refresh failed")
		}
	}

	started := time.Now()
	res := s.SyncNow(s.Ctx, trigger)
	var err error
	if res.Error != "" {
		err = fmt.Errorf("%s", res.Error)
	}
	s.recordJob("sync_financial", started, err)
}

// SyncNow runs one sync pass, records it and reports it to the chat when
// something was downloaded or failed.
func (s *Scheduler) SyncNow(ctx context.Context, trigger string) model.SyncResult {
	started := time.Now()
	res := s.Syncer.Synchronize(ctx)
	elapsed := time.Since(started)

	if err := s.Recorder.RecordSync(recorder.NewSyncRun(trigger, started, res)); err != nil {
		s.logger.Error().Err(err).Msg("record sync run")
	}
	if trigger != TriggerChat && (res.Downloaded > 0 || len(res.Missing) > 0 || res.Error != "") {
		s.trySend(ctx, notifier.FormatSyncReport(res, elapsed))
	}
	return res
}

// Status collects the snapshot shown by the /status command.
func (s *Scheduler) Status() notifier.Status {
	st := notifier.Status{DataDir: s.dataDir, NextUpdate: s.NextRun()}
	if s.Store != nil {
		if periods, err := s.Store.Periods(); err == nil {
			st.CachedReports = len(periods)
			if len(periods) > 0 {
				st.LatestReport = periods[0]
			}
		}
	}
	if runs, err := s.Recorder.RecentSyncs(1); err == nil && len(runs) > 0 {
		last := runs[0]
		st.LastSync = &notifier.SyncSummary{
			At:         last.StartedAt,
			Trigger:    last.Trigger,
			Downloaded: last.Downloaded,
			Missing:    len(last.Missing),
			Error:      last.Error,
		}
	}
	return st
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch strings.ToLower(strings.TrimSpace(command)) {
	case "/sync", "同步":
		started := time.Now()
		res := s.SyncNow(ctx, TriggerChat)
		return notifier.FormatSyncReport(res, time.Since(started))
	case "/status", "状态":
		return notifier.FormatStatus(s.Status())
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) recordJob(job string, started time.Time, err error) {
	run := &recorder.JobRun{
		Job:        job,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Status:     "ok",
	}
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	}
	if err := s.Recorder.RecordJob(run); err != nil {
		s.logger.Error().Err(err).Str("job", job).Msg("record job run")
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.Notify(ctx, text); err != nil {
		s.logger.Error().Err(err).Msg("send notification")
	}
}
