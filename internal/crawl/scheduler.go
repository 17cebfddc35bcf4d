package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/jobs"
	"github.com/jobsignal/engine/internal/metrics"
)

// Scheduler fires crawl cycles on a fixed interval. The interval is
// measured from the end of the previous cycle: a still-running cycle
// delays the next one instead of overlapping it.
type Scheduler struct {
	store    jobs.Store
	worker   *Worker
	interval time.Duration
	logger   *zap.Logger
	cron     *cron.Cron
}

// NewScheduler constructs a Scheduler. Call Start to begin firing.
func NewScheduler(store jobs.Store, worker *Worker, interval time.Duration, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		store:    store,
		worker:   worker,
		interval: interval,
		logger:   logger,
	}
	cronLog := zapCronLogger{logger.Named("cron")}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.DelayIfStillRunning(cronLog),
	))
	return s
}

// Start registers the cycle job and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		s.RunCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule crawl cycle: %w", err)
	}
	s.cron.Start()
	s.logger.Info("crawl scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the cron runner and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("crawl scheduler stopped")
}

// RunCycle processes every active target once. A failing target is
// counted and skipped, never allowed to halt the cycle; targets whose
// owning site is disabled are skipped without an attempt.
func (s *Scheduler) RunCycle(ctx context.Context) (succeeded, failed int) {
	start := time.Now()
	s.logger.Info("crawl cycle starting")

	targets, err := s.store.ActiveCrawlTargets(ctx)
	if err != nil {
		s.logger.Error("loading crawl targets failed", zap.Error(err))
		return 0, 0
	}

	for _, target := range targets {
		site, err := s.store.SourceSiteByID(ctx, target.SourceSiteID)
		if err != nil {
			s.logger.Error("loading site failed",
				zap.Int64("site_id", target.SourceSiteID), zap.Error(err))
			failed++
			continue
		}
		if !site.CrawlEnabled {
			s.logger.Debug("skipping disabled site", zap.String("site", site.Name))
			continue
		}
		if err := s.worker.Process(ctx, target); err != nil {
			s.logger.Error("target processing failed",
				zap.String("site", site.Name),
				zap.String("url", target.URL),
				zap.Error(err),
			)
			failed++
			continue
		}
		succeeded++
	}

	elapsed := time.Since(start)
	metrics.ObserveCycleDuration(elapsed)
	s.logger.Info("crawl cycle finished",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed),
	)
	return succeeded, failed
}

// zapCronLogger adapts zap to the cron.Logger interface.
type zapCronLogger struct {
	log *zap.Logger
}

func (l zapCronLogger) Info(msg string, kv ...interface{}) {
	l.log.Sugar().Infow(msg, kv...)
}

func (l zapCronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Sugar().Errorw(msg, append(kv, "error", err)...)
}
