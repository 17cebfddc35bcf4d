// Package crawl drives the per-target crawl pipeline and its schedule.
package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/evidence"
	"github.com/jobsignal/engine/internal/extract"
	"github.com/jobsignal/engine/internal/fetch"
	"github.com/jobsignal/engine/internal/jobs"
	"github.com/jobsignal/engine/internal/metrics"
	"github.com/jobsignal/engine/internal/resolve"
	"github.com/jobsignal/engine/internal/skills"
)

// Sleeper waits for a duration, honoring cancellation. Injectable so
// tests never sleep for real.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Worker processes one crawl target end to end: attempt bookkeeping,
// fetch with retry, extraction, and the per-card resolve-and-record
// pipeline.
type Worker struct {
	store      jobs.Store
	resolver   *resolve.Resolver
	recorder   *evidence.Recorder
	skills     *skills.Extractor
	extractors *extract.Registry
	fetchers   *fetch.Selector
	detector   *fetch.Heuristic
	clock      jobs.Clock
	sleeper    Sleeper
	logger     *zap.Logger
}

// NewWorker constructs a Worker.
func NewWorker(
	store jobs.Store,
	resolver *resolve.Resolver,
	recorder *evidence.Recorder,
	skillExtractor *skills.Extractor,
	extractors *extract.Registry,
	fetchers *fetch.Selector,
	clock jobs.Clock,
	sleeper Sleeper,
	logger *zap.Logger,
) *Worker {
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	return &Worker{
		store:      store,
		resolver:   resolver,
		recorder:   recorder,
		skills:     skillExtractor,
		extractors: extractors,
		fetchers:   fetchers,
		detector:   fetch.NewHeuristic(0),
		clock:      clock,
		sleeper:    sleeper,
		logger:     logger,
	}
}

// Process runs one target through the full pipeline. The attempt row
// is inserted pessimistically as HTTP_FAIL before the first fetch, so
// a crash mid-run still leaves a recorded attempt. An unreachable site
// halts before any job data is touched; missing observations after an
// HTTP_FAIL never mean the jobs disappeared.
func (w *Worker) Process(ctx context.Context, target jobs.CrawlTarget) error {
	site, err := w.store.SourceSiteByID(ctx, target.SourceSiteID)
	if err != nil {
		return fmt.Errorf("load site %d: %w", target.SourceSiteID, err)
	}
	log := w.logger.With(zap.String("site", site.Name), zap.String("url", target.URL))
	log.Info("starting crawl")

	attempt, err := w.store.CreateCrawlAttempt(ctx, jobs.CrawlAttempt{
		CrawlTargetID: target.ID,
		StartedAt:     w.clock.Now(),
		Status:        jobs.StatusHTTPFail, // pessimistic default
	})
	if err != nil {
		return fmt.Errorf("open attempt: %w", err)
	}

	result, fetchErr := w.fetchWithRetry(ctx, site, target, log)
	if fetchErr != nil {
		msg := fmt.Sprintf("all %d attempts failed: %v", site.MaxRetries+1, fetchErr)
		if err := w.store.CompleteCrawlAttempt(ctx, attempt.ID, jobs.StatusHTTPFail, nil, msg, 0, w.clock.Now()); err != nil {
			return fmt.Errorf("finalize attempt: %w", err)
		}
		metrics.ObserveAttempt(site.Name, string(jobs.StatusHTTPFail))
		log.Error("crawl halted, site unreachable", zap.Error(fetchErr))
		return nil
	}
	httpCode := result.StatusCode

	cards, err := w.extractCards(site, result, log)
	if err != nil {
		if err := w.store.CompleteCrawlAttempt(ctx, attempt.ID, jobs.StatusParseFail, &httpCode, err.Error(), 0, w.clock.Now()); err != nil {
			return fmt.Errorf("finalize attempt: %w", err)
		}
		metrics.ObserveAttempt(site.Name, string(jobs.StatusParseFail))
		log.Error("extraction failed structurally", zap.Error(err))
		return nil
	}
	if len(cards) == 0 {
		if site.FetchMode != jobs.FetchModeHeadless && w.detector.LooksRendered(result) {
			log.Warn("parsed 0 cards and page looks client-rendered; consider switching the site to headless fetch mode")
		} else {
			log.Warn("parsed 0 cards, page structure may have changed; verify selectors against the live page source")
		}
	}

	processed := w.processCards(ctx, site, attempt, cards, log)

	if err := w.store.CompleteCrawlAttempt(ctx, attempt.ID, jobs.StatusSuccess, &httpCode, "", processed, w.clock.Now()); err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	metrics.ObserveAttempt(site.Name, string(jobs.StatusSuccess))
	log.Info("crawl complete", zap.Int("recorded", processed), zap.Int("parsed", len(cards)))
	return nil
}

// fetchWithRetry tries up to MaxRetries+1 fetches, waiting the site's
// crawl delay before each and backing off exponentially between
// failures (2s, 4s, 8s, ...).
func (w *Worker) fetchWithRetry(ctx context.Context, site jobs.SourceSite, target jobs.CrawlTarget, log *zap.Logger) (jobs.FetchResult, error) {
	fetcher, err := w.fetchers.ForMode(site.FetchMode)
	if err != nil {
		return jobs.FetchResult{}, err
	}

	var lastErr error
	for i := 0; i <= site.MaxRetries; i++ {
		if err := w.sleeper.Sleep(ctx, time.Duration(site.CrawlDelaySeconds)*time.Second); err != nil {
			return jobs.FetchResult{}, err
		}
		result, err := fetcher.Fetch(ctx, target.URL)
		if err == nil {
			log.Debug("fetch success", zap.Int("attempt", i+1))
			return result, nil
		}
		lastErr = err
		log.Warn("fetch failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", site.MaxRetries+1),
			zap.Error(err),
		)
		if i < site.MaxRetries {
			metrics.ObserveFetchRetry(site.Name)
			backoff := time.Duration(1<<uint(i+1)) * time.Second
			if err := w.sleeper.Sleep(ctx, backoff); err != nil {
				return jobs.FetchResult{}, err
			}
		}
	}
	return jobs.FetchResult{}, lastErr
}

// extractCards routes the document to the site's extractor. A site
// with no registered extractor yields zero cards rather than failing
// the attempt; structural extractor errors propagate as PARSE_FAIL.
func (w *Worker) extractCards(site jobs.SourceSite, result jobs.FetchResult, log *zap.Logger) ([]jobs.ListingCard, error) {
	extractor, err := w.extractors.ForSite(site.Name)
	if err != nil {
		log.Warn("no extractor registered for site", zap.Error(err))
		return nil, nil
	}
	cards, err := extractor.Extract(result.Body, result.URL)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// processCards runs each card through resolve-then-record. One bad
// card never stops the rest.
func (w *Worker) processCards(ctx context.Context, site jobs.SourceSite, attempt jobs.CrawlAttempt, cards []jobs.ListingCard, log *zap.Logger) int {
	processed := 0
	for _, card := range cards {
		if err := w.processCard(ctx, site, attempt, card); err != nil {
			log.Warn("card processing failed",
				zap.String("raw_title", card.RawTitle),
				zap.Error(err),
			)
			metrics.ObserveRecordSkipped(site.Name)
			continue
		}
		processed++
		// Polite inter-card delay.
		_ = w.sleeper.Sleep(ctx, time.Duration(site.CrawlDelaySeconds)*200*time.Millisecond)
	}
	return processed
}

func (w *Worker) processCard(ctx context.Context, site jobs.SourceSite, attempt jobs.CrawlAttempt, card jobs.ListingCard) error {
	job, err := w.resolver.Resolve(ctx, card.RawCompany, card.RawTitle, card.RawLocation)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	outcome := "existing"
	if job.FirstSeenAt.Equal(job.LastSeenAt) {
		outcome = "new"
	}
	metrics.ObserveResolution(outcome)

	if _, err := w.recorder.Record(ctx, job, site, attempt, card.ListingURL, card.RawTitle, card.SalaryText); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	metrics.ObserveObservation(site.Name)

	attached, err := w.skills.ExtractAndAttach(ctx, job, card.RawTitle)
	if err != nil {
		return fmt.Errorf("skills: %w", err)
	}
	metrics.ObserveSkillsAttached(len(attached))
	return nil
}
