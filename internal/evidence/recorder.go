// Package evidence appends the immutable observation trail behind every
// resolved job.
package evidence

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/jobs"
)

// maxRaceRetries bounds the lost-the-race fallback on source_url. A
// retry begins with a URL lookup, so one retry suffices after a lost
// insert.
const maxRaceRetries = 2

// Recorder persists one sighting per call: a resolved-or-created
// JobSource plus exactly one appended JobObservation.
type Recorder struct {
	store  jobs.Store
	clock  jobs.Clock
	logger *zap.Logger
}

// New constructs a Recorder.
func New(store jobs.Store, clock jobs.Clock, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, clock: clock, logger: logger}
}

// Record registers one confirmed sighting of a listing. The source row
// is resolved by URL (one listing page maps to exactly one JobSource);
// the observation append is unconditional: there is no update path and
// no deduplication against prior observations, because sighting
// frequency is itself signal. Both steps run in one unit of work; a
// lost uniqueness race on the URL is retried via lookup in a fresh
// transaction.
func (r *Recorder) Record(ctx context.Context, job jobs.Job, site jobs.SourceSite, attempt jobs.CrawlAttempt, sourceURL, rawTitle, salaryText string) (jobs.JobObservation, error) {
	var lastErr error
	for i := 0; i < maxRaceRetries; i++ {
		observation, err := r.recordOnce(ctx, job, site, attempt, sourceURL, rawTitle, salaryText)
		if err == nil {
			r.logger.Debug("observation recorded",
				zap.Int64("job_id", job.ID),
				zap.String("source_url", sourceURL),
				zap.Time("observed_at", observation.ObservedAt),
			)
			return observation, nil
		}
		if !errors.Is(err, jobs.ErrDuplicate) {
			return jobs.JobObservation{}, err
		}
		lastErr = err
		r.logger.Debug("lost source race, retrying via lookup", zap.String("source_url", sourceURL))
	}
	return jobs.JobObservation{}, fmt.Errorf("record %s: %w", sourceURL, lastErr)
}

func (r *Recorder) recordOnce(ctx context.Context, job jobs.Job, site jobs.SourceSite, attempt jobs.CrawlAttempt, sourceURL, rawTitle, salaryText string) (jobs.JobObservation, error) {
	var observation jobs.JobObservation
	err := r.store.RunInTx(ctx, func(tx jobs.Store) error {
		source, err := r.resolveSource(ctx, tx, job, site, sourceURL, salaryText)
		if err != nil {
			return err
		}

		observation, err = tx.AppendObservation(ctx, jobs.JobObservation{
			JobSourceID:    source.ID,
			CrawlAttemptID: attempt.ID,
			ObservedAt:     r.clock.Now(),
			RawTitle:       rawTitle,
		})
		if err != nil {
			return fmt.Errorf("append observation: %w", err)
		}
		return nil
	})
	if err != nil {
		return jobs.JobObservation{}, err
	}
	return observation, nil
}

func (r *Recorder) resolveSource(ctx context.Context, tx jobs.Store, job jobs.Job, site jobs.SourceSite, sourceURL, salaryText string) (jobs.JobSource, error) {
	source, err := tx.JobSourceByURL(ctx, sourceURL)
	switch {
	case err == nil:
		if err := tx.TouchJobSourceLastSeen(ctx, source.ID, r.clock.Now()); err != nil {
			return jobs.JobSource{}, fmt.Errorf("touch source last seen: %w", err)
		}
		return source, nil
	case errors.Is(err, jobs.ErrNotFound):
	default:
		return jobs.JobSource{}, fmt.Errorf("lookup source: %w", err)
	}

	now := r.clock.Now()
	created, err := tx.CreateJobSource(ctx, jobs.JobSource{
		JobID:        job.ID,
		SourceSiteID: site.ID,
		SourceURL:    sourceURL,
		SalaryText:   salaryText,
		FirstSeenAt:  now,
		LastSeenAt:   now,
		CreatedAt:    now,
	})
	if err != nil {
		// Duplicate bubbles up so the caller can rerun the lookup in a
		// clean transaction.
		return jobs.JobSource{}, fmt.Errorf("create source: %w", err)
	}
	r.logger.Info("new job source discovered", zap.String("source_url", sourceURL))
	return created, nil
}
