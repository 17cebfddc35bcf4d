// Package lifecycle derives a job's liveness from its observation
// history. Nothing here is ever persisted; every answer is recomputed
// from the store on demand.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/jobs"
)

// Engine computes lifecycle state for jobs.
type Engine struct {
	store  jobs.Store
	clock  jobs.Clock
	logger *zap.Logger
}

// New constructs an Engine.
func New(store jobs.Store, clock jobs.Clock, logger *zap.Logger) *Engine {
	return &Engine{store: store, clock: clock, logger: logger}
}

// ComputeState classifies a job from its newest observation across all
// sources. One fresh source is enough to call the job alive even when
// the others have gone stale, so the per-source maximum wins. The
// thresholds compared against are the minimum across every site the
// job is listed on, which is the conservative choice: the quickest to
// mark a job inactive and the quickest to suspect a reposted cycle.
func (e *Engine) ComputeState(ctx context.Context, job jobs.Job) (jobs.LifecycleState, error) {
	latest, sites, err := e.freshestObservation(ctx, job)
	if err != nil {
		return jobs.StateUnknown, err
	}
	if latest.IsZero() {
		return jobs.StateUnknown, nil
	}

	inactiveDays, repostDays := minThresholds(sites)
	days := daysBetween(latest, e.clock.Now())

	switch {
	case days <= inactiveDays:
		return jobs.StateActive, nil
	case days > repostDays:
		return jobs.StateNewCycle, nil
	default:
		return jobs.StateInactive, nil
	}
}

// DaysSinceLastSeen returns whole days since the job's newest
// observation, or an error wrapping jobs.ErrNotFound when there are no
// observations at all.
func (e *Engine) DaysSinceLastSeen(ctx context.Context, job jobs.Job) (int, error) {
	latest, _, err := e.freshestObservation(ctx, job)
	if err != nil {
		return 0, err
	}
	if latest.IsZero() {
		return 0, fmt.Errorf("job %d has no observations: %w", job.ID, jobs.ErrNotFound)
	}
	return daysBetween(latest, e.clock.Now()), nil
}

// ConfirmedSourceCount returns the number of distinct listing URLs
// confirming this job.
func (e *Engine) ConfirmedSourceCount(ctx context.Context, job jobs.Job) (int, error) {
	sources, err := e.store.JobSourcesForJob(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("sources for job %d: %w", job.ID, err)
	}
	return len(sources), nil
}

// freshestObservation walks every source of the job and returns the
// newest observation time plus the policy rows of every site the job
// is listed on, observed or not. A zero time means no observations
// exist.
func (e *Engine) freshestObservation(ctx context.Context, job jobs.Job) (time.Time, []jobs.SourceSite, error) {
	sources, err := e.store.JobSourcesForJob(ctx, job.ID)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("sources for job %d: %w", job.ID, err)
	}

	var latest time.Time
	var sites []jobs.SourceSite
	seenSites := make(map[int64]bool)
	for _, src := range sources {
		// Every source's site contributes its thresholds, observed or not.
		if !seenSites[src.SourceSiteID] {
			seenSites[src.SourceSiteID] = true
			site, err := e.store.SourceSiteByID(ctx, src.SourceSiteID)
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("site %d: %w", src.SourceSiteID, err)
			}
			sites = append(sites, site)
		}

		at, err := e.store.LatestObservationAt(ctx, src.ID)
		if errors.Is(err, jobs.ErrNotFound) {
			continue
		}
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("latest observation for source %d: %w", src.ID, err)
		}
		if at.After(latest) {
			latest = at
		}
	}
	return latest, sites, nil
}

func minThresholds(sites []jobs.SourceSite) (inactiveDays, repostDays int) {
	for i, site := range sites {
		if i == 0 || site.InactiveThresholdDays < inactiveDays {
			inactiveDays = site.InactiveThresholdDays
		}
		if i == 0 || site.RepostThresholdDays < repostDays {
			repostDays = site.RepostThresholdDays
		}
	}
	return inactiveDays, repostDays
}

func daysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
