// Package resolve turns raw sightings into deduplicated logical jobs.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/fingerprint"
	"github.com/jobsignal/engine/internal/jobs"
	"github.com/jobsignal/engine/internal/normalize"
)

// maxRaceRetries bounds the lost-the-race fallback loop. Each retry
// begins with a fingerprint lookup, so one retry suffices after any
// single lost insert; the extra attempt covers a company-row race
// followed by a job-row race.
const maxRaceRetries = 3

// Resolver owns the at-most-one-job-per-fingerprint guarantee.
type Resolver struct {
	store     jobs.Store
	companies *normalize.CompanyNormalizer
	clock     jobs.Clock
	logger    *zap.Logger
}

// New constructs a Resolver.
func New(store jobs.Store, clock jobs.Clock, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:     store,
		companies: normalize.NewCompanyNormalizer(store),
		clock:     clock,
		logger:    logger,
	}
}

// Resolve normalizes the raw triple, computes its fingerprint, and
// returns the logical job owning it, creating the job (and its company)
// when the fingerprint is new. Each attempt runs as one atomic unit of
// work; a crash partway leaves no company without its job. Losing a
// uniqueness race is not an error: the next attempt finds the winner's
// row and advances it.
func (r *Resolver) Resolve(ctx context.Context, rawCompany, rawTitle, rawLocation string) (jobs.Job, error) {
	companyToken, err := r.companies.Normalize(ctx, rawCompany)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("normalize company: %w", err)
	}
	roleToken := normalize.Role(rawTitle)
	locationToken := normalize.Location(rawLocation)
	fp := fingerprint.New(companyToken, roleToken, locationToken)

	for attempt := 0; attempt < maxRaceRetries; attempt++ {
		job, err := r.resolveOnce(ctx, fp, companyToken, rawCompany, roleToken, locationToken)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, jobs.ErrDuplicate) {
			return jobs.Job{}, err
		}
		r.logger.Debug("lost resolution race, retrying via lookup",
			zap.String("fingerprint", fp),
			zap.Int("attempt", attempt+1),
		)
	}
	return jobs.Job{}, fmt.Errorf("resolve fingerprint %s: lost %d consecutive races", fp, maxRaceRetries)
}

func (r *Resolver) resolveOnce(ctx context.Context, fp, companyToken, rawCompany, roleToken, locationToken string) (jobs.Job, error) {
	var resolved jobs.Job
	err := r.store.RunInTx(ctx, func(tx jobs.Store) error {
		existing, err := tx.JobByFingerprint(ctx, fp)
		switch {
		case err == nil:
			// Seen before: the only permitted mutation.
			now := r.clock.Now()
			if err := tx.TouchJobLastSeen(ctx, existing.ID, now); err != nil {
				return fmt.Errorf("touch job last seen: %w", err)
			}
			if now.After(existing.LastSeenAt) {
				existing.LastSeenAt = now
			}
			resolved = existing
			return nil
		case errors.Is(err, jobs.ErrNotFound):
		default:
			return fmt.Errorf("lookup job: %w", err)
		}

		company, err := r.resolveCompany(ctx, tx, companyToken, rawCompany)
		if err != nil {
			return err
		}

		now := r.clock.Now()
		created, err := tx.CreateJob(ctx, jobs.Job{
			CompanyID:          company.ID,
			NormalizedRole:     roleToken,
			NormalizedLocation: locationToken,
			Fingerprint:        fp,
			FirstSeenAt:        now,
			LastSeenAt:         now,
			CreatedAt:          now,
		})
		if err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		r.logger.Info("new job discovered",
			zap.String("company", companyToken),
			zap.String("role", roleToken),
			zap.String("location", locationToken),
		)
		resolved = created
		return nil
	})
	if err != nil {
		return jobs.Job{}, err
	}
	return resolved, nil
}

// resolveCompany reuses an existing company row so many jobs from the
// same employer never create duplicates. The display name is the raw
// human-readable string, fixed at creation.
func (r *Resolver) resolveCompany(ctx context.Context, tx jobs.Store, companyToken, rawCompany string) (jobs.Company, error) {
	company, err := tx.CompanyByNormalizedName(ctx, companyToken)
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, jobs.ErrNotFound) {
		return jobs.Company{}, fmt.Errorf("lookup company: %w", err)
	}

	created, err := tx.CreateCompany(ctx, jobs.Company{
		NormalizedName: companyToken,
		DisplayName:    strings.TrimSpace(rawCompany),
		CreatedAt:      r.clock.Now(),
	})
	if err != nil {
		return jobs.Company{}, fmt.Errorf("create company: %w", err)
	}
	r.logger.Info("new company discovered", zap.String("company", companyToken))
	return created, nil
}
