package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsignal/engine/internal/jobs"
)

func TestUniquenessConstraints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	_, err := s.CreateCompany(ctx, jobs.Company{NormalizedName: "acme", DisplayName: "Acme"})
	require.NoError(t, err)
	_, err = s.CreateCompany(ctx, jobs.Company{NormalizedName: "acme", DisplayName: "ACME Corp"})
	assert.ErrorIs(t, err, jobs.ErrDuplicate)

	_, err = s.CreateJob(ctx, jobs.Job{CompanyID: 1, Fingerprint: "fp-1"})
	require.NoError(t, err)
	_, err = s.CreateJob(ctx, jobs.Job{CompanyID: 1, Fingerprint: "fp-1"})
	assert.ErrorIs(t, err, jobs.ErrDuplicate)

	_, err = s.CreateJobSource(ctx, jobs.JobSource{JobID: 1, SourceURL: "https://example.com/j/1"})
	require.NoError(t, err)
	_, err = s.CreateJobSource(ctx, jobs.JobSource{JobID: 1, SourceURL: "https://example.com/j/1"})
	assert.ErrorIs(t, err, jobs.ErrDuplicate)
}

func TestTouchJobLastSeenMonotonic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	job, err := s.CreateJob(ctx, jobs.Job{Fingerprint: "fp", FirstSeenAt: now, LastSeenAt: now})
	require.NoError(t, err)

	require.NoError(t, s.TouchJobLastSeen(ctx, job.ID, now.Add(-time.Hour)))
	got, err := s.JobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, now, got.LastSeenAt, "older timestamp must not lower last seen")

	require.NoError(t, s.TouchJobLastSeen(ctx, job.ID, now.Add(time.Hour)))
	got, err = s.JobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), got.LastSeenAt)
}

func TestRunInTxRollsBackAllWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx jobs.Store) error {
		if _, err := tx.CreateCompany(ctx, jobs.Company{NormalizedName: "acme"}); err != nil {
			return err
		}
		if _, err := tx.CreateJob(ctx, jobs.Job{CompanyID: 1, Fingerprint: "fp"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.CompanyByNormalizedName(ctx, "acme")
	assert.ErrorIs(t, err, jobs.ErrNotFound, "company must not survive rollback")
	_, err = s.JobByFingerprint(ctx, "fp")
	assert.ErrorIs(t, err, jobs.ErrNotFound, "job must not survive rollback")
}

func TestObservationTimelineJoin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	site, err := s.CreateSourceSite(ctx, jobs.SourceSite{Name: "timesjobs", CrawlEnabled: true})
	require.NoError(t, err)
	target, err := s.CreateCrawlTarget(ctx, jobs.CrawlTarget{SourceSiteID: site.ID, URL: "https://t", Active: true})
	require.NoError(t, err)
	attempt, err := s.CreateCrawlAttempt(ctx, jobs.CrawlAttempt{CrawlTargetID: target.ID, StartedAt: base, Status: jobs.StatusSuccess})
	require.NoError(t, err)
	job, err := s.CreateJob(ctx, jobs.Job{Fingerprint: "fp", FirstSeenAt: base, LastSeenAt: base})
	require.NoError(t, err)
	src, err := s.CreateJobSource(ctx, jobs.JobSource{JobID: job.ID, SourceSiteID: site.ID, SourceURL: "https://t/1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = s.AppendObservation(ctx, jobs.JobObservation{
			JobSourceID:    src.ID,
			CrawlAttemptID: attempt.ID,
			ObservedAt:     base.Add(time.Duration(i) * time.Hour),
			RawTitle:       "Backend Engineer",
		})
		require.NoError(t, err)
	}

	events, err := s.ObservationsForJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[0].ObservedAt.After(events[1].ObservedAt), "most recent first")
	assert.Equal(t, "timesjobs", events[0].SiteName)
	assert.Equal(t, jobs.StatusSuccess, events[0].CrawlStatus)

	latest, err := s.LatestObservationAt(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, base.Add(2*time.Hour), latest)
}
