package evidence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/jobs"
	"github.com/jobsignal/engine/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	recorder *Recorder
	store    *memory.Store
	clock    *fakeClock
	job      jobs.Job
	site     jobs.SourceSite
	attempt  jobs.CrawlAttempt
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	company, err := store.CreateCompany(ctx, jobs.Company{
		NormalizedName: "acme",
		DisplayName:    "Acme Technologies",
		CreatedAt:      clock.Now(),
	})
	require.NoError(t, err)

	job, err := store.CreateJob(ctx, jobs.Job{
		CompanyID:          company.ID,
		NormalizedRole:     "BACKEND",
		NormalizedLocation: "BANGALORE",
		Fingerprint:        "deadbeef",
		FirstSeenAt:        clock.Now(),
		LastSeenAt:         clock.Now(),
		CreatedAt:          clock.Now(),
	})
	require.NoError(t, err)

	site, err := store.CreateSourceSite(ctx, jobs.SourceSite{
		Name:                  "freshersworld",
		InactiveThresholdDays: 7,
		RepostThresholdDays:   30,
		FetchMode:             jobs.FetchModeHTTP,
		CrawlEnabled:          true,
		CreatedAt:             clock.Now(),
	})
	require.NoError(t, err)

	target, err := store.CreateCrawlTarget(ctx, jobs.CrawlTarget{
		SourceSiteID: site.ID,
		URL:          "https://www.freshersworld.com/jobs",
		Active:       true,
	})
	require.NoError(t, err)

	attempt, err := store.CreateCrawlAttempt(ctx, jobs.CrawlAttempt{
		CrawlTargetID: target.ID,
		Status:        jobs.StatusHTTPFail,
		StartedAt:     clock.Now(),
	})
	require.NoError(t, err)

	return fixture{
		recorder: New(store, clock, zap.NewNop()),
		store:    store,
		clock:    clock,
		job:      job,
		site:     site,
		attempt:  attempt,
	}
}

func TestRecordCreatesSourceAndObservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	obs, err := f.recorder.Record(ctx, f.job, f.site, f.attempt, "https://example.com/jobs/1", "Java Developer", "3-5 LPA")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), obs.ObservedAt)
	assert.Equal(t, f.attempt.ID, obs.CrawlAttemptID)
	assert.Equal(t, "Java Developer", obs.RawTitle)

	src, err := f.store.JobSourceByURL(ctx, "https://example.com/jobs/1")
	require.NoError(t, err)
	assert.Equal(t, f.job.ID, src.JobID)
	assert.Equal(t, f.site.ID, src.SourceSiteID)
	assert.Equal(t, "3-5 LPA", src.SalaryText)
	assert.Equal(t, src.ID, obs.JobSourceID)
}

// Observations are append-only evidence: every call adds a row, even
// for an identical sighting moments later.
func TestRecordNeverDeduplicates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	const url = "https://example.com/jobs/2"

	const n = 5
	for i := 0; i < n; i++ {
		_, err := f.recorder.Record(ctx, f.job, f.site, f.attempt, url, "Java Developer", "")
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
	}

	events, err := f.store.ObservationsForJob(ctx, f.job.ID)
	require.NoError(t, err)
	assert.Len(t, events, n)
}

func TestRecordTouchesExistingSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	const url = "https://example.com/jobs/3"

	_, err := f.recorder.Record(ctx, f.job, f.site, f.attempt, url, "Java Developer", "4 LPA")
	require.NoError(t, err)
	first, err := f.store.JobSourceByURL(ctx, url)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	_, err = f.recorder.Record(ctx, f.job, f.site, f.attempt, url, "Java Developer", "ignored later")
	require.NoError(t, err)

	second, err := f.store.JobSourceByURL(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one URL maps to one source row")
	assert.Equal(t, first.FirstSeenAt, second.FirstSeenAt)
	assert.Equal(t, f.clock.Now(), second.LastSeenAt)
	assert.Equal(t, "4 LPA", second.SalaryText, "salary captured at discovery is not rewritten")
}

func TestRecordNeverLowersSourceLastSeen(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	const url = "https://example.com/jobs/4"

	_, err := f.recorder.Record(ctx, f.job, f.site, f.attempt, url, "Java Developer", "")
	require.NoError(t, err)
	before, err := f.store.JobSourceByURL(ctx, url)
	require.NoError(t, err)

	f.clock.Advance(-time.Hour)
	_, err = f.recorder.Record(ctx, f.job, f.site, f.attempt, url, "Java Developer", "")
	require.NoError(t, err)

	after, err := f.store.JobSourceByURL(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, before.LastSeenAt, after.LastSeenAt)

	events, err := f.store.ObservationsForJob(ctx, f.job.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2, "the stale sighting is still appended")
}

func TestConcurrentRecordsSameURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	const url = "https://example.com/jobs/5"

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.recorder.Record(ctx, f.job, f.site, f.attempt, url, "Java Developer", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	src, err := f.store.JobSourceByURL(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, f.job.ID, src.JobID)

	events, err := f.store.ObservationsForJob(ctx, f.job.ID)
	require.NoError(t, err)
	assert.Len(t, events, workers)
}
