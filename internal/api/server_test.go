package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/jobs"
	"github.com/jobsignal/engine/internal/lifecycle"
	"github.com/jobsignal/engine/internal/metrics"
	"github.com/jobsignal/engine/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type apiFixture struct {
	ts    *httptest.Server
	store *memory.Store
	clock *fakeClock
	site  jobs.SourceSite
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	metrics.Init()
	ctx := context.Background()

	store := memory.New()
	clock := &fakeClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}

	site, err := store.CreateSourceSite(ctx, jobs.SourceSite{
		Name:                  "freshersworld",
		InactiveThresholdDays: 7,
		RepostThresholdDays:   30,
		CrawlEnabled:          true,
		FetchMode:             jobs.FetchModeHTTP,
		CreatedAt:             clock.Now(),
	})
	require.NoError(t, err)

	engine := lifecycle.New(store, clock, zap.NewNop())
	server := NewServer(store, engine, clock, zap.NewNop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{ts: ts, store: store, clock: clock, site: site}
}

// seedJob creates a company, job, source, and one observation observed
// hoursAgo hours before the fixture clock, plus optional skills.
func (f *apiFixture) seedJob(t *testing.T, name string, hoursAgo int, skills ...string) jobs.Job {
	t.Helper()
	ctx := context.Background()
	seen := f.clock.Now().Add(-time.Duration(hoursAgo) * time.Hour)

	company, err := f.store.CreateCompany(ctx, jobs.Company{
		NormalizedName: name,
		DisplayName:    name + " Ltd",
		CreatedAt:      seen,
	})
	require.NoError(t, err)

	job, err := f.store.CreateJob(ctx, jobs.Job{
		CompanyID:          company.ID,
		NormalizedRole:     "BACKEND",
		NormalizedLocation: "PUNE",
		Fingerprint:        "fp-" + name,
		FirstSeenAt:        seen,
		LastSeenAt:         seen,
		CreatedAt:          seen,
	})
	require.NoError(t, err)

	target, err := f.store.CreateCrawlTarget(ctx, jobs.CrawlTarget{
		SourceSiteID: f.site.ID,
		URL:          "https://fw.example/jobs?" + name,
		Active:       true,
	})
	require.NoError(t, err)
	attempt, err := f.store.CreateCrawlAttempt(ctx, jobs.CrawlAttempt{
		CrawlTargetID: target.ID,
		Status:        jobs.StatusSuccess,
		StartedAt:     seen,
	})
	require.NoError(t, err)

	source, err := f.store.CreateJobSource(ctx, jobs.JobSource{
		JobID:        job.ID,
		SourceSiteID: f.site.ID,
		SourceURL:    "https://fw.example/view/" + name,
		FirstSeenAt:  seen,
		LastSeenAt:   seen,
		CreatedAt:    seen,
	})
	require.NoError(t, err)
	_, err = f.store.AppendObservation(ctx, jobs.JobObservation{
		JobSourceID:    source.ID,
		CrawlAttemptID: attempt.ID,
		ObservedAt:     seen,
		RawTitle:       "Backend Engineer",
	})
	require.NoError(t, err)

	for _, skillName := range skills {
		skill, err := f.store.CreateSkill(ctx, skillName)
		if errors.Is(err, jobs.ErrDuplicate) {
			skill, err = f.store.SkillByName(ctx, skillName)
		}
		require.NoError(t, err)
		require.NoError(t, f.store.AttachSkill(ctx, job.ID, skill.ID))
	}
	return job
}

func (f *apiFixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz", nil))
	assert.Equal(t, http.StatusOK, f.get(t, "/readyz", nil))
	assert.Equal(t, http.StatusOK, f.get(t, "/metrics", nil))
}

func TestNewJobs(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	fresh := f.seedJob(t, "acme", 2, "java")
	f.seedJob(t, "stale", 72)

	var got []jobSummary
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/insights/jobs/new", &got))
	require.Len(t, got, 1, "only jobs observed in the last 24 hours")

	assert.Equal(t, fresh.ID, got[0].JobID)
	assert.Equal(t, "acme Ltd", got[0].Company)
	assert.Equal(t, "BACKEND", got[0].Role)
	assert.Equal(t, "ACTIVE", got[0].LifecycleState)
	assert.Equal(t, 0, got[0].DaysSinceLastSeen)
	assert.Equal(t, 1, got[0].SourceCount)
	assert.Equal(t, []string{"java"}, got[0].Skills)
}

func TestActiveJobs(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	active := f.seedJob(t, "acme", 48)
	f.seedJob(t, "dormant", 10*24) // past the 7-day inactive threshold

	var got []jobSummary
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/insights/jobs/active", &got))
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].JobID)
	assert.Equal(t, "ACTIVE", got[0].LifecycleState)
}

func TestSkillFrequency(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.seedJob(t, "one", 2, "java", "spring boot")
	f.seedJob(t, "two", 4, "java")
	f.seedJob(t, "gone", 12*24, "kafka") // inactive, must not contribute

	var got []skillFrequencyEntry
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/insights/skills/frequency", &got))
	require.Len(t, got, 2)

	assert.Equal(t, skillFrequencyEntry{SkillName: "java", JobCount: 2, PercentageShare: 100.0}, got[0])
	assert.Equal(t, skillFrequencyEntry{SkillName: "spring boot", JobCount: 1, PercentageShare: 50.0}, got[1])
}

func TestSkillFrequencyNoActiveJobs(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	var got []skillFrequencyEntry
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/insights/skills/frequency", &got))
	assert.Empty(t, got)
}

func TestJobTimeline(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	job := f.seedJob(t, "acme", 2)

	var got []timelineEvent
	path := fmt.Sprintf("/api/v1/insights/jobs/%d/timeline", job.ID)
	require.Equal(t, http.StatusOK, f.get(t, path, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "freshersworld", got[0].SourceSite)
	assert.Equal(t, "Backend Engineer", got[0].RawTitle)
	assert.Equal(t, "SUCCESS", got[0].CrawlStatus)
}

func TestJobTimelineNotFound(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/insights/jobs/9999/timeline", nil))
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/insights/jobs/abc/timeline", nil))
}
