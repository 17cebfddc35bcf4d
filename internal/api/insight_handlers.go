package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/jobs"
)

// candidateWindow bounds the pool of jobs considered for active-state
// views. Anything unseen for this long cannot be ACTIVE anyway.
const candidateWindow = 30 * 24 * time.Hour

// jobSummary is the flat API shape for one job. All derived fields are
// computed per request, never read from a stored flag.
type jobSummary struct {
	JobID             int64     `json:"jobId"`
	Company           string    `json:"company"`
	Role              string    `json:"role"`
	Location          string    `json:"location"`
	LifecycleState    string    `json:"lifecycleState"`
	DaysSinceLastSeen int       `json:"daysSinceLastSeen"`
	SourceCount       int       `json:"sourceCount"`
	FirstSeenAt       time.Time `json:"firstSeenAt"`
	LastSeenAt        time.Time `json:"lastSeenAt"`
	Skills            []string  `json:"skills"`
}

// skillFrequencyEntry reports demand for one skill across active jobs.
type skillFrequencyEntry struct {
	SkillName       string  `json:"skillName"`
	JobCount        int     `json:"jobCount"`
	PercentageShare float64 `json:"percentageShare"`
}

// timelineEvent is one entry in a job's observation history.
type timelineEvent struct {
	ObservedAt  time.Time `json:"observedAt"`
	SourceSite  string    `json:"sourceSite"`
	SourceURL   string    `json:"sourceUrl"`
	RawTitle    string    `json:"rawTitle"`
	CrawlStatus string    `json:"crawlStatus"`
}

// newJobs handles GET /api/v1/insights/jobs/new: jobs with an
// observation inside the last 24 hours, most recently seen first.
// "New" means newly observed, which may be a known job confirmed
// again.
func (s *Server) newJobs(w http.ResponseWriter, r *http.Request) {
	since := s.clock.Now().Add(-24 * time.Hour)
	recent, err := s.store.JobsLastSeenSince(r.Context(), since)
	if err != nil {
		s.logger.Error("listing recent jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	summaries, err := s.toSummaries(r.Context(), recent)
	if err != nil {
		s.logger.Error("building job summaries failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// activeJobs handles GET /api/v1/insights/jobs/active: jobs whose
// derived lifecycle state is ACTIVE right now.
func (s *Server) activeJobs(w http.ResponseWriter, r *http.Request) {
	active, err := s.activeJobEntities(r.Context())
	if err != nil {
		s.logger.Error("listing active jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	summaries, err := s.toSummaries(r.Context(), active)
	if err != nil {
		s.logger.Error("building job summaries failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// skillFrequency handles GET /api/v1/insights/skills/frequency. Only
// ACTIVE jobs contribute: an inactive job's skills do not represent
// current demand. Percentage share is rounded to one decimal.
func (s *Server) skillFrequency(w http.ResponseWriter, r *http.Request) {
	active, err := s.activeJobEntities(r.Context())
	if err != nil {
		s.logger.Error("listing active jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(active) == 0 {
		writeJSON(w, http.StatusOK, []skillFrequencyEntry{})
		return
	}

	counts := make(map[string]int)
	for _, job := range active {
		skills, err := s.store.SkillsForJob(r.Context(), job.ID)
		if err != nil {
			s.logger.Error("loading job skills failed", zap.Int64("job_id", job.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		for _, skill := range skills {
			counts[skill.Name]++
		}
	}

	out := make([]skillFrequencyEntry, 0, len(counts))
	for name, count := range counts {
		share := math.Round(float64(count)*1000/float64(len(active))) / 10
		out = append(out, skillFrequencyEntry{
			SkillName:       name,
			JobCount:        count,
			PercentageShare: share,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JobCount != out[j].JobCount {
			return out[i].JobCount > out[j].JobCount
		}
		return out[i].SkillName < out[j].SkillName
	})
	writeJSON(w, http.StatusOK, out)
}

// jobTimeline handles GET /api/v1/insights/jobs/{id}/timeline: the
// full observation history for one job, most recent first. A job with
// zero observations is 404, there is no evidence to show.
func (s *Server) jobTimeline(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	events, err := s.store.ObservationsForJob(r.Context(), id)
	if err != nil {
		s.logger.Error("loading timeline failed", zap.Int64("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "no observations for job")
		return
	}

	out := make([]timelineEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, timelineEvent{
			ObservedAt:  ev.ObservedAt,
			SourceSite:  ev.SiteName,
			SourceURL:   ev.SourceURL,
			RawTitle:    ev.RawTitle,
			CrawlStatus: string(ev.CrawlStatus),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// activeJobEntities filters recent candidates down to ACTIVE state.
// The candidate pool is bounded by the last 30 days so the per-job
// state computation stays cheap.
func (s *Server) activeJobEntities(ctx context.Context) ([]jobs.Job, error) {
	candidates, err := s.store.JobsLastSeenSince(ctx, s.clock.Now().Add(-candidateWindow))
	if err != nil {
		return nil, err
	}
	var active []jobs.Job
	for _, job := range candidates {
		state, err := s.lifecycle.ComputeState(ctx, job)
		if err != nil {
			return nil, err
		}
		if state == jobs.StateActive {
			active = append(active, job)
		}
	}
	return active, nil
}

func (s *Server) toSummaries(ctx context.Context, in []jobs.Job) ([]jobSummary, error) {
	out := make([]jobSummary, 0, len(in))
	for _, job := range in {
		summary, err := s.toSummary(ctx, job)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})
	return out, nil
}

func (s *Server) toSummary(ctx context.Context, job jobs.Job) (jobSummary, error) {
	state, err := s.lifecycle.ComputeState(ctx, job)
	if err != nil {
		return jobSummary{}, err
	}

	days, err := s.lifecycle.DaysSinceLastSeen(ctx, job)
	if errors.Is(err, jobs.ErrNotFound) {
		// No observations yet; fall back to the job's own timestamp.
		days = int(s.clock.Now().Sub(job.LastSeenAt).Hours() / 24)
	} else if err != nil {
		return jobSummary{}, err
	}

	sourceCount, err := s.lifecycle.ConfirmedSourceCount(ctx, job)
	if err != nil {
		return jobSummary{}, err
	}

	skills, err := s.store.SkillsForJob(ctx, job.ID)
	if err != nil {
		return jobSummary{}, err
	}
	skillNames := make([]string, 0, len(skills))
	for _, skill := range skills {
		skillNames = append(skillNames, skill.Name)
	}

	company, err := s.store.CompanyByID(ctx, job.CompanyID)
	if err != nil {
		return jobSummary{}, err
	}

	return jobSummary{
		JobID:             job.ID,
		Company:           company.DisplayName,
		Role:              job.NormalizedRole,
		Location:          job.NormalizedLocation,
		LifecycleState:    string(state),
		DaysSinceLastSeen: days,
		SourceCount:       sourceCount,
		FirstSeenAt:       job.FirstSeenAt,
		LastSeenAt:        job.LastSeenAt,
		Skills:            skillNames,
	}, nil
}
