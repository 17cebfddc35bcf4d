// Package memory provides an in-memory Store for development and
// engine-level tests. It mirrors the Postgres schema's uniqueness
// constraints and append-only observation semantics so the race
// fallback paths behave identically against either backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jobsignal/engine/internal/jobs"
)

// Store implements jobs.Store backed by process memory.
type Store struct {
	mu sync.Mutex
	st *state
	// tx marks a transactional view handed to RunInTx callbacks; such a
	// view operates on already-locked state.
	tx bool
}

type state struct {
	seq int64

	companies     map[int64]jobs.Company
	companyByName map[string]int64
	aliasByName   map[string]jobs.CompanyAlias

	jobRows          map[int64]jobs.Job
	jobByFingerprint map[string]int64

	skills      map[int64]jobs.Skill
	skillByName map[string]int64
	jobSkills   map[[2]int64]struct{}

	sites      map[int64]jobs.SourceSite
	siteByName map[string]int64
	targets    map[int64]jobs.CrawlTarget

	attempts map[int64]jobs.CrawlAttempt

	sources     map[int64]jobs.JobSource
	sourceByURL map[string]int64

	observations []jobs.JobObservation
}

// New constructs an empty Store.
func New() *Store {
	return &Store{st: newState()}
}

func newState() *state {
	return &state{
		companies:        make(map[int64]jobs.Company),
		companyByName:    make(map[string]int64),
		aliasByName:      make(map[string]jobs.CompanyAlias),
		jobRows:          make(map[int64]jobs.Job),
		jobByFingerprint: make(map[string]int64),
		skills:           make(map[int64]jobs.Skill),
		skillByName:      make(map[string]int64),
		jobSkills:        make(map[[2]int64]struct{}),
		sites:            make(map[int64]jobs.SourceSite),
		siteByName:       make(map[string]int64),
		targets:          make(map[int64]jobs.CrawlTarget),
		attempts:         make(map[int64]jobs.CrawlAttempt),
		sources:          make(map[int64]jobs.JobSource),
		sourceByURL:      make(map[string]int64),
	}
}

func (st *state) next() int64 {
	st.seq++
	return st.seq
}

// clone deep-copies the state for transaction rollback.
func (st *state) clone() *state {
	cp := &state{
		seq:              st.seq,
		companies:        copyMap(st.companies),
		companyByName:    copyMap(st.companyByName),
		aliasByName:      copyMap(st.aliasByName),
		jobRows:          copyMap(st.jobRows),
		jobByFingerprint: copyMap(st.jobByFingerprint),
		skills:           copyMap(st.skills),
		skillByName:      copyMap(st.skillByName),
		jobSkills:        copyMap(st.jobSkills),
		sites:            copyMap(st.sites),
		siteByName:       copyMap(st.siteByName),
		targets:          copyMap(st.targets),
		attempts:         copyMap(st.attempts),
		sources:          copyMap(st.sources),
		sourceByURL:      copyMap(st.sourceByURL),
	}
	cp.observations = append([]jobs.JobObservation(nil), st.observations...)
	return cp
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// withLock serializes access for the root store; a tx view already
// holds the lock.
func (s *Store) withLock(fn func(st *state) error) error {
	if s.tx {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// RunInTx runs fn against a transactional view. On error the entire
// state is restored, making the unit of work all-or-nothing.
func (s *Store) RunInTx(_ context.Context, fn func(jobs.Store) error) error {
	if s.tx {
		// Already inside a transaction; joins it.
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	view := &Store{st: s.st, tx: true}
	if err := fn(view); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// CompanyByID fetches one company row.
func (s *Store) CompanyByID(_ context.Context, id int64) (jobs.Company, error) {
	var out jobs.Company
	err := s.withLock(func(st *state) error {
		row, ok := st.companies[id]
		if !ok {
			return jobs.ErrNotFound
		}
		out = row
		return nil
	})
	return out, err
}

// CompanyByNormalizedName looks up a company by its canonical name.
func (s *Store) CompanyByNormalizedName(_ context.Context, name string) (jobs.Company, error) {
	var out jobs.Company
	err := s.withLock(func(st *state) error {
		id, ok := st.companyByName[name]
		if !ok {
			return jobs.ErrNotFound
		}
		out = st.companies[id]
		return nil
	})
	return out, err
}

// CreateCompany inserts a company, enforcing normalized-name uniqueness.
func (s *Store) CreateCompany(_ context.Context, c jobs.Company) (jobs.Company, error) {
	err := s.withLock(func(st *state) error {
		if _, exists := st.companyByName[c.NormalizedName]; exists {
			return jobs.ErrDuplicate
		}
		c.ID = st.next()
		st.companies[c.ID] = c
		st.companyByName[c.NormalizedName] = c.ID
		return nil
	})
	return c, err
}

// AliasTarget resolves an alias to its company's normalized name.
func (s *Store) AliasTarget(_ context.Context, alias string) (string, error) {
	var out string
	err := s.withLock(func(st *state) error {
		row, ok := st.aliasByName[alias]
		if !ok {
			return jobs.ErrNotFound
		}
		company, ok := st.companies[row.CompanyID]
		if !ok {
			return jobs.ErrNotFound
		}
		out = company.NormalizedName
		return nil
	})
	return out, err
}

// CreateCompanyAlias inserts an alias row pointing at a company.
func (s *Store) CreateCompanyAlias(_ context.Context, companyID int64, alias string) error {
	return s.withLock(func(st *state) error {
		if _, ok := st.companies[companyID]; !ok {
			return jobs.ErrNotFound
		}
		if _, exists := st.aliasByName[alias]; exists {
			return jobs.ErrDuplicate
		}
		st.aliasByName[alias] = jobs.CompanyAlias{ID: st.next(), CompanyID: companyID, Alias: alias}
		return nil
	})
}

// JobByID fetches one job row.
func (s *Store) JobByID(_ context.Context, id int64) (jobs.Job, error) {
	var out jobs.Job
	err := s.withLock(func(st *state) error {
		row, ok := st.jobRows[id]
		if !ok {
			return jobs.ErrNotFound
		}
		out = row
		return nil
	})
	return out, err
}

// JobByFingerprint fetches the job owning an identity key.
func (s *Store) JobByFingerprint(_ context.Context, fingerprint string) (jobs.Job, error) {
	var out jobs.Job
	err := s.withLock(func(st *state) error {
		id, ok := st.jobByFingerprint[fingerprint]
		if !ok {
			return jobs.ErrNotFound
		}
		out = st.jobRows[id]
		return nil
	})
	return out, err
}

// CreateJob inserts a job, enforcing fingerprint uniqueness.
func (s *Store) CreateJob(_ context.Context, j jobs.Job) (jobs.Job, error) {
	err := s.withLock(func(st *state) error {
		if _, exists := st.jobByFingerprint[j.Fingerprint]; exists {
			return jobs.ErrDuplicate
		}
		j.ID = st.next()
		st.jobRows[j.ID] = j
		st.jobByFingerprint[j.Fingerprint] = j.ID
		return nil
	})
	return j, err
}

// TouchJobLastSeen advances LastSeenAt; an older timestamp is ignored.
func (s *Store) TouchJobLastSeen(_ context.Context, id int64, seenAt time.Time) error {
	return s.withLock(func(st *state) error {
		row, ok := st.jobRows[id]
		if !ok {
			return jobs.ErrNotFound
		}
		if seenAt.After(row.LastSeenAt) {
			row.LastSeenAt = seenAt
			st.jobRows[id] = row
		}
		return nil
	})
}

// JobsLastSeenSince returns jobs seen after the cutoff, newest first.
func (s *Store) JobsLastSeenSince(_ context.Context, since time.Time) ([]jobs.Job, error) {
	var out []jobs.Job
	err := s.withLock(func(st *state) error {
		for _, row := range st.jobRows {
			if row.LastSeenAt.After(since) {
				out = append(out, row)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, err
}

// SkillByName fetches one skill row.
func (s *Store) SkillByName(_ context.Context, name string) (jobs.Skill, error) {
	var out jobs.Skill
	err := s.withLock(func(st *state) error {
		id, ok := st.skillByName[name]
		if !ok {
			return jobs.ErrNotFound
		}
		out = st.skills[id]
		return nil
	})
	return out, err
}

// CreateSkill inserts a skill, enforcing name uniqueness.
func (s *Store) CreateSkill(_ context.Context, name string) (jobs.Skill, error) {
	var out jobs.Skill
	err := s.withLock(func(st *state) error {
		if _, exists := st.skillByName[name]; exists {
			return jobs.ErrDuplicate
		}
		out = jobs.Skill{ID: st.next(), Name: name}
		st.skills[out.ID] = out
		st.skillByName[name] = out.ID
		return nil
	})
	return out, err
}

// AttachSkill links a skill to a job; the pair is unique.
func (s *Store) AttachSkill(_ context.Context, jobID, skillID int64) error {
	return s.withLock(func(st *state) error {
		key := [2]int64{jobID, skillID}
		if _, exists := st.jobSkills[key]; exists {
			return jobs.ErrDuplicate
		}
		st.jobSkills[key] = struct{}{}
		return nil
	})
}

// SkillsForJob lists skills attached to a job, sorted by name.
func (s *Store) SkillsForJob(_ context.Context, jobID int64) ([]jobs.Skill, error) {
	var out []jobs.Skill
	err := s.withLock(func(st *state) error {
		for key := range st.jobSkills {
			if key[0] == jobID {
				out = append(out, st.skills[key[1]])
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// SourceSiteByID fetches one site row.
func (s *Store) SourceSiteByID(_ context.Context, id int64) (jobs.SourceSite, error) {
	var out jobs.SourceSite
	err := s.withLock(func(st *state) error {
		row, ok := st.sites[id]
		if !ok {
			return jobs.ErrNotFound
		}
		out = row
		return nil
	})
	return out, err
}

// SourceSiteByName fetches one site row by its unique name.
func (s *Store) SourceSiteByName(_ context.Context, name string) (jobs.SourceSite, error) {
	var out jobs.SourceSite
	err := s.withLock(func(st *state) error {
		id, ok := st.siteByName[name]
		if !ok {
			return jobs.ErrNotFound
		}
		out = st.sites[id]
		return nil
	})
	return out, err
}

// CreateSourceSite inserts a site, enforcing name uniqueness.
func (s *Store) CreateSourceSite(_ context.Context, site jobs.SourceSite) (jobs.SourceSite, error) {
	err := s.withLock(func(st *state) error {
		if _, exists := st.siteByName[site.Name]; exists {
			return jobs.ErrDuplicate
		}
		site.ID = st.next()
		st.sites[site.ID] = site
		st.siteByName[site.Name] = site.ID
		return nil
	})
	return site, err
}

// CreateCrawlTarget inserts a target row.
func (s *Store) CreateCrawlTarget(_ context.Context, t jobs.CrawlTarget) (jobs.CrawlTarget, error) {
	err := s.withLock(func(st *state) error {
		if _, ok := st.sites[t.SourceSiteID]; !ok {
			return jobs.ErrNotFound
		}
		t.ID = st.next()
		st.targets[t.ID] = t
		return nil
	})
	return t, err
}

// ActiveCrawlTargets lists targets flagged active, in id order.
func (s *Store) ActiveCrawlTargets(_ context.Context) ([]jobs.CrawlTarget, error) {
	var out []jobs.CrawlTarget
	err := s.withLock(func(st *state) error {
		for _, t := range st.targets {
			if t.Active {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// CreateCrawlAttempt inserts an attempt row.
func (s *Store) CreateCrawlAttempt(_ context.Context, a jobs.CrawlAttempt) (jobs.CrawlAttempt, error) {
	err := s.withLock(func(st *state) error {
		a.ID = st.next()
		st.attempts[a.ID] = a
		return nil
	})
	return a, err
}

// CrawlAttemptByID fetches one attempt row.
func (s *Store) CrawlAttemptByID(_ context.Context, id int64) (jobs.CrawlAttempt, error) {
	var out jobs.CrawlAttempt
	err := s.withLock(func(st *state) error {
		row, ok := st.attempts[id]
		if !ok {
			return jobs.ErrNotFound
		}
		out = row
		return nil
	})
	return out, err
}

// CrawlAttemptsForTarget lists a target's attempts, oldest first.
func (s *Store) CrawlAttemptsForTarget(_ context.Context, targetID int64) ([]jobs.CrawlAttempt, error) {
	var out []jobs.CrawlAttempt
	err := s.withLock(func(st *state) error {
		for _, a := range st.attempts {
			if a.CrawlTargetID == targetID {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// CompleteCrawlAttempt applies the terminal transition to an attempt.
func (s *Store) CompleteCrawlAttempt(_ context.Context, id int64, status jobs.CrawlStatus, httpCode *int, errorMessage string, jobsFound int, finishedAt time.Time) error {
	return s.withLock(func(st *state) error {
		row, ok := st.attempts[id]
		if !ok {
			return jobs.ErrNotFound
		}
		row.Status = status
		row.HTTPCode = httpCode
		row.ErrorMessage = errorMessage
		row.JobsFoundCount = jobsFound
		row.FinishedAt = &finishedAt
		st.attempts[id] = row
		return nil
	})
}

// JobSourceByURL fetches the source owning a listing URL.
func (s *Store) JobSourceByURL(_ context.Context, sourceURL string) (jobs.JobSource, error) {
	var out jobs.JobSource
	err := s.withLock(func(st *state) error {
		id, ok := st.sourceByURL[sourceURL]
		if !ok {
			return jobs.ErrNotFound
		}
		out = st.sources[id]
		return nil
	})
	return out, err
}

// CreateJobSource inserts a source, enforcing URL uniqueness.
func (s *Store) CreateJobSource(_ context.Context, src jobs.JobSource) (jobs.JobSource, error) {
	err := s.withLock(func(st *state) error {
		if _, exists := st.sourceByURL[src.SourceURL]; exists {
			return jobs.ErrDuplicate
		}
		src.ID = st.next()
		st.sources[src.ID] = src
		st.sourceByURL[src.SourceURL] = src.ID
		return nil
	})
	return src, err
}

// TouchJobSourceLastSeen advances LastSeenAt; older timestamps are
// ignored.
func (s *Store) TouchJobSourceLastSeen(_ context.Context, id int64, seenAt time.Time) error {
	return s.withLock(func(st *state) error {
		row, ok := st.sources[id]
		if !ok {
			return jobs.ErrNotFound
		}
		if seenAt.After(row.LastSeenAt) {
			row.LastSeenAt = seenAt
			st.sources[id] = row
		}
		return nil
	})
}

// JobSourcesForJob lists all sources of a job, in id order.
func (s *Store) JobSourcesForJob(_ context.Context, jobID int64) ([]jobs.JobSource, error) {
	var out []jobs.JobSource
	err := s.withLock(func(st *state) error {
		for _, src := range st.sources {
			if src.JobID == jobID {
				out = append(out, src)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// AppendObservation appends one immutable observation row. There is no
// update or delete path for observations.
func (s *Store) AppendObservation(_ context.Context, o jobs.JobObservation) (jobs.JobObservation, error) {
	err := s.withLock(func(st *state) error {
		o.ID = st.next()
		st.observations = append(st.observations, o)
		return nil
	})
	return o, err
}

// LatestObservationAt returns the newest sighting of one source.
func (s *Store) LatestObservationAt(_ context.Context, jobSourceID int64) (time.Time, error) {
	var latest time.Time
	found := false
	err := s.withLock(func(st *state) error {
		for _, o := range st.observations {
			if o.JobSourceID == jobSourceID && o.ObservedAt.After(latest) {
				latest = o.ObservedAt
				found = true
			}
		}
		if !found {
			return jobs.ErrNotFound
		}
		return nil
	})
	return latest, err
}

// ObservationsForJob returns the joined timeline, most recent first.
func (s *Store) ObservationsForJob(_ context.Context, jobID int64) ([]jobs.ObservationEvent, error) {
	var out []jobs.ObservationEvent
	err := s.withLock(func(st *state) error {
		bySource := make(map[int64]jobs.JobSource)
		for _, src := range st.sources {
			if src.JobID == jobID {
				bySource[src.ID] = src
			}
		}
		for _, o := range st.observations {
			src, ok := bySource[o.JobSourceID]
			if !ok {
				continue
			}
			event := jobs.ObservationEvent{
				ObservedAt: o.ObservedAt,
				SourceURL:  src.SourceURL,
				RawTitle:   o.RawTitle,
			}
			if site, ok := st.sites[src.SourceSiteID]; ok {
				event.SiteName = site.Name
			}
			if attempt, ok := st.attempts[o.CrawlAttemptID]; ok {
				event.CrawlStatus = attempt.Status
			}
			out = append(out, event)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	return out, err
}
