package jobs

import (
	"context"
	"time"
)

// Store is the persistence boundary for the whole engine. Relations are
// expressed as id fields resolved via explicit lookups; uniqueness
// constraints at this layer are the true source of mutual exclusion
// under concurrent writers.
type Store interface {
	// RunInTx executes fn inside one atomic unit of work. The Store
	// passed to fn sees uncommitted writes; any error rolls back all of
	// them.
	RunInTx(ctx context.Context, fn func(Store) error) error

	// Companies and aliases.
	CompanyByID(ctx context.Context, id int64) (Company, error)
	CompanyByNormalizedName(ctx context.Context, name string) (Company, error)
	CreateCompany(ctx context.Context, c Company) (Company, error)
	// AliasTarget resolves an alias to the canonical normalized company
	// name, or ErrNotFound.
	AliasTarget(ctx context.Context, alias string) (string, error)
	CreateCompanyAlias(ctx context.Context, companyID int64, alias string) error

	// Jobs.
	JobByID(ctx context.Context, id int64) (Job, error)
	JobByFingerprint(ctx context.Context, fingerprint string) (Job, error)
	CreateJob(ctx context.Context, j Job) (Job, error)
	// TouchJobLastSeen advances LastSeenAt monotonically; an earlier
	// seenAt is a no-op, never a regression.
	TouchJobLastSeen(ctx context.Context, id int64, seenAt time.Time) error
	JobsLastSeenSince(ctx context.Context, since time.Time) ([]Job, error)

	// Skills.
	SkillByName(ctx context.Context, name string) (Skill, error)
	CreateSkill(ctx context.Context, name string) (Skill, error)
	AttachSkill(ctx context.Context, jobID, skillID int64) error
	SkillsForJob(ctx context.Context, jobID int64) ([]Skill, error)

	// Source sites and targets.
	SourceSiteByID(ctx context.Context, id int64) (SourceSite, error)
	SourceSiteByName(ctx context.Context, name string) (SourceSite, error)
	CreateSourceSite(ctx context.Context, s SourceSite) (SourceSite, error)
	CreateCrawlTarget(ctx context.Context, t CrawlTarget) (CrawlTarget, error)
	ActiveCrawlTargets(ctx context.Context) ([]CrawlTarget, error)

	// Crawl attempts.
	CreateCrawlAttempt(ctx context.Context, a CrawlAttempt) (CrawlAttempt, error)
	CompleteCrawlAttempt(ctx context.Context, id int64, status CrawlStatus, httpCode *int, errorMessage string, jobsFound int, finishedAt time.Time) error

	// Job sources and observations.
	JobSourceByURL(ctx context.Context, sourceURL string) (JobSource, error)
	CreateJobSource(ctx context.Context, s JobSource) (JobSource, error)
	TouchJobSourceLastSeen(ctx context.Context, id int64, seenAt time.Time) error
	JobSourcesForJob(ctx context.Context, jobID int64) ([]JobSource, error)
	AppendObservation(ctx context.Context, o JobObservation) (JobObservation, error)
	// LatestObservationAt returns the newest ObservedAt for one source,
	// or ErrNotFound when the source has no observations yet.
	LatestObservationAt(ctx context.Context, jobSourceID int64) (time.Time, error)
	// ObservationsForJob returns the joined timeline across all of the
	// job's sources, most recent first.
	ObservationsForJob(ctx context.Context, jobID int64) ([]ObservationEvent, error)
}

// Clock returns the current time (injectable for testing).
type Clock interface {
	Now() time.Time
}

// Fetcher retrieves one page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// FetchResult is the outcome of a successful fetch.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Extractor turns one fetched document into raw listing cards. A page
// with no matching content returns an empty slice and nil error;
// structural breakage returns an error wrapping extract.ErrStructure.
type Extractor interface {
	Extract(doc []byte, baseURL string) ([]ListingCard, error)
}
