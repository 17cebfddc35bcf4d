// Package jobs defines the core data model shared across subsystems.
package jobs

import "time"

// LifecycleState is derived from observation history, never persisted.
type LifecycleState string

// Lifecycle states computed by the lifecycle engine.
const (
	StateActive   LifecycleState = "ACTIVE"
	StateInactive LifecycleState = "INACTIVE"
	StateNewCycle LifecycleState = "NEW_CYCLE"
	StateUnknown  LifecycleState = "UNKNOWN"
)

// CrawlStatus is the terminal classification of one crawl attempt.
type CrawlStatus string

// Attempt outcomes persisted in the attempt ledger.
const (
	// StatusSuccess means the page loaded and extraction ran without error.
	// Zero extracted cards still counts as SUCCESS.
	StatusSuccess CrawlStatus = "SUCCESS"
	// StatusHTTPFail means the site was unreachable after all retries.
	// It carries no information about whether jobs exist.
	StatusHTTPFail CrawlStatus = "HTTP_FAIL"
	// StatusParseFail means the page loaded but the extractor could not
	// find its expected structure, signaling selector maintenance.
	StatusParseFail CrawlStatus = "PARSE_FAIL"
)

// FetchMode selects the fetch strategy for a source site.
type FetchMode string

// Fetch strategies.
const (
	FetchModeHTTP     FetchMode = "http"
	FetchModeHeadless FetchMode = "headless"
)

// Company is one hiring organization, keyed by its normalized name.
// DisplayName is fixed at creation; rows are never deleted.
type Company struct {
	ID             int64
	NormalizedName string
	DisplayName    string
	CreatedAt      time.Time
}

// CompanyAlias maps an alternate normalized spelling onto a Company.
type CompanyAlias struct {
	ID        int64
	CompanyID int64
	Alias     string
}

// Job is one logical opportunity, identified by its fingerprint.
// The only permitted mutation is advancing LastSeenAt.
type Job struct {
	ID                 int64
	CompanyID          int64
	NormalizedRole     string
	NormalizedLocation string
	Fingerprint        string
	FirstSeenAt        time.Time
	LastSeenAt         time.Time
	CreatedAt          time.Time
}

// Skill is one canonical lowercase skill name, created lazily.
type Skill struct {
	ID   int64
	Name string
}

// SourceSite carries per-platform crawl policy. These rows are
// configuration, editable without redeploying logic.
type SourceSite struct {
	ID                    int64
	Name                  string
	InactiveThresholdDays int
	RepostThresholdDays   int
	ReliabilityWeight     float64
	CrawlDelaySeconds     int
	MaxRetries            int
	CrawlEnabled          bool
	FetchMode             FetchMode
	CreatedAt             time.Time
}

// CrawlTarget is one URL to crawl, owned by a SourceSite.
type CrawlTarget struct {
	ID           int64
	SourceSiteID int64
	URL          string
	Active       bool
}

// CrawlAttempt records one invocation of a target. It is created
// pessimistically as HTTP_FAIL before the fetch and finalized once.
type CrawlAttempt struct {
	ID             int64
	CrawlTargetID  int64
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         CrawlStatus
	HTTPCode       *int
	ErrorMessage   string
	JobsFoundCount int
}

// JobSource is one distinct listing URL pointing at one Job.
// SalaryText is a claim made by this source, not part of job identity.
type JobSource struct {
	ID           int64
	JobID        int64
	SourceSiteID int64
	SourceURL    string
	SalaryText   string
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
	CreatedAt    time.Time
}

// JobObservation is one immutable sighting of a listing by an attempt.
// ObservedAt is caller-supplied, not insert time.
type JobObservation struct {
	ID             int64
	JobSourceID    int64
	CrawlAttemptID int64
	ObservedAt     time.Time
	RawTitle       string
}

// ListingCard is one raw job record handed back by a site extractor.
type ListingCard struct {
	RawTitle    string
	RawCompany  string
	RawLocation string
	ListingURL  string
	SalaryText  string
}

// ObservationEvent is the joined timeline view of one observation.
type ObservationEvent struct {
	ObservedAt  time.Time
	SiteName    string
	SourceURL   string
	RawTitle    string
	CrawlStatus CrawlStatus
}
