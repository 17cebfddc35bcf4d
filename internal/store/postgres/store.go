// Package postgres provides the pgx-backed Store. The unique indexes
// declared in Schema are the real enforcement of the engine's identity
// invariants; application code only reacts to their violations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobsignal/engine/internal/jobs"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgxpool.Pool shared by pgx.Tx and pgxmock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements jobs.Store on Postgres.
type Store struct {
	db   querier
	pool *pgxpool.Pool
}

// New connects a pool and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool-like handle
// (primarily for testing with pgxmock).
func NewWithPool(db querier) *Store {
	return &Store{db: db}
}

// Close releases pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates all tables and unique indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RunInTx wraps fn in one transaction; any error rolls everything back.
func (s *Store) RunInTx(ctx context.Context, fn func(jobs.Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Store{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// wrapErr maps driver errors onto the store sentinels.
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, jobs.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, jobs.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CompanyByID fetches one company row.
func (s *Store) CompanyByID(ctx context.Context, id int64) (jobs.Company, error) {
	var c jobs.Company
	err := s.db.QueryRow(ctx,
		`SELECT id, normalized_name, display_name, created_at FROM company WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.NormalizedName, &c.DisplayName, &c.CreatedAt)
	if err != nil {
		return jobs.Company{}, wrapErr("select company", err)
	}
	return c, nil
}

// CompanyByNormalizedName looks up a company by canonical name.
func (s *Store) CompanyByNormalizedName(ctx context.Context, name string) (jobs.Company, error) {
	var c jobs.Company
	err := s.db.QueryRow(ctx,
		`SELECT id, normalized_name, display_name, created_at FROM company WHERE normalized_name = $1`,
		name,
	).Scan(&c.ID, &c.NormalizedName, &c.DisplayName, &c.CreatedAt)
	if err != nil {
		return jobs.Company{}, wrapErr("select company", err)
	}
	return c, nil
}

// CreateCompany inserts a company row.
func (s *Store) CreateCompany(ctx context.Context, c jobs.Company) (jobs.Company, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO company (normalized_name, display_name, created_at) VALUES ($1, $2, $3) RETURNING id`,
		c.NormalizedName, c.DisplayName, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return jobs.Company{}, wrapErr("insert company", err)
	}
	return c, nil
}

// AliasTarget resolves an alias to its company's normalized name.
func (s *Store) AliasTarget(ctx context.Context, alias string) (string, error) {
	var name string
	err := s.db.QueryRow(ctx,
		`SELECT c.normalized_name FROM company_alias a JOIN company c ON c.id = a.company_id WHERE a.alias = $1`,
		alias,
	).Scan(&name)
	if err != nil {
		return "", wrapErr("select alias", err)
	}
	return name, nil
}

// CreateCompanyAlias inserts one alias row.
func (s *Store) CreateCompanyAlias(ctx context.Context, companyID int64, alias string) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO company_alias (company_id, alias) VALUES ($1, $2)`,
		companyID, alias,
	); err != nil {
		return wrapErr("insert alias", err)
	}
	return nil
}

const jobColumns = `id, company_id, normalized_role, normalized_location, fingerprint, first_seen_at, last_seen_at, created_at`

func scanJob(row pgx.Row) (jobs.Job, error) {
	var j jobs.Job
	err := row.Scan(&j.ID, &j.CompanyID, &j.NormalizedRole, &j.NormalizedLocation,
		&j.Fingerprint, &j.FirstSeenAt, &j.LastSeenAt, &j.CreatedAt)
	return j, err
}

// JobByID fetches one job row.
func (s *Store) JobByID(ctx context.Context, id int64) (jobs.Job, error) {
	j, err := scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM job WHERE id = $1`, id))
	if err != nil {
		return jobs.Job{}, wrapErr("select job", err)
	}
	return j, nil
}

// JobByFingerprint fetches the job owning an identity key.
func (s *Store) JobByFingerprint(ctx context.Context, fingerprint string) (jobs.Job, error) {
	j, err := scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM job WHERE fingerprint = $1`, fingerprint))
	if err != nil {
		return jobs.Job{}, wrapErr("select job by fingerprint", err)
	}
	return j, nil
}

// CreateJob inserts a job row; a fingerprint collision surfaces as
// jobs.ErrDuplicate for the resolver's lost-race fallback.
func (s *Store) CreateJob(ctx context.Context, j jobs.Job) (jobs.Job, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO job (company_id, normalized_role, normalized_location, fingerprint, first_seen_at, last_seen_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		j.CompanyID, j.NormalizedRole, j.NormalizedLocation, j.Fingerprint,
		j.FirstSeenAt, j.LastSeenAt, j.CreatedAt,
	).Scan(&j.ID)
	if err != nil {
		return jobs.Job{}, wrapErr("insert job", err)
	}
	return j, nil
}

// TouchJobLastSeen advances last_seen_at monotonically in SQL so a
// stale writer can never move it backward.
func (s *Store) TouchJobLastSeen(ctx context.Context, id int64, seenAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE job SET last_seen_at = GREATEST(last_seen_at, $2) WHERE id = $1`,
		id, seenAt,
	)
	if err != nil {
		return wrapErr("touch job", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch job %d: %w", id, jobs.ErrNotFound)
	}
	return nil
}

// JobsLastSeenSince returns jobs seen after the cutoff, newest first.
func (s *Store) JobsLastSeenSince(ctx context.Context, since time.Time) ([]jobs.Job, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM job WHERE last_seen_at > $1 ORDER BY last_seen_at DESC`,
		since,
	)
	if err != nil {
		return nil, wrapErr("select recent jobs", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, wrapErr("scan job", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate jobs", err)
	}
	return out, nil
}

// SkillByName fetches one skill row.
func (s *Store) SkillByName(ctx context.Context, name string) (jobs.Skill, error) {
	var sk jobs.Skill
	err := s.db.QueryRow(ctx, `SELECT id, name FROM skill WHERE name = $1`, name).Scan(&sk.ID, &sk.Name)
	if err != nil {
		return jobs.Skill{}, wrapErr("select skill", err)
	}
	return sk, nil
}

// CreateSkill inserts a skill row.
func (s *Store) CreateSkill(ctx context.Context, name string) (jobs.Skill, error) {
	sk := jobs.Skill{Name: name}
	err := s.db.QueryRow(ctx, `INSERT INTO skill (name) VALUES ($1) RETURNING id`, name).Scan(&sk.ID)
	if err != nil {
		return jobs.Skill{}, wrapErr("insert skill", err)
	}
	return sk, nil
}

// AttachSkill links a skill to a job; the composite key keeps the pair
// unique.
func (s *Store) AttachSkill(ctx context.Context, jobID, skillID int64) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO job_skill (job_id, skill_id) VALUES ($1, $2)`,
		jobID, skillID,
	); err != nil {
		return wrapErr("insert job skill", err)
	}
	return nil
}

// SkillsForJob lists skills attached to a job.
func (s *Store) SkillsForJob(ctx context.Context, jobID int64) ([]jobs.Skill, error) {
	rows, err := s.db.Query(ctx,
		`SELECT sk.id, sk.name FROM job_skill js JOIN skill sk ON sk.id = js.skill_id WHERE js.job_id = $1 ORDER BY sk.name`,
		jobID,
	)
	if err != nil {
		return nil, wrapErr("select job skills", err)
	}
	defer rows.Close()

	var out []jobs.Skill
	for rows.Next() {
		var sk jobs.Skill
		if err := rows.Scan(&sk.ID, &sk.Name); err != nil {
			return nil, wrapErr("scan skill", err)
		}
		out = append(out, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate skills", err)
	}
	return out, nil
}

const siteColumns = `id, name, inactive_threshold_days, repost_threshold_days, reliability_weight, crawl_delay_seconds, max_retries, crawl_enabled, fetch_mode, created_at`

func scanSite(row pgx.Row) (jobs.SourceSite, error) {
	var site jobs.SourceSite
	err := row.Scan(&site.ID, &site.Name, &site.InactiveThresholdDays, &site.RepostThresholdDays,
		&site.ReliabilityWeight, &site.CrawlDelaySeconds, &site.MaxRetries, &site.CrawlEnabled,
		&site.FetchMode, &site.CreatedAt)
	return site, err
}

// SourceSiteByID fetches one site row.
func (s *Store) SourceSiteByID(ctx context.Context, id int64) (jobs.SourceSite, error) {
	site, err := scanSite(s.db.QueryRow(ctx, `SELECT `+siteColumns+` FROM source_site WHERE id = $1`, id))
	if err != nil {
		return jobs.SourceSite{}, wrapErr("select site", err)
	}
	return site, nil
}

// SourceSiteByName fetches one site row by name.
func (s *Store) SourceSiteByName(ctx context.Context, name string) (jobs.SourceSite, error) {
	site, err := scanSite(s.db.QueryRow(ctx, `SELECT `+siteColumns+` FROM source_site WHERE name = $1`, name))
	if err != nil {
		return jobs.SourceSite{}, wrapErr("select site by name", err)
	}
	return site, nil
}

// CreateSourceSite inserts a site row.
func (s *Store) CreateSourceSite(ctx context.Context, site jobs.SourceSite) (jobs.SourceSite, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO source_site (name, inactive_threshold_days, repost_threshold_days, reliability_weight, crawl_delay_seconds, max_retries, crawl_enabled, fetch_mode, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		site.Name, site.InactiveThresholdDays, site.RepostThresholdDays, site.ReliabilityWeight,
		site.CrawlDelaySeconds, site.MaxRetries, site.CrawlEnabled, site.FetchMode, site.CreatedAt,
	).Scan(&site.ID)
	if err != nil {
		return jobs.SourceSite{}, wrapErr("insert site", err)
	}
	return site, nil
}

// CreateCrawlTarget inserts a target row.
func (s *Store) CreateCrawlTarget(ctx context.Context, t jobs.CrawlTarget) (jobs.CrawlTarget, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO crawl_target (source_site_id, url, active) VALUES ($1, $2, $3) RETURNING id`,
		t.SourceSiteID, t.URL, t.Active,
	).Scan(&t.ID)
	if err != nil {
		return jobs.CrawlTarget{}, wrapErr("insert target", err)
	}
	return t, nil
}

// ActiveCrawlTargets lists targets flagged active.
func (s *Store) ActiveCrawlTargets(ctx context.Context) ([]jobs.CrawlTarget, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, source_site_id, url, active FROM crawl_target WHERE active ORDER BY id`,
	)
	if err != nil {
		return nil, wrapErr("select targets", err)
	}
	defer rows.Close()

	var out []jobs.CrawlTarget
	for rows.Next() {
		var t jobs.CrawlTarget
		if err := rows.Scan(&t.ID, &t.SourceSiteID, &t.URL, &t.Active); err != nil {
			return nil, wrapErr("scan target", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate targets", err)
	}
	return out, nil
}

// CreateCrawlAttempt inserts the pessimistic attempt row.
func (s *Store) CreateCrawlAttempt(ctx context.Context, a jobs.CrawlAttempt) (jobs.CrawlAttempt, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO crawl_attempt (crawl_target_id, started_at, status, jobs_found_count) VALUES ($1, $2, $3, $4) RETURNING id`,
		a.CrawlTargetID, a.StartedAt, a.Status, a.JobsFoundCount,
	).Scan(&a.ID)
	if err != nil {
		return jobs.CrawlAttempt{}, wrapErr("insert attempt", err)
	}
	return a, nil
}

// CompleteCrawlAttempt applies the terminal transition.
func (s *Store) CompleteCrawlAttempt(ctx context.Context, id int64, status jobs.CrawlStatus, httpCode *int, errorMessage string, jobsFound int, finishedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE crawl_attempt SET status = $2, http_code = $3, error_message = $4, jobs_found_count = $5, finished_at = $6 WHERE id = $1`,
		id, status, httpCode, errorMessage, jobsFound, finishedAt,
	)
	if err != nil {
		return wrapErr("complete attempt", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete attempt %d: %w", id, jobs.ErrNotFound)
	}
	return nil
}

const sourceColumns = `id, job_id, source_site_id, source_url, COALESCE(salary_text, ''), first_seen_at, last_seen_at, created_at`

func scanSource(row pgx.Row) (jobs.JobSource, error) {
	var src jobs.JobSource
	err := row.Scan(&src.ID, &src.JobID, &src.SourceSiteID, &src.SourceURL,
		&src.SalaryText, &src.FirstSeenAt, &src.LastSeenAt, &src.CreatedAt)
	return src, err
}

// JobSourceByURL fetches the source owning a listing URL.
func (s *Store) JobSourceByURL(ctx context.Context, sourceURL string) (jobs.JobSource, error) {
	src, err := scanSource(s.db.QueryRow(ctx, `SELECT `+sourceColumns+` FROM job_source WHERE source_url = $1`, sourceURL))
	if err != nil {
		return jobs.JobSource{}, wrapErr("select source", err)
	}
	return src, nil
}

// CreateJobSource inserts a source row; a URL collision surfaces as
// jobs.ErrDuplicate.
func (s *Store) CreateJobSource(ctx context.Context, src jobs.JobSource) (jobs.JobSource, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO job_source (job_id, source_site_id, source_url, salary_text, first_seen_at, last_seen_at, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7) RETURNING id`,
		src.JobID, src.SourceSiteID, src.SourceURL, src.SalaryText,
		src.FirstSeenAt, src.LastSeenAt, src.CreatedAt,
	).Scan(&src.ID)
	if err != nil {
		return jobs.JobSource{}, wrapErr("insert source", err)
	}
	return src, nil
}

// TouchJobSourceLastSeen advances last_seen_at monotonically.
func (s *Store) TouchJobSourceLastSeen(ctx context.Context, id int64, seenAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE job_source SET last_seen_at = GREATEST(last_seen_at, $2) WHERE id = $1`,
		id, seenAt,
	)
	if err != nil {
		return wrapErr("touch source", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch source %d: %w", id, jobs.ErrNotFound)
	}
	return nil
}

// JobSourcesForJob lists all sources of a job.
func (s *Store) JobSourcesForJob(ctx context.Context, jobID int64) ([]jobs.JobSource, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sourceColumns+` FROM job_source WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, wrapErr("select sources", err)
	}
	defer rows.Close()

	var out []jobs.JobSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, wrapErr("scan source", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate sources", err)
	}
	return out, nil
}

// AppendObservation appends one immutable observation row.
func (s *Store) AppendObservation(ctx context.Context, o jobs.JobObservation) (jobs.JobObservation, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO job_observation (job_source_id, crawl_attempt_id, observed_at, raw_title) VALUES ($1, $2, $3, $4) RETURNING id`,
		o.JobSourceID, o.CrawlAttemptID, o.ObservedAt, o.RawTitle,
	).Scan(&o.ID)
	if err != nil {
		return jobs.JobObservation{}, wrapErr("insert observation", err)
	}
	return o, nil
}

// LatestObservationAt returns the newest sighting of one source.
func (s *Store) LatestObservationAt(ctx context.Context, jobSourceID int64) (time.Time, error) {
	var at time.Time
	err := s.db.QueryRow(ctx,
		`SELECT observed_at FROM job_observation WHERE job_source_id = $1 ORDER BY observed_at DESC LIMIT 1`,
		jobSourceID,
	).Scan(&at)
	if err != nil {
		return time.Time{}, wrapErr("select latest observation", err)
	}
	return at, nil
}

// ObservationsForJob returns the joined timeline, most recent first.
func (s *Store) ObservationsForJob(ctx context.Context, jobID int64) ([]jobs.ObservationEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT o.observed_at, ss.name, js.source_url, o.raw_title, ca.status
		 FROM job_observation o
		 JOIN job_source js ON js.id = o.job_source_id
		 JOIN source_site ss ON ss.id = js.source_site_id
		 JOIN crawl_attempt ca ON ca.id = o.crawl_attempt_id
		 WHERE js.job_id = $1
		 ORDER BY o.observed_at DESC`,
		jobID,
	)
	if err != nil {
		return nil, wrapErr("select timeline", err)
	}
	defer rows.Close()

	var out []jobs.ObservationEvent
	for rows.Next() {
		var e jobs.ObservationEvent
		if err := rows.Scan(&e.ObservedAt, &e.SiteName, &e.SourceURL, &e.RawTitle, &e.CrawlStatus); err != nil {
			return nil, wrapErr("scan timeline event", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate timeline", err)
	}
	return out, nil
}
