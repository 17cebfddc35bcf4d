package postgres

// Schema declares every table the engine persists. The unique indexes
// on fingerprint, normalized_name, alias, source_url and skill name are
// load-bearing: concurrent writers rely on them to serialize
// check-then-create races.
const Schema = `
CREATE TABLE IF NOT EXISTS company (
	id              BIGSERIAL PRIMARY KEY,
	normalized_name TEXT NOT NULL UNIQUE,
	display_name    TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS company_alias (
	id         BIGSERIAL PRIMARY KEY,
	company_id BIGINT NOT NULL REFERENCES company(id),
	alias      TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS job (
	id                  BIGSERIAL PRIMARY KEY,
	company_id          BIGINT NOT NULL REFERENCES company(id),
	normalized_role     TEXT NOT NULL,
	normalized_location TEXT NOT NULL,
	fingerprint         TEXT NOT NULL UNIQUE,
	first_seen_at       TIMESTAMPTZ NOT NULL,
	last_seen_at        TIMESTAMPTZ NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_last_seen_at ON job (last_seen_at);

CREATE TABLE IF NOT EXISTS skill (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS job_skill (
	job_id   BIGINT NOT NULL REFERENCES job(id),
	skill_id BIGINT NOT NULL REFERENCES skill(id),
	PRIMARY KEY (job_id, skill_id)
);

CREATE TABLE IF NOT EXISTS source_site (
	id                      BIGSERIAL PRIMARY KEY,
	name                    TEXT NOT NULL UNIQUE,
	inactive_threshold_days INTEGER NOT NULL,
	repost_threshold_days   INTEGER NOT NULL,
	reliability_weight      DOUBLE PRECISION NOT NULL,
	crawl_delay_seconds     INTEGER NOT NULL,
	max_retries             INTEGER NOT NULL,
	crawl_enabled           BOOLEAN NOT NULL,
	fetch_mode              TEXT NOT NULL DEFAULT 'http',
	created_at              TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_target (
	id             BIGSERIAL PRIMARY KEY,
	source_site_id BIGINT NOT NULL REFERENCES source_site(id),
	url            TEXT NOT NULL,
	active         BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS crawl_attempt (
	id               BIGSERIAL PRIMARY KEY,
	crawl_target_id  BIGINT NOT NULL REFERENCES crawl_target(id),
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ,
	status           TEXT NOT NULL,
	http_code        INTEGER,
	error_message    TEXT,
	jobs_found_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS job_source (
	id             BIGSERIAL PRIMARY KEY,
	job_id         BIGINT NOT NULL REFERENCES job(id),
	source_site_id BIGINT NOT NULL REFERENCES source_site(id),
	source_url     TEXT NOT NULL UNIQUE,
	salary_text    TEXT,
	first_seen_at  TIMESTAMPTZ NOT NULL,
	last_seen_at   TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS job_observation (
	id               BIGSERIAL PRIMARY KEY,
	job_source_id    BIGINT NOT NULL REFERENCES job_source(id),
	crawl_attempt_id BIGINT NOT NULL REFERENCES crawl_attempt(id),
	observed_at      TIMESTAMPTZ NOT NULL,
	raw_title        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observation_source_observed
	ON job_observation (job_source_id, observed_at DESC);
`
