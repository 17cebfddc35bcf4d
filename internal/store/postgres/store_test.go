package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsignal/engine/internal/jobs"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewWithPool(mock)
}

func TestJobByFingerprintNotFound(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT .+ FROM job WHERE fingerprint").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.JobByFingerprint(context.Background(), "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobMapsUniqueViolation(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("INSERT INTO job").
		WithArgs(int64(1), "BACKEND", "BANGALORE", "fp", now, now, now).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "job_fingerprint_key"})

	_, err := store.CreateJob(context.Background(), jobs.Job{
		CompanyID:          1,
		NormalizedRole:     "BACKEND",
		NormalizedLocation: "BANGALORE",
		Fingerprint:        "fp",
		FirstSeenAt:        now,
		LastSeenAt:         now,
		CreatedAt:          now,
	})
	assert.ErrorIs(t, err, jobs.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchJobLastSeen(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("UPDATE job SET last_seen_at = GREATEST").
		WithArgs(int64(7), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.TouchJobLastSeen(context.Background(), 7, now))

	mock.ExpectExec("UPDATE job SET last_seen_at = GREATEST").
		WithArgs(int64(8), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := store.TouchJobLastSeen(context.Background(), 8, now)
	assert.ErrorIs(t, err, jobs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAliasTargetJoinsCompany(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT c.normalized_name FROM company_alias").
		WithArgs("tcs").
		WillReturnRows(pgxmock.NewRows([]string{"normalized_name"}).AddRow("tata consultancy"))

	got, err := store.AliasTarget(context.Background(), "tcs")
	require.NoError(t, err)
	assert.Equal(t, "tata consultancy", got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO company").
		WithArgs("acme", "Acme", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectCommit()

	err := store.RunInTx(context.Background(), func(tx jobs.Store) error {
		created, err := tx.CreateCompany(context.Background(), jobs.Company{
			NormalizedName: "acme",
			DisplayName:    "Acme",
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(3), created.ID)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(jobs.Store) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationsForJobOrdering(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	newer := time.Unix(1700003600, 0).UTC()
	older := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT o.observed_at, ss.name, js.source_url, o.raw_title, ca.status").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"observed_at", "name", "source_url", "raw_title", "status"}).
			AddRow(newer, "timesjobs", "https://t/1", "Backend Engineer", jobs.StatusSuccess).
			AddRow(older, "freshersworld", "https://f/1", "Backend Engineer", jobs.StatusSuccess))

	events, err := store.ObservationsForJob(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "timesjobs", events[0].SiteName)
	assert.Equal(t, jobs.StatusSuccess, events[0].CrawlStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}
