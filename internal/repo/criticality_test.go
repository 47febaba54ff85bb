package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

func sample() models.Criticality {
	return models.Criticality{
		FailureModeID: "fm-1",
		Severity:      8,
		Occurrence:    6,
		Detection:     5,
		RPN:           240,
		Index:         models.CriticalityCritical,
	}
}

func TestMemoryRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryCriticalityRepo()

	_, err := r.Get(ctx, "fm-1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = r.Update(ctx, sample())
	require.ErrorIs(t, err, ErrNotFound)

	created, err := r.Create(ctx, sample())
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)
	assert.False(t, created.UpdatedAt.IsZero())

	_, err = r.Create(ctx, sample())
	require.ErrorIs(t, err, utils.ErrInvariantViolation)

	changed := sample()
	changed.Severity = 2
	changed.RPN = 60
	changed.Index = models.CriticalityMedium
	updated, err := r.Update(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	got, err := r.Get(ctx, "fm-1")
	require.NoError(t, err)
	assert.Equal(t, 60, got.RPN)
	assert.Equal(t, models.CriticalityMedium, got.Index)
}

func TestMemoryRepoRequiresFailureMode(t *testing.T) {
	_, err := NewMemoryCriticalityRepo().Create(context.Background(), models.Criticality{Severity: 1})
	require.ErrorIs(t, err, utils.ErrValidation)
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresCriticalityRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewPostgresCriticalityRepo(db, nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	return db, mock, repo
}

func TestPostgresGet(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	updated := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "failure_mode_id", "severity", "occurrence", "detection", "rpn",
		"criticality_index", "consequence_type", "updated_at",
	}).AddRow("id-1", "fm-1", 8, 6, 5, 240, "Critical", "safety", updated)
	mock.ExpectQuery(`SELECT id, failure_mode_id`).WithArgs("fm-1").WillReturnRows(rows)

	c, err := repo.Get(context.Background(), "fm-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", c.ID)
	assert.Equal(t, 240, c.RPN)
	assert.Equal(t, models.CriticalityCritical, c.Index)
	assert.Equal(t, "safety", c.ConsequenceType)
	assert.True(t, updated.Equal(c.UpdatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	mock.ExpectQuery(`SELECT id, failure_mode_id`).WithArgs("fm-9").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "fm-9")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	mock.ExpectExec(`INSERT INTO criticality`).
		WithArgs(sqlmock.AnyArg(), "fm-1", 8, 6, 5, 240, "Critical", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := repo.Create(context.Background(), sample())
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), c.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateDuplicate(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	mock.ExpectExec(`INSERT INTO criticality`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), sample())
	require.ErrorIs(t, err, utils.ErrInvariantViolation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateOtherFailure(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	mock.ExpectExec(`INSERT INTO criticality`).WillReturnError(errors.New("connection reset"))

	_, err := repo.Create(context.Background(), sample())
	require.Error(t, err)
	assert.Nil(t, utils.KindOf(err))
	assert.Contains(t, err.Error(), "insert criticality")
}

func TestPostgresUpdate(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	mock.ExpectQuery(`UPDATE criticality SET`).
		WithArgs("fm-1", 8, 6, 5, 240, "Critical", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-1"))

	c, err := repo.Update(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, "id-1", c.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMissing(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	mock.ExpectQuery(`UPDATE criticality SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Update(context.Background(), sample())
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureSchema(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS criticality`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
