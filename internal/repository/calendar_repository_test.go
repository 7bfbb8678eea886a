package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
)

func newCalendarRepoMock(t *testing.T) (*CalendarRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewCalendarRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestCalendarRepositoryActivateYearClearsSiblings(t *testing.T) {
	repo, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2")).
		WithArgs(sqlmock.AnyArg(), "ay-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = TRUE, updated_at = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), "ay-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ActivateYear(context.Background(), "ay-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryActivateYearMissing(t *testing.T) {
	repo, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2")).
		WithArgs(sqlmock.AnyArg(), "ay-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = TRUE, updated_at = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), "ay-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ActivateYear(context.Background(), "ay-missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryActivateSemesterClearsSiblings(t *testing.T) {
	repo, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2")).
		WithArgs(sqlmock.AnyArg(), "sem-2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET is_active = TRUE, updated_at = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), "sem-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ActivateSemester(context.Background(), "sem-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryCurrentSemester(t *testing.T) {
	repo, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()
	now := time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "academic_year_id", "semester_type", "start_date", "end_date", "is_active", "enrollment_start", "enrollment_end", "created_at", "updated_at"}).
		AddRow("sem-1", "ay-1", models.SemesterFirst, now.AddDate(0, 0, -4), now.AddDate(0, 4, 0), true, now.AddDate(0, 0, -14), now.AddDate(0, 0, 7), now, now)
	mock.ExpectQuery("SELECT id, academic_year_id, semester_type, start_date, end_date, is_active, enrollment_start, enrollment_end, created_at, updated_at").
		WithArgs(now).
		WillReturnRows(rows)

	semester, err := repo.CurrentSemester(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, "sem-1", semester.ID)
	require.True(t, semester.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryCurrentSemesterNoneOpen(t *testing.T) {
	repo, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, academic_year_id, semester_type, start_date, end_date, is_active, enrollment_start, enrollment_end, created_at, updated_at").
		WithArgs(now).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.CurrentSemester(context.Background(), now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
