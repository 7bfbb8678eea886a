package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*EnrollmentRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewEnrollmentRepository(sqlxDB, NewOfferingRepository(sqlxDB)), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryCreateWithSlotCommits(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSlotQuery)).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), "stu-1", "off-1", sqlmock.AnyArg(), models.EnrollmentPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{StudentID: "stu-1", CourseOfferingID: "off-1", Status: models.EnrollmentPending}
	require.NoError(t, repo.CreateWithSlot(context.Background(), enrollment, false))
	require.NotEmpty(t, enrollment.ID)
	require.False(t, enrollment.DateEnrolled.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSlotFullRollsBack(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSlotQuery)).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM course_offerings WHERE id = $1)")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	enrollment := &models.Enrollment{StudentID: "stu-1", CourseOfferingID: "off-1", Status: models.EnrollmentPending}
	err := repo.CreateWithSlot(context.Background(), enrollment, false)
	require.ErrorIs(t, err, ErrSlotsExhausted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSlotDuplicatePair(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSlotQuery)).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	enrollment := &models.Enrollment{StudentID: "stu-1", CourseOfferingID: "off-1", Status: models.EnrollmentPending}
	err := repo.CreateWithSlot(context.Background(), enrollment, false)
	require.ErrorIs(t, err, ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSlotForceSkipsGuard(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(forceReserveSlotQuery)).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{StudentID: "stu-1", CourseOfferingID: "off-1", Status: models.EnrollmentPending}
	require.NoError(t, repo.CreateWithSlot(context.Background(), enrollment, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDropWithRelease(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	droppedAt := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(dropEnrollmentQuery)).
		WithArgs("enr-1", models.EnrollmentDropped, droppedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(releaseSlotQuery)).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DropWithRelease(context.Background(), "enr-1", "off-1", droppedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDropMissingEnrollment(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(dropEnrollmentQuery)).
		WithArgs("enr-missing", models.EnrollmentDropped, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM enrollments WHERE id = $1")).
		WithArgs("enr-missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.DropWithRelease(context.Background(), "enr-missing", "off-1", time.Now().UTC())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDropAlreadyDroppedLeavesSlot(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	// The guarded update matches nothing once another transaction already
	// dropped the row, so no release statement may follow.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(dropEnrollmentQuery)).
		WithArgs("enr-1", models.EnrollmentDropped, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(models.EnrollmentDropped)))
	mock.ExpectRollback()

	err := repo.DropWithRelease(context.Background(), "enr-1", "off-1", time.Now().UTC())
	require.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusCompareAndSwap(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(updateStatusQuery)).
		WithArgs("enr-1", models.EnrollmentPending, models.EnrollmentApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentPending, models.EnrollmentApproved))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusStale(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(updateStatusQuery)).
		WithArgs("enr-1", models.EnrollmentPending, models.EnrollmentApproved).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM enrollments WHERE id = $1)")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentPending, models.EnrollmentApproved)
	require.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusMissing(t *testing.T) {
	repo, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(updateStatusQuery)).
		WithArgs("enr-gone", models.EnrollmentPending, models.EnrollmentApproved).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM enrollments WHERE id = $1)")).
		WithArgs("enr-gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.UpdateStatus(context.Background(), "enr-gone", models.EnrollmentPending, models.EnrollmentApproved)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
