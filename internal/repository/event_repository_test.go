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

func newEventRepoMock(t *testing.T) (*EventRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewEventRepository(sqlxDB), mock, func() { db.Close() }
}

func TestEventRepositoryRegisterTakesRemainingPlace(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	registeredAt := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"max_participants"}).AddRow(int64(30)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM event_registrations WHERE event_id = $1")).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(29)))
	mock.ExpectExec("INSERT INTO event_registrations").
		WithArgs(sqlmock.AnyArg(), "evt-1", "stu-1", registeredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	registration := &models.EventRegistration{EventID: "evt-1", StudentID: "stu-1", RegistrationDate: registeredAt}
	require.NoError(t, repo.Register(context.Background(), registration))
	require.NotEmpty(t, registration.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryRegisterFullRollsBack(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	// The lock is held when the count runs, so a full reading is final
	// for this transaction and no insert may follow.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"max_participants"}).AddRow(int64(30)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM event_registrations WHERE event_id = $1")).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(30)))
	mock.ExpectRollback()

	err := repo.Register(context.Background(), &models.EventRegistration{EventID: "evt-1", StudentID: "stu-1"})
	require.ErrorIs(t, err, ErrSlotsExhausted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryRegisterUncappedSkipsCount(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"max_participants"}).AddRow(nil))
	mock.ExpectExec("INSERT INTO event_registrations").
		WithArgs(sqlmock.AnyArg(), "evt-1", "stu-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Register(context.Background(), &models.EventRegistration{EventID: "evt-1", StudentID: "stu-1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryRegisterMissingEvent(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).
		WithArgs("evt-missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Register(context.Background(), &models.EventRegistration{EventID: "evt-missing", StudentID: "stu-1"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryRegisterDuplicateStudent(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"max_participants"}).AddRow(int64(30)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM event_registrations WHERE event_id = $1")).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO event_registrations").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Register(context.Background(), &models.EventRegistration{EventID: "evt-1", StudentID: "stu-1"})
	require.ErrorIs(t, err, ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}
