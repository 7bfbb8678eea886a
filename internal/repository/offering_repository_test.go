package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newOfferingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOfferingRepositoryReserveSlotTakesCapacity(t *testing.T) {
	db, mock, cleanup := newOfferingRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSlotQuery)).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.ReserveSlot(context.Background(), tx, "off-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryReserveSlotFull(t *testing.T) {
	db, mock, cleanup := newOfferingRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSlotQuery)).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM course_offerings WHERE id = $1)")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.ReserveSlot(context.Background(), tx, "off-1")
	require.ErrorIs(t, err, ErrSlotsExhausted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryReserveSlotMissingOffering(t *testing.T) {
	db, mock, cleanup := newOfferingRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSlotQuery)).
		WithArgs("off-missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM course_offerings WHERE id = $1)")).
		WithArgs("off-missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.ReserveSlot(context.Background(), tx, "off-missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryForceReserveSlotSkipsGuard(t *testing.T) {
	db, mock, cleanup := newOfferingRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(forceReserveSlotQuery)).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.ForceReserveSlot(context.Background(), tx, "off-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryReleaseSlotFloorsAtZero(t *testing.T) {
	db, mock, cleanup := newOfferingRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(releaseSlotQuery)).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.ReleaseSlot(context.Background(), tx, "off-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
