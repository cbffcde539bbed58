package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladosShikos/losb-back/internal/application/verification"
	"github.com/vladosShikos/losb-back/internal/domain"
)

func TestUnitOfWork_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT telegram_id FROM users WHERE telegram_id = \\$1 FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"telegram_id"}).AddRow(int64(42)))
	mock.ExpectExec("DELETE FROM phone_verifications").WithArgs(int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewUnitOfWork(db).WithinUserLock(context.Background(), 42, func(ctx context.Context, s verification.Stores) error {
		return s.Verifications.Delete(ctx, 42)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"telegram_id"}).AddRow(int64(42)))
	mock.ExpectRollback()

	err = NewUnitOfWork(db).WithinUserLock(context.Background(), 42, func(ctx context.Context, s verification.Stores) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_UnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(7)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err = NewUnitOfWork(db).WithinUserLock(context.Background(), 7, func(ctx context.Context, s verification.Stores) error {
		called = true
		return nil
	})
	assert.True(t, domain.Is(err, "user_not_found"))
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	err = NewUnitOfWork(db).WithinUserLock(context.Background(), 42, func(ctx context.Context, s verification.Stores) error {
		return nil
	})
	assert.True(t, domain.Is(err, "db_unavailable"))
}
