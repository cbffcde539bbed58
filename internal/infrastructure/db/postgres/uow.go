package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vladosShikos/losb-back/internal/application/verification"
	"github.com/vladosShikos/losb-back/internal/domain"
)

// UnitOfWork runs each call in one transaction holding the user's row lock.
type UnitOfWork struct {
	db *sql.DB
}

func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithinUserLock(ctx context.Context, telegramID int64, fn func(ctx context.Context, s verification.Stores) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked int64
	err = tx.QueryRowContext(ctx,
		`SELECT telegram_id FROM users WHERE telegram_id = $1 FOR UPDATE`, telegramID,
	).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound()
		}
		return domain.ErrDBUnavailable(err)
	}

	if err := fn(ctx, verification.Stores{
		Users:         &UserRepo{db: tx},
		Verifications: &VerificationRepo{db: tx},
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
