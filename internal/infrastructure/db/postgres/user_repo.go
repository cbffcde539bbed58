package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vladosShikos/losb-back/internal/domain"
)

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type userRow struct {
	TelegramID  int64
	Name        string
	Nickname    string
	PhoneCode   int
	PhoneNumber sql.NullInt64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func toDomainUser(ur userRow) domain.User {
	phone := domain.PlaceholderPhone(ur.PhoneCode)
	if ur.PhoneNumber.Valid {
		phone = domain.NewPhone(ur.PhoneCode, ur.PhoneNumber.Int64)
	}
	return domain.User{
		TelegramID: ur.TelegramID,
		Name:       ur.Name,
		Nickname:   ur.Nickname,
		Phone:      phone,
		CreatedAt:  ur.CreatedAt,
		UpdatedAt:  ur.UpdatedAt,
	}
}

type UserRepo struct {
	db dbtx
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Get(ctx context.Context, telegramID int64) (domain.User, error) {
	const q = `
SELECT telegram_id, name, nickname, phone_code, phone_number, created_at, updated_at
FROM users
WHERE telegram_id = $1;
`
	var ur userRow
	err := r.db.QueryRowContext(ctx, q, telegramID).Scan(
		&ur.TelegramID,
		&ur.Name,
		&ur.Nickname,
		&ur.PhoneCode,
		&ur.PhoneNumber,
		&ur.CreatedAt,
		&ur.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return toDomainUser(ur), nil
}

// Save writes the mutable columns of an existing user.
func (r *UserRepo) Save(ctx context.Context, u domain.User) error {
	const q = `
UPDATE users
SET name = $2,
    nickname = $3,
    phone_code = $4,
    phone_number = $5,
    updated_at = $6
WHERE telegram_id = $1;
`
	var number sql.NullInt64
	if u.Phone.Number != nil {
		number = sql.NullInt64{Int64: *u.Phone.Number, Valid: true}
	}
	updatedAt := u.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, q, u.TelegramID, u.Name, u.Nickname, u.Phone.Code, number, updatedAt)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

// Create inserts a user with a placeholder phone. Existing rows are left alone.
func (r *UserRepo) Create(ctx context.Context, u domain.User) (bool, error) {
	const q = `
INSERT INTO users (telegram_id, name, nickname, phone_code, phone_number)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (telegram_id) DO NOTHING;
`
	var number sql.NullInt64
	if u.Phone.Number != nil {
		number = sql.NullInt64{Int64: *u.Phone.Number, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, q, u.TelegramID, u.Name, u.Nickname, u.Phone.Code, number)
	if err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
