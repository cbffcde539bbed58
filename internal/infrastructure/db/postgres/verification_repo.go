package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vladosShikos/losb-back/internal/domain"
)

type VerificationRepo struct {
	db dbtx
}

func NewVerificationRepo(db *sql.DB) *VerificationRepo {
	return &VerificationRepo{db: db}
}

func (r *VerificationRepo) Get(ctx context.Context, telegramID int64) (domain.PendingVerification, error) {
	const q = `
SELECT telegram_id, otp_hash, claimed_code, claimed_number, attempts, created_at
FROM phone_verifications
WHERE telegram_id = $1;
`
	var (
		p      domain.PendingVerification
		code   int
		number int64
	)
	err := r.db.QueryRowContext(ctx, q, telegramID).Scan(
		&p.TelegramID,
		&p.OtpHash,
		&code,
		&number,
		&p.Attempts,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PendingVerification{}, domain.ErrNoPendingVerification()
		}
		return domain.PendingVerification{}, domain.ErrDBUnavailable(err)
	}
	p.Claimed = domain.NewPhone(code, number)
	return p, nil
}

// Put replaces any previous record of the user.
func (r *VerificationRepo) Put(ctx context.Context, p domain.PendingVerification) error {
	if p.Claimed.Number == nil {
		return domain.ErrMissingField("number")
	}

	const q = `
INSERT INTO phone_verifications (telegram_id, otp_hash, claimed_code, claimed_number, attempts, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (telegram_id) DO UPDATE
SET otp_hash = EXCLUDED.otp_hash,
    claimed_code = EXCLUDED.claimed_code,
    claimed_number = EXCLUDED.claimed_number,
    attempts = EXCLUDED.attempts,
    created_at = EXCLUDED.created_at;
`
	_, err := r.db.ExecContext(ctx, q,
		p.TelegramID, p.OtpHash, p.Claimed.Code, *p.Claimed.Number, p.Attempts, p.CreatedAt,
	)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (r *VerificationRepo) IncrementAttempts(ctx context.Context, telegramID int64) (int, error) {
	const q = `
UPDATE phone_verifications
SET attempts = attempts + 1
WHERE telegram_id = $1
RETURNING attempts;
`
	var attempts int
	if err := r.db.QueryRowContext(ctx, q, telegramID).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNoPendingVerification()
		}
		return 0, domain.ErrDBUnavailable(err)
	}
	return attempts, nil
}

func (r *VerificationRepo) Delete(ctx context.Context, telegramID int64) error {
	const q = `DELETE FROM phone_verifications WHERE telegram_id = $1;`
	if _, err := r.db.ExecContext(ctx, q, telegramID); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
