package verification

import (
	"context"
	"time"

	"github.com/vladosShikos/losb-back/internal/domain"
)

/*
UserStore
---------
Persistence port for users. The verification flow only reads a user
and saves the committed phone back.
*/
type UserStore interface {
	Get(ctx context.Context, telegramID int64) (domain.User, error)
	Save(ctx context.Context, u domain.User) error
}

/*
VerificationStore
-----------------
Holds at most one pending verification per user.
Get returns domain.ErrNoPendingVerification when nothing is pending.
Put creates or replaces the user's record.
*/
type VerificationStore interface {
	Get(ctx context.Context, telegramID int64) (domain.PendingVerification, error)
	Put(ctx context.Context, p domain.PendingVerification) error
	IncrementAttempts(ctx context.Context, telegramID int64) (int, error)
	Delete(ctx context.Context, telegramID int64) error
}

// Stores are bound to the unit of work they were handed out by.
type Stores struct {
	Users         UserStore
	Verifications VerificationStore
}

/*
UnitOfWork
----------
Serializes every read-modify-write on one user's phone and pending
verification. fn's writes are committed when it returns nil and
discarded otherwise. Different users never wait on each other.
*/
type UnitOfWork interface {
	WithinUserLock(ctx context.Context, telegramID int64, fn func(ctx context.Context, s Stores) error) error
}

// SmsGateway delivers a text message. destination is country code digits
// followed by number digits. Failures should be *DeliveryError.
type SmsGateway interface {
	Send(ctx context.Context, destination, message string) error
}

// DeliveryError is a sanitized gateway failure. Reason is safe to show to
// clients and never contains the message text.
type DeliveryError struct {
	Reason string
	Cause  error
}

func (e *DeliveryError) Error() string { return e.Reason }

func (e *DeliveryError) Unwrap() error { return e.Cause }

// OtpGenerator produces numeric one-time codes.
type OtpGenerator interface {
	Generate(length int) (string, error)
}

// OtpHasher keeps OTPs out of storage in plain text.
type OtpHasher interface {
	Hash(otp string) (string, error)
	Matches(hash, otp string) (bool, error)
}

type Clock interface {
	Now() time.Time
}

/*
EventPublisher
--------------
Publishes integration events after a phone has been committed.
Publishing is best-effort: the commit is never undone because of it.
*/
type PhoneVerifiedEvent struct {
	TelegramID int64     `json:"telegram_id"`
	Code       int       `json:"code"`
	Number     int64     `json:"number"`
	VerifiedAt time.Time `json:"verified_at"`
}

type EventPublisher interface {
	PublishPhoneVerified(ctx context.Context, evt PhoneVerifiedEvent) error
}
