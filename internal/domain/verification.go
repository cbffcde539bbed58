package domain

import "time"

// PendingVerification is the in-flight verification of one user.
// A user has at most one at a time.
type PendingVerification struct {
	TelegramID int64
	OtpHash    string
	Claimed    Phone
	Attempts   int
	CreatedAt  time.Time
}

// Age is measured against now; a clock running backwards yields zero.
func (p PendingVerification) Age(now time.Time) time.Duration {
	d := now.Sub(p.CreatedAt)
	if d < 0 {
		return 0
	}
	return d
}
