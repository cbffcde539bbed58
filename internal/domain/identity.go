package domain

import "time"

// Identity is the caller established by a verified access token.
type Identity struct {
	TelegramID int64
	ExpiresAt  time.Time
}
