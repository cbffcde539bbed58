package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/vladosShikos/losb-back/internal/domain"
)

// BcryptOtpHasher stores OTPs as bcrypt hashes so a database read does not
// reveal live codes.
type BcryptOtpHasher struct {
	cost int
}

func NewBcryptOtpHasher(cost int) *BcryptOtpHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptOtpHasher{cost: cost}
}

func (h *BcryptOtpHasher) Hash(otp string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(otp), h.cost)
	if err != nil {
		return "", domain.ErrHashFailed(err)
	}
	return string(b), nil
}

func (h *BcryptOtpHasher) Matches(hash string, otp string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(otp))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
