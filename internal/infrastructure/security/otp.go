package security

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// otpAlphabet excludes 0.
const otpAlphabet = "123456789"

// OtpGenerator draws each digit independently from crypto/rand.
type OtpGenerator struct{}

func NewOtpGenerator() OtpGenerator { return OtpGenerator{} }

func (OtpGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("otp length must be positive")
	}
	bound := big.NewInt(int64(len(otpAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return "", err
		}
		out[i] = otpAlphabet[n.Int64()]
	}
	return string(out), nil
}
