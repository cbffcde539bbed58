package dto

import "github.com/vladosShikos/losb-back/internal/domain"

type PhoneResponse struct {
	Code     int    `json:"code"`
	Number   *int64 `json:"number"`
	Verified bool   `json:"verified"`
}

func NewPhoneResponse(p domain.Phone) PhoneResponse {
	return PhoneResponse{Code: p.Code, Number: p.Number, Verified: p.Verified()}
}

// RequestPhoneVerificationResponse is returned with 202.
// Otp is only filled in dev with SMS_DEBUG_ECHO_OTP.
type RequestPhoneVerificationResponse struct {
	Sent              bool   `json:"sent"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	Otp               string `json:"otp,omitempty"`
}
