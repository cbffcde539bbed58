package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindGone           ErrKind = "gone"           // 410
	KindRateLimited    ErrKind = "rate_limited"   // 429
	KindUpstream       ErrKind = "upstream"       // 502
	KindInfrastructure ErrKind = "infrastructure" // 503
	KindInternal       ErrKind = "internal"       // 500
)

// Family groups verification errors by what the caller has to do next.
type Family string

const (
	FamilyPolicyViolation     Family = "policy_violation"
	FamilyStateExpiry         Family = "state_expiry"
	FamilyAuthenticityFailure Family = "authenticity_failure"
	FamilyUpstreamFailure     Family = "upstream_failure"
	FamilyOther               Family = "other"
)

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients (never contains an OTP)
// - Meta: optional details (field, reason, retry_after_seconds)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Family reports the verification error family of e.
func (e *Error) Family() Family {
	switch e.Code {
	case CodePhoneAlreadyVerified, CodeResendCooldownActive:
		return FamilyPolicyViolation
	case CodeVerificationExpired, CodeAttemptsExceeded, CodeNoPendingVerification:
		return FamilyStateExpiry
	case CodeVerificationFailed:
		return FamilyAuthenticityFailure
	case CodeSmsDeliveryFailed:
		return FamilyUpstreamFailure
	default:
		return FamilyOther
	}
}

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// FamilyOf returns the family of err, or FamilyOther for non-domain errors.
func FamilyOf(err error) Family {
	var de *Error
	if errors.As(err, &de) {
		return de.Family()
	}
	return FamilyOther
}

// CodeOf returns the domain code of err. Non-domain errors report "internal_error".
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal_error"
}

// Verification error codes.
const (
	CodePhoneAlreadyVerified  = "phone_already_verified"
	CodeResendCooldownActive  = "resend_cooldown_active"
	CodeVerificationExpired   = "verification_expired"
	CodeAttemptsExceeded      = "attempts_exceeded"
	CodeNoPendingVerification = "no_pending_verification"
	CodeVerificationFailed    = "verification_failed"
	CodeSmsDeliveryFailed     = "sms_delivery_failed"
	MetaRetryAfterSeconds     = "retry_after_seconds"
	MetaReason                = "reason"
)

// ----------------------
// Validation errors (400)
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, "invalid_json", "invalid JSON body", cause)
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

// ----------------------
// Auth errors (401)
// ----------------------

func ErrTokenMissing() *Error {
	return New(KindAuth, "token_missing", "no token provided")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, "token_invalid", "invalid token")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, "token_expired", "token is expired")
}

// ----------------------
// Not Found (404)
// ----------------------

func ErrUserNotFound() *Error {
	return New(KindNotFound, "user_not_found", "user not found")
}

// ----------------------
// Phone verification
// ----------------------

// PolicyViolation: the requested phone is already the user's verified phone.
func ErrPhoneAlreadyVerified() *Error {
	return New(KindConflict, CodePhoneAlreadyVerified, "this phone number is already verified")
}

// PolicyViolation: a code was issued less than the cooldown ago.
func ErrResendCooldownActive(retryAfterSeconds int) *Error {
	return WithMeta(
		New(KindRateLimited, CodeResendCooldownActive,
			fmt.Sprintf("You must wait for %d seconds before requesting a new SMS verification code.", retryAfterSeconds)),
		map[string]string{MetaRetryAfterSeconds: strconv.Itoa(retryAfterSeconds)},
	)
}

// StateExpiry
func ErrNoPendingVerification() *Error {
	return New(KindNotFound, CodeNoPendingVerification, "no verification code was requested; request a new code")
}

func ErrVerificationExpired() *Error {
	return New(KindGone, CodeVerificationExpired, "verification code expired; request a new code")
}

func ErrAttemptsExceeded() *Error {
	return New(KindGone, CodeAttemptsExceeded, "too many failed attempts; request a new code")
}

// AuthenticityFailure
func ErrVerificationFailed() *Error {
	return New(KindValidation, CodeVerificationFailed, "invalid verification code")
}

// UpstreamFailure: reason comes from the SMS gateway and never includes the message body.
func ErrSmsDeliveryFailed(reason string, cause error) *Error {
	return WithMeta(
		Wrap(KindUpstream, CodeSmsDeliveryFailed, "failed to deliver SMS verification code", cause),
		map[string]string{MetaReason: reason},
	)
}

// ----------------------
// Rate limit (429)
// ----------------------

func ErrRateLimited(scope string) *Error {
	return WithMeta(New(KindRateLimited, "rate_limited", "too many requests"), map[string]string{
		"scope": scope,
	})
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable", cause)
}

func ErrRedisUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "redis_unavailable", "cache unavailable", cause)
}

func ErrRabbitUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "rabbit_unavailable", "message broker unavailable", cause)
}

func ErrHashFailed(cause error) *Error {
	return Wrap(KindInternal, "hash_failed", "code hashing failed", cause)
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", "random generation failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}
