package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vladosShikos/losb-back/internal/domain"
)

func TestJWTVerifier_SignAndVerify_Success(t *testing.T) {
	t.Parallel()

	v := NewJWTVerifier("secret", "losb")
	tok, err := v.Sign(424242, 2*time.Minute)
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}

	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify err: %v", err)
	}
	if id.TelegramID != 424242 {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.ExpiresAt.IsZero() {
		t.Fatalf("expected exp to be set")
	}
}

func TestJWTVerifier_Verify_Expired_ReturnsTokenExpired(t *testing.T) {
	t.Parallel()

	v := NewJWTVerifier("secret", "losb")
	tok, err := v.Sign(1, -1*time.Second) // already expired
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}

	_, verr := v.Verify(tok)
	if !domain.Is(verr, "token_expired") {
		t.Fatalf("expected token_expired, got %v", verr)
	}
}

func TestJWTVerifier_Verify_WrongSecret_ReturnsTokenInvalid(t *testing.T) {
	t.Parallel()

	tok, err := NewJWTVerifier("secret1", "").Sign(1, time.Minute)
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}

	_, verr := NewJWTVerifier("secret2", "").Verify(tok)
	if !domain.Is(verr, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", verr)
	}
}

func TestJWTVerifier_Verify_WrongIssuer_ReturnsTokenInvalid(t *testing.T) {
	t.Parallel()

	tok, err := NewJWTVerifier("secret", "someone-else").Sign(1, time.Minute)
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}

	_, verr := NewJWTVerifier("secret", "losb").Verify(tok)
	if !domain.Is(verr, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", verr)
	}
}

func TestJWTVerifier_Verify_MissingTelegramID_ReturnsTokenInvalid(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Minute).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}

	_, verr := NewJWTVerifier("secret", "").Verify(tok)
	if !domain.Is(verr, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", verr)
	}
}

func TestJWTVerifier_Verify_NumericClaimFromForeignIssuer(t *testing.T) {
	t.Parallel()

	// tokens minted elsewhere carry telegram_id as a JSON number
	claims := jwt.MapClaims{
		"telegram_id": 987654321,
		"exp":         time.Now().Add(time.Minute).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}

	id, verr := NewJWTVerifier("secret", "").Verify(tok)
	if verr != nil {
		t.Fatalf("verify err: %v", verr)
	}
	if id.TelegramID != 987654321 {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestJWTVerifier_Verify_AlgConfusion_Rejected(t *testing.T) {
	t.Parallel()

	// Create a token with "none" alg (unsigned). Verify should reject.
	claims := jwt.MapClaims{
		"telegram_id": 1,
		"exp":         time.Now().Add(time.Minute).Unix(),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unexpected signing err: %v", err)
	}

	_, verr := NewJWTVerifier("secret", "").Verify(unsigned)
	if !domain.Is(verr, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", verr)
	}
}

func TestJWTVerifier_Verify_Garbage_ReturnsTokenInvalid(t *testing.T) {
	t.Parallel()

	_, err := NewJWTVerifier("secret", "").Verify("not.a.jwt")
	if !domain.Is(err, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", err)
	}
}
