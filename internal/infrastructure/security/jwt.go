package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vladosShikos/losb-back/internal/domain"
)

// JWTVerifier checks HS256 access tokens issued by the auth backend.
// Tokens identify the user through the telegram_id claim.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier builds a verifier. An empty issuer disables the iss check.
func NewJWTVerifier(secret string, issuer string) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
	}
}

type accessClaims struct {
	TelegramID int64 `json:"telegram_id"`
	jwt.RegisteredClaims
}

// Sign issues a token. The service never hands tokens to clients; this is
// used by the dev token tool and tests.
func (v *JWTVerifier) Sign(telegramID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := accessClaims{
		TelegramID: telegramID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(v.secret)
	if err != nil {
		return "", domain.ErrInternal(err)
	}
	return signed, nil
}

func (v *JWTVerifier) Verify(token string) (domain.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, domain.ErrTokenExpired()
		}
		return domain.Identity{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid || claims.TelegramID <= 0 {
		return domain.Identity{}, domain.ErrTokenInvalid()
	}

	exp := time.Time{}
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	return domain.Identity{
		TelegramID: claims.TelegramID,
		ExpiresAt:  exp,
	}, nil
}
