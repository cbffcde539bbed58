package middleware

import (
	"net/http"
	"strings"

	"github.com/vladosShikos/losb-back/internal/domain"
	appCtx "github.com/vladosShikos/losb-back/internal/pkg/context"
)

type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// Auth verifies Authorization: Bearer <jwt> and puts the telegram id of
// the caller into the request context.
func Auth(verifier TokenVerifier, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				writeErr(w, r, domain.ErrTokenMissing())
				return
			}

			parts := strings.SplitN(h, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			raw := strings.TrimSpace(parts[1])
			if raw == "" {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			id, err := verifier.Verify(raw)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			if id.TelegramID <= 0 {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			ctx := appCtx.WithTelegramID(r.Context(), id.TelegramID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
