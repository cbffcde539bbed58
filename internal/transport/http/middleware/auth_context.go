package middleware

import (
	"context"

	appCtx "github.com/vladosShikos/losb-back/internal/pkg/context"
)

// TelegramIDFromContext returns the caller set by Auth.
func TelegramIDFromContext(ctx context.Context) (int64, bool) {
	return appCtx.GetTelegramID(ctx)
}
