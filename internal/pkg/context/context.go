package context

import "context"

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	telegramIDKey contextKey = "telegram_id"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTelegramID stores the authenticated user.
func WithTelegramID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, telegramIDKey, id)
}

// GetTelegramID reports false when the request was not authenticated.
func GetTelegramID(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(telegramIDKey).(int64)
	return id, ok && id > 0
}
