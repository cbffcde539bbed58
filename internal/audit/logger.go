package audit

import (
	"context"

	"github.com/rs/zerolog"

	appCtx "github.com/vladosShikos/losb-back/internal/pkg/context"
)

// Logger writes phone verification business events as structured audit lines.
// Callers pass masked phones; OTP values never reach this package.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

var messages = map[string]string{
	"phone_verification_requested":       "Phone verification code sent",
	"phone_verification_rejected":        "Phone verification request rejected",
	"phone_verification_delivery_failed": "Phone verification code could not be delivered",
	"phone_verification_failed":          "Phone verification failed",
	"phone_verified":                     "Phone verified",
	"phone_verified_publish_failed":      "Phone verified event not published",
}

// warnActions are logged at warn level.
var warnActions = map[string]bool{
	"phone_verification_delivery_failed": true,
	"phone_verification_failed":          true,
	"phone_verified_publish_failed":      true,
}

// Record logs one event. It matches the verification service audit hook.
func (l *Logger) Record(ctx context.Context, action string, fields map[string]string) {
	ev := l.log.Info()
	if warnActions[action] {
		ev = l.log.Warn()
	}

	ev = ev.Str("action", action)
	for k, v := range fields {
		if k == "otp" {
			continue
		}
		ev = ev.Str(k, v)
	}
	if rid := appCtx.GetRequestID(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}

	msg, ok := messages[action]
	if !ok {
		msg = action
	}
	ev.Msg(msg)
}
