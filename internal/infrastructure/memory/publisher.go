package memory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vladosShikos/losb-back/internal/application/verification"
)

type NoopPublisher struct {
	lg zerolog.Logger
}

func NewNoopPublisher(lg zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{lg: lg.With().Str("component", "noop_publisher").Logger()}
}

func (p *NoopPublisher) PublishPhoneVerified(ctx context.Context, evt verification.PhoneVerifiedEvent) error {
	p.lg.Info().
		Int64("telegram_id", evt.TelegramID).
		Int("code", evt.Code).
		Msg("[noop-pub] phone verified")
	return nil
}
