package postgres

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vladosShikos/losb-back/internal/domain"
)

type SeederRepo interface {
	Create(ctx context.Context, u domain.User) (bool, error)
}

// SeedUsers creates dev accounts with placeholder phones. Already existing
// accounts are kept as they are so restarts are safe.
func SeedUsers(ctx context.Context, repo SeederRepo, telegramIDs []int64, lg zerolog.Logger) {
	created := 0
	for _, id := range telegramIDs {
		if id <= 0 {
			continue
		}
		ok, err := repo.Create(ctx, domain.User{
			TelegramID: id,
			Phone:      domain.PlaceholderPhone(domain.DefaultCountryCode),
		})
		if err != nil {
			lg.Warn().Err(err).Int64("telegram_id", id).Msg("[seed] create failed")
			continue
		}
		if ok {
			created++
		}
	}

	lg.Info().Int("created", created).Msg("[seed] postgres users seeded")
}
