package verification

import (
	"context"

	"github.com/vladosShikos/losb-back/internal/domain"
)

// GetPhone returns the user's committed phone.
func (s *Service) GetPhone(ctx context.Context, telegramID int64) (domain.Phone, error) {
	u, err := s.users.Get(ctx, telegramID)
	if err != nil {
		return domain.Phone{}, err
	}
	return u.Phone, nil
}
