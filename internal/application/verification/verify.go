package verification

import (
	"context"
	"strconv"

	"github.com/vladosShikos/losb-back/internal/domain"
)

// VerifyCode checks a submitted OTP against the user's pending verification
// and commits the phone on a match.
//
// Check order: no pending, already verified, expired, attempts exceeded,
// code match. Expiry and attempts-exceeded delete the pending record; a
// mismatch only increments attempts. Those side effects are committed even
// though the call fails.
func (s *Service) VerifyCode(ctx context.Context, telegramID int64, otp string, code int, number int64) (domain.Phone, error) {
	submitted := domain.NewPhone(code, number)

	var (
		outcome  error
		attempts int
	)
	err := s.uow.WithinUserLock(ctx, telegramID, func(ctx context.Context, st Stores) error {
		pending, err := st.Verifications.Get(ctx, telegramID)
		if err != nil {
			return err
		}

		u, err := st.Users.Get(ctx, telegramID)
		if err != nil {
			return err
		}
		if u.Phone.Equal(submitted) {
			return domain.ErrPhoneAlreadyVerified()
		}

		now := s.clock.Now()
		if pending.Age(now) > s.cfg.ResendCooldown {
			outcome = domain.ErrVerificationExpired()
			return st.Verifications.Delete(ctx, telegramID)
		}

		// checked before this call's increment
		if pending.Attempts > s.cfg.MaxAttempts {
			outcome = domain.ErrAttemptsExceeded()
			return st.Verifications.Delete(ctx, telegramID)
		}

		ok, err := s.hasher.Matches(pending.OtpHash, otp)
		if err != nil {
			return domain.ErrHashFailed(err)
		}
		// The code only proves possession of the number it was sent to.
		if !ok || !pending.Claimed.Equal(submitted) {
			attempts, err = st.Verifications.IncrementAttempts(ctx, telegramID)
			if err != nil {
				return err
			}
			outcome = domain.ErrVerificationFailed()
			return nil
		}

		u.Phone = submitted
		u.UpdatedAt = now
		if err := st.Users.Save(ctx, u); err != nil {
			return err
		}
		return st.Verifications.Delete(ctx, telegramID)
	})
	if err != nil {
		return domain.Phone{}, err
	}

	fields := map[string]string{
		"telegram_id": strconv.FormatInt(telegramID, 10),
		"phone":       submitted.Masked(),
	}
	if outcome != nil {
		fields["code"] = domain.CodeOf(outcome)
		if attempts > 0 {
			fields["attempts"] = strconv.Itoa(attempts)
		}
		s.audit(ctx, "phone_verification_failed", fields)
		return domain.Phone{}, outcome
	}

	s.audit(ctx, "phone_verified", fields)
	s.publishVerified(ctx, telegramID, code, number)
	return submitted, nil
}

func (s *Service) publishVerified(ctx context.Context, telegramID int64, code int, number int64) {
	if s.pub == nil {
		return
	}
	err := s.pub.PublishPhoneVerified(ctx, PhoneVerifiedEvent{
		TelegramID: telegramID,
		Code:       code,
		Number:     number,
		VerifiedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		s.audit(ctx, "phone_verified_publish_failed", map[string]string{
			"telegram_id": strconv.FormatInt(telegramID, 10),
			"error":       err.Error(),
		})
	}
}
