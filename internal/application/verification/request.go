package verification

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/vladosShikos/losb-back/internal/domain"
)

// RequestVerification issues a new OTP for the claimed phone and sends it by SMS.
//
// The pending record is reserved under the user lock, the SMS is sent with
// the lock released, and a failed delivery removes the reservation again.
// The returned OTP is for diagnostics only.
func (s *Service) RequestVerification(ctx context.Context, telegramID int64, code int, number int64) (string, error) {
	claimed := domain.NewPhone(code, number)

	var (
		otp      string
		reserved domain.PendingVerification
	)
	err := s.uow.WithinUserLock(ctx, telegramID, func(ctx context.Context, st Stores) error {
		u, err := st.Users.Get(ctx, telegramID)
		if err != nil {
			return err
		}
		if u.Phone.Equal(claimed) {
			return domain.ErrPhoneAlreadyVerified()
		}

		now := s.clock.Now()
		pending, err := st.Verifications.Get(ctx, telegramID)
		switch {
		case err == nil:
			if age := pending.Age(now); age < s.cfg.ResendCooldown {
				return domain.ErrResendCooldownActive(retryAfterSeconds(s.cfg.ResendCooldown - age))
			}
		case !domain.Is(err, domain.CodeNoPendingVerification):
			return err
		}

		otp, err = s.otp.Generate(s.cfg.OtpDigits)
		if err != nil {
			return domain.ErrRandomFailed(err)
		}
		hash, err := s.hasher.Hash(otp)
		if err != nil {
			return domain.ErrHashFailed(err)
		}

		// timestamptz keeps microseconds; the release below compares CreatedAt.
		reserved = domain.PendingVerification{
			TelegramID: telegramID,
			OtpHash:    hash,
			Claimed:    claimed,
			Attempts:   0,
			CreatedAt:  now.Truncate(time.Microsecond),
		}
		return st.Verifications.Put(ctx, reserved)
	})
	if err != nil {
		if domain.FamilyOf(err) == domain.FamilyPolicyViolation {
			s.audit(ctx, "phone_verification_rejected", map[string]string{
				"telegram_id": strconv.FormatInt(telegramID, 10),
				"phone":       claimed.Masked(),
				"code":        domain.CodeOf(err),
			})
		}
		return "", err
	}

	if sendErr := s.sms.Send(ctx, claimed.Destination(), s.renderMessage(otp)); sendErr != nil {
		reason := deliveryReason(sendErr)
		releaseErr := s.release(ctx, reserved)

		fields := map[string]string{
			"telegram_id": strconv.FormatInt(telegramID, 10),
			"phone":       claimed.Masked(),
			"reason":      reason,
		}
		// the reservation is left behind and blocks resends until the cooldown passes
		if releaseErr != nil {
			fields["release_failed"] = releaseErr.Error()
		}
		s.audit(ctx, "phone_verification_delivery_failed", fields)
		// The gateway error may embed the request URL, so it is never the cause.
		return "", domain.ErrSmsDeliveryFailed(reason, releaseErr)
	}

	s.audit(ctx, "phone_verification_requested", map[string]string{
		"telegram_id": strconv.FormatInt(telegramID, 10),
		"phone":       claimed.Masked(),
	})
	return otp, nil
}

// release deletes the reservation if it is still the one this call created.
// It runs even if the caller has gone away.
func (s *Service) release(ctx context.Context, reserved domain.PendingVerification) error {
	ctx = context.WithoutCancel(ctx)
	return s.uow.WithinUserLock(ctx, reserved.TelegramID, func(ctx context.Context, st Stores) error {
		cur, err := st.Verifications.Get(ctx, reserved.TelegramID)
		if err != nil {
			if domain.Is(err, domain.CodeNoPendingVerification) {
				return nil
			}
			return err
		}
		if cur.OtpHash != reserved.OtpHash || !cur.CreatedAt.Equal(reserved.CreatedAt) {
			return nil
		}
		return st.Verifications.Delete(ctx, reserved.TelegramID)
	})
}

func deliveryReason(err error) string {
	var de *DeliveryError
	if errors.As(err, &de) && de.Reason != "" {
		return de.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "SMS service unavailable: timeout"
	}
	return "SMS service unavailable"
}
