package verification

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// CodePlaceholder is replaced by the OTP in the SMS message template.
const CodePlaceholder = "{code}"

const DefaultMessageTemplate = "Ваш код подтверждения: " + CodePlaceholder

// Config has no defaults for the policy values; all three are required.
type Config struct {
	OtpDigits      int
	ResendCooldown time.Duration
	MaxAttempts    int

	// MessageTemplate must contain CodePlaceholder. Empty means DefaultMessageTemplate.
	MessageTemplate string
}

func (c Config) Validate() error {
	if c.OtpDigits <= 0 {
		return errors.New("verification config: otp digits must be positive")
	}
	if c.ResendCooldown < time.Second {
		return errors.New("verification config: resend cooldown must be at least 1s")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("verification config: max attempts must be positive")
	}
	if c.MessageTemplate != "" && !strings.Contains(c.MessageTemplate, CodePlaceholder) {
		return errors.New("verification config: message template must contain " + CodePlaceholder)
	}
	return nil
}

type Service struct {
	uow    UnitOfWork
	users  UserStore
	otp    OtpGenerator
	hasher OtpHasher
	sms    SmsGateway
	pub    EventPublisher
	clock  Clock

	cfg   Config
	audit func(ctx context.Context, action string, fields map[string]string)
}

func NewService(
	uow UnitOfWork,
	users UserStore,
	otp OtpGenerator,
	hasher OtpHasher,
	sms SmsGateway,
	pub EventPublisher,
	clock Clock,
	cfg Config,
) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if uow == nil || users == nil || otp == nil || hasher == nil || sms == nil {
		return nil, errors.New("verification: missing dependency")
	}
	if cfg.MessageTemplate == "" {
		cfg.MessageTemplate = DefaultMessageTemplate
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Service{
		uow:    uow,
		users:  users,
		otp:    otp,
		hasher: hasher,
		sms:    sms,
		pub:    pub,
		clock:  clock,
		cfg:    cfg,
		audit:  func(context.Context, string, map[string]string) {},
	}, nil
}

func (s *Service) WithAudit(fn func(ctx context.Context, action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// ResendCooldown is exposed so handlers can tell clients when to retry.
func (s *Service) ResendCooldown() time.Duration { return s.cfg.ResendCooldown }

func (s *Service) renderMessage(otp string) string {
	return strings.ReplaceAll(s.cfg.MessageTemplate, CodePlaceholder, otp)
}

// retryAfterSeconds rounds up so a client waiting that long is never early.
func retryAfterSeconds(remaining time.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
