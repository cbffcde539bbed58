package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDev = "dev"

	SmsProviderSmsRu = "smsru"
	SmsProviderLog   = "log"
)

type Config struct {
	// App
	Env string // dev / staging / prod

	// HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Auth
	JWTSecret string
	JWTIssuer string

	// Infrastructure. Empty DBAddr / RabbitURL are allowed in dev only and
	// select the in-memory store and the noop publisher.
	DBAddr         string
	DBDebug        bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RabbitURL      string
	RabbitExchange string

	// Dev accounts created at start (DEV_SEED_TELEGRAM_IDS, comma separated).
	SeedTelegramIDs []int64

	// Verification policy (all required)
	OtpDigits      int
	ResendCooldown time.Duration
	MaxAttempts    int
	OtpHashCost    int

	// SMS
	SmsProvider        string
	SmsRuAPIKey        string
	SmsRuBaseURL       string
	SmsTimeout         time.Duration
	SmsMessageTemplate string
	SmsDebugEchoOTP    bool
	SmsBreakerFailures int
	SmsBreakerReset    time.Duration
	SmsBreakerHalfOpen int

	// Rate limits
	RLIPPerMinute   int
	RLRequestLimit  int
	RLRequestWindow time.Duration
	RLVerifyLimit   int
	RLVerifyWindow  time.Duration
}

func (c *Config) IsDev() bool { return c.Env == EnvDev }

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnvFirst([]string{"APP_ENV", "ENV"}, EnvDev),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}
	cfg.JWTIssuer = getEnv("JWT_ISSUER", "")

	// Verification policy. No defaults: a missing value is a startup error.
	var err error
	if cfg.OtpDigits, err = getRequiredInt("SMS_VERIFICATION_CODE_DIGITS"); err != nil {
		return nil, err
	}
	if cfg.OtpDigits > 12 {
		return nil, fmt.Errorf("SMS_VERIFICATION_CODE_DIGITS must be at most 12, got %d", cfg.OtpDigits)
	}
	cooldown, err := getRequiredInt("SMS_VERIFICATION_RESEND_COOLDOWN")
	if err != nil {
		return nil, err
	}
	cfg.ResendCooldown = time.Duration(cooldown) * time.Second
	if cfg.MaxAttempts, err = getRequiredInt("SMS_VERIFICATION_ATTEMPTS"); err != nil {
		return nil, err
	}
	cfg.OtpHashCost = getInt("OTP_HASH_COST", 10)

	// Infrastructure dependencies.
	// Outside dev the service cannot operate without them; fail fast.
	cfg.DBAddr = getEnv("DB_ADDR", "")
	cfg.DBDebug = getBool("DB_DEBUG", false)
	cfg.RabbitURL = getEnv("RABBIT_URL", "")
	cfg.RabbitExchange = getEnv("RABBIT_EXCHANGE", "losb.events")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)
	if strings.Contains(cfg.RedisAddr, " ") {
		return nil, fmt.Errorf("bad REDIS_ADDR (contains spaces): %q", cfg.RedisAddr)
	}

	if cfg.DBAddr != "" && !strings.HasPrefix(cfg.DBAddr, "postgres://") && !strings.HasPrefix(cfg.DBAddr, "postgresql://") {
		return nil, fmt.Errorf("DB_ADDR must be a postgres:// URL")
	}

	if cfg.SeedTelegramIDs, err = getInt64List("DEV_SEED_TELEGRAM_IDS"); err != nil {
		return nil, err
	}

	// SMS
	cfg.SmsRuAPIKey = getEnv("SMS_RU_API_KEY", "")
	defaultProvider := SmsProviderSmsRu
	if cfg.IsDev() && cfg.SmsRuAPIKey == "" {
		defaultProvider = SmsProviderLog
	}
	cfg.SmsProvider = strings.ToLower(getEnv("SMS_PROVIDER", defaultProvider))
	cfg.SmsRuBaseURL = strings.TrimRight(getEnv("SMS_RU_BASE_URL", "https://sms.ru"), "/")
	cfg.SmsMessageTemplate = getEnv("SMS_MESSAGE_TEMPLATE", "")
	cfg.SmsDebugEchoOTP = getBool("SMS_DEBUG_ECHO_OTP", false)
	cfg.SmsBreakerFailures = getInt("SMS_BREAKER_MAX_FAILURES", 5)
	cfg.SmsBreakerHalfOpen = getInt("SMS_BREAKER_HALF_OPEN_CALLS", 1)

	if cfg.SmsTimeout, err = getDuration("SMS_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SmsBreakerReset, err = getDuration("SMS_BREAKER_RESET_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	switch cfg.SmsProvider {
	case SmsProviderSmsRu:
		if cfg.SmsRuAPIKey == "" {
			return nil, fmt.Errorf("missing required env var: SMS_RU_API_KEY")
		}
	case SmsProviderLog:
	default:
		return nil, fmt.Errorf("unknown SMS_PROVIDER %q (want smsru or log)", cfg.SmsProvider)
	}

	if !cfg.IsDev() {
		if cfg.DBAddr == "" {
			return nil, fmt.Errorf("missing required env var: DB_ADDR")
		}
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("missing required env var: RABBIT_URL")
		}
		if cfg.SmsProvider == SmsProviderLog {
			return nil, fmt.Errorf("SMS_PROVIDER=log is only allowed in dev")
		}
		if cfg.SmsDebugEchoOTP {
			return nil, fmt.Errorf("SMS_DEBUG_ECHO_OTP is only allowed in dev")
		}
	}

	// Rate limits
	cfg.RLIPPerMinute = getInt("RL_IP_PER_MINUTE", 60)
	cfg.RLRequestLimit = getInt("RL_PHONE_REQUEST_LIMIT", 5)
	cfg.RLVerifyLimit = getInt("RL_PHONE_VERIFY_LIMIT", 20)
	if cfg.RLRequestWindow, err = getDuration("RL_PHONE_REQUEST_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RLVerifyWindow, err = getDuration("RL_PHONE_VERIFY_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}

	// Timeouts are optional
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFirst(keys []string, def string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return def
}

// getRequiredInt fails on missing, malformed or non-positive values.
func getRequiredInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("missing required env var: %s", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getInt64List(key string) ([]int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid telegram id in %s: %q", key, part)
		}
		out = append(out, n)
	}
	return out, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
