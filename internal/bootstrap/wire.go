package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/vladosShikos/losb-back/internal/application/verification"
	"github.com/vladosShikos/losb-back/internal/audit"
	"github.com/vladosShikos/losb-back/internal/config"
	"github.com/vladosShikos/losb-back/internal/domain"
	"github.com/vladosShikos/losb-back/internal/infrastructure/db/postgres"
	"github.com/vladosShikos/losb-back/internal/infrastructure/memory"
	rabbitmq_pub "github.com/vladosShikos/losb-back/internal/infrastructure/messaging/rabbitmq"
	"github.com/vladosShikos/losb-back/internal/infrastructure/redis"
	"github.com/vladosShikos/losb-back/internal/infrastructure/security"
	"github.com/vladosShikos/losb-back/internal/infrastructure/sms"
	"github.com/vladosShikos/losb-back/internal/logger"
	"github.com/vladosShikos/losb-back/internal/metrics"
	http_handlers "github.com/vladosShikos/losb-back/internal/transport/http/handlers"
	"github.com/vladosShikos/losb-back/internal/transport/http/middleware"
	"github.com/vladosShikos/losb-back/internal/transport/http/response"
	"github.com/vladosShikos/losb-back/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	// NewDB is only called when DB_ADDR is set.
	NewDB func(addr string, debug bool) (*sql.DB, error)

	// NewRedis is optional; without it (or when redis is down) the per-user
	// rate limits are off.
	NewRedis func(addr, password string, db int) *redis.Client

	// NewPublisher is only called when RABBIT_URL is set.
	NewPublisher func(url, exchange string) (Publisher, error)

	NewSmsGateway func(cfg *config.Config) (verification.SmsGateway, error)

	NewRouter func(router.Deps) (http.Handler, error)

	// Clock is nil in production.
	Clock verification.Clock
}

type Publisher interface {
	verification.EventPublisher
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	lg := logger.Component("bootstrap")
	var cleanupFns []func()

	// 1) storage: postgres, or process memory in dev without DB_ADDR
	var (
		uow    verification.UnitOfWork
		users  verification.UserStore
		checks []http_handlers.ReadinessCheck
	)
	if cfg.DBAddr != "" {
		db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug)
		if err != nil {
			return nil, nil, err
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = postgres.EnsureSchema(ctx, db)
		cancel()
		if err != nil {
			runCleanup(cleanupFns)
			return nil, nil, err
		}

		userRepo := postgres.NewUserRepo(db)
		if cfg.IsDev() && len(cfg.SeedTelegramIDs) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			postgres.SeedUsers(ctx, userRepo, cfg.SeedTelegramIDs, logger.Component("seed"))
			cancel()
		}

		uow = postgres.NewUnitOfWork(db)
		users = userRepo
		checks = append(checks, http_handlers.ReadinessCheck{Name: "database", Ping: db.PingContext})
	} else {
		if !cfg.IsDev() {
			return nil, nil, errors.New("bootstrap: DB_ADDR is required outside dev")
		}
		lg.Warn().Msg("DB_ADDR not set; using in-memory store")

		store := memory.NewStore().WithAutoCreate(domain.DefaultCountryCode)
		for _, id := range cfg.SeedTelegramIDs {
			store.Seed(domain.User{TelegramID: id, Phone: domain.PlaceholderPhone(domain.DefaultCountryCode)})
		}
		uow = store
		users = store.Users()
	}

	// 2) redis (best-effort)
	var redisCli *redis.Client
	if deps.NewRedis != nil && cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.Ping(ctx)
		cancel()

		if err != nil {
			lg.Warn().Err(err).Msg("redis unavailable; per-user rate limits disabled")
			_ = c.Close()
		} else {
			lg.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			checks = append(checks, http_handlers.ReadinessCheck{Name: "redis", Ping: c.Ping})
		}
	}

	// 3) publisher
	var pub verification.EventPublisher
	if cfg.RabbitURL != "" && deps.NewPublisher != nil {
		p, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			if !cfg.IsDev() {
				runCleanup(cleanupFns)
				return nil, nil, err
			}
			lg.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
		} else {
			pub = p
		}
	}
	if pub == nil {
		if !cfg.IsDev() {
			runCleanup(cleanupFns)
			return nil, nil, errors.New("bootstrap: RABBIT_URL is required outside dev")
		}
		pub = memory.NewNoopPublisher(logger.Component("publisher"))
	}
	if c, ok := pub.(interface{ Close() error }); ok {
		cleanupFns = append(cleanupFns, func() { _ = c.Close() })
	}

	// 4) sms gateway
	gateway, err := deps.NewSmsGateway(cfg)
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 5) security
	lg.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt verifier")
	tokens := security.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	// 6) service
	svc, err := verification.NewService(
		uow,
		users,
		security.NewOtpGenerator(),
		security.NewBcryptOtpHasher(cfg.OtpHashCost),
		gateway,
		pub,
		deps.Clock,
		verification.Config{
			OtpDigits:       cfg.OtpDigits,
			ResendCooldown:  cfg.ResendCooldown,
			MaxAttempts:     cfg.MaxAttempts,
			MessageTemplate: cfg.SmsMessageTemplate,
		},
	)
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}
	svc = svc.WithAudit(audit.New(logger.Component("audit")).Record)

	// 7) handlers + middleware
	phoneH := http_handlers.NewPhoneHandler(svc, cfg.IsDev() && cfg.SmsDebugEchoOTP, logger.Component("phone"))
	healthH := http_handlers.NewHealthHandler(checks...)

	authMW := middleware.Auth(tokens, response.WriteError)

	// rate limit (fail-open)
	var fwLimiter *redis.FixedWindowLimiter
	if redisCli != nil {
		fwLimiter = redis.NewFixedWindowLimiter(redisCli)
	}
	rlLog := logger.Component("ratelimit")
	rl := func(key string, limit int, window time.Duration) func(http.Handler) http.Handler {
		if fwLimiter == nil || limit <= 0 {
			return nil
		}
		return middleware.RateLimitFixedWindow(
			fwLimiter,
			middleware.FixedWindowConfig{
				RouteKey: key,
				Limit:    limit,
				Window:   window,
			},
			rlLog,
			response.WriteError,
		)
	}

	// 8) router
	mux, err := deps.NewRouter(router.Deps{
		Health:  healthH,
		Phone:   phoneH,
		Metrics: metrics.Handler(),

		RequestIDMW: middleware.RequestID,
		AccessLogMW: middleware.HTTPLogger(logger.Component("http")),
		MetricsMW:   middleware.Metrics,
		SecurityMW:  middleware.SecurityHeaders(!cfg.IsDev()),
		AuthMW:      authMW,

		IPPerMinute:    cfg.RLIPPerMinute,
		RLPhoneRequest: rl("phone.request", cfg.RLRequestLimit, cfg.RLRequestWindow),
		RLPhoneVerify:  rl("phone.verify", cfg.RLVerifyLimit, cfg.RLVerifyWindow),
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 9) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() { runCleanup(cleanupFns) })
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB: func(addr string, debug bool) (*sql.DB, error) {
			return config.NewDB(addr, debug, logger.Component("db"))
		},
		NewRedis: func(addr, password string, db int) *redis.Client {
			return redis.New(addr, password, db)
		},
		NewPublisher: func(url, exchange string) (Publisher, error) {
			return rabbitmq_pub.NewPublisher(url, exchange, logger.Component("publisher"))
		},
		NewSmsGateway: newSmsGateway,
		NewRouter: func(d router.Deps) (http.Handler, error) {
			return router.New(d)
		},
	}
}

func newSmsGateway(cfg *config.Config) (verification.SmsGateway, error) {
	lg := logger.Component("sms")
	if cfg.SmsProvider == config.SmsProviderLog {
		lg.Warn().Msg("SMS_PROVIDER=log; codes are not delivered")
		return sms.NewLogGateway(lg), nil
	}

	gw, err := sms.NewSmsRuGateway(sms.SmsRuConfig{
		BaseURL: cfg.SmsRuBaseURL,
		APIKey:  cfg.SmsRuAPIKey,
		Timeout: cfg.SmsTimeout,
	}, nil, lg)
	if err != nil {
		return nil, err
	}
	cb := sms.NewCircuitBreaker(cfg.SmsBreakerFailures, cfg.SmsBreakerReset, cfg.SmsBreakerHalfOpen)
	return sms.NewBreakerGateway(gw, cb, sms.ProviderSmsRu, lg), nil
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
