package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type PhoneHandler interface {
	GetPhone(w http.ResponseWriter, r *http.Request)
	RequestVerification(w http.ResponseWriter, r *http.Request)
	Verify(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health  HealthHandler
	Phone   PhoneHandler
	Metrics http.Handler

	RequestIDMW func(http.Handler) http.Handler
	AccessLogMW func(http.Handler) http.Handler
	MetricsMW   func(http.Handler) http.Handler
	SecurityMW  func(http.Handler) http.Handler
	AuthMW      func(http.Handler) http.Handler

	// IPPerMinute caps /api traffic per client IP in-process. Zero disables it.
	IPPerMinute int

	// Per-user limits backed by redis; nil disables them.
	RLPhoneRequest func(http.Handler) http.Handler
	RLPhoneVerify  func(http.Handler) http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Phone == nil {
		return nil, fmt.Errorf("nil Phone handler")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}

	r := chi.NewRouter()
	use(r, deps.RequestIDMW)
	r.Use(chimw.RealIP)
	use(r, deps.AccessLogMW)
	r.Use(chimw.Recoverer)
	use(r, deps.MetricsMW)
	use(r, deps.SecurityMW)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.IPPerMinute > 0 {
			r.Use(httprate.LimitByIP(deps.IPPerMinute, time.Minute))
		}

		r.Route("/user/phone", func(r chi.Router) {
			r.Use(deps.AuthMW)

			r.Get("/", deps.Phone.GetPhone)
			r.With(optional(deps.RLPhoneRequest)...).Post("/request", deps.Phone.RequestVerification)
			r.With(optional(deps.RLPhoneVerify)...).Put("/verify", deps.Phone.Verify)
		})
	})

	return r, nil
}

func use(r chi.Router, mw func(http.Handler) http.Handler) {
	if mw != nil {
		r.Use(mw)
	}
}

func optional(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}
