package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vladosShikos/losb-back/internal/domain"
)

const namespace = "losb"

var (
	verificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phone_verification_outcomes_total",
			Help:      "Phone verification calls by operation, result code and error family",
		},
		[]string{"operation", "code", "family"}, // code "ok" on success
	)

	smsSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sms_send_duration_seconds",
			Help:      "SMS gateway call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "outcome"},
	)

	smsCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sms_circuit_state",
			Help:      "SMS circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"provider"},
	)
)

const (
	OperationRequest = "request"
	OperationVerify  = "verify"
)

// RecordVerification counts one RequestVerification or VerifyCode call.
func RecordVerification(operation string, err error) {
	code := "ok"
	family := ""
	if err != nil {
		code = domain.CodeOf(err)
		family = string(domain.FamilyOf(err))
	}
	verificationOutcomes.WithLabelValues(operation, code, family).Inc()
}

func ObserveSmsSend(provider string, err error, d time.Duration) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	smsSendDuration.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

func SetSmsCircuitState(provider string, state int) {
	smsCircuitState.WithLabelValues(provider).Set(float64(state))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
