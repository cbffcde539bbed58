package sms

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vladosShikos/losb-back/internal/application/verification"
	"github.com/vladosShikos/losb-back/internal/metrics"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed   CircuitState = iota // requests pass through
	StateOpen                         // requests fail immediately
	StateHalfOpen                     // limited probe requests pass
)

func (s CircuitState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	ErrCircuitOpen   = errors.New("circuit breaker is open")
	ErrHalfOpenLimit = errors.New("circuit breaker half-open limit reached")
)

// CircuitBreaker stops calling a failing provider for resetTimeout after
// maxFailures consecutive failures.
type CircuitBreaker struct {
	maxFailures      int
	resetTimeout     time.Duration
	halfOpenMaxCalls int
	now              func() time.Time
	onChange         func(CircuitState)

	mu            sync.RWMutex
	state         CircuitState
	failureCount  int
	lastFailTime  time.Time
	halfOpenCalls int
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, halfOpenMaxCalls int) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	if halfOpenMaxCalls <= 0 {
		halfOpenMaxCalls = 1
	}
	return &CircuitBreaker{
		maxFailures:      maxFailures,
		resetTimeout:     resetTimeout,
		halfOpenMaxCalls: halfOpenMaxCalls,
		now:              time.Now,
		onChange:         func(CircuitState) {},
		state:            StateClosed,
	}
}

// Call executes fn unless the circuit is open.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	cb.mu.Lock()
	cb.updateState()

	switch cb.state {
	case StateOpen:
		cb.mu.Unlock()
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			cb.mu.Unlock()
			return ErrHalfOpenLimit
		}
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// A canceled caller says nothing about the provider.
	if err != nil && errors.Is(err, context.Canceled) {
		if cb.state == StateHalfOpen {
			cb.halfOpenCalls--
		}
		return err
	}
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) setState(s CircuitState) {
	if cb.state == s {
		return
	}
	cb.state = s
	cb.onChange(s)
}

func (cb *CircuitBreaker) updateState() {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailTime) >= cb.resetTimeout {
		cb.halfOpenCalls = 0
		cb.setState(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failureCount++
	cb.lastFailTime = cb.now()

	if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
		cb.halfOpenCalls = 0
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.failureCount = 0
	if cb.state == StateHalfOpen {
		cb.halfOpenCalls = 0
		cb.setState(StateClosed)
	}
}

// State reports the state as of now, including a due open -> half-open move.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.updateState()
	return cb.state
}

func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failureCount
}

// BreakerGateway guards an SmsGateway with a CircuitBreaker.
type BreakerGateway struct {
	next     verification.SmsGateway
	cb       *CircuitBreaker
	provider string
	lg       zerolog.Logger
}

func NewBreakerGateway(next verification.SmsGateway, cb *CircuitBreaker, provider string, lg zerolog.Logger) *BreakerGateway {
	g := &BreakerGateway{
		next:     next,
		cb:       cb,
		provider: provider,
		lg:       lg.With().Str("component", "sms_breaker").Str("provider", provider).Logger(),
	}
	cb.onChange = func(s CircuitState) {
		metrics.SetSmsCircuitState(provider, int(s))
		g.lg.Warn().Str("state", s.String()).Msg("circuit state changed")
	}
	metrics.SetSmsCircuitState(provider, int(StateClosed))
	return g
}

func (g *BreakerGateway) Send(ctx context.Context, destination, message string) error {
	err := g.cb.Call(ctx, func(ctx context.Context) error {
		return g.next.Send(ctx, destination, message)
	})
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrHalfOpenLimit) {
		return failure("circuit open", err)
	}
	return err
}
