package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig is the generalized form of the teacher's
// ProtectedNotifierConfig, shared by all three channels so each can be
// tripped and recover independently (spec §4.6 step 3's "per-channel
// failure isolation").
type BreakerConfig struct {
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	HalfOpenMaxCalls int
}

func (cfg BreakerConfig) withDefaults() BreakerConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return cfg
}

type breakerState string

const (
	breakerClosed   breakerState = "closed"
	breakerOpen     breakerState = "open"
	breakerHalfOpen breakerState = "half_open"
)

// breaker is the channel-agnostic circuit core, lifted out of the
// teacher's ProtectedNotifier so Mailer/SMSSender/PushSender can each
// wrap one without duplicating the state machine three times.
type breaker struct {
	cfg BreakerConfig
	mu  sync.Mutex

	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func newBreaker(cfg BreakerConfig) *breaker {
	return &breaker{cfg: cfg.withDefaults(), state: breakerClosed}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(b.openedAt) >= b.cfg.Cooldown {
			b.state = breakerHalfOpen
			b.halfOpenInFlight = 0
			return true
		}
		return false
	case breakerHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return false
		}
		b.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (b *breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}

	if err == nil {
		b.consecutiveFailures = 0
		b.state = breakerClosed
		return
	}

	b.consecutiveFailures++

	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = time.Now()
		return
	}

	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}

// call runs fn under the breaker's fail-fast gate and per-call timeout.
func (b *breaker) call(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	err := fn(callCtx)
	b.after(err)
	return err
}

type ProtectedMailer struct {
	inner Mailer
	b     *breaker
}

func NewProtectedMailer(inner Mailer, cfg BreakerConfig) *ProtectedMailer {
	return &ProtectedMailer{inner: inner, b: newBreaker(cfg)}
}

func (p *ProtectedMailer) Send(ctx context.Context, to string, msg Message) error {
	return p.b.call(ctx, func(ctx context.Context) error { return p.inner.Send(ctx, to, msg) })
}

type ProtectedSMSSender struct {
	inner SMSSender
	b     *breaker
}

func NewProtectedSMSSender(inner SMSSender, cfg BreakerConfig) *ProtectedSMSSender {
	return &ProtectedSMSSender{inner: inner, b: newBreaker(cfg)}
}

func (p *ProtectedSMSSender) Send(ctx context.Context, phone string, msg Message) error {
	return p.b.call(ctx, func(ctx context.Context) error { return p.inner.Send(ctx, phone, msg) })
}

type ProtectedPushSender struct {
	inner PushSender
	b     *breaker
}

func NewProtectedPushSender(inner PushSender, cfg BreakerConfig) *ProtectedPushSender {
	return &ProtectedPushSender{inner: inner, b: newBreaker(cfg)}
}

func (p *ProtectedPushSender) Send(ctx context.Context, tokens []string, payload PushPayload) error {
	return p.b.call(ctx, func(ctx context.Context) error { return p.inner.Send(ctx, tokens, payload) })
}
