package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeMailer struct {
	err error
}

func (f *fakeMailer) Send(ctx context.Context, to string, msg Message) error {
	return f.err
}

func TestProtectedMailer_OpensAfterThreshold(t *testing.T) {
	inner := &fakeMailer{err: errors.New("smtp down")}
	cfg := BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour, Timeout: time.Second}
	mailer := NewProtectedMailer(inner, cfg)

	if err := mailer.Send(context.Background(), "a@b.com", Message{}); err == nil {
		t.Fatalf("expected the first failure to propagate the inner error")
	}
	if err := mailer.Send(context.Background(), "a@b.com", Message{}); err == nil {
		t.Fatalf("expected the second failure to propagate the inner error")
	}

	// Threshold reached; the breaker should now fail fast without
	// calling the inner mailer at all.
	err := mailer.Send(context.Background(), "a@b.com", Message{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
}

func TestProtectedMailer_ClosesAgainOnSuccess(t *testing.T) {
	inner := &fakeMailer{err: errors.New("smtp down")}
	cfg := BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour, Timeout: time.Second}
	mailer := NewProtectedMailer(inner, cfg)

	_ = mailer.Send(context.Background(), "a@b.com", Message{})
	if err := mailer.Send(context.Background(), "a@b.com", Message{}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected the breaker to be open, got %v", err)
	}

	inner.err = nil
	cfg2 := BreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond, Timeout: time.Second}
	mailer2 := NewProtectedMailer(inner, cfg2)
	_ = mailer2.Send(context.Background(), "a@b.com", Message{})
	inner.err = errors.New("still down")
	_ = mailer2.Send(context.Background(), "a@b.com", Message{}) // opens the breaker

	time.Sleep(5 * time.Millisecond)
	inner.err = nil
	if err := mailer2.Send(context.Background(), "a@b.com", Message{}); err != nil {
		t.Fatalf("expected a half-open probe to succeed and close the breaker, got %v", err)
	}
	if err := mailer2.Send(context.Background(), "a@b.com", Message{}); err != nil {
		t.Fatalf("expected the breaker to stay closed after a successful probe, got %v", err)
	}
}

func TestProtectedMailer_IndependentBreakersPerInstance(t *testing.T) {
	failing := NewProtectedMailer(&fakeMailer{err: errors.New("down")}, BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	healthy := NewProtectedMailer(&fakeMailer{}, BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})

	_ = failing.Send(context.Background(), "a@b.com", Message{})
	if err := failing.Send(context.Background(), "a@b.com", Message{}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected the failing mailer's breaker to be open")
	}
	if err := healthy.Send(context.Background(), "a@b.com", Message{}); err != nil {
		t.Fatalf("a separate mailer's breaker should be unaffected, got %v", err)
	}
}
