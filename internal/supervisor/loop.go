// Package supervisor runs the platform's background workers as a set of
// independent interval loops that all honor one shutdown signal, grounded
// in the teacher's worker.Run ticker/context-done pattern
// (internal/queue/worker/worker.go in the retrieval pack).
package supervisor

import (
	"context"
	"log/slog"
	"time"
)

// Tick is the unit of work one worker performs on every interval. It
// receives a context that is cancelled when the batch's own per-tick
// deadline (if any) elapses, not when the process is shutting down —
// callers derive their own timeouts from ctx for individual I/O calls.
type Tick func(ctx context.Context) error

// Loop runs fn every interval until ctx is cancelled. On shutdown, a
// batch already in flight is allowed to finish; no new batch starts.
// This mirrors spec §5's "current batch finishes its transaction; no new
// batches are started" cancellation rule.
type Loop struct {
	Name     string
	Interval time.Duration
	Fn       Tick
	Logger   *slog.Logger
}

func (l Loop) Run(ctx context.Context) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "worker.stop", "worker", l.Name)
			return

		case <-ticker.C:
			if ctx.Err() != nil {
				logger.InfoContext(ctx, "worker.stop", "worker", l.Name)
				return
			}
			start := time.Now()
			// The batch runs on a context that shutdown does not cancel, so
			// a batch already in flight finishes its transaction.
			err := l.Fn(context.WithoutCancel(ctx))
			elapsed := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "worker.tick_failed",
					"worker", l.Name,
					"elapsed_ms", elapsed.Milliseconds(),
					"err", err,
				)
				continue
			}

			logger.DebugContext(ctx, "worker.tick_ok",
				"worker", l.Name,
				"elapsed_ms", elapsed.Milliseconds(),
			)
		}
	}
}

// Supervisor owns the process-wide shutdown signal and runs a fixed set
// of Loops to completion concurrently, waiting up to ShutdownGrace for
// in-flight batches to finish after ctx is cancelled.
type Supervisor struct {
	Loops         []Loop
	ShutdownGrace time.Duration
}

func (s Supervisor) Run(ctx context.Context) {
	grace := s.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}

	done := make(chan struct{})
	go func() {
		runAll(ctx, s.Loops)
		close(done)
	}()

	<-ctx.Done()

	select {
	case <-done:
	case <-time.After(grace):
		slog.Default().Warn("supervisor.shutdown_grace_exceeded", "grace", grace)
	}
}

func runAll(ctx context.Context, loops []Loop) {
	doneCh := make(chan struct{}, len(loops))
	for _, l := range loops {
		l := l
		go func() {
			l.Run(ctx)
			doneCh <- struct{}{}
		}()
	}
	for range loops {
		<-doneCh
	}
}
