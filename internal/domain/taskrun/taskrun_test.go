package taskrun

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duty-duck/uptimeengine/internal/domain/task"
)

func at(offset time.Duration) time.Time {
	return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC).Add(offset)
}

func exitCode(n int) *int { return &n }

func TestNew_StartsRunningWithHeartbeatAtStart(t *testing.T) {
	taskID := task.NewUUID()
	got := New(uuid.New(), taskID, at(0))
	if got.Status != StatusRunning {
		t.Fatalf("got status %v, want running", got.Status)
	}
	if got.LastHeartbeatAt == nil || !got.LastHeartbeatAt.Equal(at(0)) {
		t.Fatalf("expected heartbeat at start time, got %v", got.LastHeartbeatAt)
	}
}

func TestHeartbeat_AdvancesLastHeartbeatAt(t *testing.T) {
	run := New(uuid.New(), task.NewUUID(), at(0))
	beat := run.Heartbeat(at(time.Minute))
	if beat.LastHeartbeatAt == nil || !beat.LastHeartbeatAt.Equal(at(time.Minute)) {
		t.Fatalf("got %v, want %v", beat.LastHeartbeatAt, at(time.Minute))
	}
}

func TestFinish_RejectsPositiveExitCode(t *testing.T) {
	run := New(uuid.New(), task.NewUUID(), at(0))
	if _, err := run.Finish(at(time.Minute), exitCode(1)); err != ErrInvalidExitCodeForFinished {
		t.Fatalf("got %v, want ErrInvalidExitCodeForFinished", err)
	}
}

func TestFinish_AcceptsZeroOrNegativeExitCode(t *testing.T) {
	run := New(uuid.New(), task.NewUUID(), at(0))
	finished, err := run.Finish(at(time.Minute), exitCode(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finished.Status != StatusFinished {
		t.Fatalf("got status %v, want finished", finished.Status)
	}
}

func TestFail_RejectsNonPositiveExitCode(t *testing.T) {
	run := New(uuid.New(), task.NewUUID(), at(0))
	if _, err := run.Fail(at(time.Minute), exitCode(0), nil); err != ErrInvalidExitCodeForFailed {
		t.Fatalf("got %v, want ErrInvalidExitCodeForFailed", err)
	}
}

func TestFail_AcceptsPositiveExitCode(t *testing.T) {
	run := New(uuid.New(), task.NewUUID(), at(0))
	msg := "boom"
	failed, err := run.Fail(at(time.Minute), exitCode(1), &msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed.Status != StatusFailed || failed.ErrorMessage == nil || *failed.ErrorMessage != msg {
		t.Fatalf("got %+v, want failed with message %q", failed, msg)
	}
}

func TestFinish_NotRunning_ReturnsErrIllegalTransition(t *testing.T) {
	run, _ := New(uuid.New(), task.NewUUID(), at(0)).Finish(at(time.Minute), nil)
	if _, err := run.Finish(at(2*time.Minute), nil); err != ErrIllegalTransition {
		t.Fatalf("got %v, want ErrIllegalTransition", err)
	}
}

func TestMarkDead_FromRunning_Succeeds(t *testing.T) {
	run := New(uuid.New(), task.NewUUID(), at(0))
	dead, err := run.MarkDead(at(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dead.Status != StatusDead {
		t.Fatalf("got status %v, want dead", dead.Status)
	}
}

func TestIsOverdue(t *testing.T) {
	run := New(uuid.New(), task.NewUUID(), at(0))

	if run.IsOverdue(at(30*time.Second), time.Minute) {
		t.Fatalf("should not be overdue before the timeout elapses")
	}
	if !run.IsOverdue(at(time.Minute), time.Minute) {
		t.Fatalf("should be overdue once the timeout has elapsed")
	}
}

func TestIsOverdue_NotRunning_AlwaysFalse(t *testing.T) {
	run, _ := New(uuid.New(), task.NewUUID(), at(0)).Finish(at(time.Minute), nil)
	if run.IsOverdue(at(time.Hour), time.Minute) {
		t.Fatalf("a finished run is never overdue")
	}
}
