package task

import (
	"testing"
	"time"
)

func at(offset time.Duration) time.Time {
	return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC).Add(offset)
}

func ptr(t time.Time) *time.Time { return &t }

func TestMarkDue_BeforeNextDueAt_ReturnsErrNotYetDue(t *testing.T) {
	task := Task{Status: StatusPending, NextDueAt: ptr(at(time.Hour))}
	if _, err := task.MarkDue(at(0)); err != ErrNotYetDue {
		t.Fatalf("got %v, want ErrNotYetDue", err)
	}
}

func TestMarkDue_IneligibleStatus_ReturnsErrIllegalTransition(t *testing.T) {
	task := Task{Status: StatusRunning, NextDueAt: ptr(at(-time.Hour))}
	if _, err := task.MarkDue(at(0)); err != ErrIllegalTransition {
		t.Fatalf("got %v, want ErrIllegalTransition", err)
	}
}

func TestMarkDue_PastDueAt_Succeeds(t *testing.T) {
	task := Task{Status: StatusHealthy, NextDueAt: ptr(at(-time.Minute))}
	next, err := task.MarkDue(at(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status != StatusDue {
		t.Fatalf("got status %v, want due", next.Status)
	}
	if next.PreviousStatus == nil || *next.PreviousStatus != StatusHealthy {
		t.Fatalf("expected previous_status healthy, got %v", next.PreviousStatus)
	}
}

func TestMarkLate_BeforeStartWindow_ReturnsErrNotYetLate(t *testing.T) {
	task := Task{Status: StatusDue, NextDueAt: ptr(at(0)), StartWindow: time.Hour}
	if _, err := task.MarkLate(at(time.Minute)); err != ErrNotYetLate {
		t.Fatalf("got %v, want ErrNotYetLate", err)
	}
}

func TestMarkAbsent_PastLatenessWindow_OpensIncident(t *testing.T) {
	task := Task{
		Status:         StatusLate,
		NextDueAt:      ptr(at(0)),
		StartWindow:    time.Hour,
		LatenessWindow: time.Hour,
	}
	transition, err := task.MarkAbsent(at(3 * time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.Task.Status != StatusAbsent {
		t.Fatalf("got status %v, want absent", transition.Task.Status)
	}
	if transition.SideEffect != SideEffectOpenIncident || transition.Cause != CauseTaskRunningLate {
		t.Fatalf("got %+v, want open_incident/task_running_late", transition)
	}
}

func TestMarkAbsent_BeforeLatenessWindow_ReturnsErrNotYetAbsent(t *testing.T) {
	task := Task{
		Status:         StatusLate,
		NextDueAt:      ptr(at(0)),
		StartWindow:    time.Hour,
		LatenessWindow: time.Hour,
	}
	if _, err := task.MarkAbsent(at(90 * time.Minute)); err != ErrNotYetAbsent {
		t.Fatalf("got %v, want ErrNotYetAbsent", err)
	}
}

func TestFinish_Success_GoesHealthyWithNoSideEffect(t *testing.T) {
	task := Task{Status: StatusRunning}
	transition, err := task.Finish(at(0), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.Task.Status != StatusHealthy || transition.SideEffect != SideEffectNone {
		t.Fatalf("got %+v, want healthy/none", transition)
	}
}

func TestFinish_Failure_GoesFailingAndOpensIncident(t *testing.T) {
	task := Task{Status: StatusRunning}
	transition, err := task.Finish(at(0), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.Task.Status != StatusFailing || transition.SideEffect != SideEffectOpenIncident {
		t.Fatalf("got %+v, want failing/open_incident", transition)
	}
	if transition.Cause != CauseTaskFailed {
		t.Fatalf("got cause %v, want task_failed", transition.Cause)
	}
}

func TestFinish_NotRunning_ReturnsErrIllegalTransition(t *testing.T) {
	task := Task{Status: StatusHealthy}
	if _, err := task.Finish(at(0), true); err != ErrIllegalTransition {
		t.Fatalf("got %v, want ErrIllegalTransition", err)
	}
}

func TestMarkFailingFromDeadRun_OpensIncidentWithHeartbeatCause(t *testing.T) {
	task := Task{Status: StatusRunning}
	transition, err := task.MarkFailingFromDeadRun(at(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.Task.Status != StatusFailing {
		t.Fatalf("got status %v, want failing", transition.Task.Status)
	}
	if transition.Cause != CauseTaskHeartbeatTimedOut {
		t.Fatalf("got cause %v, want task_heartbeat_timed_out", transition.Cause)
	}
}

func TestArchive_RunningTask_CannotBeArchived(t *testing.T) {
	task := Task{Status: StatusRunning}
	if _, err := task.Archive(at(0)); err != ErrCannotArchive {
		t.Fatalf("got %v, want ErrCannotArchive", err)
	}
}

func TestArchive_ArchivableStatus_ResolvesIncidentAndClearsNextDue(t *testing.T) {
	task := Task{Status: StatusFailing, NextDueAt: ptr(at(time.Hour))}
	transition, err := task.Archive(at(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.Task.Status != StatusArchived {
		t.Fatalf("got status %v, want archived", transition.Task.Status)
	}
	if transition.Task.NextDueAt != nil {
		t.Fatalf("expected next_due_at cleared, got %v", transition.Task.NextDueAt)
	}
	if transition.SideEffect != SideEffectResolveIncident {
		t.Fatalf("got side effect %v, want resolve_incident", transition.SideEffect)
	}
}

func TestNew_NoCronSchedule_PendingWithNoNextDue(t *testing.T) {
	got := New(CreateRequest{}, nil)
	if got.Status != StatusPending || got.NextDueAt != nil {
		t.Fatalf("got %+v, want pending/nil next_due_at", got)
	}
}

func TestNew_ActiveWithSchedule_HealthyAtFirstDue(t *testing.T) {
	schedule := "* * * * *"
	firstDue := at(time.Hour)
	got := New(CreateRequest{CronSchedule: &schedule, IsActive: true}, &firstDue)
	if got.Status != StatusHealthy {
		t.Fatalf("got status %v, want healthy", got.Status)
	}
	if got.NextDueAt == nil || !got.NextDueAt.Equal(firstDue) {
		t.Fatalf("got next_due_at %v, want %v", got.NextDueAt, firstDue)
	}
}

func TestNew_InactiveWithSchedule_PendingAtFirstDue(t *testing.T) {
	schedule := "* * * * *"
	firstDue := at(time.Hour)
	got := New(CreateRequest{CronSchedule: &schedule, IsActive: false}, &firstDue)
	if got.Status != StatusPending {
		t.Fatalf("got status %v, want pending", got.Status)
	}
	if got.NextDueAt == nil || !got.NextDueAt.Equal(firstDue) {
		t.Fatalf("got next_due_at %v, want %v", got.NextDueAt, firstDue)
	}
}
