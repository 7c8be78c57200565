package task

import (
	"errors"
	"time"
)

var (
	ErrIllegalTransition  = errors.New("illegal task status transition")
	ErrNotYetDue          = errors.New("task is not yet due")
	ErrNotYetLate         = errors.New("task has not reached its lateness boundary")
	ErrNotYetAbsent       = errors.New("task has not reached its absence boundary")
	ErrCannotArchive      = errors.New("task status cannot be archived")
)

// CauseKind mirrors incident.CauseKind's task-sourced values without
// importing the incident package (spec §9's narrow-repository
// guidance); the collector workers translate these into incident
// causes when they open an incident.
type CauseKind string

const (
	CauseTaskRunningLate       CauseKind = "task_running_late"
	CauseTaskFailed            CauseKind = "task_failed"
	CauseTaskHeartbeatTimedOut CauseKind = "task_heartbeat_timed_out"
)

type SideEffectKind int

const (
	SideEffectNone SideEffectKind = iota
	SideEffectOpenIncident
	SideEffectResolveIncident
)

// Transition is the outcome of one task status-machine step: the
// updated task plus any incident side effect the caller must perform
// in the same transaction.
type Transition struct {
	Task       Task
	SideEffect SideEffectKind
	Cause      CauseKind
}

func (t Task) transitionTo(next Status, now time.Time) Task {
	prev := t.Status
	t.PreviousStatus = &prev
	t.Status = next
	t.LastStatusChangeAt = &now
	return t
}

// MarkDue advances a Pending/Healthy/Failing/Absent task to Due once
// next_due_at has elapsed (spec §4.3/§4.4's due collector).
func (t Task) MarkDue(now time.Time) (Task, error) {
	if !dueEligible[t.Status] {
		return Task{}, ErrIllegalTransition
	}
	if t.NextDueAt == nil || now.Before(*t.NextDueAt) {
		return Task{}, ErrNotYetDue
	}
	return t.transitionTo(StatusDue, now), nil
}

// MarkLate advances a Due task to Late past its start window.
func (t Task) MarkLate(now time.Time) (Task, error) {
	if t.Status != StatusDue {
		return Task{}, ErrIllegalTransition
	}
	if t.NextDueAt == nil || now.Before(t.NextDueAt.Add(t.StartWindow)) {
		return Task{}, ErrNotYetLate
	}
	return t.transitionTo(StatusLate, now), nil
}

// MarkAbsent advances a Late task to Absent past its lateness window
// and signals the incident to open (spec §4.3/§4.4's absent collector).
func (t Task) MarkAbsent(now time.Time) (Transition, error) {
	if t.Status != StatusLate {
		return Transition{}, ErrIllegalTransition
	}
	if t.NextDueAt == nil || now.Before(t.NextDueAt.Add(t.StartWindow).Add(t.LatenessWindow)) {
		return Transition{}, ErrNotYetAbsent
	}
	next := t.transitionTo(StatusAbsent, now)
	return Transition{Task: next, SideEffect: SideEffectOpenIncident, Cause: CauseTaskRunningLate}, nil
}

// Start transitions any start-eligible task to Running on an external
// start(task_id) call, recomputing next_due_at from the task's cron
// schedule (nextDue is the caller-computed cron.next_after(now)). The
// caller is responsible for creating the accompanying TaskRun.
func (t Task) Start(now time.Time, nextDue *time.Time) (Task, error) {
	if !startEligible[t.Status] {
		return Task{}, ErrIllegalTransition
	}
	next := t.transitionTo(StatusRunning, now)
	next.NextDueAt = nextDue
	return next, nil
}

// Finish transitions a Running task to Healthy (success) or Failing
// (failure, opening an incident) when its run completes.
func (t Task) Finish(now time.Time, success bool) (Transition, error) {
	if t.Status != StatusRunning {
		return Transition{}, ErrIllegalTransition
	}
	if success {
		return Transition{Task: t.transitionTo(StatusHealthy, now)}, nil
	}
	next := t.transitionTo(StatusFailing, now)
	return Transition{Task: next, SideEffect: SideEffectOpenIncident, Cause: CauseTaskFailed}, nil
}

// Abort transitions a Running task back to Healthy without opening an
// incident.
func (t Task) Abort(now time.Time) (Task, error) {
	if t.Status != StatusRunning {
		return Task{}, ErrIllegalTransition
	}
	return t.transitionTo(StatusHealthy, now), nil
}

// MarkFailingFromDeadRun transitions a Running task to Failing when the
// dead-task-run collector (spec §4.4) declares its run Dead.
func (t Task) MarkFailingFromDeadRun(now time.Time) (Transition, error) {
	if t.Status != StatusRunning {
		return Transition{}, ErrIllegalTransition
	}
	next := t.transitionTo(StatusFailing, now)
	return Transition{Task: next, SideEffect: SideEffectOpenIncident, Cause: CauseTaskHeartbeatTimedOut}, nil
}

// Archive transitions an archivable task to Archived, clearing
// next_due_at and resolving any live incident for it. Per spec §4.3, a
// Running task can never be archived.
func (t Task) Archive(now time.Time) (Transition, error) {
	if !archivable[t.Status] {
		return Transition{}, ErrCannotArchive
	}
	next := t.transitionTo(StatusArchived, now)
	next.NextDueAt = nil
	return Transition{Task: next, SideEffect: SideEffectResolveIncident}, nil
}
