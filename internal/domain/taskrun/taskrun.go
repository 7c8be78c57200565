// Package taskrun models one execution of a task (spec §3, §4.3-§4.4),
// grounded in the teacher's internal/jobs run/attempt shape.
package taskrun

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/duty-duck/uptimeengine/internal/domain/task"
)

type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusAborted  Status = "aborted"
	StatusDead     Status = "dead"
)

var (
	ErrIllegalTransition           = errors.New("illegal task-run status transition")
	ErrInvalidExitCodeForFinished  = errors.New("finished run exit code must be absent or <= 0")
	ErrInvalidExitCodeForFailed    = errors.New("failed run exit code must be absent or > 0")
)

type TaskRun struct {
	OrganizationID uuid.UUID
	TaskID         task.ID
	StartedAt      time.Time

	Status          Status
	CompletedAt     *time.Time
	ExitCode        *int
	ErrorMessage    *string
	LastHeartbeatAt *time.Time
}

// New starts a run, spec §4.3's "Creates a RunningTaskRun with
// started_at = last_heartbeat_at = now".
func New(orgID uuid.UUID, taskID task.ID, now time.Time) TaskRun {
	return TaskRun{
		OrganizationID:  orgID,
		TaskID:          taskID,
		StartedAt:       now,
		Status:          StatusRunning,
		LastHeartbeatAt: &now,
	}
}

func (r TaskRun) Heartbeat(now time.Time) TaskRun {
	r.LastHeartbeatAt = &now
	return r
}

// Finish completes a Running run successfully. exitCode, if present,
// must be <= 0 per spec §3's invariant.
func (r TaskRun) Finish(now time.Time, exitCode *int) (TaskRun, error) {
	if r.Status != StatusRunning {
		return TaskRun{}, ErrIllegalTransition
	}
	if exitCode != nil && *exitCode > 0 {
		return TaskRun{}, ErrInvalidExitCodeForFinished
	}
	r.Status = StatusFinished
	r.CompletedAt = &now
	r.ExitCode = exitCode
	return r, nil
}

// Fail completes a Running run unsuccessfully. exitCode, if present,
// must be > 0 per spec §3's invariant.
func (r TaskRun) Fail(now time.Time, exitCode *int, message *string) (TaskRun, error) {
	if r.Status != StatusRunning {
		return TaskRun{}, ErrIllegalTransition
	}
	if exitCode != nil && *exitCode <= 0 {
		return TaskRun{}, ErrInvalidExitCodeForFailed
	}
	r.Status = StatusFailed
	r.CompletedAt = &now
	r.ExitCode = exitCode
	r.ErrorMessage = message
	return r, nil
}

func (r TaskRun) Abort(now time.Time) (TaskRun, error) {
	if r.Status != StatusRunning {
		return TaskRun{}, ErrIllegalTransition
	}
	r.Status = StatusAborted
	r.CompletedAt = &now
	return r, nil
}

// MarkDead is called by the dead-task-run collector (spec §4.4) when a
// Running run's heartbeat has exceeded the task's heartbeat_timeout.
func (r TaskRun) MarkDead(now time.Time) (TaskRun, error) {
	if r.Status != StatusRunning {
		return TaskRun{}, ErrIllegalTransition
	}
	r.Status = StatusDead
	r.CompletedAt = &now
	return r, nil
}

// IsOverdue reports whether a Running run's heartbeat has exceeded the
// given timeout as of now.
func (r TaskRun) IsOverdue(now time.Time, heartbeatTimeout time.Duration) bool {
	if r.Status != StatusRunning || r.LastHeartbeatAt == nil {
		return false
	}
	return now.Sub(*r.LastHeartbeatAt) >= heartbeatTimeout
}
