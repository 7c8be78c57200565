// Package task models scheduled, heartbeat-monitored tasks and their
// status transitions (spec §3, §4.3), grounded in the teacher's
// internal/jobs status enum and internal/domain/job.Job entity shape.
package task

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	OrganizationID uuid.UUID
	ID             ID

	CronSchedule     *string
	ScheduleTimezone *string

	StartWindow      time.Duration
	LatenessWindow   time.Duration
	HeartbeatTimeout time.Duration

	Status             Status
	PreviousStatus     *Status
	LastStatusChangeAt *time.Time
	NextDueAt          *time.Time

	Metadata map[string]string
}

type CreateRequest struct {
	OrganizationID   uuid.UUID
	ID               ID
	CronSchedule     *string
	ScheduleTimezone *string
	StartWindow      time.Duration
	LatenessWindow   time.Duration
	HeartbeatTimeout time.Duration
	IsActive         bool
	Metadata         map[string]string
}

// New builds a task per spec §4.3's Create rule: Healthy if active with
// a cron schedule, Pending (due at the next cron instant) if it has a
// schedule but isn't active yet, or Pending with no next_due_at if it
// has no schedule at all. firstDue is the caller-computed
// cron.next_after(now) result (internal/cronexpr), kept out of this
// package so the state machine stays free of the cron library.
func New(req CreateRequest, firstDue *time.Time) Task {
	t := Task{
		OrganizationID:   req.OrganizationID,
		ID:               req.ID,
		CronSchedule:     req.CronSchedule,
		ScheduleTimezone: req.ScheduleTimezone,
		StartWindow:      req.StartWindow,
		LatenessWindow:   req.LatenessWindow,
		HeartbeatTimeout: req.HeartbeatTimeout,
		Metadata:         req.Metadata,
	}

	switch {
	case req.CronSchedule == nil:
		t.Status = StatusPending
		t.NextDueAt = nil
	case req.IsActive:
		t.Status = StatusHealthy
		t.NextDueAt = firstDue
	default:
		t.Status = StatusPending
		t.NextDueAt = firstDue
	}

	return t
}
