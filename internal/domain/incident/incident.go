// Package incident models incidents, their timeline, and the
// notification queue (spec §3, §4.5), grounded in the teacher's
// internal/domain/notifications_delivery claim-row pattern generalized
// from "one delivery per registration" to "one incident per source".
package incident

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusToBeConfirmed Status = "to_be_confirmed"
	StatusOngoing       Status = "ongoing"
	StatusResolved      Status = "resolved"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityCritical Priority = "critical"
)

// SourceKind discriminates what an incident was opened against. The
// incident package never imports monitor/task — it resolves the
// relationship through this identity key only, per spec §9's note that
// no cyclic references are required by the core.
type SourceKind string

const (
	SourceHTTPMonitor SourceKind = "http_monitor"
	SourceTask        SourceKind = "task"
)

type Source struct {
	Kind SourceKind
	ID   string
}

// CauseKind enumerates the tagged cause union.
type CauseKind string

const (
	CauseHTTPMonitorDown       CauseKind = "http_monitor_down"
	CauseTaskRunningLate       CauseKind = "task_running_late"
	CauseTaskFailed            CauseKind = "task_failed"
	CauseTaskHeartbeatTimedOut CauseKind = "task_heartbeat_timed_out"
)

type Cause struct {
	Kind      CauseKind
	ErrorKind *string // set for CauseHTTPMonitorDown
	HTTPCode  *int    // set for CauseHTTPMonitorDown
	Message   *string // set for CauseTaskFailed
}

type Incident struct {
	OrganizationID uuid.UUID
	ID             uuid.UUID

	Cause    Cause
	Status   Status
	Priority Priority
	Source   Source

	// NotifyEmail/NotifySMS/NotifyPush carry the source's own channel
	// opt-outs forward from Open, so every later escalation/resolution
	// notification this incident stages stays gated by them alongside
	// the escalation policy's per-step flags. These four fields are not
	// stored in the incidents table, so an incident loaded back from the
	// database has them zero/nil.
	NotifyEmail bool
	NotifySMS   bool
	NotifyPush  bool
	MonitorURL  *string

	CreatedAt      time.Time
	ResolvedAt     *time.Time
	AcknowledgedBy []string
}

// IsLive reports whether the incident still counts toward the "at most
// one live incident per (organization, source)" invariant (spec §3/§8).
func (i Incident) IsLive() bool {
	return i.Status != StatusResolved
}

func (i Incident) IsAcknowledgedBy(userID string) bool {
	for _, id := range i.AcknowledgedBy {
		if id == userID {
			return true
		}
	}
	return false
}
