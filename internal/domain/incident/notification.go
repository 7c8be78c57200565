package incident

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationIncidentCreation     NotificationType = "incident_creation"
	NotificationIncidentConfirmation NotificationType = "incident_confirmation"
	NotificationIncidentResolution   NotificationType = "incident_resolution"
)

// NotificationPayload carries everything a channel needs to render a
// message without a second read (spec §4.6 step 2). Per spec §9's open
// question, incident_task_id is always present (nil for HTTP-monitor
// incidents) since task incidents need it and the canonical payload
// shape must carry it.
type NotificationPayload struct {
	IncidentID      uuid.UUID
	Cause           Cause
	MonitorURL      *string
	IncidentTaskID  *string
	EscalationLevel int
}

// Notification is one durable queue row (spec §3's IncidentNotification
// entity). It is live only until its transactional drain by the
// dispatcher (spec §4.6).
type Notification struct {
	OrganizationID    uuid.UUID
	IncidentID        uuid.UUID
	EscalationLevel   int
	Type              NotificationType
	NotificationDueAt time.Time

	NotifyEmail bool
	NotifySMS   bool
	NotifyPush  bool

	Payload NotificationPayload
}

// EscalationStep names which channels fire at a given escalation level
// and how long after the incident's open/confirm time that level's row
// falls due (Delay is measured from that time, not from the previous
// level). spec.md §4.6 only says "higher levels"; the exact
// channel ladder is resolved here per SPEC_FULL.md §14.
type EscalationStep struct {
	Level      int
	Delay      time.Duration
	NotifyEmail, NotifySMS, NotifyPush bool
}

// DefaultEscalationPolicy: level 0 fires immediately on push+email;
// level 1 fires 5 minutes later and adds SMS if still unacknowledged.
var DefaultEscalationPolicy = []EscalationStep{
	{Level: 0, Delay: 0, NotifyEmail: true, NotifySMS: false, NotifyPush: true},
	{Level: 1, Delay: 5 * time.Minute, NotifyEmail: true, NotifySMS: true, NotifyPush: true},
}
