package incident

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCreation     EventType = "creation"
	EventNotification EventType = "notification"
	EventResolution   EventType = "resolution"
	EventComment      EventType = "comment"
	EventAcknowledged EventType = "acknowledged"
	EventConfirmation EventType = "confirmation"
	EventMonitorPinged EventType = "monitor_pinged"
)

// NotificationResultPayload carries the per-channel success bitmap
// recorded on a Notification timeline event (spec §4.6 step 3).
type NotificationResultPayload struct {
	EscalationLevel int
	EmailSent       *bool
	SMSSent         *bool
	PushSent        *bool
}

// AcknowledgedPayload records who acknowledged the incident.
type AcknowledgedPayload struct {
	UserID string
}

// MonitorPingedPayload records one probe outcome against a live
// incident's source monitor, used for the "flap absorbed" scenario's
// audit trail (spec §8 scenario 1).
type MonitorPingedPayload struct {
	Success   bool
	ErrorKind *string
	HTTPCode  *int
}

type Event struct {
	OrganizationID uuid.UUID
	IncidentID     uuid.UUID
	CreatedAt      time.Time
	Type           EventType
	Payload        any
}
