package incident

import (
	"time"

	"github.com/google/uuid"
)

// OpenResult is everything the repository layer must persist in one
// transaction to open a new incident (spec §4.5 "Open").
type OpenResult struct {
	Incident     Incident
	CreationEvent Event
	Notifications []Notification
}

// Open builds a brand-new incident for a source, immediately due for
// its first (level 0) notification. confirmationNeeded selects whether
// the incident starts ToBeConfirmed (requires a policy/manual Confirm
// step before notifying) or goes straight to Ongoing. notifyEmail/
// notifySMS/notifyPush are the source's own channel opt-outs (a
// monitor's NotifyEmail/NotifySMS/NotifyPush, or true/true/true for
// sources with no such per-channel setting); every escalation row this
// incident ever stages is gated by them alongside the policy's own
// per-step flags. monitorURL is nil for non-monitor sources.
func Open(orgID uuid.UUID, source Source, cause Cause, priority Priority, confirmationNeeded bool, notifyEmail, notifySMS, notifyPush bool, monitorURL *string, now time.Time) OpenResult {
	id := uuid.New()

	status := StatusOngoing
	if confirmationNeeded {
		status = StatusToBeConfirmed
	}

	inc := Incident{
		OrganizationID: orgID,
		ID:             id,
		Cause:          cause,
		Status:         status,
		Priority:       priority,
		Source:         source,
		NotifyEmail:    notifyEmail,
		NotifySMS:      notifySMS,
		NotifyPush:     notifyPush,
		MonitorURL:     monitorURL,
		CreatedAt:      now,
	}

	creationEvent := Event{
		OrganizationID: orgID,
		IncidentID:     id,
		CreatedAt:      now,
		Type:           EventCreation,
		Payload:        nil,
	}

	var notifications []Notification
	if !confirmationNeeded {
		notifications = buildEscalationRows(inc, now)
	}

	return OpenResult{Incident: inc, CreationEvent: creationEvent, Notifications: notifications}
}

func buildEscalationRows(inc Incident, now time.Time) []Notification {
	rows := make([]Notification, 0, len(DefaultEscalationPolicy))
	for _, step := range DefaultEscalationPolicy {
		payload := NotificationPayload{
			IncidentID:      inc.ID,
			Cause:           inc.Cause,
			MonitorURL:      inc.MonitorURL,
			EscalationLevel: step.Level,
		}
		if inc.Source.Kind == SourceTask {
			taskID := inc.Source.ID
			payload.IncidentTaskID = &taskID
		}

		rows = append(rows, Notification{
			OrganizationID:    inc.OrganizationID,
			IncidentID:        inc.ID,
			EscalationLevel:   step.Level,
			Type:              NotificationIncidentCreation,
			NotificationDueAt: now.Add(step.Delay),
			NotifyEmail:       inc.NotifyEmail && step.NotifyEmail,
			NotifySMS:         inc.NotifySMS && step.NotifySMS,
			NotifyPush:        inc.NotifyPush && step.NotifyPush,
			Payload:           payload,
		})
	}
	return rows
}

// ConfirmResult is what the repository must persist for a ToBeConfirmed
// -> Ongoing transition (spec §4.5 "Confirm").
type ConfirmResult struct {
	Incident         Incident
	ConfirmationEvent Event
	Notifications    []Notification
}

func Confirm(inc Incident, now time.Time) ConfirmResult {
	inc.Status = StatusOngoing

	event := Event{
		OrganizationID: inc.OrganizationID,
		IncidentID:     inc.ID,
		CreatedAt:      now,
		Type:           EventConfirmation,
	}

	notifications := buildEscalationRows(inc, now)
	for i := range notifications {
		notifications[i].Type = NotificationIncidentConfirmation
	}

	return ConfirmResult{Incident: inc, ConfirmationEvent: event, Notifications: notifications}
}

// AcknowledgeResult signals whether the acknowledge call did anything;
// spec §4.5 requires it be idempotent per user.
type AcknowledgeResult struct {
	Incident            Incident
	Changed             bool
	AcknowledgedEvent   *Event
	CancelNotifications bool
}

func Acknowledge(inc Incident, userID string, now time.Time) AcknowledgeResult {
	if inc.IsAcknowledgedBy(userID) {
		return AcknowledgeResult{Incident: inc, Changed: false}
	}

	inc.AcknowledgedBy = append(inc.AcknowledgedBy, userID)

	event := Event{
		OrganizationID: inc.OrganizationID,
		IncidentID:     inc.ID,
		CreatedAt:      now,
		Type:           EventAcknowledged,
		Payload:        AcknowledgedPayload{UserID: userID},
	}

	return AcknowledgeResult{
		Incident:            inc,
		Changed:             true,
		AcknowledgedEvent:   &event,
		CancelNotifications: true,
	}
}

// ResolveResult is what the repository must persist to resolve an
// incident (spec §4.5 "Resolve").
type ResolveResult struct {
	Incident          Incident
	ResolutionEvent   Event
	ResolutionNotice  Notification
	CancelNotifications bool
}

func Resolve(inc Incident, now time.Time) ResolveResult {
	inc.Status = StatusResolved
	inc.ResolvedAt = &now

	event := Event{
		OrganizationID: inc.OrganizationID,
		IncidentID:     inc.ID,
		CreatedAt:      now,
		Type:           EventResolution,
	}

	payload := NotificationPayload{IncidentID: inc.ID, Cause: inc.Cause, MonitorURL: inc.MonitorURL, EscalationLevel: 0}
	if inc.Source.Kind == SourceTask {
		taskID := inc.Source.ID
		payload.IncidentTaskID = &taskID
	}

	notice := Notification{
		OrganizationID:    inc.OrganizationID,
		IncidentID:        inc.ID,
		EscalationLevel:   0,
		Type:              NotificationIncidentResolution,
		NotificationDueAt: now,
		NotifyEmail:       inc.NotifyEmail,
		NotifySMS:         false,
		NotifyPush:        inc.NotifyPush,
		Payload:           payload,
	}

	return ResolveResult{
		Incident:            inc,
		ResolutionEvent:      event,
		ResolutionNotice:     notice,
		CancelNotifications: true,
	}
}
