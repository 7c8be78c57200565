package incident

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func at(offset time.Duration) time.Time {
	return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC).Add(offset)
}

func TestOpen_NoConfirmationNeeded_StagesEscalationNotifications(t *testing.T) {
	orgID := uuid.New()
	source := Source{Kind: SourceHTTPMonitor, ID: uuid.New().String()}
	cause := Cause{Kind: CauseHTTPMonitorDown}

	result := Open(orgID, source, cause, PriorityNormal, false, true, true, true, nil, at(0))

	if result.Incident.Status != StatusOngoing {
		t.Fatalf("got status %v, want ongoing", result.Incident.Status)
	}
	if len(result.Notifications) != len(DefaultEscalationPolicy) {
		t.Fatalf("got %d notifications, want %d", len(result.Notifications), len(DefaultEscalationPolicy))
	}
	for i, step := range DefaultEscalationPolicy {
		n := result.Notifications[i]
		if n.EscalationLevel != step.Level {
			t.Fatalf("notification %d: got level %d, want %d", i, n.EscalationLevel, step.Level)
		}
		if !n.NotificationDueAt.Equal(at(0).Add(step.Delay)) {
			t.Fatalf("notification %d: got due_at %v, want %v", i, n.NotificationDueAt, at(0).Add(step.Delay))
		}
	}
	if result.CreationEvent.Type != EventCreation {
		t.Fatalf("got event type %v, want creation", result.CreationEvent.Type)
	}
}

func TestOpen_ConfirmationNeeded_StartsToBeConfirmedWithNoNotifications(t *testing.T) {
	source := Source{Kind: SourceTask, ID: "nightly-backup"}
	cause := Cause{Kind: CauseTaskRunningLate}

	result := Open(uuid.New(), source, cause, PriorityNormal, true, true, true, true, nil, at(0))

	if result.Incident.Status != StatusToBeConfirmed {
		t.Fatalf("got status %v, want to_be_confirmed", result.Incident.Status)
	}
	if len(result.Notifications) != 0 {
		t.Fatalf("got %d notifications, want 0 until confirmed", len(result.Notifications))
	}
}

func TestOpen_TaskSource_NotificationCarriesTaskID(t *testing.T) {
	source := Source{Kind: SourceTask, ID: "nightly-backup"}
	result := Open(uuid.New(), source, Cause{Kind: CauseTaskFailed}, PriorityNormal, false, true, true, true, nil, at(0))

	for _, n := range result.Notifications {
		if n.Payload.IncidentTaskID == nil || *n.Payload.IncidentTaskID != "nightly-backup" {
			t.Fatalf("got %v, want incident_task_id=nightly-backup", n.Payload.IncidentTaskID)
		}
	}
}

func TestOpen_ChannelFlagsGateEveryEscalationRow(t *testing.T) {
	source := Source{Kind: SourceHTTPMonitor, ID: uuid.New().String()}
	cause := Cause{Kind: CauseHTTPMonitorDown}

	result := Open(uuid.New(), source, cause, PriorityNormal, false, false, true, false, nil, at(0))

	for i, n := range result.Notifications {
		if n.NotifyEmail {
			t.Fatalf("notification %d: email should be suppressed by the source's own flag", i)
		}
		if n.NotifyPush {
			t.Fatalf("notification %d: push should be suppressed by the source's own flag", i)
		}
	}
}

func TestOpen_PopulatesMonitorURLOnEveryEscalationRow(t *testing.T) {
	source := Source{Kind: SourceHTTPMonitor, ID: uuid.New().String()}
	cause := Cause{Kind: CauseHTTPMonitorDown}
	url := "https://example.com/health"

	result := Open(uuid.New(), source, cause, PriorityNormal, false, true, true, true, &url, at(0))

	for i, n := range result.Notifications {
		if n.Payload.MonitorURL == nil || *n.Payload.MonitorURL != url {
			t.Fatalf("notification %d: got monitor url %v, want %q", i, n.Payload.MonitorURL, url)
		}
	}
}

func TestConfirm_MovesToOngoingAndStagesConfirmationNotifications(t *testing.T) {
	inc := Incident{Status: StatusToBeConfirmed, Cause: Cause{Kind: CauseTaskRunningLate}}
	result := Confirm(inc, at(0))

	if result.Incident.Status != StatusOngoing {
		t.Fatalf("got status %v, want ongoing", result.Incident.Status)
	}
	if result.ConfirmationEvent.Type != EventConfirmation {
		t.Fatalf("got event type %v, want confirmation", result.ConfirmationEvent.Type)
	}
	for _, n := range result.Notifications {
		if n.Type != NotificationIncidentConfirmation {
			t.Fatalf("got notification type %v, want incident_confirmation", n.Type)
		}
	}
}

func TestAcknowledge_IsIdempotentPerUser(t *testing.T) {
	inc := Incident{}

	first := Acknowledge(inc, "user-1", at(0))
	if !first.Changed || first.AcknowledgedEvent == nil {
		t.Fatalf("first acknowledge should change state and emit an event")
	}

	second := Acknowledge(first.Incident, "user-1", at(time.Minute))
	if second.Changed {
		t.Fatalf("repeat acknowledge by the same user should be a no-op")
	}
	if second.AcknowledgedEvent != nil {
		t.Fatalf("no-op acknowledge should not emit an event")
	}
}

func TestAcknowledge_DifferentUsers_BothRecorded(t *testing.T) {
	inc := Incident{}
	afterFirst := Acknowledge(inc, "user-1", at(0)).Incident
	second := Acknowledge(afterFirst, "user-2", at(time.Minute))

	if !second.Changed {
		t.Fatalf("a new user's acknowledgement should change state")
	}
	if len(second.Incident.AcknowledgedBy) != 2 {
		t.Fatalf("got %d acknowledgers, want 2", len(second.Incident.AcknowledgedBy))
	}
}

func TestResolve_SetsResolvedAtAndStagesResolutionNotice(t *testing.T) {
	inc := Incident{Status: StatusOngoing, Cause: Cause{Kind: CauseHTTPMonitorDown}}
	result := Resolve(inc, at(0))

	if result.Incident.Status != StatusResolved {
		t.Fatalf("got status %v, want resolved", result.Incident.Status)
	}
	if result.Incident.ResolvedAt == nil || !result.Incident.ResolvedAt.Equal(at(0)) {
		t.Fatalf("got resolved_at %v, want %v", result.Incident.ResolvedAt, at(0))
	}
	if result.ResolutionNotice.Type != NotificationIncidentResolution {
		t.Fatalf("got notice type %v, want incident_resolution", result.ResolutionNotice.Type)
	}
	if !result.CancelNotifications {
		t.Fatalf("resolving should cancel any still-pending escalation notifications")
	}
	if result.Incident.IsLive() {
		t.Fatalf("a resolved incident should no longer count as live")
	}
}
