package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duty-duck/uptimeengine/internal/clock"
	"github.com/duty-duck/uptimeengine/internal/dbx"
	"github.com/duty-duck/uptimeengine/internal/domain/incident"
	"github.com/duty-duck/uptimeengine/internal/notify"
	"github.com/duty-duck/uptimeengine/internal/observability"
	"github.com/duty-duck/uptimeengine/internal/repo/postgres"
)

// NotificationDispatcher drains the incident_notifications queue (spec
// §4.6): claim due rows, render and send each enabled channel, record a
// per-channel success bitmap event, then delete the row on commit.
type NotificationDispatcher struct {
	Pool           *pgxpool.Pool
	Notifications  *postgres.IncidentNotificationsRepo
	IncidentEvents *postgres.IncidentEventsRepo
	Mailer         notify.Mailer
	SMS            notify.SMSSender
	Push           notify.PushSender
	Directory      notify.Directory
	Prom           *observability.Prom
	Clock          clock.Clock
	SelectLimit    int
	Logger         *slog.Logger
}

func (d *NotificationDispatcher) Tick(ctx context.Context) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "notification_dispatcher")
	defer span.End()

	limit := d.SelectLimit
	if limit <= 0 {
		limit = 500
	}
	now := d.Clock.Now()

	n, err := dbx.RunBatch(ctx, d.Pool,
		func(ctx context.Context, tx pgx.Tx) ([]incident.Notification, error) {
			return d.Notifications.ClaimDue(ctx, tx, now, limit)
		},
		func(ctx context.Context, tx pgx.Tx, claimed []incident.Notification) error {
			for _, row := range claimed {
				if err := d.deliver(ctx, tx, row, now); err != nil {
					return err
				}
			}
			return nil
		},
	)

	if d.Prom != nil {
		d.Prom.ObserveBatch("notification_dispatcher", n, err, time.Since(start))
	}
	if err != nil {
		d.Logger.ErrorContext(ctx, "notification_dispatcher.batch_failed", "error", err, "batch_size", n)
		return err
	}
	if n > 0 {
		d.Logger.InfoContext(ctx, "notification_dispatcher.batch_drained", "batch_size", n)
	}
	return nil
}

func (d *NotificationDispatcher) deliver(ctx context.Context, tx pgx.Tx, row incident.Notification, now time.Time) error {
	dest, err := d.Directory.Resolve(ctx, row.OrganizationID)
	if err != nil {
		return err
	}
	msg := renderMessage(row)

	result := incident.NotificationResultPayload{EscalationLevel: row.EscalationLevel}

	if row.NotifyEmail {
		ok := d.sendEmail(ctx, dest.Email, msg)
		result.EmailSent = &ok
	}
	if row.NotifySMS {
		ok := d.sendSMS(ctx, dest.Phone, msg)
		result.SMSSent = &ok
	}
	if row.NotifyPush {
		ok := d.sendPush(ctx, dest.PushTokens, notify.PushPayload{Title: msg.Subject, Body: msg.Body})
		result.PushSent = &ok
	}

	event := incident.Event{
		OrganizationID: row.OrganizationID,
		IncidentID:     row.IncidentID,
		CreatedAt:      now,
		Type:           incident.EventNotification,
		Payload:        result,
	}
	if err := d.IncidentEvents.Insert(ctx, tx, event); err != nil {
		return err
	}

	return d.Notifications.Delete(ctx, tx, row)
}

// sendEmail/sendSMS/sendPush each isolate their channel's failure (spec
// §4.6 step 3: one channel's failure never blocks the others) by
// logging and reporting false rather than returning an error that would
// roll back the whole batch.
func (d *NotificationDispatcher) sendEmail(ctx context.Context, to string, msg notify.Message) bool {
	if err := d.Mailer.Send(ctx, to, msg); err != nil {
		d.Logger.WarnContext(ctx, "notification_dispatcher.email_failed", "error", err)
		return false
	}
	return true
}

func (d *NotificationDispatcher) sendSMS(ctx context.Context, phone string, msg notify.Message) bool {
	if err := d.SMS.Send(ctx, phone, msg); err != nil {
		d.Logger.WarnContext(ctx, "notification_dispatcher.sms_failed", "error", err)
		return false
	}
	return true
}

func (d *NotificationDispatcher) sendPush(ctx context.Context, tokens []string, payload notify.PushPayload) bool {
	if err := d.Push.Send(ctx, tokens, payload); err != nil {
		d.Logger.WarnContext(ctx, "notification_dispatcher.push_failed", "error", err)
		return false
	}
	return true
}

func renderMessage(row incident.Notification) notify.Message {
	switch row.Type {
	case incident.NotificationIncidentResolution:
		return notify.Message{
			Subject: "Incident resolved",
			Body:    fmt.Sprintf("Incident %s has been resolved.", row.IncidentID),
		}
	case incident.NotificationIncidentConfirmation:
		return notify.Message{
			Subject: "Incident confirmed",
			Body:    fmt.Sprintf("Incident %s (%s) is confirmed, escalation level %d.", row.IncidentID, row.Payload.Cause.Kind, row.EscalationLevel),
		}
	default:
		return notify.Message{
			Subject: "New incident",
			Body:    fmt.Sprintf("Incident %s opened (%s), escalation level %d.", row.IncidentID, row.Payload.Cause.Kind, row.EscalationLevel),
		}
	}
}
