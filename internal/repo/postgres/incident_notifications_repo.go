package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duty-duck/uptimeengine/internal/domain/incident"
	"github.com/duty-duck/uptimeengine/internal/observability"
)

type IncidentNotificationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewIncidentNotificationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *IncidentNotificationsRepo {
	return &IncidentNotificationsRepo{pool: pool, prom: prom}
}

func (r *IncidentNotificationsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// InsertMany enqueues a batch of escalation rows within the caller's
// transaction (spec §4.5 Open/Confirm/Resolve).
func (r *IncidentNotificationsRepo) InsertMany(ctx context.Context, tx pgx.Tx, rows []incident.Notification) error {
	op := "incident_notifications.insert_many"
	return r.observe(op, func() error {
		for _, n := range rows {
			payload, err := incident.EncodeNotificationPayload(n.Payload)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO incident_notifications (
					organization_id, incident_id, escalation_level, notification_type,
					notification_due_at, notify_email, notify_sms, notify_push, payload
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, n.OrganizationID, n.IncidentID, n.EscalationLevel, string(n.Type),
				n.NotificationDueAt, n.NotifyEmail, n.NotifySMS, n.NotifyPush, payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// CancelAllForIncident deletes every pending row for an incident in
// one statement, spec §4.5's Acknowledge/Resolve cancellation.
func (r *IncidentNotificationsRepo) CancelAllForIncident(ctx context.Context, tx pgx.Tx, orgID, incidentID uuid.UUID) error {
	op := "incident_notifications.cancel_all"
	return r.observe(op, func() error {
		_, err := tx.Exec(ctx, `
			DELETE FROM incident_notifications WHERE organization_id = $1 AND incident_id = $2
		`, orgID, incidentID)
		return err
	})
}

// ClaimDue locks up to limit rows due for delivery (spec §4.6 step 1).
func (r *IncidentNotificationsRepo) ClaimDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]incident.Notification, error) {
	var rows pgx.Rows
	op := "incident_notifications.claim_due"

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = tx.Query(ctx, `
			SELECT organization_id, incident_id, escalation_level, notification_type,
			       notification_due_at, notify_email, notify_sms, notify_push, payload
			FROM incident_notifications
			WHERE notification_due_at <= $1
			ORDER BY notification_due_at
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		`, now, limit)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []incident.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(rows pgx.Rows) (incident.Notification, error) {
	var (
		n             incident.Notification
		notifType     string
		payloadRaw    []byte
	)

	if err := rows.Scan(
		&n.OrganizationID, &n.IncidentID, &n.EscalationLevel, &notifType,
		&n.NotificationDueAt, &n.NotifyEmail, &n.NotifySMS, &n.NotifyPush, &payloadRaw,
	); err != nil {
		return incident.Notification{}, err
	}

	n.Type = incident.NotificationType(notifType)
	payload, err := incident.DecodeNotificationPayload(payloadRaw)
	if err != nil {
		return incident.Notification{}, err
	}
	n.Payload = payload
	return n, nil
}

// Delete removes one processed row on commit, completing the
// "row-locked during send, deleted on commit" at-least-once pattern
// (spec §4.6 step 4).
func (r *IncidentNotificationsRepo) Delete(ctx context.Context, tx pgx.Tx, n incident.Notification) error {
	op := "incident_notifications.delete"
	return r.observe(op, func() error {
		_, err := tx.Exec(ctx, `
			DELETE FROM incident_notifications
			WHERE organization_id = $1 AND incident_id = $2 AND escalation_level = $3 AND notification_type = $4
		`, n.OrganizationID, n.IncidentID, n.EscalationLevel, string(n.Type))
		return err
	})
}
