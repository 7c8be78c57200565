package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duty-duck/uptimeengine/internal/domain/incident"
	"github.com/duty-duck/uptimeengine/internal/observability"
)

type IncidentEventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewIncidentEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *IncidentEventsRepo {
	return &IncidentEventsRepo{pool: pool, prom: prom}
}

func (r *IncidentEventsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Insert appends one append-only timeline row (spec §3's IncidentEvent).
func (r *IncidentEventsRepo) Insert(ctx context.Context, tx pgx.Tx, e incident.Event) error {
	payload, err := incident.EncodeEventPayload(e)
	if err != nil {
		return err
	}

	op := "incident_events.insert"
	return r.observe(op, func() error {
		_, err := tx.Exec(ctx, `
			INSERT INTO incident_timeline_events (organization_id, incident_id, created_at, event_type, payload)
			VALUES ($1,$2,$3,$4,$5)
		`, e.OrganizationID, e.IncidentID, e.CreatedAt, string(e.Type), payload)
		return err
	})
}

// ListByIncident returns the full timeline for an incident, oldest
// first, for audit/read paths outside the core workers.
func (r *IncidentEventsRepo) ListByIncident(ctx context.Context, orgID, incidentID uuid.UUID) ([]incident.Event, error) {
	var rows pgx.Rows
	op := "incident_events.list_by_incident"

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, `
			SELECT organization_id, incident_id, created_at, event_type, payload
			FROM incident_timeline_events
			WHERE organization_id = $1 AND incident_id = $2
			ORDER BY created_at ASC
		`, orgID, incidentID)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []incident.Event
	for rows.Next() {
		var (
			e          incident.Event
			eventType  string
			payloadRaw []byte
		)
		if err := rows.Scan(&e.OrganizationID, &e.IncidentID, &e.CreatedAt, &eventType, &payloadRaw); err != nil {
			return nil, err
		}
		e.Type = incident.EventType(eventType)
		payload, err := incident.DecodeEventPayload(e.Type, payloadRaw)
		if err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}
