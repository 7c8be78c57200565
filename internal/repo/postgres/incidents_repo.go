package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duty-duck/uptimeengine/internal/domain/incident"
	"github.com/duty-duck/uptimeengine/internal/observability"
)

// ErrIncidentAlreadyLive signals the unique-violation race spec §4.5
// expects: opening a second incident for a source that already has a
// live one.
var ErrIncidentAlreadyLive = errors.New("a live incident already exists for this source")

type IncidentsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewIncidentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *IncidentsRepo {
	return &IncidentsRepo{pool: pool, prom: prom}
}

func (r *IncidentsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Insert creates a new incident row. The partial unique index
// incidents_one_live_per_source enforces "at most one live incident
// per source" (spec §3/§4.5); a violation here means a concurrent
// opener won the race, surfaced as ErrIncidentAlreadyLive. The INSERT
// runs under a savepoint, so a violation leaves the caller's
// transaction usable.
func (r *IncidentsRepo) Insert(ctx context.Context, tx pgx.Tx, inc incident.Incident) error {
	op := "incidents.insert"
	err := r.observe(op, func() error {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return err
		}
		_, err = sp.Exec(ctx, `
			INSERT INTO incidents (
				organization_id, id, cause_kind, cause_error_kind, cause_http_code,
				status, priority, source_kind, source_id, created_at, resolved_at, acknowledged_by
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, inc.OrganizationID, inc.ID, string(inc.Cause.Kind), inc.Cause.ErrorKind, inc.Cause.HTTPCode,
			string(inc.Status), string(inc.Priority), string(inc.Source.Kind), inc.Source.ID,
			inc.CreatedAt, inc.ResolvedAt, mustMarshal(inc.AcknowledgedBy))
		if err != nil {
			_ = sp.Rollback(ctx)
			return err
		}
		return sp.Commit(ctx)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIncidentAlreadyLive
		}
		return err
	}
	return nil
}

// Update persists an incident's mutable fields (status, resolved_at,
// acknowledged_by) within the caller's transaction.
func (r *IncidentsRepo) Update(ctx context.Context, tx pgx.Tx, inc incident.Incident) error {
	op := "incidents.update"
	return r.observe(op, func() error {
		_, err := tx.Exec(ctx, `
			UPDATE incidents
			SET status = $3, resolved_at = $4, acknowledged_by = $5
			WHERE organization_id = $1 AND id = $2
		`, inc.OrganizationID, inc.ID, string(inc.Status), inc.ResolvedAt, mustMarshal(inc.AcknowledgedBy))
		return err
	})
}

// GetLiveBySource locks the (at most one) non-resolved incident for a
// source, for the monitor executor's side-effect path that resolves it
// on recovery. The returned incident's NotifyEmail/NotifySMS/NotifyPush
// and MonitorURL are unset: the incidents table does not store them.
func (r *IncidentsRepo) GetLiveBySource(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, sourceKind incident.SourceKind, sourceID string) (incident.Incident, error) {
	var rows pgx.Rows
	op := "incidents.get_live_by_source"

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = tx.Query(ctx, `
			SELECT organization_id, id, cause_kind, cause_error_kind, cause_http_code,
			       status, priority, source_kind, source_id, created_at, resolved_at, acknowledged_by
			FROM incidents
			WHERE organization_id = $1 AND source_kind = $2 AND source_id = $3 AND status <> 'resolved'
			FOR UPDATE
		`, orgID, string(sourceKind), sourceID)
		return qerr
	})
	if err != nil {
		return incident.Incident{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return incident.Incident{}, rows.Err()
		}
		return incident.Incident{}, pgx.ErrNoRows
	}
	return scanIncident(rows)
}

func scanIncident(rows pgx.Rows) (incident.Incident, error) {
	var (
		inc            incident.Incident
		causeKind      string
		status         string
		priority       string
		sourceKind     string
		acknowledgedRaw []byte
	)

	if err := rows.Scan(
		&inc.OrganizationID, &inc.ID, &causeKind, &inc.Cause.ErrorKind, &inc.Cause.HTTPCode,
		&status, &priority, &sourceKind, &inc.Source.ID, &inc.CreatedAt, &inc.ResolvedAt, &acknowledgedRaw,
	); err != nil {
		return incident.Incident{}, err
	}

	inc.Cause.Kind = incident.CauseKind(causeKind)
	inc.Status = incident.Status(status)
	inc.Priority = incident.Priority(priority)
	inc.Source.Kind = incident.SourceKind(sourceKind)

	if len(acknowledgedRaw) > 0 {
		if err := json.Unmarshal(acknowledgedRaw, &inc.AcknowledgedBy); err != nil {
			return incident.Incident{}, err
		}
	}

	return inc, nil
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("[]")
	}
	return b
}
