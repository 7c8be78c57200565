package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duty-duck/uptimeengine/internal/domain/monitor"
	"github.com/duty-duck/uptimeengine/internal/observability"
)

// MonitorsRepo is the HTTP-monitor aggregate repository, grounded in
// the teacher's JobsRepo: a SKIP LOCKED claim query feeding the
// in-memory state machine, plus targeted per-row updates on the same
// transaction.
type MonitorsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewMonitorsRepo(pool *pgxpool.Pool, prom *observability.Prom) *MonitorsRepo {
	return &MonitorsRepo{pool: pool, prom: prom}
}

func (r *MonitorsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// ClaimDue locks up to limit monitors whose next_ping_at has elapsed
// and which are eligible for probing (spec §4.2's Selection step).
func (r *MonitorsRepo) ClaimDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]monitor.HttpMonitor, error) {
	var rows pgx.Rows
	op := "monitors.claim_due"

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = tx.Query(ctx, `
			SELECT organization_id, id, url, interval_seconds, request_timeout_ms,
			       request_headers, recovery_confirmation_threshold, downtime_confirmation_threshold,
			       status, status_counter, last_status_change_at, next_ping_at,
			       last_http_code, error_kind, metadata, notify_email, notify_sms, notify_push
			FROM http_monitors
			WHERE next_ping_at <= $1
			  AND status NOT IN ('inactive', 'archived')
			ORDER BY next_ping_at
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		`, now, limit)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []monitor.HttpMonitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMonitor(rows pgx.Rows) (monitor.HttpMonitor, error) {
	var (
		m              monitor.HttpMonitor
		intervalSecs   int
		timeoutMs      int
		headersRaw     []byte
		metadataRaw    []byte
		status         string
	)

	if err := rows.Scan(
		&m.OrganizationID, &m.ID, &m.URL, &intervalSecs, &timeoutMs,
		&headersRaw, &m.RecoveryConfirmationThreshold, &m.DowntimeConfirmationThreshold,
		&status, &m.StatusCounter, &m.LastStatusChangeAt, &m.NextPingAt,
		&m.LastHTTPCode, &m.ErrorKind, &metadataRaw, &m.NotifyEmail, &m.NotifySMS, &m.NotifyPush,
	); err != nil {
		return monitor.HttpMonitor{}, err
	}

	m.Interval = time.Duration(intervalSecs) * time.Second
	m.RequestTimeout = time.Duration(timeoutMs) * time.Millisecond
	m.Status = monitor.Status(status)

	if len(headersRaw) > 0 {
		if err := json.Unmarshal(headersRaw, &m.RequestHeaders); err != nil {
			return monitor.HttpMonitor{}, fmt.Errorf("decode request_headers: %w", err)
		}
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &m.Metadata); err != nil {
			return monitor.HttpMonitor{}, fmt.Errorf("decode metadata: %w", err)
		}
	}

	return m, nil
}

// Update persists a monitor's full mutable state after a probe result
// has been applied, within the caller's transaction.
func (r *MonitorsRepo) Update(ctx context.Context, tx pgx.Tx, m monitor.HttpMonitor) error {
	op := "monitors.update"
	return r.observe(op, func() error {
		_, err := tx.Exec(ctx, `
			UPDATE http_monitors
			SET status = $3, status_counter = $4, last_status_change_at = $5,
			    next_ping_at = $6, last_http_code = $7, error_kind = $8, updated_at = now()
			WHERE organization_id = $1 AND id = $2
		`, m.OrganizationID, m.ID, string(m.Status), m.StatusCounter, m.LastStatusChangeAt,
			m.NextPingAt, m.LastHTTPCode, m.ErrorKind)
		return err
	})
}

// Create inserts a brand-new monitor, used by the (out-of-core) admin
// surface or seed scripts; kept here because it shares the aggregate's
// encode/decode logic with ClaimDue/Update.
func (r *MonitorsRepo) Create(ctx context.Context, req monitor.CreateRequest) (monitor.HttpMonitor, error) {
	m, err := monitor.New(req)
	if err != nil {
		return monitor.HttpMonitor{}, err
	}

	headersRaw, err := json.Marshal(m.RequestHeaders)
	if err != nil {
		return monitor.HttpMonitor{}, err
	}
	metadataRaw, err := json.Marshal(m.Metadata)
	if err != nil {
		return monitor.HttpMonitor{}, err
	}

	op := "monitors.create"
	err = r.observe(op, func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO http_monitors (
				organization_id, id, url, interval_seconds, request_timeout_ms, request_headers,
				recovery_confirmation_threshold, downtime_confirmation_threshold,
				status, status_counter, next_ping_at, metadata, notify_email, notify_sms, notify_push
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		`, m.OrganizationID, m.ID, m.URL, int(m.Interval.Seconds()), int(m.RequestTimeout.Milliseconds()), headersRaw,
			m.RecoveryConfirmationThreshold, m.DowntimeConfirmationThreshold,
			string(m.Status), m.StatusCounter, m.NextPingAt, metadataRaw, m.NotifyEmail, m.NotifySMS, m.NotifyPush)
		return err
	})
	if err != nil {
		return monitor.HttpMonitor{}, err
	}
	return m, nil
}

// GetByID fetches a single monitor outside any claim transaction. The
// monitor executor's incident side-effect path does not call it; it
// takes the URL from the monitor it already claimed.
func (r *MonitorsRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (monitor.HttpMonitor, error) {
	var rows pgx.Rows
	op := "monitors.get_by_id"

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, `
			SELECT organization_id, id, url, interval_seconds, request_timeout_ms,
			       request_headers, recovery_confirmation_threshold, downtime_confirmation_threshold,
			       status, status_counter, last_status_change_at, next_ping_at,
			       last_http_code, error_kind, metadata, notify_email, notify_sms, notify_push
			FROM http_monitors
			WHERE organization_id = $1 AND id = $2
		`, orgID, id)
		return qerr
	})
	if err != nil {
		return monitor.HttpMonitor{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return monitor.HttpMonitor{}, rows.Err()
		}
		return monitor.HttpMonitor{}, monitor.ErrNotFound
	}
	return scanMonitor(rows)
}
