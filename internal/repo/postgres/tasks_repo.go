package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duty-duck/uptimeengine/internal/cronexpr"
	"github.com/duty-duck/uptimeengine/internal/domain/task"
	"github.com/duty-duck/uptimeengine/internal/observability"
)

type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const taskColumns = `organization_id, id, id_kind, cron_schedule, schedule_timezone,
	start_window_seconds, lateness_window_seconds, heartbeat_timeout_seconds,
	status, previous_status, last_status_change_at, next_due_at, metadata`

func scanTask(rows pgx.Rows) (task.Task, error) {
	var (
		t                                                     task.Task
		orgID                                                 uuid.UUID
		rawID, idKind                                         string
		status                                                string
		previousStatus                                        *string
		startSecs, latenessSecs, heartbeatSecs                int
		metadataRaw                                           []byte
	)

	if err := rows.Scan(
		&orgID, &rawID, &idKind, &t.CronSchedule, &t.ScheduleTimezone,
		&startSecs, &latenessSecs, &heartbeatSecs,
		&status, &previousStatus, &t.LastStatusChangeAt, &t.NextDueAt, &metadataRaw,
	); err != nil {
		return task.Task{}, err
	}

	t.OrganizationID = orgID
	t.StartWindow = time.Duration(startSecs) * time.Second
	t.LatenessWindow = time.Duration(latenessSecs) * time.Second
	t.HeartbeatTimeout = time.Duration(heartbeatSecs) * time.Second
	t.Status = task.Status(status)

	if previousStatus != nil {
		ps := task.Status(*previousStatus)
		t.PreviousStatus = &ps
	}

	switch task.IDKind(idKind) {
	case task.IDKindUUID:
		id, err := uuid.Parse(rawID)
		if err != nil {
			return task.Task{}, fmt.Errorf("decode task uuid id: %w", err)
		}
		t.ID = task.ID{Kind: task.IDKindUUID, UUID: id}
	default:
		id, err := task.NewUserID(rawID)
		if err != nil {
			return task.Task{}, fmt.Errorf("decode task user id: %w", err)
		}
		t.ID = id
	}

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &t.Metadata); err != nil {
			return task.Task{}, fmt.Errorf("decode task metadata: %w", err)
		}
	}

	return t, nil
}

// ClaimDue locks Pending|Healthy|Failing|Absent tasks whose next_due_at
// has elapsed (spec §4.4's due collector).
func (r *TasksRepo) ClaimDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]task.Task, error) {
	return r.claimByStatus(ctx, tx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status IN ('pending', 'healthy', 'failing', 'absent')
		  AND next_due_at <= $1
		ORDER BY next_due_at
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`, now, limit)
}

// ClaimLate locks Due tasks past their start window (spec §4.4's late
// collector).
func (r *TasksRepo) ClaimLate(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]task.Task, error) {
	return r.claimByStatus(ctx, tx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'due'
		  AND next_due_at + (start_window_seconds * INTERVAL '1 second') <= $1
		ORDER BY next_due_at
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`, now, limit)
}

// ClaimAbsent locks Late tasks past their start+lateness window (spec
// §4.4's absent collector).
func (r *TasksRepo) ClaimAbsent(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]task.Task, error) {
	return r.claimByStatus(ctx, tx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'late'
		  AND next_due_at + (start_window_seconds * INTERVAL '1 second') + (lateness_window_seconds * INTERVAL '1 second') <= $1
		ORDER BY next_due_at
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`, now, limit)
}

func (r *TasksRepo) claimByStatus(ctx context.Context, tx pgx.Tx, query string, now time.Time, limit int) ([]task.Task, error) {
	var rows pgx.Rows
	op := "tasks.claim"

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = tx.Query(ctx, query, now, limit)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetForUpdate locks a single task by id, used by the Running-state
// transitions (start/finish/abort) and by the dead-run collector when
// it needs to fail the owning task alongside its run.
func (r *TasksRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, id task.ID) (task.Task, error) {
	var rows pgx.Rows
	op := "tasks.get_for_update"

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = tx.Query(ctx, `
			SELECT `+taskColumns+`
			FROM tasks
			WHERE organization_id = $1 AND id = $2
			FOR UPDATE
		`, orgID, id.String())
		return qerr
	})
	if err != nil {
		return task.Task{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return task.Task{}, rows.Err()
		}
		return task.Task{}, task.ErrIllegalTransition
	}
	return scanTask(rows)
}

// Update persists a task's mutable status fields within the caller's
// transaction.
func (r *TasksRepo) Update(ctx context.Context, tx pgx.Tx, t task.Task) error {
	op := "tasks.update"
	return r.observe(op, func() error {
		var previousStatus *string
		if t.PreviousStatus != nil {
			s := string(*t.PreviousStatus)
			previousStatus = &s
		}
		_, err := tx.Exec(ctx, `
			UPDATE tasks
			SET status = $3, previous_status = $4, last_status_change_at = $5,
			    next_due_at = $6, updated_at = now()
			WHERE organization_id = $1 AND id = $2
		`, t.OrganizationID, t.ID.String(), string(t.Status), previousStatus, t.LastStatusChangeAt, t.NextDueAt)
		return err
	})
}

// Create inserts a brand-new task, rejecting a cron schedule (or its
// timezone) that cronexpr.Parse does not accept.
func (r *TasksRepo) Create(ctx context.Context, req task.CreateRequest, firstDue *time.Time) (task.Task, error) {
	if req.CronSchedule != nil {
		tz := ""
		if req.ScheduleTimezone != nil {
			tz = *req.ScheduleTimezone
		}
		if _, err := cronexpr.Parse(*req.CronSchedule, tz); err != nil {
			return task.Task{}, err
		}
	}
	t := task.New(req, firstDue)

	metadataRaw, err := json.Marshal(t.Metadata)
	if err != nil {
		return task.Task{}, err
	}

	op := "tasks.create"
	err = r.observe(op, func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO tasks (
				organization_id, id, id_kind, cron_schedule, schedule_timezone,
				start_window_seconds, lateness_window_seconds, heartbeat_timeout_seconds,
				status, next_due_at, metadata
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, t.OrganizationID, t.ID.String(), string(t.ID.Kind), t.CronSchedule, t.ScheduleTimezone,
			int(t.StartWindow.Seconds()), int(t.LatenessWindow.Seconds()), int(t.HeartbeatTimeout.Seconds()),
			string(t.Status), t.NextDueAt, metadataRaw)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}
