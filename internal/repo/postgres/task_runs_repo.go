package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duty-duck/uptimeengine/internal/domain/task"
	"github.com/duty-duck/uptimeengine/internal/domain/taskrun"
	"github.com/duty-duck/uptimeengine/internal/observability"
)

type TaskRunsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTaskRunsRepo(pool *pgxpool.Pool, prom *observability.Prom) *TaskRunsRepo {
	return &TaskRunsRepo{pool: pool, prom: prom}
}

func (r *TaskRunsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanTaskRun(rows pgx.Rows) (taskrun.TaskRun, error) {
	var (
		run    taskrun.TaskRun
		taskID string
		status string
	)

	if err := rows.Scan(
		&run.OrganizationID, &taskID, &run.StartedAt, &status,
		&run.CompletedAt, &run.ExitCode, &run.ErrorMessage, &run.LastHeartbeatAt,
	); err != nil {
		return taskrun.TaskRun{}, err
	}

	run.Status = taskrun.Status(status)
	// The id's uuid/user discriminator lives on the owning task row;
	// task_runs stores only the raw string half of task.ID, rebuilt here
	// as a user id (valid either way since ID.String() round-trips).
	id, err := task.NewUserID(taskID)
	if err != nil {
		return taskrun.TaskRun{}, err
	}
	run.TaskID = id

	return run, nil
}

// ClaimRunningOverdue locks Running task runs whose heartbeat has
// exceeded the owning task's heartbeat_timeout (spec §4.4's dead-run
// collector).
func (r *TaskRunsRepo) ClaimRunningOverdue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]taskrun.TaskRun, error) {
	var rows pgx.Rows
	op := "task_runs.claim_running_overdue"

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = tx.Query(ctx, `
			SELECT tr.organization_id, tr.task_id, tr.started_at, tr.status,
			       tr.completed_at, tr.exit_code, tr.error_message, tr.last_heartbeat_at
			FROM task_runs tr
			JOIN tasks t ON t.organization_id = tr.organization_id AND t.id = tr.task_id
			WHERE tr.status = 'running'
			  AND tr.last_heartbeat_at <= $1 - (t.heartbeat_timeout_seconds * INTERVAL '1 second')
			ORDER BY tr.last_heartbeat_at
			FOR UPDATE OF tr SKIP LOCKED
			LIMIT $2
		`, now, limit)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []taskrun.TaskRun
	for rows.Next() {
		run, err := scanTaskRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Insert creates a new Running run, spec §4.3's Start transition.
func (r *TaskRunsRepo) Insert(ctx context.Context, tx pgx.Tx, run taskrun.TaskRun) error {
	op := "task_runs.insert"
	return r.observe(op, func() error {
		_, err := tx.Exec(ctx, `
			INSERT INTO task_runs (organization_id, task_id, started_at, status, last_heartbeat_at)
			VALUES ($1,$2,$3,$4,$5)
		`, run.OrganizationID, run.TaskID.String(), run.StartedAt, string(run.Status), run.LastHeartbeatAt)
		return err
	})
}

// Update persists a run's terminal/heartbeat fields.
func (r *TaskRunsRepo) Update(ctx context.Context, tx pgx.Tx, run taskrun.TaskRun) error {
	op := "task_runs.update"
	return r.observe(op, func() error {
		_, err := tx.Exec(ctx, `
			UPDATE task_runs
			SET status = $4, completed_at = $5, exit_code = $6, error_message = $7, last_heartbeat_at = $8
			WHERE organization_id = $1 AND task_id = $2 AND started_at = $3
		`, run.OrganizationID, run.TaskID.String(), run.StartedAt,
			string(run.Status), run.CompletedAt, run.ExitCode, run.ErrorMessage, run.LastHeartbeatAt)
		return err
	})
}

// Heartbeat bumps a Running run's last_heartbeat_at from an external
// heartbeat(task_run_id) call.
func (r *TaskRunsRepo) Heartbeat(ctx context.Context, orgID uuid.UUID, taskID task.ID, startedAt time.Time, now time.Time) error {
	op := "task_runs.heartbeat"
	return r.observe(op, func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE task_runs
			SET last_heartbeat_at = $4
			WHERE organization_id = $1 AND task_id = $2 AND started_at = $3 AND status = 'running'
		`, orgID, taskID.String(), startedAt, now)
		return err
	})
}

// GetActiveRun fetches the current Running run for a task, locked
// within the caller's transaction, for the finish/abort paths.
func (r *TaskRunsRepo) GetActiveRun(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, taskID task.ID) (taskrun.TaskRun, error) {
	var rows pgx.Rows
	op := "task_runs.get_active"

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = tx.Query(ctx, `
			SELECT organization_id, task_id, started_at, status, completed_at, exit_code, error_message, last_heartbeat_at
			FROM task_runs
			WHERE organization_id = $1 AND task_id = $2 AND status = 'running'
			FOR UPDATE
		`, orgID, taskID.String())
		return qerr
	})
	if err != nil {
		return taskrun.TaskRun{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return taskrun.TaskRun{}, rows.Err()
		}
		return taskrun.TaskRun{}, pgx.ErrNoRows
	}
	return scanTaskRun(rows)
}
