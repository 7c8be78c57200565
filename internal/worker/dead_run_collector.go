package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duty-duck/uptimeengine/internal/clock"
	"github.com/duty-duck/uptimeengine/internal/dbx"
	"github.com/duty-duck/uptimeengine/internal/domain/incident"
	"github.com/duty-duck/uptimeengine/internal/domain/task"
	"github.com/duty-duck/uptimeengine/internal/domain/taskrun"
	"github.com/duty-duck/uptimeengine/internal/observability"
	"github.com/duty-duck/uptimeengine/internal/repo/postgres"
)

// DeadRunCollector sweeps Running task runs whose heartbeat has
// exceeded their task's heartbeat_timeout, marking the run Dead and its
// owning task Failing (spec §4.4).
type DeadRunCollector struct {
	Pool           *pgxpool.Pool
	TaskRuns       *postgres.TaskRunsRepo
	Tasks          *postgres.TasksRepo
	Incidents      *postgres.IncidentsRepo
	IncidentEvents *postgres.IncidentEventsRepo
	Notifications  *postgres.IncidentNotificationsRepo
	Prom           *observability.Prom
	Clock          clock.Clock
	SelectLimit    int
	Logger         *slog.Logger
}

func (c *DeadRunCollector) Tick(ctx context.Context) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "dead_run_collector")
	defer span.End()

	limit := c.SelectLimit
	if limit <= 0 {
		limit = 500
	}
	now := c.Clock.Now()

	n, err := dbx.RunBatch(ctx, c.Pool,
		func(ctx context.Context, tx pgx.Tx) ([]taskrun.TaskRun, error) {
			return c.TaskRuns.ClaimRunningOverdue(ctx, tx, now, limit)
		},
		func(ctx context.Context, tx pgx.Tx, claimed []taskrun.TaskRun) error {
			for _, run := range claimed {
				if err := c.markDead(ctx, tx, run, now); err != nil {
					return err
				}
			}
			return nil
		},
	)

	if c.Prom != nil {
		c.Prom.ObserveBatch("dead_run_collector", n, err, time.Since(start))
	}
	if err != nil {
		c.Logger.ErrorContext(ctx, "dead_run_collector.batch_failed", "error", err, "batch_size", n)
		return err
	}
	if n > 0 {
		c.Logger.InfoContext(ctx, "dead_run_collector.batch_drained", "batch_size", n)
	}
	return nil
}

func (c *DeadRunCollector) markDead(ctx context.Context, tx pgx.Tx, run taskrun.TaskRun, now time.Time) error {
	dead, err := run.MarkDead(now)
	if err != nil {
		return err
	}
	if err := c.TaskRuns.Update(ctx, tx, dead); err != nil {
		return err
	}

	t, err := c.Tasks.GetForUpdate(ctx, tx, run.OrganizationID, run.TaskID)
	if err != nil {
		if err == task.ErrIllegalTransition {
			// GetForUpdate reports a missing task row this way; the run is
			// still marked dead, nothing more to do.
			return nil
		}
		return err
	}

	transition, err := t.MarkFailingFromDeadRun(now)
	if err != nil {
		if err == task.ErrIllegalTransition {
			// The owning task was archived or otherwise moved out of
			// Running between claim and lookup; the run is still marked
			// dead, nothing more to do.
			return nil
		}
		return err
	}
	if err := c.Tasks.Update(ctx, tx, transition.Task); err != nil {
		return err
	}

	source := incident.Source{Kind: incident.SourceTask, ID: t.ID.String()}
	cause := incident.Cause{Kind: incident.CauseKind(transition.Cause)}
	// Tasks carry no per-channel opt-out of their own, so every channel
	// stays gated only by the escalation policy's own per-step flags.
	result := incident.Open(t.OrganizationID, source, cause, incident.PriorityNormal, false, true, true, true, nil, now)

	if err := c.Incidents.Insert(ctx, tx, result.Incident); err != nil {
		if err == postgres.ErrIncidentAlreadyLive {
			return nil
		}
		return err
	}
	if err := c.IncidentEvents.Insert(ctx, tx, result.CreationEvent); err != nil {
		return err
	}
	return c.Notifications.InsertMany(ctx, tx, result.Notifications)
}
