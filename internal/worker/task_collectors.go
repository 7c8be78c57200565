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
	"github.com/duty-duck/uptimeengine/internal/observability"
	"github.com/duty-duck/uptimeengine/internal/repo/postgres"
)

// TaskCollectors groups the three sweep workers spec §4.4 names for the
// scheduled side of a task's lifecycle: due, late, and absent. Each is a
// thin wrapper around one TasksRepo claim query and the matching
// task.Mark* transition, sharing the same batch/incident wiring pattern
// as MonitorExecutor.
type TaskCollectors struct {
	Pool           *pgxpool.Pool
	Tasks          *postgres.TasksRepo
	Incidents      *postgres.IncidentsRepo
	IncidentEvents *postgres.IncidentEventsRepo
	Notifications  *postgres.IncidentNotificationsRepo
	Prom           *observability.Prom
	Clock          clock.Clock
	SelectLimit    int
	Logger         *slog.Logger
}

func (c *TaskCollectors) limit() int {
	if c.SelectLimit <= 0 {
		return 500
	}
	return c.SelectLimit
}

// DueTick advances Pending/Healthy/Failing/Absent tasks to Due once
// their schedule's next instant has elapsed.
func (c *TaskCollectors) DueTick(ctx context.Context) error {
	return c.runSweep(ctx, "task_due_collector", func(ctx context.Context, tx pgx.Tx, now time.Time) ([]task.Task, error) {
		return c.Tasks.ClaimDue(ctx, tx, now, c.limit())
	}, func(t task.Task, now time.Time) (task.Task, incidentSideEffect, error) {
		next, err := t.MarkDue(now)
		return next, incidentSideEffect{}, err
	})
}

// LateTick advances Due tasks to Late once they are past their start
// window.
func (c *TaskCollectors) LateTick(ctx context.Context) error {
	return c.runSweep(ctx, "task_late_collector", func(ctx context.Context, tx pgx.Tx, now time.Time) ([]task.Task, error) {
		return c.Tasks.ClaimLate(ctx, tx, now, c.limit())
	}, func(t task.Task, now time.Time) (task.Task, incidentSideEffect, error) {
		next, err := t.MarkLate(now)
		return next, incidentSideEffect{}, err
	})
}

// AbsentTick advances Late tasks to Absent once they are past their
// start+lateness window, opening an incident for each.
func (c *TaskCollectors) AbsentTick(ctx context.Context) error {
	return c.runSweep(ctx, "task_absent_collector", func(ctx context.Context, tx pgx.Tx, now time.Time) ([]task.Task, error) {
		return c.Tasks.ClaimAbsent(ctx, tx, now, c.limit())
	}, func(t task.Task, now time.Time) (task.Task, incidentSideEffect, error) {
		transition, err := t.MarkAbsent(now)
		if err != nil {
			return task.Task{}, incidentSideEffect{}, err
		}
		return transition.Task, incidentSideEffect{
			open:  transition.SideEffect == task.SideEffectOpenIncident,
			cause: transition.Cause,
		}, nil
	})
}

// incidentSideEffect carries the subset of task.Transition the sweeps
// need without forcing every sweep's apply func to return the full
// task.Transition type (DueTick/LateTick never produce a side effect).
type incidentSideEffect struct {
	open  bool
	cause task.CauseKind
}

type claimFn func(ctx context.Context, tx pgx.Tx, now time.Time) ([]task.Task, error)
type transitionFn func(t task.Task, now time.Time) (task.Task, incidentSideEffect, error)

func (c *TaskCollectors) runSweep(ctx context.Context, name string, claim claimFn, transition transitionFn) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	now := c.Clock.Now()
	n, err := dbx.RunBatch(ctx, c.Pool,
		func(ctx context.Context, tx pgx.Tx) ([]task.Task, error) {
			return claim(ctx, tx, now)
		},
		func(ctx context.Context, tx pgx.Tx, claimed []task.Task) error {
			for _, t := range claimed {
				next, effect, err := transition(t, now)
				if err != nil {
					return err
				}
				if err := c.Tasks.Update(ctx, tx, next); err != nil {
					return err
				}
				if effect.open {
					if err := c.openIncident(ctx, tx, next, effect.cause, now); err != nil {
						return err
					}
				}
			}
			return nil
		},
	)

	if c.Prom != nil {
		c.Prom.ObserveBatch(name, n, err, time.Since(start))
	}
	if err != nil {
		c.Logger.ErrorContext(ctx, name+".batch_failed", "error", err, "batch_size", n)
		return err
	}
	if n > 0 {
		c.Logger.InfoContext(ctx, name+".batch_drained", "batch_size", n)
	}
	return nil
}

func (c *TaskCollectors) openIncident(ctx context.Context, tx pgx.Tx, t task.Task, cause task.CauseKind, now time.Time) error {
	source := incident.Source{Kind: incident.SourceTask, ID: t.ID.String()}
	incCause := incident.Cause{Kind: incident.CauseKind(cause)}

	// Tasks carry no per-channel opt-out of their own, so every channel
	// stays gated only by the escalation policy's own per-step flags.
	result := incident.Open(t.OrganizationID, source, incCause, incident.PriorityNormal, false, true, true, true, nil, now)
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
