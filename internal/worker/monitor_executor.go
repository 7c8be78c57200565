// Package worker hosts the background workers spec §2 names: the HTTP
// monitor executor, the four task collectors, and the notification
// dispatcher, each a supervisor.Loop built on the internal/dbx
// transactional selector. Grounded in the teacher's
// internal/queue/worker.Worker loop and tracing style.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/duty-duck/uptimeengine/internal/clock"
	"github.com/duty-duck/uptimeengine/internal/dbx"
	"github.com/duty-duck/uptimeengine/internal/domain/incident"
	"github.com/duty-duck/uptimeengine/internal/domain/monitor"
	"github.com/duty-duck/uptimeengine/internal/observability"
	"github.com/duty-duck/uptimeengine/internal/prober"
	"github.com/duty-duck/uptimeengine/internal/repo/postgres"
)

var tracer = otel.Tracer("uptimeengine-worker")

// MonitorExecutor orchestrates spec §4.2: selection, bounded-parallel
// probing, state-machine application, and incident side effects, one
// transaction per batch.
type MonitorExecutor struct {
	Pool            *pgxpool.Pool
	Monitors        *postgres.MonitorsRepo
	Incidents       *postgres.IncidentsRepo
	IncidentEvents  *postgres.IncidentEventsRepo
	Notifications   *postgres.IncidentNotificationsRepo
	Prober          prober.HTTPProber
	Prom            *observability.Prom
	Clock           clock.Clock
	SelectLimit     int
	PingConcurrency int
	Logger          *slog.Logger
}

// Tick runs one batch: claim due monitors, probe them in parallel,
// apply the confirmation-threshold state machine, and persist
// transitions plus any incident side effect, all before commit.
func (e *MonitorExecutor) Tick(ctx context.Context) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "monitor_executor.tick")
	defer span.End()

	n, err := dbx.RunBatch(ctx, e.Pool, e.claim, e.apply)
	if e.Prom != nil {
		e.Prom.ObserveBatch("monitor_executor", n, err, time.Since(start))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.Logger.ErrorContext(ctx, "monitor_executor.batch_failed", "error", err, "batch_size", n, "elapsed_ms", time.Since(start).Milliseconds())
		return err
	}
	if n > 0 {
		e.Logger.InfoContext(ctx, "monitor_executor.batch_drained", "batch_size", n, "elapsed_ms", time.Since(start).Milliseconds())
	}
	return nil
}

func (e *MonitorExecutor) claim(ctx context.Context, tx pgx.Tx) ([]monitor.HttpMonitor, error) {
	limit := e.SelectLimit
	if limit <= 0 {
		limit = 500
	}
	return e.Monitors.ClaimDue(ctx, tx, e.Clock.Now(), limit)
}

type probeOutcome struct {
	monitor monitor.HttpMonitor
	probe   monitor.PingResponse
}

func (e *MonitorExecutor) apply(ctx context.Context, tx pgx.Tx, claimed []monitor.HttpMonitor) error {
	concurrency := e.PingConcurrency
	if concurrency <= 0 {
		concurrency = 100
	}

	outcomes := make([]probeOutcome, len(claimed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, m := range claimed {
		i, m := i, m
		g.Go(func() error {
			resp, err := e.Prober.Ping(gctx, m.URL, m.RequestTimeout, m.RequestHeaders)
			if err != nil {
				// A prober transport error that isn't already classified into
				// PingResponse is treated as a connect failure rather than
				// aborting the whole batch (spec §7: crashes within a probe
				// task are isolated and cannot take down the pool).
				resp = monitor.PingResponse{ErrorKind: monitor.ErrorKindConnectFailed}
			}
			outcomes[i] = probeOutcome{monitor: m, probe: resp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := e.Clock.Now()
	for _, o := range outcomes {
		m := o.monitor
		transition := m.ApplyProbeResult(now, o.probe)

		if err := e.Monitors.Update(ctx, tx, m); err != nil {
			return err
		}

		if err := e.handleSideEffect(ctx, tx, m, o.probe, transition); err != nil {
			return err
		}
	}
	return nil
}

func (e *MonitorExecutor) handleSideEffect(ctx context.Context, tx pgx.Tx, m monitor.HttpMonitor, probe monitor.PingResponse, t monitor.Transition) error {
	if t.SideEffect == monitor.SideEffectNone {
		return nil
	}

	now := e.Clock.Now()
	source := incident.Source{Kind: incident.SourceHTTPMonitor, ID: m.ID.String()}

	switch t.SideEffect {
	case monitor.SideEffectOpenIncident:
		errKind := string(probe.EffectiveErrorKind())
		cause := incident.Cause{Kind: incident.CauseHTTPMonitorDown, ErrorKind: &errKind, HTTPCode: probe.HTTPCode}
		url := m.URL
		result := incident.Open(m.OrganizationID, source, cause, incident.PriorityNormal, false,
			m.NotifyEmail, m.NotifySMS, m.NotifyPush, &url, now)

		if err := e.Incidents.Insert(ctx, tx, result.Incident); err != nil {
			if err == postgres.ErrIncidentAlreadyLive {
				// A concurrent opener already has a live incident for this
				// source; nothing further to persist for this side effect.
				return nil
			}
			return err
		}
		if err := e.IncidentEvents.Insert(ctx, tx, result.CreationEvent); err != nil {
			return err
		}
		if err := e.IncidentEvents.Insert(ctx, tx, monitorPingedEvent(m.OrganizationID, result.Incident.ID, probe, now)); err != nil {
			return err
		}
		return e.Notifications.InsertMany(ctx, tx, result.Notifications)

	case monitor.SideEffectResolveIncident:
		live, err := e.Incidents.GetLiveBySource(ctx, tx, m.OrganizationID, source.Kind, source.ID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil
			}
			return err
		}

		// The loaded incident carries no channel flags or URL (the
		// incidents table does not store them); take them from the monitor.
		url := m.URL
		live.NotifyEmail, live.NotifySMS, live.NotifyPush = m.NotifyEmail, m.NotifySMS, m.NotifyPush
		live.MonitorURL = &url
		result := incident.Resolve(live, now)
		if err := e.Incidents.Update(ctx, tx, result.Incident); err != nil {
			return err
		}
		if err := e.IncidentEvents.Insert(ctx, tx, result.ResolutionEvent); err != nil {
			return err
		}
		if err := e.IncidentEvents.Insert(ctx, tx, monitorPingedEvent(m.OrganizationID, live.ID, probe, now)); err != nil {
			return err
		}
		if err := e.Notifications.CancelAllForIncident(ctx, tx, live.OrganizationID, live.ID); err != nil {
			return err
		}
		return e.Notifications.InsertMany(ctx, tx, []incident.Notification{result.ResolutionNotice})
	}

	return nil
}

// monitorPingedEvent records the probe outcome that caused this
// transition, so an incident's timeline reads as a sequence of pings
// rather than just its open/resolve boundary.
func monitorPingedEvent(orgID, incidentID uuid.UUID, probe monitor.PingResponse, now time.Time) incident.Event {
	var errKind *string
	if k := string(probe.EffectiveErrorKind()); k != string(monitor.ErrorKindNone) {
		errKind = &k
	}
	return incident.Event{
		OrganizationID: orgID,
		IncidentID:     incidentID,
		CreatedAt:      now,
		Type:           incident.EventMonitorPinged,
		Payload: incident.MonitorPingedPayload{
			Success:   probe.Successful(),
			ErrorKind: errKind,
			HTTPCode:  probe.HTTPCode,
		},
	}
}
