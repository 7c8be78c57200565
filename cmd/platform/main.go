// Command platform is the entry point for the background execution
// engine: `serve` runs every worker loop plus the health/ready/metrics
// surface, `migrations` applies or rolls back schema migrations. Grounded
// in the teacher's cmd/worker/main.go wiring order (tracer, then
// trace-aware logger, then pool, then repos, then the worker itself).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/duty-duck/uptimeengine/internal/clock"
	"github.com/duty-duck/uptimeengine/internal/config"
	"github.com/duty-duck/uptimeengine/internal/dbx"
	"github.com/duty-duck/uptimeengine/internal/httpapi"
	"github.com/duty-duck/uptimeengine/internal/notify"
	"github.com/duty-duck/uptimeengine/internal/observability"
	"github.com/duty-duck/uptimeengine/internal/prober"
	"github.com/duty-duck/uptimeengine/internal/repo/postgres"
	"github.com/duty-duck/uptimeengine/internal/supervisor"
	"github.com/duty-duck/uptimeengine/internal/worker"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "migrations":
		runMigrations(os.Args[2:])
	case "run":
		runOnce(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: platform <serve|migrations run|migrations undo N|run WORKER>")
	fmt.Fprintln(os.Stderr, "  WORKER one of: monitor_executor, task_due, task_late, task_absent, dead_runs, notifications")
}

// workers bundles every background worker plus the collaborators
// runServe and runOnce both need, so the two entry points share one
// wiring path instead of drifting apart.
type workers struct {
	logger      *slog.Logger
	pool        *pgxpool.Pool
	executor    *worker.MonitorExecutor
	collectors  *worker.TaskCollectors
	deadRuns    *worker.DeadRunCollector
	dispatcher  *worker.NotificationDispatcher
	promHandles *observability.Prom
}

func wireWorkers(ctx context.Context, cfg config.Config, logger *slog.Logger) (*workers, func(), error) {
	pool, err := dbx.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	monitorsRepo := postgres.NewMonitorsRepo(pool, prom)
	tasksRepo := postgres.NewTasksRepo(pool, prom)
	taskRunsRepo := postgres.NewTaskRunsRepo(pool, prom)
	incidentsRepo := postgres.NewIncidentsRepo(pool, prom)
	incidentEventsRepo := postgres.NewIncidentEventsRepo(pool, prom)
	incidentNotificationsRepo := postgres.NewIncidentNotificationsRepo(pool, prom)

	httpProber := prober.NewHTTPClientProber()
	var activeProber prober.HTTPProber = httpProber
	var closeBrowser func()
	if cfg.BrowserServiceGRPCAddress != "" {
		browserProber, err := prober.DialBrowserService(ctx, cfg.BrowserServiceGRPCAddress)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("browser service dial: %w", err)
		}
		activeProber = browserProber
		closeBrowser = func() { _ = browserProber.Close() }
	}

	breakerCfg := notify.BreakerConfig{
		Timeout:          2 * time.Second,
		FailureThreshold: 3,
		Cooldown:         15 * time.Second,
		HalfOpenMaxCalls: 1,
	}
	mailer := notify.NewProtectedMailer(notify.NewLogMailer(logger), breakerCfg)
	sms := notify.NewProtectedSMSSender(notify.NewLogSMSSender(logger), breakerCfg)
	push := notify.NewProtectedPushSender(notify.NewLogPushSender(logger), breakerCfg)
	directory := notify.StaticDirectory{}

	w := &workers{
		logger:      logger,
		pool:        pool,
		promHandles: prom,
		executor: &worker.MonitorExecutor{
			Pool: pool, Monitors: monitorsRepo, Incidents: incidentsRepo,
			IncidentEvents: incidentEventsRepo, Notifications: incidentNotificationsRepo,
			Prober: activeProber, Prom: prom, Clock: clock.Real,
			SelectLimit: cfg.HTTPMonitorsSelectLimit, PingConcurrency: cfg.HTTPMonitorsPingConcurrency,
			Logger: logger,
		},
		collectors: &worker.TaskCollectors{
			Pool: pool, Tasks: tasksRepo, Incidents: incidentsRepo,
			IncidentEvents: incidentEventsRepo, Notifications: incidentNotificationsRepo,
			Prom: prom, Clock: clock.Real, SelectLimit: cfg.TaskCollectorsSelectLimit, Logger: logger,
		},
		deadRuns: &worker.DeadRunCollector{
			Pool: pool, TaskRuns: taskRunsRepo, Tasks: tasksRepo, Incidents: incidentsRepo,
			IncidentEvents: incidentEventsRepo, Notifications: incidentNotificationsRepo,
			Prom: prom, Clock: clock.Real, SelectLimit: cfg.DeadTaskRunsCollectorSelectLimit, Logger: logger,
		},
		dispatcher: &worker.NotificationDispatcher{
			Pool: pool, Notifications: incidentNotificationsRepo, IncidentEvents: incidentEventsRepo,
			Mailer: mailer, SMS: sms, Push: push, Directory: directory,
			Prom: prom, Clock: clock.Real, SelectLimit: cfg.NotificationsSelectLimit, Logger: logger,
		},
	}

	cleanup := func() {
		if closeBrowser != nil {
			closeBrowser()
		}
		pool.Close()
	}
	return w, cleanup, nil
}

// replicateLoop builds n identically-configured loops under distinct
// names so several replicas of the same worker kind can run
// concurrently, each claiming its own batch under SKIP LOCKED.
func replicateLoop(name string, interval time.Duration, fn supervisor.Tick, logger *slog.Logger, n int) []supervisor.Loop {
	if n <= 0 {
		n = 1
	}
	loops := make([]supervisor.Loop, n)
	for i := range loops {
		loops[i] = supervisor.Loop{
			Name:     fmt.Sprintf("%s-%d", name, i),
			Interval: interval,
			Fn:       fn,
			Logger:   logger,
		}
	}
	return loops
}

func runServe() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(context.Background(), "uptimeengine-platform", "")
	if err != nil {
		log.Fatalf("otel init failed: %v", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(observability.NewTraceHandler(base))
	slog.SetDefault(logger)

	w, cleanup, err := wireWorkers(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "platform.wire_failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	loops := []supervisor.Loop{
		{Name: "task_due_collector", Interval: cfg.TaskCollectorsInterval, Fn: w.collectors.DueTick, Logger: logger},
		{Name: "task_late_collector", Interval: cfg.TaskCollectorsInterval, Fn: w.collectors.LateTick, Logger: logger},
		{Name: "task_absent_collector", Interval: cfg.TaskCollectorsInterval, Fn: w.collectors.AbsentTick, Logger: logger},
	}
	loops = append(loops, replicateLoop("monitor_executor", cfg.HTTPMonitorsExecutorInterval, w.executor.Tick, logger, cfg.HTTPMonitorsConcurrentTasks)...)
	loops = append(loops, replicateLoop("dead_run_collector", cfg.DeadTaskRunsCollectorInterval, w.deadRuns.Tick, logger, cfg.DeadTaskRunsCollectorConcurrentTasks)...)
	loops = append(loops, replicateLoop("notification_dispatcher", cfg.NotificationsInterval, w.dispatcher.Tick, logger, cfg.NotificationsConcurrentTasks)...)

	var shuttingDown atomic.Bool
	sup := supervisor.Supervisor{
		ShutdownGrace: 10 * time.Second,
		Loops:         loops,
	}

	srv := httpapi.New(logger, w.pool, w.promHandles, shuttingDown.Load)

	go func() {
		addr := ":" + strconv.Itoa(cfg.Port)
		logger.InfoContext(ctx, "http.listen", "addr", addr)
		if err := srv.Handler().Run(addr); err != nil {
			logger.ErrorContext(ctx, "http.serve_failed", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shuttingDown.Store(true)
	}()

	logger.InfoContext(ctx, "platform.start", "env", cfg.Env)
	sup.Run(ctx)
	logger.InfoContext(context.Background(), "platform.shutdown_complete")
}

// runOnce wires the same workers as `serve` but fires a single tick of
// the named one and exits, for operational debugging without standing
// up the whole supervisor.
func runOnce(args []string) {
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	w, cleanup, err := wireWorkers(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("wiring failed: %v", err)
	}
	defer cleanup()

	var tick func(context.Context) error
	switch args[0] {
	case "monitor_executor":
		tick = w.executor.Tick
	case "task_due":
		tick = w.collectors.DueTick
	case "task_late":
		tick = w.collectors.LateTick
	case "task_absent":
		tick = w.collectors.AbsentTick
	case "dead_runs":
		tick = w.deadRuns.Tick
	case "notifications":
		tick = w.dispatcher.Tick
	default:
		usage()
		os.Exit(1)
	}

	if err := tick(ctx); err != nil {
		log.Fatalf("%s tick failed: %v", args[0], err)
	}
}

func runMigrations(args []string) {
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.DBURL)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer db.Close()

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		if err := dbx.MigrateUp(db); err != nil {
			log.Fatalf("migrations run failed: %v", err)
		}
	case "undo":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("invalid step count %q: %v", args[1], err)
		}
		if err := dbx.MigrateDown(db, n); err != nil {
			log.Fatalf("migrations undo failed: %v", err)
		}
	default:
		usage()
		os.Exit(1)
	}
}

