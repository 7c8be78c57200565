package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Prom holds every Prometheus collector shared across the platform's
// workers and its minimal HTTP surface. One registry is built at process
// start and handed to every worker and repository.
type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Background workers (monitor executor, task collectors, dispatcher)
	BatchDuration  *prometheus.HistogramVec
	BatchResults   *prometheus.CounterVec
	BatchSize      *prometheus.HistogramVec
	NotifyResults  *prometheus.CounterVec
	IncidentsOpen  *prometheus.GaugeVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uptimeengine",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed by the admin/health surface.",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "uptimeengine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "uptimeengine",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "uptimeengine",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uptimeengine",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "uptimeengine",
				Subsystem: "worker",
				Name:      "batch_duration_seconds",
				Help:      "Duration of one selection-transaction batch, by worker.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"worker"},
		),
		BatchResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uptimeengine",
				Subsystem: "worker",
				Name:      "batch_results_total",
				Help:      "Batch outcomes by worker and result (ok|error).",
			},
			[]string{"worker", "result"},
		),
		BatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "uptimeengine",
				Subsystem: "worker",
				Name:      "batch_size",
				Help:      "Number of rows claimed per batch, by worker.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"worker"},
		),
		NotifyResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uptimeengine",
				Subsystem: "notify",
				Name:      "channel_results_total",
				Help:      "Per-channel notification send outcomes.",
			},
			[]string{"channel", "result"},
		),
		IncidentsOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "uptimeengine",
				Subsystem: "incidents",
				Name:      "open",
				Help:      "Number of non-resolved incidents observed at last sweep, by source kind.",
			},
			[]string{"source_kind"},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.BatchDuration, p.BatchResults, p.BatchSize,
		p.NotifyResults, p.IncidentsOpen,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

// ObserveBatch records one worker batch outcome; call after the selection
// transaction commits or rolls back.
func (p *Prom) ObserveBatch(worker string, size int, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.BatchDuration.WithLabelValues(worker).Observe(elapsed.Seconds())
	p.BatchResults.WithLabelValues(worker, result).Inc()
	p.BatchSize.WithLabelValues(worker).Observe(float64(size))
}
