package observability

import (
	"sync/atomic"
	"time"
)

// WorkerMetrics is an in-process counter set for one background worker
// loop. The workers in internal/worker do not create or read one; they
// record batch outcomes through Prom.ObserveBatch.
type WorkerMetrics struct {
	batches atomic.Uint64
	claimed atomic.Uint64
	updated atomic.Uint64
	errored atomic.Uint64

	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{}
}

func (m *WorkerMetrics) IncBatches()      { m.batches.Add(1) }
func (m *WorkerMetrics) AddClaimed(n int) { m.claimed.Add(uint64(n)) }
func (m *WorkerMetrics) AddUpdated(n int) { m.updated.Add(uint64(n)) }
func (m *WorkerMetrics) IncErrored()      { m.errored.Add(1) }

func (m *WorkerMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()
		if ns <= curr {
			return
		}
		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type WorkerMetricsSnapshot struct {
	Batches         uint64
	Claimed         uint64
	Updated         uint64
	Errored         uint64
	DurationCount   uint64
	AverageDuration time.Duration
	MaxDuration     time.Duration
}

func (m *WorkerMetrics) Snapshot() WorkerMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()
	max := m.durationMax.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return WorkerMetricsSnapshot{
		Batches:         m.batches.Load(),
		Claimed:         m.claimed.Load(),
		Updated:         m.updated.Load(),
		Errored:         m.errored.Load(),
		DurationCount:   count,
		AverageDuration: avg,
		MaxDuration:     time.Duration(max),
	}
}
