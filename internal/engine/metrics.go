package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine-owned counters/histograms SPEC_FULL.md §5.2
// asks for: compaction activity, per-CF drop counts, lock-wait duration
// and command latency. Stores record LockWait/CommandLatency; the
// engine itself records CompactionRuns/EntriesDropped.
type Metrics struct {
	CompactionRuns  prometheus.Counter
	EntriesDropped  *prometheus.CounterVec
	LockWait        prometheus.Histogram
	CommandLatency  *prometheus.HistogramVec
}

// NewMetrics builds and registers the engine's metrics against reg. If
// reg is nil, prometheus.DefaultRegisterer is used, mirroring the
// pack's promauto convention of falling back to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CompactionRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blackwidow_compaction_runs_total",
			Help: "Number of compaction passes run across all column families.",
		}),
		EntriesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blackwidow_compaction_entries_dropped_total",
			Help: "Entries dropped by a compaction filter, by column family.",
		}, []string{"cf"}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "blackwidow_lock_wait_seconds",
			Help: "Time spent waiting to acquire a per-user_key lock.",
		}),
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "blackwidow_command_latency_seconds",
			Help: "Command latency by store and command name.",
		}, []string{"store", "command"}),
	}
	reg.MustRegister(m.CompactionRuns, m.EntriesDropped, m.LockWait, m.CommandLatency)
	return m
}

// Observe starts timing a store command and returns a func to call (via
// defer) when the command returns, recording the elapsed time under
// CommandLatency{store, command}. Safe to call on a nil *Metrics (the
// case when Open wasn't given a registerer's worth of reason to
// collect metrics) — the returned func is then a no-op.
func (m *Metrics) Observe(store, command string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.CommandLatency.WithLabelValues(store, command).Observe(time.Since(start).Seconds())
	}
}
