package rkv

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets defines the command-latency histogram buckets in
// nanoseconds, covering from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a Server.
// All fields are lock-free atomics so the single reactor goroutine can
// record them on the hot path without contention.
type Metrics struct {
	CommandsProcessed atomic.Uint64
	CommandErrors     atomic.Uint64
	ConnectionsOpened atomic.Uint64
	ConnectionsClosed atomic.Uint64

	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64

	KeysExpiredLazy   atomic.Uint64
	KeysExpiredActive atomic.Uint64

	BackpressureDrops atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCommand records one dispatched command and its execution latency.
func (m *Metrics) RecordCommand(latencyNs uint64, success bool) {
	m.CommandsProcessed.Add(1)
	if !success {
		m.CommandErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordConnectionOpened records a newly accepted connection.
func (m *Metrics) RecordConnectionOpened() { m.ConnectionsOpened.Add(1) }

// RecordConnectionClosed records a connection being torn down.
func (m *Metrics) RecordConnectionClosed() { m.ConnectionsClosed.Add(1) }

// RecordRead records bytes pulled off a client socket.
func (m *Metrics) RecordRead(n uint64) { m.BytesRead.Add(n) }

// RecordWrite records bytes flushed to a client socket.
func (m *Metrics) RecordWrite(n uint64) { m.BytesWritten.Add(n) }

// RecordLazyExpire records a key removed by lazy (on-access) expiration.
func (m *Metrics) RecordLazyExpire() { m.KeysExpiredLazy.Add(1) }

// RecordActiveExpire records n keys removed by an active-expire sampling pass.
func (m *Metrics) RecordActiveExpire(n uint64) { m.KeysExpiredActive.Add(n) }

// RecordBackpressureDrop records a connection closed for exceeding its
// outbound buffer high-water mark.
func (m *Metrics) RecordBackpressureDrop() { m.BackpressureDrops.Add(1) }

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the server as stopped for uptime accounting.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// further synchronization.
type MetricsSnapshot struct {
	CommandsProcessed uint64
	CommandErrors     uint64
	ConnectionsOpened uint64
	ConnectionsClosed uint64
	BytesRead         uint64
	BytesWritten      uint64
	KeysExpiredLazy   uint64
	KeysExpiredActive uint64
	BackpressureDrops uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyHistogram [numLatencyBuckets]uint64

	CommandErrorRate float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		CommandsProcessed: m.CommandsProcessed.Load(),
		CommandErrors:     m.CommandErrors.Load(),
		ConnectionsOpened: m.ConnectionsOpened.Load(),
		ConnectionsClosed: m.ConnectionsClosed.Load(),
		BytesRead:         m.BytesRead.Load(),
		BytesWritten:      m.BytesWritten.Load(),
		KeysExpiredLazy:   m.KeysExpiredLazy.Load(),
		KeysExpiredActive: m.KeysExpiredActive.Load(),
		BackpressureDrops: m.BackpressureDrops.Load(),
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
		snap.CommandErrorRate = float64(snap.CommandErrors) / float64(snap.CommandsProcessed) * 100.0
	}

	startTime := m.StartTime.Load()
	if stopTime := m.StopTime.Load(); stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	return snap
}

// Registry wraps each atomic counter in a Prometheus collector so a host
// process can serve /metrics the way ClusterCockpit-cc-backend and the
// tcpinfo-derived exporters in the example pack do. The atomics remain the
// source of truth and the only thing touched on the hot path; Prometheus
// only reads them when scraped.
func (m *Metrics) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	counter := func(name, help string, get func() uint64) {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, func() float64 { return float64(get()) }))
	}

	counter("rkv_commands_processed_total", "Total commands dispatched.", m.CommandsProcessed.Load)
	counter("rkv_command_errors_total", "Total commands that returned an error reply.", m.CommandErrors.Load)
	counter("rkv_connections_opened_total", "Total accepted connections.", m.ConnectionsOpened.Load)
	counter("rkv_connections_closed_total", "Total closed connections.", m.ConnectionsClosed.Load)
	counter("rkv_bytes_read_total", "Total bytes read from clients.", m.BytesRead.Load)
	counter("rkv_bytes_written_total", "Total bytes written to clients.", m.BytesWritten.Load)
	counter("rkv_keys_expired_lazy_total", "Keys removed by lazy expiration.", m.KeysExpiredLazy.Load)
	counter("rkv_keys_expired_active_total", "Keys removed by active expiration.", m.KeysExpiredActive.Load)
	counter("rkv_backpressure_drops_total", "Connections closed for exceeding the outbound buffer limit.", m.BackpressureDrops.Load)

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rkv_command_latency_avg_ns",
		Help: "Average command execution latency in nanoseconds.",
	}, func() float64 { return float64(m.Snapshot().AvgLatencyNs) }))

	return reg
}

// Observer allows pluggable metrics collection, mirroring the teacher's
// Observer interface but over command/connection events instead of
// block-I/O events.
type Observer interface {
	ObserveCommand(latencyNs uint64, success bool)
	ObserveConnectionOpened()
	ObserveConnectionClosed()
	ObserveRead(n uint64)
	ObserveWrite(n uint64)
	ObserveLazyExpire()
	ObserveActiveExpire(n uint64)
	ObserveBackpressureDrop()
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCommand(uint64, bool)     {}
func (NoOpObserver) ObserveConnectionOpened()        {}
func (NoOpObserver) ObserveConnectionClosed()        {}
func (NoOpObserver) ObserveRead(uint64)               {}
func (NoOpObserver) ObserveWrite(uint64)              {}
func (NoOpObserver) ObserveLazyExpire()               {}
func (NoOpObserver) ObserveActiveExpire(uint64)       {}
func (NoOpObserver) ObserveBackpressureDrop()         {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCommand(latencyNs uint64, success bool) {
	o.metrics.RecordCommand(latencyNs, success)
}
func (o *MetricsObserver) ObserveConnectionOpened()  { o.metrics.RecordConnectionOpened() }
func (o *MetricsObserver) ObserveConnectionClosed()  { o.metrics.RecordConnectionClosed() }
func (o *MetricsObserver) ObserveRead(n uint64)       { o.metrics.RecordRead(n) }
func (o *MetricsObserver) ObserveWrite(n uint64)      { o.metrics.RecordWrite(n) }
func (o *MetricsObserver) ObserveLazyExpire()         { o.metrics.RecordLazyExpire() }
func (o *MetricsObserver) ObserveActiveExpire(n uint64) { o.metrics.RecordActiveExpire(n) }
func (o *MetricsObserver) ObserveBackpressureDrop()   { o.metrics.RecordBackpressureDrop() }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
