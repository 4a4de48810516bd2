package rkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsInitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()

	assert.Zero(t, snap.CommandsProcessed)
	assert.Zero(t, snap.CommandErrors)
	assert.Zero(t, snap.BytesRead)
	assert.Zero(t, snap.BytesWritten)
}

func TestMetricsRecordCommand(t *testing.T) {
	m := NewMetrics()

	m.RecordCommand(1_000_000, true)
	m.RecordCommand(2_000_000, true)
	m.RecordCommand(500_000, false)

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.CommandsProcessed)
	assert.EqualValues(t, 1, snap.CommandErrors)
	assert.InDelta(t, 33.33, snap.CommandErrorRate, 0.1)
	assert.EqualValues(t, 1_166_666, snap.AvgLatencyNs)
}

func TestMetricsConnectionsAndBytes(t *testing.T) {
	m := NewMetrics()

	m.RecordConnectionOpened()
	m.RecordConnectionOpened()
	m.RecordConnectionClosed()
	m.RecordRead(128)
	m.RecordWrite(64)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.ConnectionsOpened)
	assert.EqualValues(t, 1, snap.ConnectionsClosed)
	assert.EqualValues(t, 128, snap.BytesRead)
	assert.EqualValues(t, 64, snap.BytesWritten)
}

func TestMetricsExpirations(t *testing.T) {
	m := NewMetrics()

	m.RecordLazyExpire()
	m.RecordLazyExpire()
	m.RecordActiveExpire(5)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.KeysExpiredLazy)
	assert.EqualValues(t, 5, snap.KeysExpiredActive)
}

func TestMetricsBackpressure(t *testing.T) {
	m := NewMetrics()
	m.RecordBackpressureDrop()
	assert.EqualValues(t, 1, m.Snapshot().BackpressureDrops)
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics()

	m.RecordCommand(500, true)           // <= every bucket threshold, including the 1us bucket
	m.RecordCommand(5_000_000_000, true) // only <= the 10s bucket threshold

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.LatencyHistogram[0])                     // 1us bucket: only the 500ns op
	assert.EqualValues(t, 2, snap.LatencyHistogram[numLatencyBuckets-1])   // 10s bucket: both ops
}

func TestMetricsStopFreezesUptime(t *testing.T) {
	m := NewMetrics()
	m.Stop()
	snap1 := m.Snapshot()
	snap2 := m.Snapshot()
	assert.Equal(t, snap1.UptimeNs, snap2.UptimeNs)
}

func TestMetricsRegistry(t *testing.T) {
	m := NewMetrics()
	m.RecordCommand(1000, true)

	reg := m.Registry()
	assert.NotNil(t, reg)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetricsObserverDelegates(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveCommand(1000, true)
	obs.ObserveConnectionOpened()
	obs.ObserveConnectionClosed()
	obs.ObserveRead(10)
	obs.ObserveWrite(20)
	obs.ObserveLazyExpire()
	obs.ObserveActiveExpire(3)
	obs.ObserveBackpressureDrop()

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.CommandsProcessed)
	assert.EqualValues(t, 1, snap.ConnectionsOpened)
	assert.EqualValues(t, 1, snap.ConnectionsClosed)
	assert.EqualValues(t, 10, snap.BytesRead)
	assert.EqualValues(t, 20, snap.BytesWritten)
	assert.EqualValues(t, 1, snap.KeysExpiredLazy)
	assert.EqualValues(t, 3, snap.KeysExpiredActive)
	assert.EqualValues(t, 1, snap.BackpressureDrops)
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var obs NoOpObserver
	obs.ObserveCommand(1000, true)
	obs.ObserveConnectionOpened()
	obs.ObserveConnectionClosed()
	obs.ObserveRead(1)
	obs.ObserveWrite(1)
	obs.ObserveLazyExpire()
	obs.ObserveActiveExpire(1)
	obs.ObserveBackpressureDrop()
}
