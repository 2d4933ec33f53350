package server

import (
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/epoll-web/internal/response"
)

// Metrics holds server runtime counters. The reactor is the only writer;
// atomics let other goroutines read a consistent Snapshot.
type Metrics struct {
	ConnectionsAccepted atomic.Int64
	ConnectionsRejected atomic.Int64
	ActiveConnections   atomic.Int64
	RequestsTotal       atomic.Int64
	Errors4xx           atomic.Int64
	Aborted             atomic.Int64 // connections closed on an I/O error or filesystem race
	BytesSent           atomic.Int64

	// Latency tracking (simplified - use histogram in production)
	TotalLatencyNs atomic.Int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records a response that was sent in full
func (m *Metrics) RecordRequest(status response.StatusCode, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.TotalLatencyNs.Add(duration.Nanoseconds())

	if status.IsClientError() {
		m.Errors4xx.Add(1)
	}
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}

	avgNs := m.TotalLatencyNs.Load() / totalReqs
	return time.Duration(avgNs)
}

// MetricsSnapshot is a point-in-time copy of Metrics
type MetricsSnapshot struct {
	ConnectionsAccepted int64
	ConnectionsRejected int64
	ActiveConnections   int64
	RequestsTotal       int64
	Errors4xx           int64
	Aborted             int64
	BytesSent           int64
	AverageLatency      time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ConnectionsAccepted: m.ConnectionsAccepted.Load(),
		ConnectionsRejected: m.ConnectionsRejected.Load(),
		ActiveConnections:   m.ActiveConnections.Load(),
		RequestsTotal:       m.RequestsTotal.Load(),
		Errors4xx:           m.Errors4xx.Load(),
		Aborted:             m.Aborted.Load(),
		BytesSent:           m.BytesSent.Load(),
		AverageLatency:      m.AverageLatency(),
	}
}
