package gateway

import (
	"sync/atomic"
	"time"
)

// Metrics tracks gateway-level counters using atomic operations for lock-free concurrency.
type Metrics struct {
	detections    atomic.Int64
	notifications atomic.Int64
	errors        atomic.Int64
	totalLatency  atomic.Int64 // nanoseconds
}

// RecordDetection records a completed detection request.
func (m *Metrics) RecordDetection(latency time.Duration) {
	m.detections.Add(1)
	m.totalLatency.Add(int64(latency))
}

// RecordNotifications records sent notifications.
func (m *Metrics) RecordNotifications(n int) {
	m.notifications.Add(int64(n))
}

// RecordError records a request processing error.
func (m *Metrics) RecordError() {
	m.errors.Add(1)
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	detections := m.detections.Load()
	snap := MetricsSnapshot{
		Detections:    detections,
		Notifications: m.notifications.Load(),
		Errors:        m.errors.Load(),
	}
	if detections > 0 {
		snap.AvgLatency = time.Duration(m.totalLatency.Load() / detections)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Detections    int64         `json:"detections"`
	Notifications int64         `json:"notifications"`
	Errors        int64         `json:"errors"`
	AvgLatency    time.Duration `json:"avg_latency_ns"`
}
