package session

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting session metrics
type MetricsCollector interface {
	RecordNotification(frameType string)
	RecordFetch(success bool, duration time.Duration)
	RecordStaleFetch()
	RecordReconnectAttempt(attempt int)
	RecordDroppedSend(commandType string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordNotification(frameType string)              {}
func (n *NoOpMetricsCollector) RecordFetch(success bool, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordStaleFetch()                                {}
func (n *NoOpMetricsCollector) RecordReconnectAttempt(attempt int)               {}
func (n *NoOpMetricsCollector) RecordDroppedSend(commandType string)             {}

// CountingMetrics keeps running totals.
type CountingMetrics struct {
	Notifications     atomic.Int64
	Fetches           atomic.Int64
	FailedFetches     atomic.Int64
	StaleFetches      atomic.Int64
	ReconnectAttempts atomic.Int64
	DroppedSends      atomic.Int64
}

func (m *CountingMetrics) RecordNotification(frameType string) {
	m.Notifications.Add(1)
}

func (m *CountingMetrics) RecordFetch(success bool, duration time.Duration) {
	m.Fetches.Add(1)
	if !success {
		m.FailedFetches.Add(1)
	}
}

func (m *CountingMetrics) RecordStaleFetch() {
	m.StaleFetches.Add(1)
}

func (m *CountingMetrics) RecordReconnectAttempt(attempt int) {
	m.ReconnectAttempts.Add(1)
}

func (m *CountingMetrics) RecordDroppedSend(commandType string) {
	m.DroppedSends.Add(1)
}
