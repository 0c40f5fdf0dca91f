package transport

import (
	"context"
	"sync"
	"time"

	"sidecar-collector/pkg/telemetry"
)

// EnhancedTransport wraps a raw transport with attempt/success/failure and
// latency tracking, independent of the Prometheus metrics the orchestrator
// exposes — this mirrors the source's in-process counters, snapshot on
// demand rather than continuously exported.
type EnhancedTransport struct {
	transport *HTTPTransport
	metrics   *trackedMetrics
}

// NewEnhanced wraps an existing transport.
func NewEnhanced(t *HTTPTransport) *EnhancedTransport {
	return &EnhancedTransport{
		transport: t,
		metrics:   newTrackedMetrics(),
	}
}

// SendBatch sends through the wrapped transport, recording metrics
// regardless of outcome.
func (e *EnhancedTransport) SendBatch(ctx context.Context, batch telemetry.Batch) error {
	start := time.Now()
	e.metrics.incrementAttempts()

	err := e.transport.SendBatch(ctx, batch)
	duration := time.Since(start)
	if err != nil {
		e.metrics.recordFailure(duration)
		return err
	}
	e.metrics.recordSuccess(duration)
	return nil
}

// Metrics returns a snapshot of the accumulated transport metrics.
func (e *EnhancedTransport) Metrics() MetricsSnapshot {
	return e.metrics.snapshot()
}

// ResetMetrics zeroes all accumulated counters.
func (e *EnhancedTransport) ResetMetrics() {
	e.metrics.reset()
}

// MetricsSnapshot is a point-in-time read of transport metrics.
type MetricsSnapshot struct {
	Attempts      uint64
	Successes     uint64
	Failures      uint64
	SuccessRate   float64
	AvgDurationMs uint64
	MinDurationMs *uint64
	MaxDurationMs *uint64
}

// trackedMetrics holds attempt/success/failure counters and duration
// statistics, mutated under individual short-lived exclusive acquisitions
// per §5's shared-resource discipline.
type trackedMetrics struct {
	mu            sync.RWMutex
	attempts      uint64
	successes     uint64
	failures      uint64
	totalDuration time.Duration
	minDuration   *time.Duration
	maxDuration   *time.Duration
}

func newTrackedMetrics() *trackedMetrics {
	return &trackedMetrics{}
}

func (m *trackedMetrics) incrementAttempts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
}

func (m *trackedMetrics) recordSuccess(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
	m.updateDurationLocked(d)
}

func (m *trackedMetrics) recordFailure(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	m.updateDurationLocked(d)
}

func (m *trackedMetrics) updateDurationLocked(d time.Duration) {
	m.totalDuration += d
	if m.minDuration == nil || d < *m.minDuration {
		min := d
		m.minDuration = &min
	}
	if m.maxDuration == nil || d > *m.maxDuration {
		max := d
		m.maxDuration = &max
	}
}

func (m *trackedMetrics) snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var successRate float64
	var avgMs uint64
	if m.attempts > 0 {
		successRate = (float64(m.successes) / float64(m.attempts)) * 100.0
		avgMs = uint64(m.totalDuration.Milliseconds()) / m.attempts
	}

	var minMs, maxMs *uint64
	if m.minDuration != nil {
		v := uint64(m.minDuration.Milliseconds())
		minMs = &v
	}
	if m.maxDuration != nil {
		v := uint64(m.maxDuration.Milliseconds())
		maxMs = &v
	}

	return MetricsSnapshot{
		Attempts:      m.attempts,
		Successes:     m.successes,
		Failures:      m.failures,
		SuccessRate:   successRate,
		AvgDurationMs: avgMs,
		MinDurationMs: minMs,
		MaxDurationMs: maxMs,
	}
}

func (m *trackedMetrics) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = 0
	m.successes = 0
	m.failures = 0
	m.totalDuration = 0
	m.minDuration = nil
	m.maxDuration = nil
}
