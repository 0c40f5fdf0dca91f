// Package buffer implements the bounded, drop-oldest in-memory queues that
// hold telemetry data between ingestion and transport.
package buffer

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"sidecar-collector/internal/metrics"
	"sidecar-collector/pkg/telemetry"
)

// Buffer is a thread-safe pair of FIFO queues (logs, spans), each capped at
// maxSize with drop-oldest overflow, batched in groups of up to batchSize.
type Buffer struct {
	logsMu sync.Mutex
	logs   []telemetry.LogEntry

	spansMu sync.Mutex
	spans   []telemetry.Span

	maxSize   int
	batchSize int
	logger    *logrus.Logger
}

// New constructs an empty buffer.
func New(maxSize, batchSize int, logger *logrus.Logger) *Buffer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Buffer{maxSize: maxSize, batchSize: batchSize, logger: logger}
}

// AddLog enqueues a log entry, dropping the oldest entry first if the queue
// is already at capacity.
func (b *Buffer) AddLog(entry telemetry.LogEntry) {
	b.logsMu.Lock()
	defer b.logsMu.Unlock()

	if len(b.logs) >= b.maxSize {
		b.logs = b.logs[1:]
		b.logger.Warn("log buffer overflow, dropping oldest entry")
		metrics.BufferOverflowsTotal.WithLabelValues("logs").Inc()
	}
	b.logs = append(b.logs, entry)
}

// AddSpan enqueues a span, dropping the oldest entry first if the queue is
// already at capacity.
func (b *Buffer) AddSpan(span telemetry.Span) {
	b.spansMu.Lock()
	defer b.spansMu.Unlock()

	if len(b.spans) >= b.maxSize {
		b.spans = b.spans[1:]
		b.logger.Warn("span buffer overflow, dropping oldest entry")
		metrics.BufferOverflowsTotal.WithLabelValues("spans").Inc()
	}
	b.spans = append(b.spans, span)
}

// DrainBatch removes up to batchSize logs and batchSize spans and returns
// them as a batch. Locks are acquired logs-first, spans-second, and held
// together so a concurrent enqueue cannot make this drain observe a
// spuriously empty queue. Returns false if there was nothing to drain.
func (b *Buffer) DrainBatch(collectorID, sourcePod, sourceNamespace string) (telemetry.Batch, bool) {
	b.logsMu.Lock()
	defer b.logsMu.Unlock()
	b.spansMu.Lock()
	defer b.spansMu.Unlock()

	logCount := min(b.batchSize, len(b.logs))
	spanCount := min(b.batchSize, len(b.spans))

	if logCount == 0 && spanCount == 0 {
		return telemetry.Batch{}, false
	}

	logs := append([]telemetry.LogEntry(nil), b.logs[:logCount]...)
	spans := append([]telemetry.Span(nil), b.spans[:spanCount]...)
	b.logs = b.logs[logCount:]
	b.spans = b.spans[spanCount:]

	return telemetry.NewBatch(logs, spans, collectorID, sourcePod, sourceNamespace), true
}

// Sizes returns the current (logCount, spanCount).
func (b *Buffer) Sizes() (int, int) {
	b.logsMu.Lock()
	logCount := len(b.logs)
	b.logsMu.Unlock()

	b.spansMu.Lock()
	spanCount := len(b.spans)
	b.spansMu.Unlock()

	return logCount, spanCount
}

// HasData reports whether either queue currently holds data.
func (b *Buffer) HasData() bool {
	logCount, spanCount := b.Sizes()
	return logCount > 0 || spanCount > 0
}

// ShouldFlush reports whether either queue has reached batchSize or exceeded
// 75% of its capacity.
func (b *Buffer) ShouldFlush() bool {
	logCount, spanCount := b.Sizes()
	threshold := b.maxSize * 3 / 4
	return logCount >= b.batchSize || spanCount >= b.batchSize ||
		logCount > threshold || spanCount > threshold
}

// FlushAll drains the buffer fully, producing a sequence of batches.
func (b *Buffer) FlushAll(collectorID, sourcePod, sourceNamespace string) []telemetry.Batch {
	var batches []telemetry.Batch
	for {
		batch, ok := b.DrainBatch(collectorID, sourcePod, sourceNamespace)
		if !ok {
			break
		}
		batches = append(batches, batch)
	}
	return batches
}

// Clear discards all buffered data.
func (b *Buffer) Clear() {
	b.logsMu.Lock()
	b.logs = nil
	b.logsMu.Unlock()

	b.spansMu.Lock()
	b.spans = nil
	b.spansMu.Unlock()
}

// Utilization is the total queued count over twice the cap, as a percentage.
func (b *Buffer) Utilization() float64 {
	logCount, spanCount := b.Sizes()
	used := logCount + spanCount
	capacity := b.maxSize * 2
	if capacity == 0 {
		return 0
	}
	return (float64(used) / float64(capacity)) * 100
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// IsHighPriorityLog classifies a log record as high priority: Error/Fatal
// severity, or a message mentioning critical/security/alert.
func IsHighPriorityLog(entry telemetry.LogEntry) bool {
	if entry.Level == telemetry.LevelError || entry.Level == telemetry.LevelFatal {
		return true
	}
	msg := strings.ToLower(entry.Message)
	return strings.Contains(msg, "critical") || strings.Contains(msg, "security") || strings.Contains(msg, "alert")
}

// IsHighPrioritySpan classifies a span as high priority: Error/Timeout
// status, a duration over 10s, or a tag value mentioning error/timeout/
// critical.
func IsHighPrioritySpan(span telemetry.Span) bool {
	if span.Status == telemetry.StatusError || span.Status == telemetry.StatusTimeout {
		return true
	}
	if span.DurationMs > 10000 {
		return true
	}
	for _, v := range span.Tags {
		lv := strings.ToLower(v)
		if strings.Contains(lv, "error") || strings.Contains(lv, "timeout") || strings.Contains(lv, "critical") {
			return true
		}
	}
	return false
}
