package buffer

import (
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sidecar-collector/pkg/telemetry"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBasicBufferOperations(t *testing.T) {
	b := New(100, 10, testLogger())

	entry := telemetry.NewLogEntry(telemetry.LevelInfo, "Test message", "test-service", "test-pod", "test-namespace")
	b.AddLog(entry)

	logCount, spanCount := b.Sizes()
	assert.Equal(t, 1, logCount)
	assert.Equal(t, 0, spanCount)

	batch, ok := b.DrainBatch("collector-1", "test-pod", "test-namespace")
	require.True(t, ok)
	assert.Len(t, batch.Logs, 1)
	assert.Len(t, batch.Spans, 0)

	logCount, spanCount = b.Sizes()
	assert.Equal(t, 0, logCount)
	assert.Equal(t, 0, spanCount)
}

// TestBufferOverflow is boundary scenario #4: cap=2, enqueue m0..m4, expect
// final state [m3, m4].
func TestBufferOverflow(t *testing.T) {
	b := New(2, 10, testLogger())

	for i := 0; i < 5; i++ {
		entry := telemetry.NewLogEntry(telemetry.LevelInfo, fmt.Sprintf("Message %d", i), "svc", "pod", "ns")
		b.AddLog(entry)
	}

	logCount, _ := b.Sizes()
	assert.Equal(t, 2, logCount)

	batch, ok := b.DrainBatch("c", "pod", "ns")
	require.True(t, ok)
	require.Len(t, batch.Logs, 2)
	assert.Equal(t, "Message 3", batch.Logs[0].Message)
	assert.Equal(t, "Message 4", batch.Logs[1].Message)
}

func TestDrainBatchEmptyWhenNothingQueued(t *testing.T) {
	b := New(10, 10, testLogger())
	_, ok := b.DrainBatch("c", "pod", "ns")
	assert.False(t, ok)
}

func TestDrainBatchNeverExceedsBatchSize(t *testing.T) {
	b := New(100, 3, testLogger())
	for i := 0; i < 10; i++ {
		b.AddLog(telemetry.NewLogEntry(telemetry.LevelInfo, "m", "svc", "pod", "ns"))
	}

	batch, ok := b.DrainBatch("c", "pod", "ns")
	require.True(t, ok)
	assert.LessOrEqual(t, len(batch.Logs), 3)
}

func TestPriorityDetection(t *testing.T) {
	errorLog := telemetry.NewLogEntry(telemetry.LevelError, "Database error", "svc", "pod", "ns")
	infoLog := telemetry.NewLogEntry(telemetry.LevelInfo, "Normal operation", "svc", "pod", "ns")

	assert.True(t, IsHighPriorityLog(errorLog))
	assert.False(t, IsHighPriorityLog(infoLog))
}

func TestPriorityLogByKeyword(t *testing.T) {
	log := telemetry.NewLogEntry(telemetry.LevelInfo, "a SECURITY breach occurred", "svc", "pod", "ns")
	assert.True(t, IsHighPriorityLog(log))
}

func TestPrioritySpanByDuration(t *testing.T) {
	span := telemetry.NewSpan("t", "s", "op", "svc")
	span.DurationMs = 15000
	assert.True(t, IsHighPrioritySpan(span))
}

// TestPriorityBufferDrainsHighFirst is boundary scenario #5.
func TestPriorityBufferDrainsHighFirst(t *testing.T) {
	pb := NewPriorityBuffer(DefaultConfig(), testLogger())

	normalLog := telemetry.NewLogEntry(telemetry.LevelInfo, "Normal message", "svc", "pod", "ns")
	errorLog := telemetry.NewLogEntry(telemetry.LevelError, "Error message", "svc", "pod", "ns")

	pb.AddLog(normalLog, IsHighPriorityLog(normalLog))
	pb.AddLog(errorLog, IsHighPriorityLog(errorLog))

	stats := pb.Stats()
	assert.Equal(t, 1, stats.NormalPriorityLogs)
	assert.Equal(t, 1, stats.HighPriorityLogs)

	first, ok := pb.DrainBatch("collector-1", "test-pod", "test-namespace")
	require.True(t, ok)
	require.Len(t, first.Logs, 1)
	assert.Equal(t, "Error message", first.Logs[0].Message)

	second, ok := pb.DrainBatch("collector-1", "test-pod", "test-namespace")
	require.True(t, ok)
	require.Len(t, second.Logs, 1)
	assert.Equal(t, "Normal message", second.Logs[0].Message)
}

func TestUtilization(t *testing.T) {
	b := New(10, 10, testLogger())
	assert.Equal(t, float64(0), b.Utilization())

	for i := 0; i < 5; i++ {
		b.AddLog(telemetry.NewLogEntry(telemetry.LevelInfo, "m", "svc", "pod", "ns"))
	}
	assert.InDelta(t, 25.0, b.Utilization(), 0.01)
}

func TestClear(t *testing.T) {
	b := New(10, 10, testLogger())
	b.AddLog(telemetry.NewLogEntry(telemetry.LevelInfo, "m", "svc", "pod", "ns"))
	b.Clear()
	assert.False(t, b.HasData())
}
