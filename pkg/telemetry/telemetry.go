// Package telemetry defines the canonical in-memory shape of log records,
// trace spans, and the batches shipped to the telemetry gateway.
package telemetry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LogLevel is the closed set of severities a log record may carry.
type LogLevel string

const (
	LevelTrace LogLevel = "TRACE"
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelFatal LogLevel = "FATAL"
)

// ParseLogLevel normalizes a case-insensitive severity token onto LogLevel,
// defaulting to LevelInfo for anything unrecognized.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "TRACE", "VERBOSE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO", "INFORMATION":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR", "ERR":
		return LevelError
	case "FATAL", "CRITICAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// SpanStatus is the closed set of terminal states a span may carry.
type SpanStatus string

const (
	StatusOk        SpanStatus = "OK"
	StatusError     SpanStatus = "ERROR"
	StatusTimeout   SpanStatus = "TIMEOUT"
	StatusCancelled SpanStatus = "CANCELLED"
)

// ParseSpanStatus normalizes a case-insensitive status token onto SpanStatus,
// defaulting to StatusOk for anything unrecognized.
func ParseSpanStatus(s string) SpanStatus {
	switch strings.ToUpper(s) {
	case "OK", "SUCCESS", "COMPLETED":
		return StatusOk
	case "ERROR", "FAILED", "FAILURE":
		return StatusError
	case "TIMEOUT", "TIMEDOUT":
		return StatusTimeout
	case "CANCELLED", "CANCELED", "ABORTED":
		return StatusCancelled
	default:
		return StatusOk
	}
}

// LogEntry is a single telemetry log record.
type LogEntry struct {
	Timestamp   uint64            `json:"timestamp"`
	Level       LogLevel          `json:"level"`
	Message     string            `json:"message"`
	ServiceName string            `json:"service_name"`
	PodName     string            `json:"pod_name"`
	Namespace   string            `json:"namespace"`
	TraceID     *string           `json:"trace_id,omitempty"`
	SpanID      *string           `json:"span_id,omitempty"`
	Attributes  map[string]string `json:"attributes"`
}

// NewLogEntry builds a log entry timestamped at the current epoch second.
func NewLogEntry(level LogLevel, message, serviceName, podName, namespace string) LogEntry {
	return LogEntry{
		Timestamp:   CurrentTimestamp(),
		Level:       level,
		Message:     message,
		ServiceName: serviceName,
		PodName:     podName,
		Namespace:   namespace,
		Attributes:  make(map[string]string),
	}
}

// WithTraceContext sets the trace and span identifiers.
func (e LogEntry) WithTraceContext(traceID, spanID string) LogEntry {
	e.TraceID = &traceID
	e.SpanID = &spanID
	return e
}

// WithAttribute sets a single attribute, allocating the map if necessary.
func (e LogEntry) WithAttribute(key, value string) LogEntry {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// Span is a single trace span.
type Span struct {
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID *string           `json:"parent_span_id,omitempty"`
	Operation    string            `json:"operation_name"`
	StartTime    uint64            `json:"start_time"`
	EndTime      uint64            `json:"end_time"`
	DurationMs   uint64            `json:"duration_ms"`
	Status       SpanStatus        `json:"status"`
	ServiceName  string            `json:"service_name"`
	Tags         map[string]string `json:"tags"`
}

// NewSpan builds an open span starting now.
func NewSpan(traceID, spanID, operation, serviceName string) Span {
	now := CurrentTimestamp()
	return Span{
		TraceID:     traceID,
		SpanID:      spanID,
		Operation:   operation,
		StartTime:   now,
		EndTime:     now,
		Status:      StatusOk,
		ServiceName: serviceName,
		Tags:        make(map[string]string),
	}
}

// WithParent sets the parent span identifier.
func (s Span) WithParent(parentSpanID string) Span {
	s.ParentSpanID = &parentSpanID
	return s
}

// WithTag sets a single tag, allocating the map if necessary.
func (s Span) WithTag(key, value string) Span {
	if s.Tags == nil {
		s.Tags = make(map[string]string)
	}
	s.Tags[key] = value
	return s
}

// WithStatus sets the terminal status.
func (s Span) WithStatus(status SpanStatus) Span {
	s.Status = status
	return s
}

// Finish closes the span at the current time, deriving DurationMs from the
// elapsed seconds. Saturating subtraction mirrors the original source: if
// EndTime ever precedes StartTime the duration is clamped to zero rather than
// wrapping.
func (s Span) Finish() Span {
	s.EndTime = CurrentTimestamp()
	s.DurationMs = saturatingSub(s.EndTime, s.StartTime) * 1000
	return s
}

// WithDurationMs sets an explicit duration and derives EndTime from it.
func (s Span) WithDurationMs(durationMs uint64) Span {
	s.DurationMs = durationMs
	s.EndTime = s.StartTime + durationMs/1000
	return s
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// BatchMetadata describes a telemetry batch's provenance.
type BatchMetadata struct {
	CollectorID     string `json:"collector_id"`
	BatchID         string `json:"batch_id"`
	Timestamp       uint64 `json:"timestamp"`
	SourcePod       string `json:"source_pod"`
	SourceNamespace string `json:"source_namespace"`
	Version         string `json:"version"`
}

// Batch bundles log records and spans with provenance metadata. A batch is
// never emitted empty by the buffer (see pkg/buffer).
type Batch struct {
	Logs     []LogEntry    `json:"logs"`
	Spans    []Span        `json:"spans"`
	Metadata BatchMetadata `json:"metadata"`
}

// CollectorVersion is embedded in batch metadata and the HTTP User-Agent.
const CollectorVersion = "0.1.0"

// NewBatch assigns a fresh batch id and the current timestamp.
func NewBatch(logs []LogEntry, spans []Span, collectorID, sourcePod, sourceNamespace string) Batch {
	if logs == nil {
		logs = []LogEntry{}
	}
	if spans == nil {
		spans = []Span{}
	}
	return Batch{
		Logs:  logs,
		Spans: spans,
		Metadata: BatchMetadata{
			CollectorID:     collectorID,
			BatchID:         uuid.NewString(),
			Timestamp:       CurrentTimestamp(),
			SourcePod:       sourcePod,
			SourceNamespace: sourceNamespace,
			Version:         CollectorVersion,
		},
	}
}

// IsEmpty reports whether the batch carries neither logs nor spans.
func (b Batch) IsEmpty() bool {
	return len(b.Logs) == 0 && len(b.Spans) == 0
}

// Len is the combined count of logs and spans in the batch.
func (b Batch) Len() int {
	return len(b.Logs) + len(b.Spans)
}

// GenerateTraceID returns 128 random bits as 32 lowercase hex characters.
func GenerateTraceID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%032x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf[:])
}

// GenerateSpanID returns 64 random bits as 16 lowercase hex characters.
func GenerateSpanID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf[:])
}

// CurrentTimestamp returns the current wall-clock time as epoch seconds.
func CurrentTimestamp() uint64 {
	return uint64(time.Now().Unix())
}

// NewCollectorID mints a fresh identifier stable for the life of the process.
func NewCollectorID() string {
	return uuid.NewString()
}
