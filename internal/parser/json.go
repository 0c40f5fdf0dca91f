package parser

import (
	"encoding/json"

	"sidecar-collector/pkg/telemetry"
)

// JSONParser extracts telemetry from a line that decodes as a JSON object.
type JSONParser struct {
	traceCorrelation bool
}

// decode parses line into a generic field map, returning nil on any failure
// — malformed JSON is never surfaced as an error (spec §4.1 "Failures").
func decode(line string) map[string]any {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return nil
	}
	return fields
}

func firstString(fields map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func firstUint(fields map[string]any, keys ...string) (uint64, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if f, ok := v.(float64); ok && f >= 0 {
				return uint64(f), true
			}
		}
	}
	return 0, false
}

func stringObject(fields map[string]any, key string) map[string]string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func (p *JSONParser) ParseLog(line, serviceName, podName, namespace string) *telemetry.LogEntry {
	fields := decode(line)
	if fields == nil {
		return nil
	}

	timestamp, ok := firstUint(fields, "timestamp", "@timestamp", "time")
	if !ok {
		timestamp = telemetry.CurrentTimestamp()
	}

	level, _ := firstString(fields, "level", "severity", "log_level")
	if level == "" {
		level = "INFO"
	}

	message, _ := firstString(fields, "message", "msg", "text")
	if message == "" {
		return nil
	}

	entry := telemetry.LogEntry{
		Timestamp:   timestamp,
		Level:       telemetry.ParseLogLevel(level),
		Message:     message,
		ServiceName: serviceName,
		PodName:     podName,
		Namespace:   namespace,
		Attributes:  make(map[string]string),
	}

	if p.traceCorrelation {
		if traceID, ok := firstString(fields, "trace_id", "traceId", "trace-id"); ok {
			entry.TraceID = &traceID
		}
		if spanID, ok := firstString(fields, "span_id", "spanId", "span-id"); ok {
			entry.SpanID = &spanID
		}
	}

	for k, v := range stringObject(fields, "attributes") {
		entry.Attributes[k] = v
	}

	for _, field := range []string{"user_id", "request_id", "session_id", "correlation_id"} {
		if v, ok := firstString(fields, field); ok {
			entry.Attributes[field] = v
		}
	}

	return &entry
}

func (p *JSONParser) ParseSpan(line, serviceName string) *telemetry.Span {
	fields := decode(line)
	if fields == nil {
		return nil
	}

	_, hasSnake := fields["span_id"]
	_, hasCamel := fields["spanId"]
	if !hasSnake && !hasCamel {
		return nil
	}

	traceID, ok := firstString(fields, "trace_id", "traceId")
	if !ok {
		traceID = telemetry.GenerateTraceID()
	}

	spanID, ok := firstString(fields, "span_id", "spanId")
	if !ok {
		spanID = telemetry.GenerateSpanID()
	}

	operation, ok := firstString(fields, "operation", "operation_name", "method")
	if !ok {
		operation = "unknown"
	}

	startTime, ok := firstUint(fields, "start_time", "startTime")
	if !ok {
		startTime = telemetry.CurrentTimestamp()
	}

	endTime, ok := firstUint(fields, "end_time", "endTime")
	if !ok {
		endTime = startTime
	}

	durationMs, ok := firstUint(fields, "duration_ms", "duration")
	if !ok {
		durationMs = saturatingSub(endTime, startTime) * 1000
	}

	status, ok := firstString(fields, "status", "span_status")
	if !ok {
		status = "OK"
	}

	span := telemetry.Span{
		TraceID:     traceID,
		SpanID:      spanID,
		Operation:   operation,
		StartTime:   startTime,
		EndTime:     endTime,
		DurationMs:  durationMs,
		Status:      telemetry.ParseSpanStatus(status),
		ServiceName: serviceName,
		Tags:        make(map[string]string),
	}

	if parentSpanID, ok := firstString(fields, "parent_span_id", "parentSpanId"); ok {
		span.ParentSpanID = &parentSpanID
	}

	for k, v := range stringObject(fields, "tags") {
		span.Tags[k] = v
	}

	return &span
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
