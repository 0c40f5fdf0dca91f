package parser

import (
	"regexp"

	"sidecar-collector/pkg/telemetry"
)

// logPattern is one ordered textual matching rule. Group indices are 1-based
// regexp submatch indices, matching §4.1's table of shapes.
type logPattern struct {
	regex          *regexp.Regexp
	levelGroup     int
	messageGroup   int
	timestampGroup int // 0 means "no timestamp group"
	traceIDGroup   int // 0 means "no trace group"
	spanIDGroup    int // 0 means "no span group"
}

// defaultPatterns is the fixed, ordered list of textual shapes tried by the
// regex parser. The first match wins; there is no backtracking.
func defaultPatterns() []logPattern {
	return []logPattern{
		{
			// [2023-12-01T10:30:45Z] ERROR: Database connection failed
			regex:          regexp.MustCompile(`^\[([^\]]+)\]\s+(\w+):\s+(.+)$`),
			timestampGroup: 1,
			levelGroup:     2,
			messageGroup:   3,
		},
		{
			// 2023/12/01 10:30:45 [error] Message
			regex:          regexp.MustCompile(`^(\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2})\s+\[(\w+)\]\s+(.+)$`),
			timestampGroup: 1,
			levelGroup:     2,
			messageGroup:   3,
		},
		{
			// 2023-12-01 10:30:45.123 ERROR [trace-id,span-id] --- Message
			regex:          regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}\.\d{3})\s+(\w+)\s+\[([^,]+),([^\]]+)\]\s+---\s+(.+)$`),
			timestampGroup: 1,
			levelGroup:     2,
			traceIDGroup:   3,
			spanIDGroup:    4,
			messageGroup:   5,
		},
		{
			// ERROR: Message
			regex:        regexp.MustCompile(`^(\w+):\s+(.+)$`),
			levelGroup:   1,
			messageGroup: 2,
		},
		{
			// ERROR:module.name:Message
			regex:        regexp.MustCompile(`^(\w+):[\w.]+:(.+)$`),
			levelGroup:   1,
			messageGroup: 2,
		},
	}
}

// RegexParser matches lines against an ordered set of textual patterns,
// and when none match still emits an Info-level record carrying the whole
// original line. It never produces spans.
type RegexParser struct {
	patterns         []logPattern
	traceCorrelation bool
}

func (r *RegexParser) ParseLog(line, serviceName, podName, namespace string) *telemetry.LogEntry {
	for _, p := range r.patterns {
		m := p.regex.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		message := groupOr(m, p.messageGroup, "")
		if message == "" {
			continue
		}

		level := groupOr(m, p.levelGroup, "INFO")

		timestamp := telemetry.CurrentTimestamp()
		if p.timestampGroup > 0 {
			if ts, ok := parseTimestamp(groupOr(m, p.timestampGroup, "")); ok {
				timestamp = ts
			}
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

		if r.traceCorrelation {
			if p.traceIDGroup > 0 {
				if traceID := groupOr(m, p.traceIDGroup, ""); traceID != "" {
					entry.TraceID = &traceID
				}
			}
			if p.spanIDGroup > 0 {
				if spanID := groupOr(m, p.spanIDGroup, ""); spanID != "" {
					entry.SpanID = &spanID
				}
			}
		}

		return &entry
	}

	return &telemetry.LogEntry{
		Timestamp:   telemetry.CurrentTimestamp(),
		Level:       telemetry.LevelInfo,
		Message:     line,
		ServiceName: serviceName,
		PodName:     podName,
		Namespace:   namespace,
		Attributes:  make(map[string]string),
	}
}

// ParseSpan never extracts spans from unstructured text.
func (r *RegexParser) ParseSpan(line, serviceName string) *telemetry.Span {
	return nil
}

func groupOr(m []string, group int, fallback string) string {
	if group <= 0 || group >= len(m) {
		return fallback
	}
	return m[group]
}
