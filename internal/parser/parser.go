// Package parser turns raw log lines into telemetry log records and spans.
//
// Three parser variants share a single two-operation contract: structured
// (JSON object lines), textual (ordered regex patterns with an
// always-matches fallback), and composite (tries structured first, falls
// back to textual). The composite is the default and the only variant the
// orchestrator constructs in practice.
package parser

import (
	"strings"

	"sidecar-collector/pkg/telemetry"
)

// Parser produces a log record and/or a span from a single raw line. Either
// return may be nil when the line contains no log record (structured line
// missing a message) or no span (most lines carry no span fields).
type Parser interface {
	ParseLog(line, serviceName, podName, namespace string) *telemetry.LogEntry
	ParseSpan(line, serviceName string) *telemetry.Span
}

// NewComposite builds the default parser variant.
func NewComposite(traceCorrelation bool) Parser {
	return &CompositeParser{
		json:  &JSONParser{traceCorrelation: traceCorrelation},
		regex: &RegexParser{patterns: defaultPatterns(), traceCorrelation: traceCorrelation},
	}
}

// New selects a parser variant by name ("json", "regex", "composite"/"auto"),
// defaulting to composite for any unrecognized name — mirroring
// LogParserFactory::create_parser in the original source.
func New(format string, traceCorrelation bool) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{traceCorrelation: traceCorrelation}
	case "regex":
		return &RegexParser{patterns: defaultPatterns(), traceCorrelation: traceCorrelation}
	default:
		return NewComposite(traceCorrelation)
	}
}

// CompositeParser tries structured parsing on lines that look like JSON
// objects, falling back to textual parsing for everything else.
type CompositeParser struct {
	json  *JSONParser
	regex *RegexParser
}

func looksStructured(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "{")
}

func (c *CompositeParser) ParseLog(line, serviceName, podName, namespace string) *telemetry.LogEntry {
	if looksStructured(line) {
		if entry := c.json.ParseLog(line, serviceName, podName, namespace); entry != nil {
			return entry
		}
		// Structured decode failure (or no message field) falls through to
		// the textual parser; a malformed-JSON error is never surfaced to
		// the caller (see spec §4.1 "Failures").
	}
	return c.regex.ParseLog(line, serviceName, podName, namespace)
}

func (c *CompositeParser) ParseSpan(line, serviceName string) *telemetry.Span {
	if looksStructured(line) {
		return c.json.ParseSpan(line, serviceName)
	}
	return nil
}
