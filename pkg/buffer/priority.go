package buffer

import (
	"github.com/sirupsen/logrus"

	"sidecar-collector/pkg/telemetry"
)

// Config sizes a PriorityBuffer's underlying plain buffers.
type Config struct {
	MaxSize   int
	BatchSize int
}

// DefaultConfig mirrors the original source's BufferConfig::default().
func DefaultConfig() Config {
	return Config{MaxSize: 10000, BatchSize: 100}
}

// PriorityBuffer composes two plain Buffers — high priority sized at
// maxSize/4, batchSize/2, and normal priority sized at 3*maxSize/4,
// batchSize — and always drains high priority first.
type PriorityBuffer struct {
	high   *Buffer
	normal *Buffer
	config Config
}

// NewPriorityBuffer builds a PriorityBuffer from config.
func NewPriorityBuffer(config Config, logger *logrus.Logger) *PriorityBuffer {
	return &PriorityBuffer{
		high:   New(config.MaxSize/4, config.BatchSize/2, logger),
		normal: New(config.MaxSize*3/4, config.BatchSize, logger),
		config: config,
	}
}

// AddLog routes the log entry by its priority classification.
func (p *PriorityBuffer) AddLog(entry telemetry.LogEntry, highPriority bool) {
	if highPriority {
		p.high.AddLog(entry)
	} else {
		p.normal.AddLog(entry)
	}
}

// AddSpan routes the span by its priority classification.
func (p *PriorityBuffer) AddSpan(span telemetry.Span, highPriority bool) {
	if highPriority {
		p.high.AddSpan(span)
	} else {
		p.normal.AddSpan(span)
	}
}

// DrainBatch always returns a high-priority batch when one exists; otherwise
// a normal-priority batch.
func (p *PriorityBuffer) DrainBatch(collectorID, sourcePod, sourceNamespace string) (telemetry.Batch, bool) {
	if batch, ok := p.high.DrainBatch(collectorID, sourcePod, sourceNamespace); ok {
		return batch, true
	}
	return p.normal.DrainBatch(collectorID, sourcePod, sourceNamespace)
}

// FlushAll drains both buffers fully; high-priority batches precede normal
// ones since DrainBatch always prefers high priority while it has data.
func (p *PriorityBuffer) FlushAll(collectorID, sourcePod, sourceNamespace string) []telemetry.Batch {
	var batches []telemetry.Batch
	for {
		batch, ok := p.DrainBatch(collectorID, sourcePod, sourceNamespace)
		if !ok {
			break
		}
		batches = append(batches, batch)
	}
	return batches
}

// HasData reports whether either sub-buffer holds data.
func (p *PriorityBuffer) HasData() bool {
	return p.high.HasData() || p.normal.HasData()
}

// ShouldFlush is the disjunction of the two sub-buffers' ShouldFlush.
func (p *PriorityBuffer) ShouldFlush() bool {
	return p.high.ShouldFlush() || p.normal.ShouldFlush()
}

// Stats is a combined snapshot of both priority classes.
type Stats struct {
	HighPriorityLogs   int
	HighPrioritySpans  int
	NormalPriorityLogs int
	NormalPrioritySpans int
	TotalLogs          int
	TotalSpans         int
	Utilization        float64
}

// Stats returns a combined snapshot of both sub-buffers.
func (p *PriorityBuffer) Stats() Stats {
	hpLogs, hpSpans := p.high.Sizes()
	npLogs, npSpans := p.normal.Sizes()

	s := Stats{
		HighPriorityLogs:    hpLogs,
		HighPrioritySpans:   hpSpans,
		NormalPriorityLogs:  npLogs,
		NormalPrioritySpans: npSpans,
		TotalLogs:           hpLogs + npLogs,
		TotalSpans:          hpSpans + npSpans,
	}

	capacity := p.config.MaxSize * 2
	if capacity > 0 {
		s.Utilization = (float64(s.TotalLogs+s.TotalSpans) / float64(capacity)) * 100
	}
	return s
}
