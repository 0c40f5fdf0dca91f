// Package collector implements the sidecar collector's orchestrator: the
// file-tailing state machine, periodic flush, periodic metrics reporting,
// and graceful shutdown, wiring the parser, buffer, and transport packages
// together. Grounded on collector.rs's SidecarCollector.
package collector

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sidecar-collector/internal/config"
	"sidecar-collector/internal/metrics"
	"sidecar-collector/internal/parser"
	"sidecar-collector/internal/transport"
	"sidecar-collector/pkg/buffer"
	"sidecar-collector/pkg/telemetry"
)

const (
	tailTickInterval      = 500 * time.Millisecond
	metricsReportInterval = 60 * time.Second
	maxConsecutiveErrors  = 10
	errorBackoff          = 30 * time.Second
)

// Collector orchestrates file tailing, buffering, and transport for one
// configured set of log paths.
type Collector struct {
	config       config.Config
	parser       parser.Parser
	buffer       *buffer.PriorityBuffer
	rawTransport *transport.HTTPTransport
	transport    *transport.EnhancedTransport
	logger       *logrus.Logger
	collectorID  string

	statesMu sync.Mutex
	states   []*fileState

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Collector from validated configuration.
func New(cfg config.Config, logger *logrus.Logger) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rawTransport, err := transport.New(transport.Config{
		GatewayURL:     cfg.GatewayURL,
		HTTPTimeout:    cfg.HTTPTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoffMs: cfg.RetryBackoffMs,
	}, logger)
	if err != nil {
		return nil, err
	}

	bufCfg := buffer.Config{MaxSize: cfg.MaxBufferSize, BatchSize: cfg.BatchSize}

	states := make([]*fileState, len(cfg.LogPaths))
	for i, p := range cfg.LogPaths {
		states[i] = newFileState(p)
	}

	return &Collector{
		config:       cfg,
		parser:       parser.NewComposite(cfg.EnableTraceCorrelation),
		buffer:       buffer.NewPriorityBuffer(bufCfg, logger),
		rawTransport: rawTransport,
		transport:    transport.NewEnhanced(rawTransport),
		logger:       logger,
		collectorID:  telemetry.NewCollectorID(),
		states:       states,
	}, nil
}

// Run starts every tail task, the flush loop, and the metrics loop, and
// blocks until ctx is cancelled, at which point it performs one final flush
// before returning.
func (c *Collector) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.WithFields(logrus.Fields{
		"collector_id": c.collectorID,
		"service":      c.config.ServiceName,
	}).Info("starting sidecar collector")

	ok := c.rawTransport.TestConnectivity(runCtx)
	metrics.SetComponentHealth("gateway", ok)
	if !ok {
		c.logger.Warn("gateway connectivity test failed, but continuing anyway")
	}

	for i := range c.states {
		c.wg.Add(1)
		go c.monitorFile(runCtx, i)
	}

	c.wg.Add(1)
	go c.periodicFlush(runCtx)

	c.wg.Add(1)
	go c.reportMetrics(runCtx)

	<-runCtx.Done()

	c.logger.Info("shutting down sidecar collector")
	c.shutdown()

	c.wg.Wait()
	return nil
}

// Stop cancels the run context, triggering graceful shutdown.
func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Collector) monitorFile(ctx context.Context, index int) {
	defer c.wg.Done()

	path := c.states[index].path
	c.logger.WithField("path", path).Info("starting file monitor")

	ticker := time.NewTicker(tailTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lines, err := c.checkAndReadFile(index)
			if err != nil {
				c.recordFileError(ctx, index, err)
				continue
			}
			c.statesMu.Lock()
			c.states[index].errorCount = 0
			c.statesMu.Unlock()
			metrics.SetComponentHealth("file_tail:"+path, true)
			if lines > 0 {
				c.logger.WithFields(logrus.Fields{"path": path, "lines": lines}).Debug("read lines from file")
				metrics.LinesReadTotal.WithLabelValues(path).Add(float64(lines))
			}
		}
	}
}

func (c *Collector) recordFileError(ctx context.Context, index int, err error) {
	path := c.states[index].path
	metrics.FileTailErrorsTotal.WithLabelValues(path).Inc()

	c.statesMu.Lock()
	c.states[index].errorCount++
	count := c.states[index].errorCount
	c.statesMu.Unlock()

	if count <= maxConsecutiveErrors {
		c.logger.WithFields(logrus.Fields{"path": path, "attempt": count, "error": err}).Warn("error reading file")
	}

	if count >= maxConsecutiveErrors {
		c.logger.WithField("path", path).Error("too many consecutive errors reading file, pausing")
		metrics.SetComponentHealth("file_tail:"+path, false)
		select {
		case <-time.After(errorBackoff):
		case <-ctx.Done():
			return
		}
		c.statesMu.Lock()
		c.states[index].errorCount = 0
		c.statesMu.Unlock()
	}
}

// checkAndReadFile implements the tick state machine of §4.4. A same-size,
// same-mtime rotation (a file replaced so quickly that its length and
// modification time coincide with the file it replaced) is caught by
// comparing the stored content fingerprint against the current file's,
// since size/mtime alone cannot distinguish that case.
func (c *Collector) checkAndReadFile(index int) (int, error) {
	c.statesMu.Lock()
	state := c.states[index]
	path := state.path
	lastPosition := state.lastPosition
	lastModified := state.lastModified
	lastFingerprint := state.fingerprint
	c.statesMu.Unlock()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	currentSize := uint64(info.Size())
	currentModified := info.ModTime()

	var shouldRead bool
	var startPosition uint64
	var rotated bool

	switch {
	case currentSize < lastPosition:
		shouldRead = true
		startPosition = 0
		rotated = true
	case !currentModified.Equal(lastModified) || currentSize > lastPosition:
		shouldRead = true
		startPosition = lastPosition
	case lastPosition > 0 && fileFingerprintChanged(path, lastFingerprint):
		shouldRead = true
		startPosition = 0
		rotated = true
	default:
		shouldRead = false
	}

	if !shouldRead {
		return 0, nil
	}

	if rotated {
		c.statesMu.Lock()
		state.lastPosition = 0
		state.lastModified = currentModified
		c.statesMu.Unlock()
	}

	return c.readFileFromPosition(index, path, startPosition)
}

// fileFingerprintChanged reports whether the file at path's leading-byte
// fingerprint no longer matches prev, indicating it was replaced even though
// its size and modification time happened not to change.
func fileFingerprintChanged(path string, prev uint64) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	return fingerprintFile(f) != prev
}

func (c *Collector) readFileFromPosition(index int, path string, startPosition uint64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(int64(startPosition), io.SeekStart); err != nil {
		return 0, err
	}

	fingerprint := fingerprintFile(f)
	reader := bufio.NewReader(f)

	var linesRead int
	currentPosition := startPosition

	for {
		line, err := reader.ReadString('\n')
		n := uint64(len(line))
		if n == 0 && err != nil {
			break
		}

		currentPosition += n
		linesRead++

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if strings.TrimSpace(line) != "" {
			c.processLogLine(line)
		}

		if err != nil {
			break
		}
	}

	info, statErr := os.Stat(path)
	c.statesMu.Lock()
	c.states[index].lastPosition = currentPosition
	c.states[index].fingerprint = fingerprint
	if statErr == nil {
		c.states[index].lastModified = info.ModTime()
	}
	c.statesMu.Unlock()

	return linesRead, nil
}

func (c *Collector) processLogLine(line string) {
	if entry := c.parser.ParseLog(line, c.config.ServiceName, c.config.PodName, c.config.Namespace); entry != nil {
		c.buffer.AddLog(*entry, buffer.IsHighPriorityLog(*entry))
	}
	if span := c.parser.ParseSpan(line, c.config.ServiceName); span != nil {
		c.buffer.AddSpan(*span, buffer.IsHighPrioritySpan(*span))
	}
}

func (c *Collector) periodicFlush(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flushBuffers(ctx)
		}
	}
}

func (c *Collector) flushBuffers(ctx context.Context) {
	if !c.buffer.HasData() {
		return
	}

	batches := c.buffer.FlushAll(c.collectorID, c.config.PodName, c.config.Namespace)
	c.logger.WithField("batches", len(batches)).Debug("flushing batches")

	allSucceeded := true
	for _, batch := range batches {
		metrics.TransportAttemptsTotal.Inc()
		if err := c.transport.SendBatch(ctx, batch); err != nil {
			metrics.TransportFailuresTotal.Inc()
			c.logger.WithError(err).WithField("batch_id", batch.Metadata.BatchID).Error("failed to send batch")
			allSucceeded = false
			continue
		}
		metrics.TransportSuccessesTotal.Inc()
	}
	metrics.SetComponentHealth("transport", allSucceeded)

	snapshot := c.transport.Metrics()
	metrics.TransportSuccessRate.Set(snapshot.SuccessRate)
}

func (c *Collector) reportMetrics(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(metricsReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logMetrics()
		}
	}
}

func (c *Collector) logMetrics() {
	stats := c.buffer.Stats()
	tm := c.transport.Metrics()

	metrics.BufferDepth.WithLabelValues("logs", "high").Set(float64(stats.HighPriorityLogs))
	metrics.BufferDepth.WithLabelValues("spans", "high").Set(float64(stats.HighPrioritySpans))
	metrics.BufferDepth.WithLabelValues("logs", "normal").Set(float64(stats.NormalPriorityLogs))
	metrics.BufferDepth.WithLabelValues("spans", "normal").Set(float64(stats.NormalPrioritySpans))
	metrics.BufferUtilization.Set(stats.Utilization)
	metrics.TransportSuccessRate.Set(tm.SuccessRate)

	c.logger.WithFields(logrus.Fields{
		"buffered_logs":  stats.TotalLogs,
		"buffered_spans": stats.TotalSpans,
		"utilization":    stats.Utilization,
		"success_rate":   tm.SuccessRate,
		"attempts":       tm.Attempts,
	}).Info("collector metrics")
}

func (c *Collector) shutdown() {
	ctx := context.Background()
	c.flushBuffers(ctx)

	tm := c.transport.Metrics()
	c.logger.WithFields(logrus.Fields{
		"success_rate": tm.SuccessRate,
		"attempts":     tm.Attempts,
		"avg_duration": tm.AvgDurationMs,
	}).Info("final transport metrics")

	c.logger.Info("sidecar collector shutdown complete")
}

// Stats is a point-in-time snapshot of collector state, for introspection
// endpoints.
type Stats struct {
	CollectorID            string
	ServiceName            string
	PodName                string
	Namespace              string
	BufferedLogs           int
	BufferedSpans          int
	BufferUtilization      float64
	TransportSuccessRate   float64
	TransportAttempts      uint64
	AvgTransportDurationMs uint64
}

// Stats returns a snapshot combining buffer and transport state.
func (c *Collector) Stats() Stats {
	bufStats := c.buffer.Stats()
	tm := c.transport.Metrics()

	return Stats{
		CollectorID:            c.collectorID,
		ServiceName:            c.config.ServiceName,
		PodName:                c.config.PodName,
		Namespace:              c.config.Namespace,
		BufferedLogs:           bufStats.TotalLogs,
		BufferedSpans:          bufStats.TotalSpans,
		BufferUtilization:      bufStats.Utilization,
		TransportSuccessRate:   tm.SuccessRate,
		TransportAttempts:      tm.Attempts,
		AvgTransportDurationMs: tm.AvgDurationMs,
	}
}
