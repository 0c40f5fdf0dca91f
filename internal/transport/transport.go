// Package transport ships telemetry batches to a remote gateway over HTTP,
// with retry/backoff, health checking, and metrics tracking.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"sidecar-collector/pkg/collectorerr"
	"sidecar-collector/pkg/telemetry"
)

// Config controls transport construction.
type Config struct {
	GatewayURL     string
	HTTPTimeout    time.Duration
	MaxRetries     uint32
	RetryBackoffMs uint64
	Compress       bool
}

// HTTPTransport posts telemetry batches to the configured gateway.
type HTTPTransport struct {
	client         *http.Client
	logger         *logrus.Logger
	gatewayURL     string
	timeout        time.Duration
	maxRetries     uint32
	retryBackoffMs uint64
	compress       bool
	encoder        *zstd.Encoder
}

// New builds an HTTPTransport with a connection-pool-tuned client, matching
// the teacher's sink client construction.
func New(cfg Config, logger *logrus.Logger) (*HTTPTransport, error) {
	client := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       25,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.HTTPTimeout,
		},
	}

	var encoder *zstd.Encoder
	if cfg.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, collectorerr.Wrap(collectorerr.CategoryTransport, err, "failed to initialize zstd encoder")
		}
		encoder = enc
	}

	return &HTTPTransport{
		client:         client,
		logger:         logger,
		gatewayURL:     cfg.GatewayURL,
		timeout:        cfg.HTTPTimeout,
		maxRetries:     cfg.MaxRetries,
		retryBackoffMs: cfg.RetryBackoffMs,
		compress:       cfg.compress(),
		encoder:        encoder,
	}, nil
}

func (c Config) compress() bool { return c.Compress }

// SendBatch delivers a batch, retrying on any failure up to MaxRetries
// additional times with exponential backoff. The batch id is preserved
// across attempts so the gateway can treat it as an idempotency key.
func (t *HTTPTransport) SendBatch(ctx context.Context, batch telemetry.Batch) error {
	url := t.gatewayURL + "/v1/telemetry"

	body, err := json.Marshal(batch)
	if err != nil {
		return collectorerr.Wrap(collectorerr.CategoryJSON, err, "failed to marshal batch")
	}

	t.logger.WithFields(logrus.Fields{
		"batch_id": batch.Metadata.BatchID,
		"logs":     len(batch.Logs),
		"spans":    len(batch.Spans),
		"url":      url,
	}).Debug("sending batch")

	var lastErr error
	var attempt uint32

	for attempt = 0; attempt <= t.maxRetries; attempt++ {
		if err := t.sendAttempt(ctx, url, body); err != nil {
			lastErr = err

			if attempt < t.maxRetries {
				backoffMs := t.retryBackoffMs * (1 << attempt)
				t.logger.WithFields(logrus.Fields{
					"batch_id": batch.Metadata.BatchID,
					"attempt":  attempt + 1,
					"backoff":  backoffMs,
					"error":    err,
				}).Warn("failed to send batch, retrying")

				select {
				case <-time.After(time.Duration(backoffMs) * time.Millisecond):
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
			break
		}

		t.logger.WithFields(logrus.Fields{
			"batch_id": batch.Metadata.BatchID,
			"attempt":  attempt + 1,
		}).Info("batch sent successfully")
		return nil
	}

	if lastErr == nil {
		lastErr = collectorerr.Transport("all retry attempts failed")
	}
	t.logger.WithFields(logrus.Fields{
		"batch_id": batch.Metadata.BatchID,
		"attempts": t.maxRetries + 1,
		"error":    lastErr,
	}).Error("failed to send batch after all attempts")
	return lastErr
}

func (t *HTTPTransport) sendAttempt(ctx context.Context, url string, body []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	payload := body
	contentEncoding := ""
	if t.compress && t.encoder != nil {
		payload = t.encoder.EncodeAll(body, nil)
		contentEncoding = "zstd"
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return collectorerr.Wrap(collectorerr.CategoryHTTP, err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}
	req.Header.Set("User-Agent", "opentel_collector/"+telemetry.CollectorVersion)

	resp, err := t.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return collectorerr.Transport("request timeout")
		}
		return collectorerr.Wrap(collectorerr.CategoryHTTP, err, "request failed")
	}
	defer resp.Body.Close()

	return t.handleResponse(resp)
}

// handleResponse categorizes non-2xx responses per §4.3's status table. Every
// category is retried by the caller's loop regardless of classification —
// the spec's Open Question on retrying 400/413 is preserved as-is.
func (t *HTTPTransport) handleResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	errBody := string(bodyBytes)

	var msg string
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		msg = fmt.Sprintf("bad request: %s", errBody)
	case resp.StatusCode == http.StatusUnauthorized:
		msg = fmt.Sprintf("unauthorized: %s", errBody)
	case resp.StatusCode == http.StatusForbidden:
		msg = fmt.Sprintf("forbidden: %s", errBody)
	case resp.StatusCode == http.StatusNotFound:
		msg = fmt.Sprintf("gateway endpoint not found: %s", errBody)
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		msg = fmt.Sprintf("batch too large: %s", errBody)
	case resp.StatusCode == http.StatusTooManyRequests:
		msg = fmt.Sprintf("rate limited: %s", errBody)
	case resp.StatusCode >= 500:
		msg = fmt.Sprintf("gateway server error (%d): %s", resp.StatusCode, errBody)
	default:
		msg = fmt.Sprintf("unexpected response %d: %s", resp.StatusCode, errBody)
	}

	return collectorerr.Transport(msg)
}

// GatewayHealth is the decoded body of a health-check response.
type GatewayHealth struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// HealthCheck probes the gateway's /health endpoint.
func (t *HTTPTransport) HealthCheck(ctx context.Context) (GatewayHealth, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	url := t.gatewayURL + "/health"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return GatewayHealth{}, collectorerr.Wrap(collectorerr.CategoryHTTP, err, "failed to build health request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return GatewayHealth{}, collectorerr.Transport("health check timeout")
		}
		return GatewayHealth{}, collectorerr.Wrap(collectorerr.CategoryHTTP, err, "health check failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GatewayHealth{}, collectorerr.Transport(fmt.Sprintf("health check failed with status: %d", resp.StatusCode))
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return GatewayHealth{}, collectorerr.Wrap(collectorerr.CategoryJSON, err, "failed to decode health response")
	}

	return GatewayHealth{
		Status:  stringOr(raw, "status", "unknown"),
		Service: stringOr(raw, "service", "unknown"),
		Version: stringOr(raw, "version", "unknown"),
	}, nil
}

func stringOr(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// TestConnectivity wraps HealthCheck, logging failure without propagating it
// — a failed probe never prevents startup.
func (t *HTTPTransport) TestConnectivity(ctx context.Context) bool {
	health, err := t.HealthCheck(ctx)
	if err != nil {
		t.logger.WithError(err).Warn("gateway connectivity test failed")
		return false
	}
	t.logger.WithFields(logrus.Fields{
		"service": health.Service,
		"version": health.Version,
		"status":  health.Status,
	}).Info("gateway connectivity test successful")
	return true
}

// Stats reports the transport's static configuration.
type Stats struct {
	GatewayURL     string
	TimeoutMs      uint64
	MaxRetries     uint32
	RetryBackoffMs uint64
}

func (t *HTTPTransport) Stats() Stats {
	return Stats{
		GatewayURL:     t.gatewayURL,
		TimeoutMs:      uint64(t.timeout.Milliseconds()),
		MaxRetries:     t.maxRetries,
		RetryBackoffMs: t.retryBackoffMs,
	}
}
