package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

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

func testBatch() telemetry.Batch {
	return telemetry.NewBatch([]telemetry.LogEntry{telemetry.NewLogEntry(telemetry.LevelInfo, "hi", "svc", "pod", "ns")}, nil, "collector-1", "pod", "ns")
}

func TestTransportCreation(t *testing.T) {
	tr, err := New(Config{
		GatewayURL:     "http://localhost:8080",
		HTTPTimeout:    10 * time.Second,
		MaxRetries:     3,
		RetryBackoffMs: 1000,
	}, testLogger())

	require.NoError(t, err)
	stats := tr.Stats()
	assert.Equal(t, "http://localhost:8080", stats.GatewayURL)
	assert.Equal(t, uint32(3), stats.MaxRetries)
}

func TestSendBatchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/telemetry", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second, MaxRetries: 2, RetryBackoffMs: 10}, testLogger())
	require.NoError(t, err)

	err = tr.SendBatch(context.Background(), testBatch())
	assert.NoError(t, err)
}

func TestSendBatchRetriesOnFailureThenSucceeds(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second, MaxRetries: 5, RetryBackoffMs: 5}, testLogger())
	require.NoError(t, err)

	err = tr.SendBatch(context.Background(), testBatch())
	assert.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSendBatchRetriesEvenOnBadRequest(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second, MaxRetries: 2, RetryBackoffMs: 5}, testLogger())
	require.NoError(t, err)

	err = tr.SendBatch(context.Background(), testBatch())
	assert.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSendBatchExhaustsRetriesAndFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second, MaxRetries: 1, RetryBackoffMs: 5}, testLogger())
	require.NoError(t, err)

	err = tr.SendBatch(context.Background(), testBatch())
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"gateway","version":"1.0.0"}`))
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second}, testLogger())
	require.NoError(t, err)

	health, err := tr.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "gateway", health.Service)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestHealthCheckMissingFieldsDefaultUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second}, testLogger())
	require.NoError(t, err)

	health, err := tr.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unknown", health.Status)
}

func TestTestConnectivityNeverPanicsOnFailure(t *testing.T) {
	tr, err := New(Config{GatewayURL: "http://127.0.0.1:1", HTTPTimeout: 200 * time.Millisecond}, testLogger())
	require.NoError(t, err)
	assert.False(t, tr.TestConnectivity(context.Background()))
}

func TestEnhancedTransportMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second, MaxRetries: 1, RetryBackoffMs: 5}, testLogger())
	require.NoError(t, err)

	enhanced := NewEnhanced(tr)

	m := enhanced.Metrics()
	assert.Equal(t, uint64(0), m.Attempts)

	require.NoError(t, enhanced.SendBatch(context.Background(), testBatch()))

	m = enhanced.Metrics()
	assert.Equal(t, uint64(1), m.Attempts)
	assert.Equal(t, uint64(1), m.Successes)
	assert.Equal(t, uint64(0), m.Failures)
	assert.Equal(t, 100.0, m.SuccessRate)
}

func TestEnhancedTransportMetricsTracksFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second, MaxRetries: 0, RetryBackoffMs: 5}, testLogger())
	require.NoError(t, err)

	enhanced := NewEnhanced(tr)
	err = enhanced.SendBatch(context.Background(), testBatch())
	assert.Error(t, err)

	m := enhanced.Metrics()
	assert.Equal(t, uint64(1), m.Attempts)
	assert.Equal(t, uint64(1), m.Failures)
	assert.Equal(t, 0.0, m.SuccessRate)
}

func TestEnhancedTransportResetMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second}, testLogger())
	require.NoError(t, err)

	enhanced := NewEnhanced(tr)
	require.NoError(t, enhanced.SendBatch(context.Background(), testBatch()))
	enhanced.ResetMetrics()

	m := enhanced.Metrics()
	assert.Equal(t, uint64(0), m.Attempts)
}

func TestCompressedSendBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "zstd", r.Header.Get("Content-Encoding"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr, err := New(Config{GatewayURL: server.URL, HTTPTimeout: 2 * time.Second, Compress: true}, testLogger())
	require.NoError(t, err)

	err = tr.SendBatch(context.Background(), testBatch())
	assert.NoError(t, err)
}
