// Package config assembles collector configuration from environment
// variables, following the teacher's getEnv* helper idiom.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sidecar-collector/pkg/collectorerr"
)

// Config holds every tunable the collector reads from its environment.
type Config struct {
	ServiceName            string
	PodName                string
	Namespace              string
	GatewayURL             string
	LogPaths               []string
	BatchSize              int
	FlushInterval          time.Duration
	MaxRetries             uint32
	RetryBackoffMs         uint64
	MaxBufferSize          int
	HTTPTimeout            time.Duration
	ParseStructuredLogs    bool
	EnableTraceCorrelation bool
}

// Default returns the documented defaults, matching the original source's
// Config::default().
func Default() Config {
	return Config{
		ServiceName:            "unknown-service",
		PodName:                "unknown-pod",
		Namespace:              "default",
		GatewayURL:             "http://telemetry-gateway:9090",
		LogPaths:               []string{"/var/log/app/application.log"},
		BatchSize:              100,
		FlushInterval:          30 * time.Second,
		MaxRetries:             3,
		RetryBackoffMs:         1000,
		MaxBufferSize:          10000,
		HTTPTimeout:            10 * time.Second,
		ParseStructuredLogs:    true,
		EnableTraceCorrelation: true,
	}
}

// FromEnv builds a Config from the process environment, applying defaults
// for anything unset or unparsable.
func FromEnv() Config {
	c := Default()

	c.ServiceName = getEnvString("SERVICE_NAME", c.ServiceName)
	c.PodName = getEnvString("POD_NAME", c.PodName)
	c.Namespace = getEnvString("NAMESPACE", c.Namespace)
	c.GatewayURL = getEnvString("GATEWAY_URL", c.GatewayURL)
	c.LogPaths = getEnvStringSlice("LOG_PATHS", c.LogPaths)
	c.BatchSize = getEnvInt("BATCH_SIZE", c.BatchSize)
	c.FlushInterval = getEnvSecondsDuration("FLUSH_INTERVAL_SECONDS", c.FlushInterval)
	c.MaxRetries = uint32(getEnvInt("MAX_RETRIES", int(c.MaxRetries)))
	c.RetryBackoffMs = uint64(getEnvInt("RETRY_BACKOFF_MS", int(c.RetryBackoffMs)))
	c.MaxBufferSize = getEnvInt("MAX_BUFFER_SIZE", c.MaxBufferSize)
	c.HTTPTimeout = getEnvSecondsDuration("HTTP_TIMEOUT_SECONDS", c.HTTPTimeout)
	c.ParseStructuredLogs = getEnvBool("PARSE_STRUCTURED_LOGS", c.ParseStructuredLogs)
	c.EnableTraceCorrelation = getEnvBool("ENABLE_TRACE_CORRELATION", c.EnableTraceCorrelation)

	return c
}

// Validate rejects configurations that can never run correctly. These
// failures are always fatal (§7).
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return collectorerr.Config("service_name cannot be empty")
	}
	if c.PodName == "" {
		return collectorerr.Config("pod_name cannot be empty")
	}
	if c.Namespace == "" {
		return collectorerr.Config("namespace cannot be empty")
	}
	if c.GatewayURL == "" {
		return collectorerr.Config("gateway_url cannot be empty")
	}
	if len(c.LogPaths) == 0 {
		return collectorerr.Config("at least one log path must be specified")
	}
	if c.BatchSize <= 0 {
		return collectorerr.Config("batch_size must be greater than 0")
	}
	if c.MaxBufferSize <= 0 {
		return collectorerr.Config("max_buffer_size must be greater than 0")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

func getEnvSecondsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.ParseUint(value, 10, 64); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// String renders a config for structured logging, matching the teacher's
// practice of logging startup configuration as a single line.
func (c Config) String() string {
	return fmt.Sprintf(
		"service=%s pod=%s namespace=%s gateway=%s paths=%d batch_size=%d flush_interval=%s max_retries=%d buffer=%d",
		c.ServiceName, c.PodName, c.Namespace, c.GatewayURL, len(c.LogPaths), c.BatchSize, c.FlushInterval, c.MaxRetries, c.MaxBufferSize,
	)
}
