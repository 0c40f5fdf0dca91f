package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	keys := []string{
		"SERVICE_NAME", "POD_NAME", "NAMESPACE", "GATEWAY_URL", "LOG_PATHS",
		"BATCH_SIZE", "FLUSH_INTERVAL_SECONDS", "MAX_RETRIES", "RETRY_BACKOFF_MS",
		"MAX_BUFFER_SIZE", "HTTP_TIMEOUT_SECONDS", "PARSE_STRUCTURED_LOGS",
		"ENABLE_TRACE_CORRELATION",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	c := Default()
	assert.Equal(t, "unknown-service", c.ServiceName)
	assert.Equal(t, 100, c.BatchSize)
	assert.Equal(t, 30*time.Second, c.FlushInterval)
	require.NoError(t, c.Validate())
}

func TestFromEnvAppliesOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVICE_NAME", "my-service")
	os.Setenv("LOG_PATHS", "/var/log/a.log, /var/log/b.log")
	os.Setenv("BATCH_SIZE", "250")
	os.Setenv("FLUSH_INTERVAL_SECONDS", "5")
	os.Setenv("PARSE_STRUCTURED_LOGS", "false")

	c := FromEnv()
	assert.Equal(t, "my-service", c.ServiceName)
	assert.Equal(t, []string{"/var/log/a.log", "/var/log/b.log"}, c.LogPaths)
	assert.Equal(t, 250, c.BatchSize)
	assert.Equal(t, 5*time.Second, c.FlushInterval)
	assert.False(t, c.ParseStructuredLogs)
}

func TestFromEnvUnparsableFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	os.Setenv("BATCH_SIZE", "not-a-number")

	c := FromEnv()
	assert.Equal(t, 100, c.BatchSize)
}

func TestValidateRejectsEmptyServiceName(t *testing.T) {
	c := Default()
	c.ServiceName = ""
	assert.Error(t, c.Validate())
}

func TestValidateRejectsEmptyLogPaths(t *testing.T) {
	c := Default()
	c.LogPaths = nil
	assert.Error(t, c.Validate())
}

func TestValidateRejectsZeroBatchSize(t *testing.T) {
	c := Default()
	c.BatchSize = 0
	assert.Error(t, c.Validate())
}

func TestValidateRejectsZeroBufferSize(t *testing.T) {
	c := Default()
	c.MaxBufferSize = 0
	assert.Error(t, c.Validate())
}
