// Package metrics exposes the collector's Prometheus metrics, registered at
// package load the way the teacher's metrics package does it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BufferDepth tracks the current number of queued items per queue kind
	// ("logs", "spans") and priority class ("high", "normal").
	BufferDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sidecar_collector_buffer_depth",
			Help: "Current number of buffered items",
		},
		[]string{"kind", "priority"},
	)

	// BufferUtilization tracks buffer fill as a percentage, 0 to 100.
	BufferUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sidecar_collector_buffer_utilization",
		Help: "Overall buffer utilization as a percentage (0 to 100)",
	})

	// BufferOverflowsTotal counts drop-oldest overflow events per queue kind.
	BufferOverflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_collector_buffer_overflows_total",
			Help: "Total number of items dropped due to buffer overflow",
		},
		[]string{"kind"},
	)

	// TransportAttemptsTotal counts every batch handed to the transport; the
	// retries the transport makes for one batch are not counted separately.
	TransportAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sidecar_collector_transport_attempts_total",
		Help: "Total number of batch send attempts",
	})

	// TransportSuccessesTotal counts batches accepted by the gateway.
	TransportSuccessesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sidecar_collector_transport_successes_total",
		Help: "Total number of batches successfully sent",
	})

	// TransportFailuresTotal counts batches dropped after exhausting retries.
	TransportFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sidecar_collector_transport_failures_total",
		Help: "Total number of batches dropped after all retries failed",
	})

	// TransportSuccessRate mirrors the transport's own success-rate snapshot.
	TransportSuccessRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sidecar_collector_transport_success_rate",
		Help: "Transport success rate as a percentage",
	})

	// FileTailErrorsTotal counts I/O errors encountered while tailing a path.
	FileTailErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_collector_file_tail_errors_total",
			Help: "Total number of errors encountered while tailing a file",
		},
		[]string{"path"},
	)

	// LinesReadTotal counts lines successfully read from tailed files.
	LinesReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_collector_lines_read_total",
			Help: "Total number of lines read from tailed files",
		},
		[]string{"path"},
	)

	// ComponentHealth reports 1/0 health per named component.
	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sidecar_collector_component_health",
			Help: "Health status of a component (1 = healthy, 0 = unhealthy)",
		},
		[]string{"component"},
	)
)

// SetComponentHealth records a component's health as a 1/0 gauge.
func SetComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	ComponentHealth.WithLabelValues(component).Set(value)
}

// Handler returns the HTTP handler serving the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
