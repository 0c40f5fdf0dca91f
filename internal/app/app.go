// Package app wires together configuration, the collector, and an HTTP
// server exposing health and metrics endpoints, and owns the process
// signal-driven lifecycle.
package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"sidecar-collector/internal/collector"
	"sidecar-collector/internal/config"
	"sidecar-collector/internal/metrics"
)

const httpServerShutdownTimeout = 5 * time.Second

// App bundles the collector with its HTTP surface.
type App struct {
	config     config.Config
	logger     *logrus.Logger
	collector  *collector.Collector
	httpServer *http.Server
	addr       string
}

// New constructs an App from environment configuration. addr is the
// bind address for the health/metrics HTTP server (empty disables it).
func New(logger *logrus.Logger, addr string) (*App, error) {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.WithField("config", cfg.String()).Info("collector configuration loaded")

	c, err := collector.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		config:    cfg,
		logger:    logger,
		collector: c,
		addr:      addr,
	}

	if addr != "" {
		app.httpServer = app.buildHTTPServer()
	}

	return app, nil
}

func (a *App) buildHTTPServer() *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler())
	router.HandleFunc("/healthz", a.handleHealthz)

	return &http.Server{
		Addr:    a.addr,
		Handler: router,
	}
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := a.collector.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":        "ok",
		"collector_id":  stats.CollectorID,
		"service_name":  stats.ServiceName,
		"buffered_logs": stats.BufferedLogs,
	})
}

// Run starts the collector and, if configured, the HTTP server, and blocks
// until an interrupt or termination signal arrives, then shuts down
// gracefully.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collectorDone := make(chan error, 1)
	go func() {
		collectorDone <- a.collector.Run(ctx)
	}()

	if a.httpServer != nil {
		go func() {
			a.logger.WithField("addr", a.addr).Info("starting http server")
			if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.WithError(err).Error("http server failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	a.logger.Info("shutdown signal received")
	cancel()

	if a.httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpServerShutdownTimeout)
		defer shutdownCancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("http server shutdown error")
		}
	}

	return <-collectorDone
}
