package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"sidecar-collector/internal/app"
	"sidecar-collector/pkg/telemetry"
)

func main() {
	var httpAddr string
	flag.StringVar(&httpAddr, "http-addr", "", "bind address for the health/metrics HTTP server; overrides METRICS_LISTEN_ADDR (default :9091)")
	flag.Parse()

	if httpAddr == "" {
		httpAddr = envOr("METRICS_LISTEN_ADDR", ":9091")
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if envOr("LOG_FORMAT", "json") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	logger.WithField("version", telemetry.CollectorVersion).Info("starting sidecar collector")

	application, err := app.New(logger, httpAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
