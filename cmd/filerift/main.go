// Command filerift detects, previews and loads delimited and fixed-width
// files, and serves the same operations over HTTP.
//
// Usage:
//
//	filerift detect [-sample N] FILE
//	filerift preview [-n N] [reader flags] FILE
//	filerift load -table T -columns a:int,b:text [reader flags] FILE
//	filerift serve [-addr HOST:PORT]
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/filerift/internal/config"
	"github.com/JonMunkholm/filerift/internal/logging"
	"github.com/JonMunkholm/filerift/internal/metrics"
)

func main() {
	// Load .env file if it exists. Variables already set in the environment win.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if envErr == nil {
		slog.Debug("loaded .env file")
	}
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	a := &app{
		cfg:      cfg,
		out:      os.Stdout,
		errOut:   os.Stderr,
		metrics:  metrics.New(reg),
		gatherer: reg,
	}
	os.Exit(a.run(ctx, os.Args[1:]))
}
