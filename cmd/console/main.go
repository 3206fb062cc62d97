// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/threespace_imu/internal/app"
	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/logging"
)

func main() {
	configPath := flag.String("config", "./inertial_config.txt", "path to configuration file")
	interval := flag.Duration("interval", 100*time.Millisecond, "time between printed readings")
	flag.Parse()

	logger := logging.MustLogger("console", "info")
	logger.Info("starting local console (sensor → stdout)")

	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger = logging.MustLogger("console", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsole(ctx, cfg, *interval, os.Stdout, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
