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

	"github.com/relabs-tech/threespace_imu/internal/app"
	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/logging"
)

func main() {
	configPath := flag.String("config", "./inertial_config.txt", "path to configuration file")
	flag.Parse()

	logger := logging.MustLogger("imu_producer", "info")
	logger.Info("starting 3-Space IMU producer (IMU → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger = logging.MustLogger("imu_producer", cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunIMUProducer(ctx, cfg, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
