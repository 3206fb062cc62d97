// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Vendor calibration and mode toggles for a 3-Space sensor.
//
// One-shot:
//
//	go run ./cmd/calibration -action gyro
//	go run ./cmd/calibration -action calib-mode -value 1
//
// Guided session over a websocket, writing JSON results under ./calibration/:
//
//	go run ./cmd/calibration -serve :8082
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/relabs-tech/threespace_imu/internal/app"
	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/logging"
)

func main() {
	configPath := flag.String("config", "./inertial_config.txt", "path to configuration file")
	action := flag.String("action", "diagnostics", "one of: "+strings.Join(app.VendorActions, ", "))
	value := flag.Float64("value", 0, "argument of the action (mode number, 0/1 for toggles)")
	serve := flag.String("serve", "", "serve the guided calibration websocket on this address instead")
	flag.Parse()

	logger := logging.MustLogger("calibration", "info")

	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger = logging.MustLogger("calibration", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunCalibration(ctx, cfg, *action, *value, *serve, os.Stdout, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
