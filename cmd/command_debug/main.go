// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/threespace_imu/internal/app"
	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/logging"
)

func main() {
	configPath := flag.String("config", "./inertial_config.txt", "path to configuration file")
	addr := flag.String("addr", ":8081", "listen address")
	flag.Parse()

	logger := logging.MustLogger("command_debug", "info")
	logger.Info("starting 3-Space command debug tool (standalone)")

	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger = logging.MustLogger("command_debug", cfg.LogLevel)

	drv, err := app.OpenDriver(cfg, logger)
	if err != nil {
		logger.Fatalf("sensor bring-up: %v", err)
	}
	defer drv.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", app.CommandDebugHandler(drv.Client(), clock.New(), logger))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/command_debug.html")
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Infof("command debug tool listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Errorf("fatal: %v", err)
	}
}
