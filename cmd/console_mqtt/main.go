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

	logger := logging.MustLogger("console", "info")
	logger.Info("starting console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger = logging.MustLogger("console", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
