package app

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/orientation"
	"github.com/relabs-tech/threespace_imu/internal/serialport"
	"github.com/relabs-tech/threespace_imu/internal/simulator"
	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

// simulatedLatency is the one-way link delay of the simulated sensor.
const simulatedLatency = 500 * time.Microsecond

// OpenChannel returns the line channel selected by SERIAL_BACKEND.
func OpenChannel(cfg *config.Config, clk clock.Clock, logger *zap.SugaredLogger) (threespace.LineChannel, error) {
	if cfg.SerialBackend == config.BackendSim {
		logger.Info("using simulated 3-Space sensor")
		return simulator.New(clk, simulatedLatency, orientation.NewMockSource(clk), logger.Named("simulator")), nil
	}
	return serialport.Open(cfg.Serial(), logger.Named("serialport"))
}

// OpenDriver opens the channel and brings the sensor up.
func OpenDriver(cfg *config.Config, logger *zap.SugaredLogger, opts ...threespace.Option) (*threespace.Driver, error) {
	clk := clock.New()
	ch, err := OpenChannel(cfg, clk, logger)
	if err != nil {
		return nil, err
	}
	opts = append([]threespace.Option{threespace.WithClock(clk)}, opts...)
	return threespace.New(ch, cfg.Device(), logger.Named("threespace"), opts...)
}
