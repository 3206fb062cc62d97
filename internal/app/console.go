// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/imu"
	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

// writerPublisher prints what would be published instead of sending it.
type writerPublisher struct {
	out      io.Writer
	imuTopic string
}

func (w *writerPublisher) Publish(topic string, v interface{}) error {
	if topic != w.imuTopic {
		return nil
	}
	m, ok := v.(imu.Message)
	if !ok {
		return nil
	}
	_, err := fmt.Fprintf(w.out, "%s\n%s\n", formatIMU(m), formatPose(m.Pose()))
	return err
}

// RunConsole drives the sensor directly and prints each reading, without MQTT.
func RunConsole(ctx context.Context, cfg *config.Config, interval time.Duration, out io.Writer, logger *zap.SugaredLogger) error {
	drv, err := OpenDriver(cfg, logger)
	if err != nil {
		return err
	}
	defer drv.Close()

	diag := drv.Diagnostics()
	fmt.Fprintf(out, "firmware %s, filter %s, axes %s\n", diag.Firmware, diag.FilterMode, diag.AxisDirection)

	return consoleLoop(ctx, drv, cfg, clock.New(), interval, out, logger)
}

func consoleLoop(ctx context.Context, drv *threespace.Driver, cfg *config.Config, clk clock.Clock, interval time.Duration, out io.Writer, logger *zap.SugaredLogger) error {
	pub := &writerPublisher{out: out, imuTopic: cfg.TopicIMU}
	p := NewProducer(drv, pub, clk, cfg, logger)

	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Step(); err != nil {
				return err
			}
		}
	}
}
