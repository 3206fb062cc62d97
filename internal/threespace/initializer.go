// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package threespace

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Initializer runs the one-shot bring-up sequence of a sensor.
type Initializer struct {
	client *Client
	sync   *ClockSync
	clk    clock.Clock
	cfg    Config
	logger *zap.SugaredLogger

	ran         bool
	diagnostics Diagnostics
}

type initStep struct {
	name string
	run  func() error
}

// NewInitializer prepares the sequence. Nothing is sent until Run.
func NewInitializer(client *Client, sync *ClockSync, clk clock.Clock, cfg Config, logger *zap.SugaredLogger) *Initializer {
	return &Initializer{client: client, sync: sync, clk: clk, cfg: cfg, logger: logger}
}

// Run configures the sensor and performs the initial clock sync. It may only
// be called once. Any error aborts bring-up; it names the failing step.
func (in *Initializer) Run() (Diagnostics, error) {
	if in.ran {
		return Diagnostics{}, errors.New("initializer already ran")
	}
	in.ran = true

	steps := []initStep{
		{"get firmware version", in.firmwareVersion},
		{"set axis directions", func() error { return in.client.Send(SetAxisDirections, AxisDirectionFLU) }},
		{"set response header", func() error { return in.client.Send(SetResponseHeaderBitfield, HeaderTimestampSuccess) }},
		{"set magnetometer", func() error { return in.client.SetMagnetometer(in.cfg.MagnetometerEnabled) }},
		{"set filter mode", func() error { return in.client.Send(SetFilterMode, FilterModeKalman) }},
		{"set reference vector mode", func() error { return in.client.Send(SetReferenceVectorMode, ReferenceVectorContinuous) }},
		{"reset device clock", in.sync.Reset},
		{"settle", in.settle},
		{"diagnostics", in.readDiagnostics},
		{"flush", in.client.Flush},
		{"sync device clock", in.sync.Resync},
	}

	for i, step := range steps {
		if err := step.run(); err != nil {
			return Diagnostics{}, errors.Wrapf(err, "init step %d (%s)", i+1, step.name)
		}
	}
	return in.diagnostics, nil
}

func (in *Initializer) firmwareVersion() error {
	version, err := in.client.Query(GetFirmwareVersionString)
	if err != nil {
		return err
	}
	in.logger.Infof("software version: %s", version)
	in.diagnostics.Firmware = version
	return nil
}

func (in *Initializer) settle() error {
	if in.cfg.SettleDelay > 0 {
		in.clk.Sleep(in.cfg.SettleDelay)
	}
	return nil
}

func (in *Initializer) readDiagnostics() error {
	firmware := in.diagnostics.Firmware
	in.diagnostics = in.client.ReadDiagnostics()
	in.diagnostics.Firmware = firmware
	return nil
}
