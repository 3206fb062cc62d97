// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package threespace drives a Yost Labs 3-Space sensor over its ASCII
// command protocol and timestamps its readings on the host clock.
//
// A Driver is used from a single goroutine: every command is written and its
// response read before the next one is sent.
package threespace

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

// Config is the driver configuration, read once at startup.
type Config struct {
	// Frequency is the intended acquisition rate. The driver does not pace
	// itself; callers use it to schedule Acquire.
	Frequency           physic.Frequency
	MagnetometerEnabled bool
	Debug               bool
	// TimestampOffset is carried for downstream correction and not applied here.
	TimestampOffset time.Duration
	// SettleDelay is waited after the mode switches during bring-up.
	SettleDelay time.Duration
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Frequency:           400 * physic.Hertz,
		MagnetometerEnabled: true,
		TimestampOffset:     12 * time.Millisecond,
		SettleDelay:         2 * time.Second,
	}
}

// Option customizes a Driver.
type Option func(*Driver)

// WithClock replaces the host clock, for tests and simulation.
func WithClock(clk clock.Clock) Option {
	return func(d *Driver) { d.clk = clk }
}

// WithMetrics sets the collectors the driver updates.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// Driver owns one sensor connection from bring-up to Close.
type Driver struct {
	ch       LineChannel
	cfg      Config
	clk      clock.Clock
	metrics  *Metrics
	logger   *zap.SugaredLogger
	client   *Client
	sync     *ClockSync
	pipeline *Pipeline

	diagnostics Diagnostics
}

// New takes ownership of ch, brings the sensor up and synchronizes its clock.
// On error ch has been closed and the driver must not be used.
func New(ch LineChannel, cfg Config, logger *zap.SugaredLogger, opts ...Option) (*Driver, error) {
	d := &Driver{
		ch:     ch,
		cfg:    cfg,
		clk:    clock.New(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}

	d.client = NewClient(ch, logger)
	d.sync = NewClockSync(d.client, d.clk, logger, d.metrics, cfg.Debug)
	d.pipeline = NewPipeline(d.client, d.sync, d.metrics, logger)

	diag, err := NewInitializer(d.client, d.sync, d.clk, cfg, logger).Run()
	if err != nil {
		return nil, multierr.Append(err, ch.Close())
	}
	d.diagnostics = diag

	state := d.sync.State()
	logger.Infow("ready", "latency", state.Latency, "reset_instant", state.ResetInstant)
	return d, nil
}

// Acquire reads one sample. ok is false when the sample was dropped.
func (d *Driver) Acquire() (SensorReading, bool, error) {
	return d.pipeline.Acquire()
}

// Config returns the configuration the driver was built with.
func (d *Driver) Config() Config { return d.cfg }

// Diagnostics returns the state reported during bring-up.
func (d *Driver) Diagnostics() Diagnostics { return d.diagnostics }

// ClockState returns the current device clock mapping.
func (d *Driver) ClockState() DeviceClockState { return d.sync.State() }

// Client exposes the command client for vendor mode toggles.
func (d *Driver) Client() *Client { return d.client }

// Close releases the line channel.
func (d *Driver) Close() error {
	return d.ch.Close()
}
