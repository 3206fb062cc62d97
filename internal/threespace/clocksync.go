// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package threespace

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat"
)

const (
	// ResyncThreshold is the device elapsed time past which the mapping is
	// rebuilt before a reading is timestamped.
	ResyncThreshold = 3 * time.Second

	// FutureTolerance is how far ahead of the host clock a reading may be
	// stamped before it is discarded.
	FutureTolerance = 4 * time.Millisecond

	latencySamples = 5
)

// maxDeviceClock bounds the microsecond counts a time.Duration can hold.
var maxDeviceClock = float64(math.MaxInt64 / int64(time.Microsecond))

// DeviceClockState maps the device clock onto the host clock.
type DeviceClockState struct {
	// ResetInstant is the host time at which the device clock was zeroed.
	ResetInstant time.Time
	// Latency is the estimated one-way command/response delay.
	Latency time.Duration
}

// ClockSync owns the DeviceClockState of one sensor.
type ClockSync struct {
	client  *Client
	clk     clock.Clock
	logger  *zap.SugaredLogger
	metrics *Metrics
	debug   bool

	debugLog rate.Sometimes
	state    DeviceClockState
}

// NewClockSync returns an unsynced ClockSync. Call Resync before ToHostTime.
func NewClockSync(client *Client, clk clock.Clock, logger *zap.SugaredLogger, metrics *Metrics, debug bool) *ClockSync {
	return &ClockSync{
		client:   client,
		clk:      clk,
		logger:   logger,
		metrics:  metrics,
		debug:    debug,
		debugLog: rate.Sometimes{Interval: time.Second},
	}
}

// State returns a copy of the current mapping.
func (s *ClockSync) State() DeviceClockState {
	return s.state
}

// Reset zeroes the device clock and records the host instant. The latency
// estimate is kept.
func (s *ClockSync) Reset() error {
	instant, err := s.zero()
	if err != nil {
		return err
	}
	s.state.ResetInstant = instant
	return nil
}

func (s *ClockSync) zero() (time.Time, error) {
	if err := s.client.Send(UpdateCurrentTimestamp, timestampResetValue); err != nil {
		return time.Time{}, errors.Wrap(err, "reset device clock")
	}
	instant := s.clk.Now()
	if instant.Before(s.state.ResetInstant) {
		instant = s.state.ResetInstant
	}
	s.logger.Debugf("device clock reset at %s", instant.Format(time.RFC3339Nano))
	return instant, nil
}

// Resync zeroes the device clock and estimates the message latency from five
// orientation queries, assuming the delay is symmetric:
//
//	latency_i = (host elapsed since reset - device clock_i) / 2
//
// Both fields of the state are replaced together once every sample is in.
func (s *ClockSync) Resync() error {
	resetInstant, err := s.zero()
	if err != nil {
		return err
	}

	samples := make([]float64, 0, latencySamples)
	for i := 0; i < latencySamples; i++ {
		values, err := s.client.Exec(GetUntaredOrientationAsQuaternionWithHeader)
		if err != nil {
			return errors.Wrapf(err, "latency sample %d", i+1)
		}
		rtt := s.clk.Now().Sub(resetInstant).Seconds()
		deviceElapsed := values[1] / 1e6
		samples = append(samples, (rtt-deviceElapsed)/2)
	}

	latency := time.Duration(math.Round(stat.Mean(samples, nil) * float64(time.Second)))
	s.state = DeviceClockState{ResetInstant: resetInstant, Latency: latency}

	if s.metrics != nil {
		s.metrics.Resyncs.Inc()
		s.metrics.Latency.Set(latency.Seconds())
	}
	if s.debug {
		s.logger.Infof("average message latency is %s", latency)
	}
	return nil
}

// ToHostTime maps a device clock value (microseconds since the last reset) to
// host time. Past ResyncThreshold the device clock is resynchronized first.
// A result more than FutureTolerance ahead of now is returned together with
// ErrFutureTimestamp and must not be forwarded.
func (s *ClockSync) ToHostTime(deviceClock float64) (time.Time, error) {
	if deviceClock < 0 || math.IsNaN(deviceClock) || deviceClock >= maxDeviceClock {
		return time.Time{}, errors.Wrapf(ErrMalformedResponse, "device clock %v", deviceClock)
	}
	elapsed := time.Duration(uint64(deviceClock)) * time.Microsecond

	if elapsed > ResyncThreshold {
		s.logger.Debugf("device clock at %s, resyncing", elapsed)
		if err := s.Resync(); err != nil {
			return time.Time{}, errors.Wrap(err, "resync")
		}
	}

	// Twice the latency: the sync query and the current query.
	candidate := s.state.ResetInstant.Add(elapsed).Add(2 * s.state.Latency)
	now := s.clk.Now()

	if s.debug {
		age := now.Sub(candidate)
		if age < -FutureTolerance {
			s.logger.Errorf("time delay negative! %s", age)
		}
		s.debugLog.Do(func() {
			s.logger.Infof("reset at %s, raw sensor time %s, result %s, msg latency %s, age of data %s",
				s.state.ResetInstant.Format(time.RFC3339Nano), elapsed,
				candidate.Format(time.RFC3339Nano), s.state.Latency, age)
		})
	}

	if candidate.After(now.Add(FutureTolerance)) {
		return candidate, errors.Wrapf(ErrFutureTimestamp, "%s ahead of host clock", candidate.Sub(now))
	}
	return candidate, nil
}
