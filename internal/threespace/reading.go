// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package threespace

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"
)

const (
	// FrameBodyFLU labels readings: X forward, Y left, Z up.
	FrameBodyFLU = "body_FLU"

	standardGravity = 9.8
)

// SensorReading is one timestamped sample. It is a value; treat it as immutable.
type SensorReading struct {
	Timestamp time.Time
	// Orientation is a unit quaternion, Real = w.
	Orientation quat.Number
	// AngularVelocity in rad/s.
	AngularVelocity r3.Vector
	// LinearAcceleration in m/s².
	LinearAcceleration r3.Vector
	Frame              string
}

// Pipeline acquires readings: orientation, gyro rate and acceleration, in that
// order, then timestamps them through the ClockSync.
type Pipeline struct {
	client  *Client
	sync    *ClockSync
	metrics *Metrics
	logger  *zap.SugaredLogger
}

// NewPipeline returns a pipeline reading through client and stamping with sync.
func NewPipeline(client *Client, sync *ClockSync, metrics *Metrics, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{client: client, sync: sync, metrics: metrics, logger: logger}
}

// Acquire runs one cycle. ok is false when the reading was dropped for a
// future timestamp; that is not an error. Transport and decode failures are
// returned as is.
func (p *Pipeline) Acquire() (reading SensorReading, ok bool, err error) {
	q, err := p.client.Exec(GetUntaredOrientationAsQuaternionWithHeader)
	if err != nil {
		return SensorReading{}, false, errors.Wrap(err, "orientation")
	}
	gyro, err := p.client.Exec(GetCorrectedGyroRate)
	if err != nil {
		return SensorReading{}, false, errors.Wrap(err, "gyro rate")
	}
	accel, err := p.client.Exec(GetCorrectedAccelerometerVector)
	if err != nil {
		return SensorReading{}, false, errors.Wrap(err, "acceleration")
	}

	ts, err := p.sync.ToHostTime(q[1])
	if errors.Is(err, ErrFutureTimestamp) {
		p.logger.Debugw("reading dropped", "reason", err.Error())
		if p.metrics != nil {
			p.metrics.ReadingsDropped.Inc()
		}
		return SensorReading{}, false, nil
	}
	if err != nil {
		return SensorReading{}, false, errors.Wrap(err, "timestamp")
	}

	reading = SensorReading{
		Timestamp:          ts,
		Orientation:        quat.Number{Real: q[5], Imag: q[2], Jmag: q[3], Kmag: q[4]},
		AngularVelocity:    r3.Vector{X: gyro[0], Y: gyro[1], Z: gyro[2]},
		LinearAcceleration: r3.Vector{X: accel[0], Y: accel[1], Z: accel[2]}.Mul(standardGravity),
		Frame:              FrameBodyFLU,
	}
	if p.metrics != nil {
		p.metrics.ReadingsEmitted.Inc()
	}
	return reading, true, nil
}
