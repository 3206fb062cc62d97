// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package simulator emulates a 3-Space sensor behind the line channel the
// driver talks to, so every tool runs without hardware.
package simulator

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/threespace_imu/internal/orientation"
	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

// Firmware is what the simulated sensor reports as its version.
const Firmware = "SIM3Space00"

const (
	headerSuccess   = 0x1
	headerTimestamp = 0x2
)

var errClosed = errors.New("simulator: device closed")

// timeoutError is returned when a response is read that was never sent.
type timeoutError struct{}

func (timeoutError) Error() string { return "simulator: read timed out" }
func (timeoutError) Timeout() bool { return true }

// Device is an emulated sensor. Each message crosses the link in Latency.
type Device struct {
	clk     clock.Clock
	latency time.Duration
	source  orientation.Source
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	closed  bool
	pending []string

	zeroAt       time.Time
	header       int
	axis         int
	filterMode   int
	calibMode    int
	miMode       bool
	magnetometer bool
	tare         quat.Number
	lastPose     orientation.Pose
	lastPoseAt   time.Time
}

// New returns a device whose orientation follows src. A zero latency makes
// the link instantaneous, which is what mock clock tests want.
func New(clk clock.Clock, latency time.Duration, src orientation.Source, logger *zap.SugaredLogger) *Device {
	return &Device{
		clk:          clk,
		latency:      latency,
		source:       src,
		logger:       logger,
		zeroAt:       clk.Now(),
		filterMode:   threespace.FilterModeKalman,
		magnetometer: true,
		tare:         quat.Number{Real: 1},
	}
}

func (d *Device) transfer() {
	if d.latency > 0 {
		d.clk.Sleep(d.latency)
	}
}

// Write delivers one command line to the device.
func (d *Device) Write(s string) error {
	d.transfer()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}

	withHeader, code, args, err := parse(s)
	if err != nil {
		// a real sensor ignores what it cannot parse
		d.logger.Debugf("ignoring %q: %v", s, err)
		return nil
	}
	fields, respond := d.execute(code, args)
	if !respond {
		return nil
	}
	if withHeader {
		fields = append(d.headerFields(), fields...)
	}
	d.pending = append(d.pending, strings.Join(fields, ",")+"\r\n")
	return nil
}

// ReadLine returns the oldest unread response.
func (d *Device) ReadLine() (string, error) {
	d.transfer()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", errClosed
	}
	if len(d.pending) == 0 {
		return "", timeoutError{}
	}
	line := d.pending[0]
	d.pending = d.pending[1:]
	return line, nil
}

// Flush drops unread responses.
func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
	return nil
}

// Close disconnects the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func parse(s string) (withHeader bool, code int, args []float64, err error) {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return false, 0, nil, errors.New("empty command")
	}
	switch s[0] {
	case ':':
	case ';':
		withHeader = true
	default:
		return false, 0, nil, errors.Errorf("bad start byte %q", s[0])
	}
	fields := strings.Split(s[1:], ",")
	code, err = strconv.Atoi(fields[0])
	if err != nil {
		return false, 0, nil, errors.Wrap(err, "command code")
	}
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return false, 0, nil, errors.Wrap(err, "argument")
		}
		args = append(args, v)
	}
	return withHeader, code, args, nil
}

func (d *Device) headerFields() []string {
	var fields []string
	if d.header&headerSuccess != 0 {
		fields = append(fields, "0")
	}
	if d.header&headerTimestamp != 0 {
		fields = append(fields, strconv.FormatInt(d.clk.Since(d.zeroAt).Microseconds(), 10))
	}
	return fields
}

func arg(args []float64, i int) int {
	if i < len(args) {
		return int(args[i])
	}
	return 0
}

func (d *Device) execute(code int, args []float64) (fields []string, respond bool) {
	switch code {
	case threespace.GetTaredOrientationAsQuaternion.Code():
		return quatFields(quat.Mul(quat.Conj(d.tare), d.orientation())), true
	case threespace.GetUntaredOrientationAsQuaternion.Code():
		return quatFields(d.orientation()), true
	case threespace.GetCorrectedGyroRate.Code():
		return vecFields(d.gyroRate()), true
	case threespace.GetCorrectedAccelerometerVector.Code():
		return vecFields(d.gravity()), true
	case threespace.GetTemperatureC.Code():
		return []string{"31.5"}, true
	case threespace.UpdateCurrentTimestamp.Code():
		d.zeroAt = d.clk.Now().Add(-time.Duration(arg(args, 0)) * time.Microsecond)
	case threespace.TareWithCurrentOrientation.Code():
		d.tare = d.orientation()
	case threespace.SetMagnetometerEnabled.Code():
		d.magnetometer = arg(args, 0) != 0
	case threespace.SetMIModeEnabled.Code():
		d.miMode = arg(args, 0) != 0
	case threespace.SetAxisDirections.Code():
		d.axis = arg(args, 0)
	case threespace.SetFilterMode.Code():
		d.filterMode = arg(args, 0)
	case threespace.SetCalibMode.Code():
		d.calibMode = arg(args, 0)
	case threespace.SetResponseHeaderBitfield.Code():
		d.header = arg(args, 0)
	case threespace.GetMIModeEnabled.Code():
		return []string{boolField(d.miMode)}, true
	case threespace.GetMagnetometerEnabled.Code():
		return []string{boolField(d.magnetometer)}, true
	case threespace.GetAxisDirections.Code():
		return []string{strconv.Itoa(d.axis)}, true
	case threespace.GetFilterMode.Code():
		return []string{strconv.Itoa(d.filterMode)}, true
	case threespace.GetCalibMode.Code():
		return []string{strconv.Itoa(d.calibMode)}, true
	case threespace.GetFirmwareVersionString.Code():
		return []string{Firmware}, true
	case threespace.RestoreFactorySettings.Code():
		d.header, d.axis, d.calibMode = 0, 0, 0
		d.filterMode, d.magnetometer, d.miMode = threespace.FilterModeKalman, true, false
		d.tare = quat.Number{Real: 1}
	default:
		// streaming timing, reference vector mode and gyro calibration have
		// no observable effect on a simulated sensor
	}
	return nil, false
}

func (d *Device) pose() orientation.Pose {
	p, err := d.source.Next()
	if err != nil {
		d.logger.Warnf("orientation source: %v", err)
		return d.lastPose
	}
	return p
}

func (d *Device) orientation() quat.Number {
	return d.pose().Quaternion()
}

// gyroRate differentiates the pose between two queries, in rad/s.
func (d *Device) gyroRate() r3.Vector {
	now := d.clk.Now()
	p := d.pose()
	defer func() { d.lastPose, d.lastPoseAt = p, now }()

	dt := now.Sub(d.lastPoseAt).Seconds()
	if d.lastPoseAt.IsZero() || dt <= 0 {
		return r3.Vector{}
	}
	return r3.Vector{
		X: orientation.Radians(p.Roll-d.lastPose.Roll) / dt,
		Y: orientation.Radians(p.Pitch-d.lastPose.Pitch) / dt,
		Z: orientation.Radians(wrap(p.Yaw-d.lastPose.Yaw)) / dt,
	}
}

// gravity is the accelerometer reading at rest, in g, in the body frame.
func (d *Device) gravity() r3.Vector {
	q := d.orientation()
	up := quat.Mul(quat.Mul(quat.Conj(q), quat.Number{Kmag: 1}), q)
	return r3.Vector{X: up.Imag, Y: up.Jmag, Z: up.Kmag}
}

func wrap(deg float64) float64 {
	switch {
	case deg > 180:
		return deg - 360
	case deg < -180:
		return deg + 360
	}
	return deg
}

func quatFields(q quat.Number) []string {
	return []string{num(q.Imag), num(q.Jmag), num(q.Kmag), num(q.Real)}
}

func vecFields(v r3.Vector) []string {
	return []string{num(v.X), num(v.Y), num(v.Z)}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
