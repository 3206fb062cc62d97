// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

const (
	stillSamples = 100

	// Gyro noise thresholds at rest, rad/s.
	stillStdGood = 0.002
	stillStdBad  = 0.02

	// Confidence floor (we never want hard zero unless we error out)
	confFloor = 0.05
)

// Vec3 is a per-axis statistic.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CalibrationResult is what a session writes under ./calibration/.
type CalibrationResult struct {
	Version      int                    `json:"version"`
	Timestamp    time.Time              `json:"timestamp"`
	Diagnostics  threespace.Diagnostics `json:"diagnostics"`
	TemperatureC float64                `json:"temperature_c"`

	// Gyroscope at rest before and after the vendor auto-calibration
	GyroBiasBefore   Vec3    `json:"gyro_bias_before"`
	GyroStdDevBefore Vec3    `json:"gyro_stddev_before"`
	GyroBiasAfter    Vec3    `json:"gyro_bias_after"`
	GyroStdDevAfter  Vec3    `json:"gyro_stddev_after"`
	GyroConfidence   float64 `json:"gyro_confidence"`

	Tared        bool `json:"tared"`
	TotalSamples int  `json:"total_samples"`
}

// WebSocket message types
type WSMessage struct {
	Action string  `json:"action"` // next, calib_mode, mi_mode, magnetometer, factory_reset, diagnostics, cancel
	Value  float64 `json:"value,omitempty"`
}

type WSResponse struct {
	Type     string                 `json:"type"` // phase, progress, stats, complete, status, error
	Phase    string                 `json:"phase,omitempty"`
	Progress float64                `json:"progress,omitempty"`
	Stats    map[string]interface{} `json:"stats,omitempty"`
	Results  interface{}            `json:"results,omitempty"`
	Message  string                 `json:"message,omitempty"`
}

// jsonConn is the part of a websocket connection a session uses.
type jsonConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
}

// CalibrationSession walks the sensor through its calibration phases:
// still sampling, gyro auto-calibration, re-sampling and tare.
type CalibrationSession struct {
	Conn   jsonConn
	drv    *threespace.Driver
	clk    clock.Clock
	dir    string
	logger *zap.SugaredLogger

	mu           sync.Mutex
	currentPhase string
	results      CalibrationResult
}

// NewCalibrationSession prepares a session writing results to dir.
func NewCalibrationSession(conn jsonConn, drv *threespace.Driver, clk clock.Clock, dir string, logger *zap.SugaredLogger) *CalibrationSession {
	return &CalibrationSession{
		Conn:   conn,
		drv:    drv,
		clk:    clk,
		dir:    dir,
		logger: logger,
		results: CalibrationResult{
			Version:     1,
			Timestamp:   clk.Now(),
			Diagnostics: drv.Diagnostics(),
		},
	}
}

// CalibrationHandler serves one CalibrationSession per websocket connection.
// Sessions are serialized: the sensor has a single command channel.
func CalibrationHandler(drv *threespace.Driver, clk clock.Clock, dir string, logger *zap.SugaredLogger) http.HandlerFunc {
	var busy sync.Mutex
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("calibration: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		busy.Lock()
		defer busy.Unlock()
		NewCalibrationSession(conn, drv, clk, dir, logger).Serve()
	}
}

// Serve handles messages until the client cancels or goes away.
func (s *CalibrationSession) Serve() {
	for {
		var msg WSMessage
		if err := s.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warnf("calibration: websocket read error: %v", err)
			}
			return
		}
		if msg.Action == "cancel" {
			s.logger.Info("calibration: cancelled by user")
			return
		}
		if err := s.Handle(msg); err != nil {
			s.sendError(err.Error())
		}
	}
}

// Handle runs one action.
func (s *CalibrationSession) Handle(msg WSMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client := s.drv.Client()
	switch msg.Action {
	case "next":
		return s.runNextStep()
	case "calib_mode":
		return s.status(client.SetCalibrationMode(int(msg.Value)), "calibration mode set")
	case "mi_mode":
		return s.status(client.SetMIMode(msg.Value != 0), "MI mode set")
	case "magnetometer":
		return s.status(client.SetMagnetometer(msg.Value != 0), "magnetometer set")
	case "factory_reset":
		return s.status(client.RestoreFactorySettings(), "factory settings restored")
	case "diagnostics":
		diag := client.ReadDiagnostics()
		diag.Firmware = s.results.Diagnostics.Firmware
		s.results.Diagnostics = diag
		return s.Conn.WriteJSON(WSResponse{Type: "status", Results: diag})
	}
	return errors.Errorf("unknown action %q", msg.Action)
}

func (s *CalibrationSession) status(err error, message string) error {
	if err != nil {
		return err
	}
	return s.Conn.WriteJSON(WSResponse{Type: "status", Message: message})
}

func (s *CalibrationSession) runNextStep() error {
	// State machine for calibration phases
	switch s.currentPhase {
	case "":
		s.currentPhase = "still"
		s.sendPhase(s.currentPhase)
		bias, std, err := s.sampleGyro()
		if err != nil {
			return err
		}
		s.results.GyroBiasBefore, s.results.GyroStdDevBefore = bias, std
		s.sendStats()
		return nil

	case "still":
		s.currentPhase = "gyro"
		s.sendPhase(s.currentPhase)
		if err := s.drv.Client().StartGyroCalibration(s.clk); err != nil {
			return err
		}
		bias, std, err := s.sampleGyro()
		if err != nil {
			return err
		}
		s.results.GyroBiasAfter, s.results.GyroStdDevAfter = bias, std
		s.results.GyroConfidence = confidence(maxAxis(std), stillStdGood, stillStdBad)
		s.sendStats()
		return nil

	case "gyro":
		s.currentPhase = "tare"
		s.sendPhase(s.currentPhase)
		if err := s.drv.Client().Tare(); err != nil {
			return err
		}
		s.results.Tared = true
		return nil

	case "tare":
		s.currentPhase = "complete"
		return s.complete()
	}
	return errors.New("calibration already complete")
}

// sampleGyro averages the gyro over stillSamples readings. Dropped readings
// are retried, up to three times the sample count.
func (s *CalibrationSession) sampleGyro() (Vec3, Vec3, error) {
	var xs, ys, zs []float64
	for attempt := 0; len(xs) < stillSamples && attempt < 3*stillSamples; attempt++ {
		reading, ok, err := s.drv.Acquire()
		if err != nil {
			return Vec3{}, Vec3{}, err
		}
		if !ok {
			continue
		}
		xs = append(xs, reading.AngularVelocity.X)
		ys = append(ys, reading.AngularVelocity.Y)
		zs = append(zs, reading.AngularVelocity.Z)
		if len(xs)%10 == 0 {
			s.sendProgress(float64(len(xs)) / stillSamples)
		}
	}
	if len(xs) < 2 {
		return Vec3{}, Vec3{}, errors.New("not enough readings to sample the gyro")
	}
	s.results.TotalSamples += len(xs)

	var bias, std Vec3
	bias.X, std.X = stat.MeanStdDev(xs, nil)
	bias.Y, std.Y = stat.MeanStdDev(ys, nil)
	bias.Z, std.Z = stat.MeanStdDev(zs, nil)
	return bias, std, nil
}

func maxAxis(v Vec3) float64 {
	a := r3.Vector{X: v.X, Y: v.Y, Z: v.Z}.Abs()
	return math.Max(a.X, math.Max(a.Y, a.Z))
}

// confidence maps a noise figure onto [confFloor, 1]: 1 at or below good,
// confFloor at or above bad, linear in between.
func confidence(std, good, bad float64) float64 {
	switch {
	case std <= good:
		return 1
	case std >= bad:
		return confFloor
	}
	return math.Max(confFloor, 1-(std-good)/(bad-good))
}

func (s *CalibrationSession) complete() error {
	temp, err := s.drv.Client().Temperature()
	if err != nil {
		s.logger.Warnf("calibration: temperature: %v", err)
	}
	s.results.TemperatureC = temp

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create calibration directory")
	}
	filename := "threespace_" + s.results.Timestamp.Format("20060102_150405") + ".json"
	path := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(s.results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal calibration results")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write calibration file")
	}
	s.logger.Infof("calibration: saved results to %s", path)

	return s.Conn.WriteJSON(WSResponse{
		Type:    "complete",
		Results: map[string]interface{}{"filename": filename},
	})
}

func (s *CalibrationSession) sendPhase(phase string) {
	s.Conn.WriteJSON(WSResponse{
		Type:  "phase",
		Phase: phase,
	})
}

func (s *CalibrationSession) sendProgress(progress float64) {
	s.Conn.WriteJSON(WSResponse{
		Type:     "progress",
		Progress: progress,
	})
}

func (s *CalibrationSession) sendStats() {
	stats := map[string]interface{}{
		"gyro_bias_before": s.results.GyroBiasBefore,
		"gyro_bias_after":  s.results.GyroBiasAfter,
		"gyro_confidence":  s.results.GyroConfidence,
		"samples":          s.results.TotalSamples,
	}
	s.Conn.WriteJSON(WSResponse{
		Type:  "stats",
		Stats: stats,
	})
}

func (s *CalibrationSession) sendError(message string) {
	s.Conn.WriteJSON(WSResponse{
		Type:    "error",
		Message: message,
	})
}
