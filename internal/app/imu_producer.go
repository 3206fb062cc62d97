// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/imu"
	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

// Producer polls the sensor at the configured frequency and publishes every
// reading that is not dropped.
type Producer struct {
	drv    *threespace.Driver
	pub    Publisher
	clk    clock.Clock
	cfg    *config.Config
	logger *zap.SugaredLogger

	debugLog  rate.Sometimes
	published int
}

// NewProducer wires a driver to a publisher.
func NewProducer(drv *threespace.Driver, pub Publisher, clk clock.Clock, cfg *config.Config, logger *zap.SugaredLogger) *Producer {
	return &Producer{
		drv:      drv,
		pub:      pub,
		clk:      clk,
		cfg:      cfg,
		logger:   logger,
		debugLog: rate.Sometimes{Interval: time.Second},
	}
}

// Step acquires one reading and publishes it to the imu and pose topics.
// Only driver errors are returned; they end acquisition. Publish errors are
// logged and the reading is skipped.
func (p *Producer) Step() error {
	reading, ok, err := p.drv.Acquire()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	msg := imu.FromReading(reading, p.cfg.IMUTimestampOffset)
	if err := p.pub.Publish(p.cfg.TopicIMU, msg); err != nil {
		p.logger.Warn(err)
		return nil
	}
	if err := p.pub.Publish(p.cfg.TopicPose, msg.Pose()); err != nil {
		p.logger.Warn(err)
		return nil
	}
	p.published++

	if p.cfg.IMUDebug {
		p.debugLog.Do(func() {
			p.logger.Infof("published reading %s (%d so far)", reading.Timestamp.Format(time.RFC3339Nano), p.published)
		})
	}
	return nil
}

// Run steps once per period of the configured frequency until ctx is done
// or the driver fails.
func (p *Producer) Run(ctx context.Context) error {
	period := p.cfg.IMUFrequency.Period()
	p.logger.Infof("publishing every %s", period)

	ticker := p.clk.Ticker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Infof("stopping after %d readings", p.published)
			return nil
		case <-ticker.C:
			if err := p.Step(); err != nil {
				return errors.Wrap(err, "acquire")
			}
		}
	}
}

// serveMetrics exposes reg on addr until the returned server is shut down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Infof("metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}

// RunIMUProducer brings the sensor up and publishes readings to MQTT until
// ctx is done. A driver failure ends the run with an error.
func RunIMUProducer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (err error) {
	logger.Info("starting 3-Space IMU producer")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := threespace.NewMetrics(reg)

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		}()
	}

	drv, err := OpenDriver(cfg, logger, threespace.WithMetrics(metrics))
	if err != nil {
		return errors.Wrap(err, "sensor bring-up")
	}
	defer func() {
		err = multierr.Append(err, drv.Close())
	}()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	logger.Info("connected to MQTT, starting publish loop")
	return NewProducer(drv, &mqttPublisher{client: client}, clock.New(), cfg, logger).Run(ctx)
}
