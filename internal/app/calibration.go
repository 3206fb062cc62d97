package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

// VendorActions lists what RunVendorAction accepts.
var VendorActions = []string{
	"diagnostics", "temperature", "gyro", "tare", "calib-mode", "mi-mode",
	"magnetometer", "streaming-timing", "factory-reset",
}

// RunVendorAction runs one named vendor command against the sensor and
// prints the outcome.
func RunVendorAction(drv *threespace.Driver, clk clock.Clock, action string, value float64, out io.Writer) error {
	client := drv.Client()
	var err error
	switch action {
	case "diagnostics":
		diag := client.ReadDiagnostics()
		diag.Firmware = drv.Diagnostics().Firmware
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(diag)
	case "temperature":
		var temp float64
		if temp, err = client.Temperature(); err == nil {
			fmt.Fprintf(out, "temperature: %.2f °C\n", temp)
		}
		return err
	case "gyro":
		fmt.Fprintf(out, "keep the sensor still for %s\n", threespace.GyroCalibrationWait)
		err = client.StartGyroCalibration(clk)
	case "tare":
		err = client.Tare()
	case "calib-mode":
		if value != threespace.CalibModeBias && value != threespace.CalibModeScaleBias {
			return errors.Errorf("calibration mode must be %d (bias) or %d (scale and bias), got %v",
				threespace.CalibModeBias, threespace.CalibModeScaleBias, value)
		}
		err = client.SetCalibrationMode(int(value))
	case "mi-mode":
		err = client.SetMIMode(value != 0)
	case "magnetometer":
		err = client.SetMagnetometer(value != 0)
	case "streaming-timing":
		err = client.SetStreamingTiming(drv.Config().Frequency)
	case "factory-reset":
		err = client.RestoreFactorySettings()
	default:
		return errors.Errorf("unknown action %q (want one of %v)", action, VendorActions)
	}
	if err != nil {
		return errors.Wrap(err, action)
	}
	fmt.Fprintf(out, "%s: done\n", action)
	return nil
}

// RunCalibration brings the sensor up and either runs action once or, when
// addr is set, serves the guided calibration websocket at /ws/calibration
// until ctx is done.
func RunCalibration(ctx context.Context, cfg *config.Config, action string, value float64, addr string, out io.Writer, logger *zap.SugaredLogger) error {
	drv, err := OpenDriver(cfg, logger)
	if err != nil {
		return err
	}
	defer drv.Close()

	clk := clock.New()
	if addr == "" {
		return RunVendorAction(drv, clk, action, value, out)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws/calibration", CalibrationHandler(drv, clk, "calibration", logger))
	mux.Handle("/", http.FileServer(http.Dir("web")))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("calibration server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
