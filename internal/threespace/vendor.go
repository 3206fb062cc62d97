package threespace

import (
	"time"

	"github.com/benbjohnson/clock"
	"periph.io/x/conn/v3/physic"
)

// GyroCalibrationWait is how long the sensor needs to finish a gyro
// auto-calibration. Keep the sensor still meanwhile.
const GyroCalibrationWait = 5 * time.Second

// SetMagnetometer enables or disables the magnetometer in the filter.
func (c *Client) SetMagnetometer(on bool) error {
	return c.Send(SetMagnetometerEnabled, boolArg(on))
}

// SetMIMode enables or disables magnetic interference detection.
func (c *Client) SetMIMode(on bool) error {
	return c.Send(SetMIModeEnabled, boolArg(on))
}

// SetCalibrationMode selects CalibModeBias or CalibModeScaleBias.
func (c *Client) SetCalibrationMode(mode int) error {
	return c.Send(SetCalibMode, float64(mode))
}

// StartGyroCalibration starts the vendor gyro auto-calibration and blocks
// until it is expected to be done.
func (c *Client) StartGyroCalibration(clk clock.Clock) error {
	c.logger.Info("starting auto gyro calibration...")
	if err := c.Send(BeginGyroAutoCalibration); err != nil {
		return err
	}
	clk.Sleep(GyroCalibrationWait)
	c.logger.Info("proceeding")
	return nil
}

// Tare sets the current orientation as the tared reference.
func (c *Client) Tare() error {
	return c.Send(TareWithCurrentOrientation)
}

// RestoreFactorySettings resets every persisted setting of the sensor.
func (c *Client) RestoreFactorySettings() error {
	return c.Send(RestoreFactorySettings)
}

// Temperature reads the sensor temperature in degrees Celsius.
func (c *Client) Temperature() (float64, error) {
	values, err := c.Exec(GetTemperatureC)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// StreamingTimingArgs returns the set_streaming_timing arguments for the
// given frequency: interval in microseconds, infinite duration, no delay.
func StreamingTimingArgs(f physic.Frequency) []float64 {
	interval := f.Period() / time.Microsecond
	return []float64{float64(interval), streamingTimingDurationInf, streamingTimingDelayDefault}
}

// SetStreamingTiming programs the sensor's streaming interval. The driver
// polls, so this only matters to tools that switch the sensor to streaming.
func (c *Client) SetStreamingTiming(f physic.Frequency) error {
	return c.Send(SetStreamingTiming, StreamingTimingArgs(f)...)
}
