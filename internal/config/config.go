package config

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/threespace_imu/internal/serialport"
	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

// BackendSim selects the simulated sensor instead of a serial port.
const BackendSim = "sim"

// Config holds all application configuration values.
type Config struct {
	// Serial
	SerialPort     string
	SerialBaudRate int
	SerialTimeout  time.Duration
	SerialBackend  string

	// IMU
	IMUFrequency           physic.Frequency
	IMUDebug               bool
	IMUMagnetometerEnabled bool
	IMUTimestampOffset     time.Duration
	IMUSettleDelay         time.Duration

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string

	// Topics
	TopicIMU  string
	TopicPose string

	// Web Server
	WebServerPort int
	MetricsAddr   string

	LogLevel string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only InitGlobal sets it, Get reads it.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys the file does not set.
func Default() *Config {
	return &Config{
		SerialBaudRate:         115200,
		SerialTimeout:          time.Second,
		SerialBackend:          serialport.BackendJacobsa,
		IMUFrequency:           400 * physic.Hertz,
		IMUMagnetometerEnabled: true,
		IMUTimestampOffset:     12 * time.Millisecond,
		IMUSettleDelay:         2 * time.Second,
		MQTTClientIDProducer:   "inertial-imu-producer",
		MQTTClientIDConsole:    "inertial-console",
		MQTTClientIDWeb:        "inertial-web",
		TopicIMU:               "inertial/imu",
		TopicPose:              "inertial/pose",
		WebServerPort:          8080,
		MetricsAddr:            ":9100",
		LogLevel:               "info",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with '#' are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, errors.Wrapf(err, "config line %d", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	return b, nil
}

func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	if ms < 0 {
		return 0, errors.Errorf("%s must not be negative, got %d", key, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// parseFrequency accepts a bare number of hertz or a unit suffixed value
// such as "400Hz" or "1kHz".
func parseFrequency(value string) (physic.Frequency, error) {
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		value += "Hz"
	}
	var f physic.Frequency
	if err := f.Set(value); err != nil {
		return 0, errors.Wrapf(err, "invalid IMU_FREQUENCY %q", value)
	}
	return f, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "invalid SERIAL_BAUD_RATE %q", value)
		}
		c.SerialBaudRate = rate
	case "SERIAL_TIMEOUT_MS":
		c.SerialTimeout, err = parseMillis(key, value)
	case "SERIAL_BACKEND":
		switch value {
		case serialport.BackendJacobsa, serialport.BackendBugst, BackendSim:
			c.SerialBackend = value
		default:
			return errors.Errorf("SERIAL_BACKEND must be %s, %s or %s, got %q",
				serialport.BackendJacobsa, serialport.BackendBugst, BackendSim, value)
		}

	// IMU
	case "IMU_FREQUENCY":
		c.IMUFrequency, err = parseFrequency(value)
	case "IMU_DEBUG":
		c.IMUDebug, err = parseBool(key, value)
	case "IMU_MAGNETOMETER_ENABLED":
		c.IMUMagnetometerEnabled, err = parseBool(key, value)
	case "IMU_TIMESTAMP_OFFSET":
		seconds, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return errors.Wrapf(perr, "invalid IMU_TIMESTAMP_OFFSET %q", value)
		}
		c.IMUTimestampOffset = time.Duration(math.Round(seconds * float64(time.Second)))
	case "IMU_SETTLE_DELAY_MS":
		c.IMUSettleDelay, err = parseMillis(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_POSE":
		c.TopicPose = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "invalid WEB_SERVER_PORT %q", value)
		}
		c.WebServerPort = port
	case "METRICS_ADDR":
		c.MetricsAddr = value

	case "LOG_LEVEL":
		c.LogLevel = value

	default:
		return errors.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is required")
	}
	if c.SerialPort == "" && c.SerialBackend != BackendSim {
		return errors.New("SERIAL_PORT is required")
	}
	if c.SerialBaudRate <= 0 {
		return errors.Errorf("SERIAL_BAUD_RATE must be positive, got %d", c.SerialBaudRate)
	}
	if c.SerialTimeout == 0 {
		return errors.New("SERIAL_TIMEOUT_MS must be positive")
	}
	if c.IMUFrequency <= 0 {
		return errors.New("IMU_FREQUENCY must be positive")
	}
	return nil
}

// Device returns the sensor driver configuration.
func (c *Config) Device() threespace.Config {
	return threespace.Config{
		Frequency:           c.IMUFrequency,
		MagnetometerEnabled: c.IMUMagnetometerEnabled,
		Debug:               c.IMUDebug,
		TimestampOffset:     c.IMUTimestampOffset,
		SettleDelay:         c.IMUSettleDelay,
	}
}

// Serial returns the serial port options.
func (c *Config) Serial() serialport.Options {
	return serialport.Options{
		PortName: c.SerialPort,
		BaudRate: c.SerialBaudRate,
		Timeout:  c.SerialTimeout,
		Backend:  c.SerialBackend,
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
