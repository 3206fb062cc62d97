package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"
	"periph.io/x/conn/v3/physic"
)

const sample = `
# sensor
SERIAL_PORT=/dev/ttyACM0
SERIAL_BACKEND=bugst
IMU_FREQUENCY=200Hz
IMU_DEBUG=true
IMU_TIMESTAMP_OFFSET=0.02

MQTT_BROKER=tcp://localhost:1883
TOPIC_IMU = lab/imu
`

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.SerialPort, test.ShouldEqual, "/dev/ttyACM0")
	test.That(t, cfg.SerialBackend, test.ShouldEqual, "bugst")
	test.That(t, cfg.IMUFrequency, test.ShouldEqual, 200*physic.Hertz)
	test.That(t, cfg.IMUDebug, test.ShouldBeTrue)
	test.That(t, cfg.IMUTimestampOffset, test.ShouldEqual, 20*time.Millisecond)
	test.That(t, cfg.TopicIMU, test.ShouldEqual, "lab/imu")

	// defaults
	test.That(t, cfg.SerialBaudRate, test.ShouldEqual, 115200)
	test.That(t, cfg.SerialTimeout, test.ShouldEqual, time.Second)
	test.That(t, cfg.IMUMagnetometerEnabled, test.ShouldBeTrue)
	test.That(t, cfg.IMUSettleDelay, test.ShouldEqual, 2*time.Second)
	test.That(t, cfg.TopicPose, test.ShouldEqual, "inertial/pose")

	dev := cfg.Device()
	test.That(t, dev.Frequency, test.ShouldEqual, 200*physic.Hertz)
	test.That(t, dev.Debug, test.ShouldBeTrue)
	test.That(t, cfg.Serial().PortName, test.ShouldEqual, "/dev/ttyACM0")
}

func TestParseBareFrequency(t *testing.T) {
	cfg, err := Parse(strings.NewReader("SERIAL_BACKEND=sim\nMQTT_BROKER=tcp://b:1883\nIMU_FREQUENCY=400\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.IMUFrequency, test.ShouldEqual, 400*physic.Hertz)
	test.That(t, cfg.IMUFrequency.Period(), test.ShouldEqual, 2500*time.Microsecond)
}

func TestParseErrors(t *testing.T) {
	for name, input := range map[string]string{
		"missing broker":   "SERIAL_PORT=/dev/ttyUSB0\n",
		"missing port":     "MQTT_BROKER=tcp://b:1883\n",
		"unknown key":      "MQTT_BROKER=tcp://b:1883\nSERIAL_PORT=x\nFOO=1\n",
		"no equals":        "MQTT_BROKER tcp://b:1883\n",
		"bad bool":         "MQTT_BROKER=tcp://b:1883\nSERIAL_PORT=x\nIMU_DEBUG=maybe\n",
		"bad backend":      "MQTT_BROKER=tcp://b:1883\nSERIAL_PORT=x\nSERIAL_BACKEND=usb\n",
		"bad frequency":    "MQTT_BROKER=tcp://b:1883\nSERIAL_PORT=x\nIMU_FREQUENCY=fast\n",
		"negative settle":  "MQTT_BROKER=tcp://b:1883\nSERIAL_PORT=x\nIMU_SETTLE_DELAY_MS=-1\n",
		"zero timeout":     "MQTT_BROKER=tcp://b:1883\nSERIAL_PORT=x\nSERIAL_TIMEOUT_MS=0\n",
		"bad offset":       "MQTT_BROKER=tcp://b:1883\nSERIAL_PORT=x\nIMU_TIMESTAMP_OFFSET=soon\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(input))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestSimNeedsNoPort(t *testing.T) {
	cfg, err := Parse(strings.NewReader("SERIAL_BACKEND=sim\nMQTT_BROKER=tcp://b:1883\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.SerialBackend, test.ShouldEqual, BackendSim)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inertial_config.txt")
	test.That(t, os.WriteFile(path, []byte(sample), 0o600), test.ShouldBeNil)

	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.MQTTBroker, test.ShouldEqual, "tcp://localhost:1883")

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestShippedConfig(t *testing.T) {
	cfg, err := Load("../../inertial_config.txt")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Device(), test.ShouldResemble, Default().Device())
	test.That(t, cfg.SerialPort, test.ShouldEqual, "/dev/ttyACM0")
}
