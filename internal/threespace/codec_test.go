package threespace

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"periph.io/x/conn/v3/physic"
)

func TestEncode(t *testing.T) {
	test.That(t, Encode(GetCorrectedGyroRate), test.ShouldEqual, ":38\n")
	test.That(t, Encode(GetUntaredOrientationAsQuaternionWithHeader), test.ShouldEqual, ";6\n")
	test.That(t, Encode(SetAxisDirections, AxisDirectionFLU), test.ShouldEqual, ":116,19\n")
	test.That(t, Encode(SetResponseHeaderBitfield, HeaderTimestampSuccess), test.ShouldEqual, ":221,3\n")
	test.That(t, Encode(UpdateCurrentTimestamp, 0), test.ShouldEqual, ":95,0\n")
	test.That(t, Encode(SetStreamingTiming, StreamingTimingArgs(400*physic.Hertz)...), test.ShouldEqual, ":82,2500,0,0\n")
	test.That(t, Encode(SetCalibMode, 0.5), test.ShouldEqual, ":169,0.5\n")
}

func TestCommandString(t *testing.T) {
	test.That(t, GetCorrectedGyroRate.String(), test.ShouldEqual, "get_corrected_gyro_rate")
	test.That(t, Command(999).String(), test.ShouldEqual, "command(999)")
	test.That(t, GetUntaredOrientationAsQuaternionWithHeader.Response().Arity, test.ShouldEqual, 6)
	test.That(t, SetFilterMode.Response().Kind, test.ShouldEqual, ResponseNone)
}

func TestDecode(t *testing.T) {
	t.Run("matching arity", func(t *testing.T) {
		values, err := Decode("1,2.0,3.0\r\n", 3)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, values, test.ShouldResemble, []float64{1.0, 2.0, 3.0})
	})

	t.Run("too few fields", func(t *testing.T) {
		_, err := Decode("1,2.0\r\n", 3)
		test.That(t, errors.Is(err, ErrMalformedResponse), test.ShouldBeTrue)
	})

	t.Run("too many fields", func(t *testing.T) {
		_, err := Decode("1,2,3,4\r\n", 3)
		test.That(t, errors.Is(err, ErrMalformedResponse), test.ShouldBeTrue)
	})

	t.Run("non numeric field", func(t *testing.T) {
		_, err := Decode("1,abc,3\r\n", 3)
		test.That(t, errors.Is(err, ErrMalformedResponse), test.ShouldBeTrue)
	})

	t.Run("empty line", func(t *testing.T) {
		_, err := Decode("\r\n", 1)
		test.That(t, errors.Is(err, ErrMalformedResponse), test.ShouldBeTrue)
	})

	t.Run("negative and exponent", func(t *testing.T) {
		values, err := Decode("-0.5,1e-3\r\n", 2)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, values, test.ShouldResemble, []float64{-0.5, 0.001})
	})
}

func TestClientExec(t *testing.T) {
	logger, _ := newObservedLogger()
	dev := newFakeDevice(clock.NewMock(), time.Millisecond)
	c := NewClient(dev, logger)

	values, err := c.Exec(GetCorrectedGyroRate)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, values, test.ShouldResemble, []float64{0.01, 0.02, 0.03})
	test.That(t, dev.writes, test.ShouldResemble, []string{":38\n"})

	temp, err := c.Temperature()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, temp, test.ShouldEqual, 31.5)

	version, err := c.Query(GetFirmwareVersionString)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, version, test.ShouldEqual, "25Apr2016A00")

	_, err = c.Exec(SetFilterMode)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestClientErrors(t *testing.T) {
	logger, _ := newObservedLogger()

	t.Run("read timeout", func(t *testing.T) {
		dev := newFakeDevice(clock.NewMock(), 0)
		dev.silent[GetCorrectedGyroRate.Code()] = true
		_, err := NewClient(dev, logger).Exec(GetCorrectedGyroRate)
		test.That(t, errors.Is(err, ErrTransportTimeout), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "read get_corrected_gyro_rate")
	})

	t.Run("write timeout", func(t *testing.T) {
		dev := newFakeDevice(clock.NewMock(), 0)
		dev.timeoutWrites[SetFilterMode.Code()] = true
		err := NewClient(dev, logger).Send(SetFilterMode, FilterModeKalman)
		test.That(t, errors.Is(err, ErrTransportTimeout), test.ShouldBeTrue)
	})

	t.Run("other transport error is not a timeout", func(t *testing.T) {
		dev := &brokenChannel{err: errors.New("device unplugged")}
		err := NewClient(dev, logger).Send(SetFilterMode, FilterModeKalman)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrTransportTimeout), test.ShouldBeFalse)
	})

	t.Run("malformed is not retried", func(t *testing.T) {
		dev := newFakeDevice(clock.NewMock(), 0)
		dev.responses[GetCorrectedGyroRate.Code()] = func() string { return "0.01,0.02\r\n" }
		_, err := NewClient(dev, logger).Exec(GetCorrectedGyroRate)
		test.That(t, errors.Is(err, ErrMalformedResponse), test.ShouldBeTrue)
		test.That(t, dev.count(GetCorrectedGyroRate), test.ShouldEqual, 1)
	})
}

type brokenChannel struct{ err error }

func (b *brokenChannel) Write(string) error         { return b.err }
func (b *brokenChannel) ReadLine() (string, error) { return "", b.err }
func (b *brokenChannel) Flush() error              { return b.err }
func (b *brokenChannel) Close() error              { return nil }

func TestCommands(t *testing.T) {
	cmds := Commands()
	test.That(t, len(cmds), test.ShouldEqual, len(commandTable))
	test.That(t, cmds[0], test.ShouldEqual, GetTaredOrientationAsQuaternion)
	test.That(t, cmds[1], test.ShouldEqual, GetUntaredOrientationAsQuaternion)
	test.That(t, cmds[2], test.ShouldEqual, GetUntaredOrientationAsQuaternionWithHeader)
	test.That(t, cmds[len(cmds)-1], test.ShouldEqual, RestoreFactorySettings)

	c, ok := ParseCommand("set_filter_mode")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c, test.ShouldEqual, SetFilterMode)
	_, ok = ParseCommand("self_destruct")
	test.That(t, ok, test.ShouldBeFalse)
}
