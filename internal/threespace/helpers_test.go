package threespace

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type timeoutError struct{ op string }

func (e timeoutError) Error() string { return e.op + ": i/o timeout" }
func (e timeoutError) Timeout() bool { return true }

// fakeDevice answers commands like a sensor would. Each ReadLine advances the
// mock clock by rtt; the header timestamp is the device time at the write.
type fakeDevice struct {
	clk *clock.Mock
	rtt time.Duration

	zeroAt  time.Time
	pending []string
	writes  []string
	flushes int
	closed  bool

	// responses overrides the emulated answer for a command code.
	responses map[int]func() string
	// timeoutWrites makes writes of these command codes time out.
	timeoutWrites map[int]bool
	// silent codes are accepted but never answered.
	silent map[int]bool
}

func newFakeDevice(clk *clock.Mock, rtt time.Duration) *fakeDevice {
	return &fakeDevice{
		clk:           clk,
		rtt:           rtt,
		zeroAt:        clk.Now(),
		responses:     map[int]func() string{},
		timeoutWrites: map[int]bool{},
		silent:        map[int]bool{},
	}
}

func wireCode(s string) int {
	body := strings.TrimRight(strings.TrimLeft(s, ":;"), "\n")
	code, err := strconv.Atoi(strings.Split(body, ",")[0])
	if err != nil {
		panic(fmt.Sprintf("bad wire string %q", s))
	}
	return code
}

func (f *fakeDevice) deviceMicros() string {
	return strconv.FormatInt(f.clk.Now().Sub(f.zeroAt).Microseconds(), 10)
}

func (f *fakeDevice) Write(s string) error {
	code := wireCode(s)
	if f.timeoutWrites[code] {
		return timeoutError{op: "write"}
	}
	f.writes = append(f.writes, s)
	if f.silent[code] {
		return nil
	}
	if respond, ok := f.responses[code]; ok {
		f.pending = append(f.pending, respond())
		return nil
	}
	switch code {
	case UpdateCurrentTimestamp.Code():
		f.zeroAt = f.clk.Now()
	case GetFirmwareVersionString.Code():
		f.pending = append(f.pending, "25Apr2016A00\r\n")
	case GetUntaredOrientationAsQuaternion.Code():
		if strings.HasPrefix(s, ";") {
			f.pending = append(f.pending, "0,"+f.deviceMicros()+",0.0,0.0,0.0,1.0\r\n")
		} else {
			f.pending = append(f.pending, "0.0,0.0,0.0,1.0\r\n")
		}
	case GetCorrectedGyroRate.Code():
		f.pending = append(f.pending, "0.01,0.02,0.03\r\n")
	case GetCorrectedAccelerometerVector.Code():
		f.pending = append(f.pending, "0.0,0.0,1.0\r\n")
	case GetFilterMode.Code(), GetMIModeEnabled.Code(), GetMagnetometerEnabled.Code():
		f.pending = append(f.pending, "1\r\n")
	case GetAxisDirections.Code():
		f.pending = append(f.pending, "19\r\n")
	case GetCalibMode.Code():
		f.pending = append(f.pending, "0\r\n")
	case GetTemperatureC.Code():
		f.pending = append(f.pending, "31.5\r\n")
	}
	return nil
}

func (f *fakeDevice) ReadLine() (string, error) {
	if len(f.pending) == 0 {
		return "", timeoutError{op: "read"}
	}
	line := f.pending[0]
	f.pending = f.pending[1:]
	f.clk.Add(f.rtt)
	return line, nil
}

func (f *fakeDevice) Flush() error {
	f.flushes++
	f.pending = nil
	return nil
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

// count returns how many times cmd was written.
func (f *fakeDevice) count(cmd Command) int {
	n := 0
	for _, w := range f.writes {
		if wireCode(w) == cmd.Code() {
			n++
		}
	}
	return n
}

func newObservedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SettleDelay = 0
	return cfg
}
