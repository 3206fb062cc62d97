package serialport

import (
	"time"

	"github.com/benbjohnson/clock"
	jacobsa "github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	bugst "go.bug.st/serial"
	"go.uber.org/zap"
)

// Backends Open knows about.
const (
	BackendJacobsa = "jacobsa"
	BackendBugst   = "bugst"
)

// Options describe the port. The sensor talks 8N1.
type Options struct {
	PortName string
	BaudRate int
	Timeout  time.Duration
	Backend  string
}

// Open opens the named port with the selected backend and wraps it in a Channel.
func Open(opts Options, logger *zap.SugaredLogger) (*Channel, error) {
	switch opts.Backend {
	case BackendJacobsa, "":
		serialOpts := jacobsa.OpenOptions{
			PortName:        opts.PortName,
			BaudRate:        uint(opts.BaudRate),
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
			ParityMode:      jacobsa.PARITY_NONE,
		}
		logger.Debugf("opening serial port with parameters: %+v", serialOpts)
		port, err := jacobsa.Open(serialOpts)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", opts.PortName)
		}
		logger.Infof("serial port opened on %s at %d baud", opts.PortName, opts.BaudRate)
		return NewChannel(port, opts.Timeout, clock.New(), logger), nil

	case BackendBugst:
		mode := &bugst.Mode{
			BaudRate: opts.BaudRate,
			DataBits: 8,
			Parity:   bugst.NoParity,
			StopBits: bugst.OneStopBit,
		}
		port, err := bugst.Open(opts.PortName, mode)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", opts.PortName)
		}
		logger.Infof("serial port opened on %s at %d baud", opts.PortName, opts.BaudRate)
		return NewChannel(port, opts.Timeout, clock.New(), logger), nil
	}
	return nil, errors.Errorf("unknown serial backend %q", opts.Backend)
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	return bugst.GetPortsList()
}
