package app

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.viam.com/test"

	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/orientation"
	"github.com/relabs-tech/threespace_imu/internal/simulator"
	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

func testAppConfig() *config.Config {
	cfg := config.Default()
	cfg.SerialBackend = config.BackendSim
	cfg.IMUSettleDelay = 0
	return cfg
}

// newSimDriver brings up a driver on a simulated sensor with an
// instantaneous link and a mock clock.
func newSimDriver(t *testing.T) (*threespace.Driver, *simulator.Device, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC))
	dev := simulator.New(clk, 0, orientation.NewMockSource(clk), zap.NewNop().Sugar())

	drv, err := threespace.New(dev, testAppConfig().Device(), zap.NewNop().Sugar(), threespace.WithClock(clk))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { drv.Close() })
	return drv, dev, clk
}

type published struct {
	topic string
	value interface{}
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, v interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{topic: topic, value: v})
	return nil
}

// fakeConn records what a session writes.
type fakeConn struct {
	out []interface{}
}

func (c *fakeConn) ReadJSON(v interface{}) error {
	return errClosedConn
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.out = append(c.out, v)
	return nil
}

var errClosedConn = closedConnError{}

type closedConnError struct{}

func (closedConnError) Error() string { return "connection closed" }
