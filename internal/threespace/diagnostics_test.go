package threespace

import (
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func TestLabel(t *testing.T) {
	l, ok := label(filterModeLabels, 1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, l, test.ShouldEqual, "Kalman")

	l, ok = label(axisDirectionLabels, 19)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, l, test.ShouldEqual, "X: Forward, Y: Left, Z: Up")

	_, ok = label(filterModeLabels, 9)
	test.That(t, ok, test.ShouldBeFalse)

	l, ok = label(calibModeLabels, 0.5)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, l, test.ShouldEqual, "Unknown")
}

func TestReadDiagnosticsLogsFailures(t *testing.T) {
	logger, logs := newObservedLogger()
	dev := newFakeDevice(clock.NewMock(), 0)
	dev.silent[GetMIModeEnabled.Code()] = true

	diag := NewClient(dev, logger).ReadDiagnostics()
	test.That(t, diag.MIMode, test.ShouldEqual, "Unknown")
	test.That(t, diag.Magnetometer, test.ShouldEqual, "Enabled")
	test.That(t, logs.FilterMessageSnippet("MI Mode").Len(), test.ShouldBeGreaterThan, 0)
}
