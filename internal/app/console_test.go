package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.viam.com/test"

	"github.com/relabs-tech/threespace_imu/internal/orientation"
)

func TestFormat(t *testing.T) {
	test.That(t, formatPose(orientation.Pose{Roll: 1, Pitch: -2.5, Yaw: 180}), test.ShouldEqual,
		"[POSE]  YAW= 180.00  PITCH=  -2.50  ROLL=   1.00")

	line := formatIMU(testMessage())
	test.That(t, line, test.ShouldStartWith, "[IMU ]  t=12:00:00.000000")
	test.That(t, line, test.ShouldContainSubstring, "q=(0.0000 0.0000 0.0000 1.0000)")
	test.That(t, line, test.ShouldContainSubstring, "accel=(  0.000   0.000   9.800) m/s²")
}

func TestWriterPublisherPrintsIMUOnly(t *testing.T) {
	var out bytes.Buffer
	pub := &writerPublisher{out: &out, imuTopic: "inertial/imu"}

	test.That(t, pub.Publish("inertial/pose", orientation.Pose{}), test.ShouldBeNil)
	test.That(t, out.Len(), test.ShouldEqual, 0)

	test.That(t, pub.Publish("inertial/imu", testMessage()), test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	test.That(t, len(lines), test.ShouldEqual, 2)
	test.That(t, lines[0], test.ShouldStartWith, "[IMU ]")
	test.That(t, lines[1], test.ShouldStartWith, "[POSE]")
}

func TestConsoleLoop(t *testing.T) {
	drv, _, clk := newSimDriver(t)
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- consoleLoop(ctx, drv, testAppConfig(), clk, 100*time.Millisecond, &out, zap.NewNop().Sugar())
	}()

	for i := 0; i < 1000; i++ {
		clk.Add(100 * time.Millisecond)
		time.Sleep(time.Millisecond)
		if i == 20 {
			cancel()
		}
		select {
		case err := <-done:
			test.That(t, err, test.ShouldBeNil)
			test.That(t, out.String(), test.ShouldContainSubstring, "[IMU ]")
			return
		default:
		}
	}
	t.Fatal("console loop did not stop")
}
