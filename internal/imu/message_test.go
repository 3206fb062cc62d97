package imu

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

func TestFromReading(t *testing.T) {
	ts := time.Date(2026, 5, 6, 7, 8, 9, 4000000, time.UTC)
	reading := threespace.SensorReading{
		Timestamp:          ts,
		Orientation:        quat.Number{Real: math.Sqrt2 / 2, Kmag: math.Sqrt2 / 2},
		AngularVelocity:    r3.Vector{X: 0.01, Y: 0.02, Z: 0.03},
		LinearAcceleration: r3.Vector{Z: 9.8},
		Frame:              threespace.FrameBodyFLU,
	}

	msg := FromReading(reading, 12*time.Millisecond)
	test.That(t, msg.Orientation, test.ShouldResemble, Quaternion{Z: math.Sqrt2 / 2, W: math.Sqrt2 / 2})
	test.That(t, msg.TimestampOffset, test.ShouldAlmostEqual, 0.012)
	test.That(t, msg.Pose().Yaw, test.ShouldAlmostEqual, 90)

	payload, err := json.Marshal(msg)
	test.That(t, err, test.ShouldBeNil)
	var fields map[string]interface{}
	test.That(t, json.Unmarshal(payload, &fields), test.ShouldBeNil)
	test.That(t, fields["frame_id"], test.ShouldEqual, "body_FLU")
	test.That(t, fields["timestamp"], test.ShouldEqual, "2026-05-06T07:08:09.004Z")
	test.That(t, fields["linear_acceleration"].(map[string]interface{})["z"], test.ShouldEqual, 9.8)
}
