package orientation

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestFromQuaternionIdentity(t *testing.T) {
	p := FromQuaternion(quat.Number{Real: 1})
	test.That(t, p.Roll, test.ShouldAlmostEqual, 0)
	test.That(t, p.Pitch, test.ShouldAlmostEqual, 0)
	test.That(t, p.Yaw, test.ShouldAlmostEqual, 0)
}

func TestFromQuaternionYaw(t *testing.T) {
	// 90 degrees about Z
	p := FromQuaternion(quat.Number{Real: math.Sqrt2 / 2, Kmag: math.Sqrt2 / 2})
	test.That(t, p.Yaw, test.ShouldAlmostEqual, 90)
	test.That(t, p.Roll, test.ShouldAlmostEqual, 0)
}

func TestFromQuaternionUnnormalized(t *testing.T) {
	p := FromQuaternion(quat.Number{Real: 2, Imag: 2})
	test.That(t, p.Roll, test.ShouldAlmostEqual, 90)
}

func TestPoseRoundTrip(t *testing.T) {
	for _, want := range []Pose{
		{Roll: 10, Pitch: 20, Yaw: 30},
		{Roll: -45, Pitch: 5, Yaw: 170},
		{Roll: 0, Pitch: -80, Yaw: -90},
	} {
		got := FromQuaternion(want.Quaternion())
		test.That(t, got.Roll, test.ShouldAlmostEqual, want.Roll, 1e-9)
		test.That(t, got.Pitch, test.ShouldAlmostEqual, want.Pitch, 1e-9)
		test.That(t, got.Yaw, test.ShouldAlmostEqual, want.Yaw, 1e-9)
	}
}

func TestToENU(t *testing.T) {
	// facing forward in FLU is facing north in ENU
	enu := ToENU(quat.Number{Real: 1})
	test.That(t, FromQuaternion(enu).Yaw, test.ShouldAlmostEqual, 90)

	q := Pose{Yaw: 30}.Quaternion()
	test.That(t, FromQuaternion(ToENU(q)).Yaw, test.ShouldAlmostEqual, 120, 1e-9)
}

func TestComputePoseFromAccel(t *testing.T) {
	p := ComputePoseFromAccel(0, 0, 9.8)
	test.That(t, p.Roll, test.ShouldAlmostEqual, 0)
	test.That(t, p.Pitch, test.ShouldAlmostEqual, 0)

	p = ComputePoseFromAccel(0, 9.8, 0)
	test.That(t, p.Roll, test.ShouldAlmostEqual, 90)
}

func TestMockSource(t *testing.T) {
	clk := clock.NewMock()
	src := NewMockSource(clk)

	p, err := src.Next()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldResemble, Pose{Roll: 0, Pitch: 15, Yaw: 0})

	clk.Add(10 * time.Second)
	p, err = src.Next()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Yaw, test.ShouldAlmostEqual, -60)
	test.That(t, math.Abs(p.Roll), test.ShouldBeLessThanOrEqualTo, 20)
}
