package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Pose is roll, pitch and yaw in degrees, as published to the pose topic.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}

// fluToENU rotates a body FLU orientation into the ENU world frame:
// 90 degrees about Z.
var fluToENU = quat.Number{Real: math.Sqrt2 / 2, Kmag: math.Sqrt2 / 2}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// FromQuaternion returns the static XYZ Euler angles of q in degrees.
// q need not be normalized.
func FromQuaternion(q quat.Number) Pose {
	if n := quat.Abs(q); n != 0 {
		q = quat.Scale(1/n, q)
	}
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	// clamp against rounding just past the poles
	sinp := math.Max(-1, math.Min(1, 2*(w*y-z*x)))
	pitch := math.Asin(sinp)
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return Pose{Roll: Degrees(roll), Pitch: Degrees(pitch), Yaw: Degrees(yaw)}
}

// Quaternion returns the unit quaternion of p.
func (p Pose) Quaternion() quat.Number {
	hr, hp, hy := Radians(p.Roll)/2, Radians(p.Pitch)/2, Radians(p.Yaw)/2
	cr, sr := math.Cos(hr), math.Sin(hr)
	cp, sp := math.Cos(hp), math.Sin(hp)
	cy, sy := math.Cos(hy), math.Sin(hy)

	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// ToENU rotates a body FLU orientation into ENU.
func ToENU(q quat.Number) quat.Number {
	return quat.Mul(fluToENU, q)
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is 0: gravity says nothing about heading.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  Degrees(rollRad),
		Pitch: Degrees(pitchRad),
	}
}
