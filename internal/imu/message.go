package imu

import (
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/threespace_imu/internal/orientation"
	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

// Quaternion is a unit quaternion on the wire, in x, y, z, w order.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Vector3 is a 3-vector on the wire.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Message is one reading as published on the imu topic.
type Message struct {
	Timestamp          time.Time  `json:"timestamp"`
	Frame              string     `json:"frame_id"`
	Orientation        Quaternion `json:"orientation"`
	AngularVelocity    Vector3    `json:"angular_velocity"`    // rad/s
	LinearAcceleration Vector3    `json:"linear_acceleration"` // m/s²
	// TimestampOffset is the configured correction consumers may subtract
	// from Timestamp. It is not applied.
	TimestampOffset float64 `json:"timestamp_offset_s"`
}

// FromReading converts a driver reading into its wire form.
func FromReading(r threespace.SensorReading, offset time.Duration) Message {
	return Message{
		Timestamp: r.Timestamp,
		Frame:     r.Frame,
		Orientation: Quaternion{
			X: r.Orientation.Imag,
			Y: r.Orientation.Jmag,
			Z: r.Orientation.Kmag,
			W: r.Orientation.Real,
		},
		AngularVelocity:    Vector3{X: r.AngularVelocity.X, Y: r.AngularVelocity.Y, Z: r.AngularVelocity.Z},
		LinearAcceleration: Vector3{X: r.LinearAcceleration.X, Y: r.LinearAcceleration.Y, Z: r.LinearAcceleration.Z},
		TimestampOffset:    offset.Seconds(),
	}
}

// Pose returns roll, pitch and yaw of the reading's orientation in degrees.
func (m Message) Pose() orientation.Pose {
	return orientation.FromQuaternion(m.quat())
}

func (m Message) quat() quat.Number {
	return quat.Number{Real: m.Orientation.W, Imag: m.Orientation.X, Jmag: m.Orientation.Y, Kmag: m.Orientation.Z}
}
