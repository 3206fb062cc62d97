package threespace

import "math"

const unknownLabel = "Unknown"

var axisDirectionLabels = map[int]string{
	0:  "X: Right, Y: Up, Z: Forward",
	1:  "X: Right, Y: Forward, Z: Up",
	2:  "X: Up, Y: Right, Z: Forward",
	3:  "X: Forward, Y: Right, Z: Up",
	4:  "X: Up, Y: Forward, Z: Right",
	5:  "X: Forward, Y: Up, Z: Right",
	19: "X: Forward, Y: Left, Z: Up",
}

var filterModeLabels = map[int]string{
	0: "IMU",
	1: "Kalman",
	2: "Alternating Kalman",
	3: "Complementary",
	4: "Quaternion Gradient Descent",
}

var calibModeLabels = map[int]string{
	0: "Bias",
	1: "Scale and Bias",
}

var enabledLabels = map[int]string{
	0: "Disabled",
	1: "Enabled",
}

// Diagnostics is the sensor state reported at bring-up.
type Diagnostics struct {
	Firmware      string `json:"firmware"`
	FilterMode    string `json:"filter_mode"`
	AxisDirection string `json:"axis_direction"`
	CalibMode     string `json:"calib_mode"`
	MIMode        string `json:"mi_mode"`
	Magnetometer  string `json:"magnetometer"`
}

// label returns the table entry for an integral code.
func label(table map[int]string, v float64) (string, bool) {
	if v != math.Trunc(v) {
		return unknownLabel, false
	}
	l, ok := table[int(v)]
	if !ok {
		return unknownLabel, false
	}
	return l, true
}

// ReadDiagnostics queries the sensor's modes. Failures are logged and reported
// as "Unknown"; they never abort.
func (c *Client) ReadDiagnostics() Diagnostics {
	return Diagnostics{
		FilterMode:    c.diagnose(GetFilterMode, "Filter Mode", filterModeLabels),
		AxisDirection: c.diagnose(GetAxisDirections, "Axis Direction", axisDirectionLabels),
		CalibMode:     c.diagnose(GetCalibMode, "Calibration Mode", calibModeLabels),
		MIMode:        c.diagnose(GetMIModeEnabled, "MI Mode", enabledLabels),
		Magnetometer:  c.diagnose(GetMagnetometerEnabled, "Magnetometer enabled state", enabledLabels),
	}
}

func (c *Client) diagnose(cmd Command, what string, table map[int]string) string {
	values, err := c.Exec(cmd)
	if err != nil {
		c.logger.Warnf("%s: %v", what, err)
		return unknownLabel
	}
	l, ok := label(table, values[0])
	if !ok {
		c.logger.Warnf("%s: sensor indicates %v", what, values[0])
	}
	c.logger.Infof("%s: %s", what, l)
	return l
}
