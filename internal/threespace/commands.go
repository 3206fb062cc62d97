// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package threespace

import (
	"sort"
	"strconv"
	"strings"
)

// ResponseKind describes what a command answers with.
type ResponseKind int

const (
	// ResponseNone commands only write; the sensor answers nothing.
	ResponseNone ResponseKind = iota
	// ResponseNumeric commands answer a fixed number of comma-separated decimals.
	ResponseNumeric
	// ResponseText commands answer a free-form ASCII line (firmware version).
	ResponseText
)

// ResponseSpec is the shape of a command's response line.
type ResponseSpec struct {
	Kind  ResponseKind
	Arity int // number of fields for ResponseNumeric
}

var (
	noResponse   = ResponseSpec{Kind: ResponseNone}
	textResponse = ResponseSpec{Kind: ResponseText}
)

func numeric(n int) ResponseSpec { return ResponseSpec{Kind: ResponseNumeric, Arity: n} }

// Command is one entry of the sensor's ASCII command set.
type Command int

// Commands used by the driver. The numeric code is the vendor command byte.
const (
	GetTaredOrientationAsQuaternion Command = iota
	GetUntaredOrientationAsQuaternion
	GetUntaredOrientationAsQuaternionWithHeader
	GetCorrectedGyroRate
	GetCorrectedAccelerometerVector
	GetTemperatureC
	SetStreamingTiming
	UpdateCurrentTimestamp
	TareWithCurrentOrientation
	SetReferenceVectorMode
	SetMagnetometerEnabled
	SetMIModeEnabled
	SetAxisDirections
	SetFilterMode
	GetMIModeEnabled
	GetMagnetometerEnabled
	GetAxisDirections
	GetFilterMode
	BeginGyroAutoCalibration
	SetCalibMode
	GetCalibMode
	SetResponseHeaderBitfield
	GetFirmwareVersionString
	RestoreFactorySettings
)

type commandDef struct {
	name   string
	code   int
	header bool // ';' prefix: the response carries the configured header fields
	resp   ResponseSpec
}

// headerFields is the number of fields prepended by the header configured
// during bring-up (success flag + timestamp).
const headerFields = 2

var commandTable = map[Command]commandDef{
	GetTaredOrientationAsQuaternion:             {"get_tared_orientation_as_quaternion", 0, false, numeric(4)},
	GetUntaredOrientationAsQuaternion:           {"get_untared_orientation_as_quaternion", 6, false, numeric(4)},
	GetUntaredOrientationAsQuaternionWithHeader: {"get_untared_orientation_as_quaternion_with_header", 6, true, numeric(headerFields + 4)},
	GetCorrectedGyroRate:                        {"get_corrected_gyro_rate", 38, false, numeric(3)},
	GetCorrectedAccelerometerVector:             {"get_corrected_accelerometer_vector", 39, false, numeric(3)},
	GetTemperatureC:                             {"get_temperature_c", 43, false, numeric(1)},
	SetStreamingTiming:                          {"set_streaming_timing", 82, false, noResponse},
	UpdateCurrentTimestamp:                      {"update_current_timestamp", 95, false, noResponse},
	TareWithCurrentOrientation:                  {"tare_with_current_orientation", 96, false, noResponse},
	SetReferenceVectorMode:                      {"set_reference_vector_mode", 105, false, noResponse},
	SetMagnetometerEnabled:                      {"set_magnetometer_enabled", 109, false, noResponse},
	SetMIModeEnabled:                            {"set_mi_mode_enabled", 112, false, noResponse},
	SetAxisDirections:                           {"set_axis_directions", 116, false, noResponse},
	SetFilterMode:                               {"set_filter_mode", 123, false, noResponse},
	GetMIModeEnabled:                            {"get_mi_mode_enabled", 136, false, numeric(1)},
	GetMagnetometerEnabled:                      {"get_magnetometer_enabled", 142, false, numeric(1)},
	GetAxisDirections:                           {"get_axis_directions", 143, false, numeric(1)},
	GetFilterMode:                               {"get_filter_mode", 152, false, numeric(1)},
	BeginGyroAutoCalibration:                    {"begin_gyro_auto_calibration", 165, false, noResponse},
	SetCalibMode:                                {"set_calib_mode", 169, false, noResponse},
	GetCalibMode:                                {"get_calib_mode", 170, false, numeric(1)},
	SetResponseHeaderBitfield:                   {"set_response_header_bitfield", 221, false, noResponse},
	GetFirmwareVersionString:                    {"get_firmware_version_string", 223, false, textResponse},
	RestoreFactorySettings:                      {"restore_factory_settings", 224, false, noResponse},
}

// Argument values for the configuration commands.
const (
	AxisDirectionFLU            = 19 // X: Forward, Y: Left, Z: Up
	HeaderTimestampSuccess      = 0x3
	FilterModeKalman            = 1
	ReferenceVectorContinuous   = 2
	CalibModeBias               = 0
	CalibModeScaleBias          = 1
	timestampResetValue         = 0
	streamingTimingDurationInf  = 0
	streamingTimingDelayDefault = 0
)

func (c Command) String() string {
	if def, ok := commandTable[c]; ok {
		return def.name
	}
	return "command(" + strconv.Itoa(int(c)) + ")"
}

// Response returns the shape of the command's response line.
func (c Command) Response() ResponseSpec {
	return commandTable[c].resp
}

// Code returns the vendor command byte.
func (c Command) Code() int {
	return commandTable[c].code
}

// Header reports whether the command is sent with the ';' prefix.
func (c Command) Header() bool {
	return commandTable[c].header
}

// Commands returns every known command ordered by code, header variants last.
func Commands() []Command {
	cmds := make([]Command, 0, len(commandTable))
	for c := range commandTable {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool {
		a, b := commandTable[cmds[i]], commandTable[cmds[j]]
		if a.code != b.code {
			return a.code < b.code
		}
		return !a.header && b.header
	})
	return cmds
}

// ParseCommand looks a command up by its String name.
func ParseCommand(name string) (Command, bool) {
	for c, def := range commandTable {
		if def.name == name {
			return c, true
		}
	}
	return 0, false
}

// Encode renders the command as a newline terminated wire string, e.g.
// ":116,19\n". Integral arguments are written without a fractional part.
func Encode(c Command, args ...float64) string {
	def := commandTable[c]
	var b strings.Builder
	if def.header {
		b.WriteByte(';')
	} else {
		b.WriteByte(':')
	}
	b.WriteString(strconv.Itoa(def.code))
	for _, a := range args {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(a, 'f', -1, 64))
	}
	b.WriteByte('\n')
	return b.String()
}

// boolArg maps an enable flag to the sensor's 0/1 argument.
func boolArg(on bool) float64 {
	if on {
		return 1
	}
	return 0
}
