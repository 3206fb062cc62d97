// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

type mockSource struct {
	clk   clock.Clock
	start time.Time
}

// NewMockSource creates a mock orientation source that
// generates smooth changing values on clk.
func NewMockSource(clk clock.Clock) Source {
	return &mockSource{clk: clk, start: clk.Now()}
}

func (m *mockSource) Next() (Pose, error) {
	elapsed := m.clk.Since(m.start).Seconds()

	yaw := math.Mod(elapsed*30, 360)
	if yaw > 180 {
		yaw -= 360
	}
	return Pose{
		Roll:  20 * math.Sin(elapsed),
		Pitch: 15 * math.Cos(elapsed*0.7),
		Yaw:   yaw,
	}, nil
}
