// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package threespace

import (
	"github.com/pkg/errors"
)

var (
	// ErrTransportTimeout is returned when the line channel did not complete a
	// write or a read in time.
	ErrTransportTimeout = errors.New("transport timeout")

	// ErrMalformedResponse is returned when a response line does not have the
	// field count the command declares, or a field is not a number.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrFutureTimestamp is returned by ToHostTime when the mapped host time is
	// ahead of now by more than the tolerance. The reading must be discarded.
	ErrFutureTimestamp = errors.New("timestamp in the future")
)

// timeout is the net.Error style contract line channels use to signal timeouts.
type timeout interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}

// transportError classifies a line channel error, keeping the original text.
func transportError(err error, op string, cmd Command) error {
	if isTimeout(err) {
		return errors.Wrapf(ErrTransportTimeout, "%s %s: %v", op, cmd, err)
	}
	return errors.Wrapf(err, "%s %s", op, cmd)
}
