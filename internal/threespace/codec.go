// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package threespace

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LineChannel is the blocking, line oriented transport to the sensor.
// Timeouts are reported with errors implementing Timeout() bool.
type LineChannel interface {
	Write(s string) error
	ReadLine() (string, error)
	// Flush discards any received but unread bytes.
	Flush() error
	Close() error
}

// Decode parses a "\r\n" terminated line of comma separated decimals. It fails
// with ErrMalformedResponse unless exactly arity numeric fields are present.
func Decode(line string, arity int) ([]float64, error) {
	trimmed := strings.TrimRight(line, "\r\n")
	if trimmed == "" {
		return nil, errors.Wrapf(ErrMalformedResponse, "empty line, want %d fields", arity)
	}
	fields := strings.Split(trimmed, ",")
	if len(fields) != arity {
		return nil, errors.Wrapf(ErrMalformedResponse, "%q has %d fields, want %d", trimmed, len(fields), arity)
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedResponse, "field %d of %q: %v", i, trimmed, err)
		}
		values[i] = v
	}
	return values, nil
}

// Client issues commands over a LineChannel. Every write is followed by the
// read of its response, if the command has one; nothing is pipelined.
type Client struct {
	ch     LineChannel
	logger *zap.SugaredLogger
}

// NewClient wraps ch. The client does not own ch.
func NewClient(ch LineChannel, logger *zap.SugaredLogger) *Client {
	return &Client{ch: ch, logger: logger}
}

// Send writes a command that has no response.
func (c *Client) Send(cmd Command, args ...float64) error {
	wire := Encode(cmd, args...)
	c.logger.Debugf("-> %q", wire)
	if err := c.ch.Write(wire); err != nil {
		return transportError(err, "write", cmd)
	}
	return nil
}

// Exec writes a numeric query and decodes its response.
func (c *Client) Exec(cmd Command, args ...float64) ([]float64, error) {
	spec := cmd.Response()
	if spec.Kind != ResponseNumeric {
		return nil, errors.Errorf("%s does not answer with numbers", cmd)
	}
	line, err := c.roundTrip(cmd, args...)
	if err != nil {
		return nil, err
	}
	values, err := Decode(line, spec.Arity)
	if err != nil {
		return nil, errors.Wrap(err, cmd.String())
	}
	return values, nil
}

// Query writes a text query and returns the response with the terminator removed.
func (c *Client) Query(cmd Command) (string, error) {
	line, err := c.roundTrip(cmd)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Flush discards unread response bytes.
func (c *Client) Flush() error {
	if err := c.ch.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	return nil
}

func (c *Client) roundTrip(cmd Command, args ...float64) (string, error) {
	if err := c.Send(cmd, args...); err != nil {
		return "", err
	}
	line, err := c.ch.ReadLine()
	if err != nil {
		return "", transportError(err, "read", cmd)
	}
	c.logger.Debugf("<- %q", line)
	return line, nil
}
