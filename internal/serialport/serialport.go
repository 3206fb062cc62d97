// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialport provides the line channel a 3-Space sensor is driven
// over: newline framed writes and reads, each bounded by a timeout.
package serialport

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned by operations on a closed Channel.
	ErrClosed = errors.New("serialport: channel closed")
	// ErrWriteStalled is returned while an earlier timed out write is still
	// blocked on the port.
	ErrWriteStalled = errors.New("serialport: previous write still pending")
)

// TimeoutError reports a write or read that did not complete in time.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return "serialport: " + e.Op + " timed out after " + e.After.String()
}

// Timeout reports true; it lets callers classify the error without
// importing this package.
func (e *TimeoutError) Timeout() bool { return true }

// inputResetter is implemented by ports that can discard their OS input buffer.
type inputResetter interface {
	ResetInputBuffer() error
}

// framedLine is a line and the flush generation it was framed in.
type framedLine struct {
	text string
	gen  uint64
}

// Channel frames an io.ReadWriteCloser into lines. A background reader splits
// the input on '\n'; ReadLine hands lines out in order.
type Channel struct {
	rwc     io.ReadWriteCloser
	timeout time.Duration
	clk     clock.Clock
	logger  *zap.SugaredLogger

	lines  chan framedLine
	failed chan struct{}
	done   chan struct{}

	// gen counts flushes; lines framed before the latest one are stale.
	gen atomic.Uint64
	// writing holds a token while a write is on the port.
	writing chan struct{}

	mu      sync.Mutex
	readErr error

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// NewChannel starts reading rwc. The channel owns rwc from now on.
func NewChannel(rwc io.ReadWriteCloser, timeout time.Duration, clk clock.Clock, logger *zap.SugaredLogger) *Channel {
	c := &Channel{
		rwc:     rwc,
		timeout: timeout,
		clk:     clk,
		logger:  logger,
		lines:   make(chan framedLine, 64),
		failed:  make(chan struct{}),
		done:    make(chan struct{}),
		writing: make(chan struct{}, 1),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c
}

func (c *Channel) readLoop() {
	defer c.wg.Done()
	r := bufio.NewReader(c.rwc)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debugf("serial reader stopped: %v", err)
			}
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			close(c.failed)
			return
		}
		select {
		case c.lines <- framedLine{text: line, gen: c.gen.Load()}:
		case <-c.done:
			return
		}
	}
}

// Write sends s as is. The caller terminates it with '\n'. After a write
// times out, writes fail with ErrWriteStalled until it has left the port.
func (c *Channel) Write(s string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.writing <- struct{}{}:
	default:
		return ErrWriteStalled
	}

	errc := make(chan error, 1)
	go func() {
		_, err := io.WriteString(c.rwc, s)
		<-c.writing
		errc <- err
	}()

	timer := c.clk.Timer(c.timeout)
	defer timer.Stop()
	select {
	case err := <-errc:
		return errors.Wrap(err, "serial write")
	case <-timer.C:
		return &TimeoutError{Op: "write", After: c.timeout}
	}
}

// ReadLine returns the next line including its terminator. Lines framed
// before the last Flush are skipped.
func (c *Channel) ReadLine() (string, error) {
	timer := c.clk.Timer(c.timeout)
	defer timer.Stop()
	for {
		select {
		case line := <-c.lines:
			if c.stale(line) {
				continue
			}
			return line.text, nil
		case <-c.failed:
			// lines read before the failure are still delivered
			if line, ok := c.queued(); ok {
				return line, nil
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			return "", errors.Wrap(c.readErr, "serial read")
		case <-c.done:
			return "", ErrClosed
		case <-timer.C:
			return "", &TimeoutError{Op: "read", After: c.timeout}
		}
	}
}

// queued returns the next current line without waiting.
func (c *Channel) queued() (string, bool) {
	for {
		select {
		case line := <-c.lines:
			if !c.stale(line) {
				return line.text, true
			}
		default:
			return "", false
		}
	}
}

func (c *Channel) stale(line framedLine) bool {
	if line.gen == c.gen.Load() {
		return false
	}
	c.logger.Debugf("dropping line framed before flush: %q", line.text)
	return true
}

// Flush discards buffered input: the port's OS buffer when it supports that,
// then every line already framed, including one the reader has yet to queue.
func (c *Channel) Flush() error {
	if r, ok := c.rwc.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return errors.Wrap(err, "reset input buffer")
		}
	}
	c.gen.Add(1)
	dropped := 0
	for {
		select {
		case <-c.lines:
			dropped++
		default:
			if dropped > 0 {
				c.logger.Debugf("flushed %d unread lines", dropped)
			}
			return nil
		}
	}
}

// Close closes the port and waits for the reader to exit. It is safe to call
// more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.rwc.Close()
		c.wg.Wait()
	})
	return c.closeErr
}
