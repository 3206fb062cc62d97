// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/threespace_imu/internal/threespace"
)

// CommandDebugSession gives a websocket client raw access to the command set.
type CommandDebugSession struct {
	Conn   jsonConn
	client *threespace.Client
	clk    clock.Clock
	logger *zap.SugaredLogger
}

// CommandCmd is a request from the client.
type CommandCmd struct {
	Action  string    `json:"action"` // "get_map", "read", "read_all", "write"
	Command string    `json:"command,omitempty"`
	Args    []float64 `json:"args,omitempty"`
}

// CommandResponse is sent back for every request.
type CommandResponse struct {
	Type       string               `json:"type"` // "command_map", "command_data", "status", "error"
	Command    string               `json:"command,omitempty"`
	Wire       string               `json:"wire,omitempty"`
	Values     []float64            `json:"values,omitempty"`
	Text       string               `json:"text,omitempty"`
	All        map[string][]float64 `json:"all,omitempty"`
	Timestamp  string               `json:"timestamp,omitempty"`
	Message    string               `json:"message,omitempty"`
	CommandMap []CommandInfo        `json:"command_map,omitempty"`
}

// CommandInfo describes one command of the map.
type CommandInfo struct {
	Name   string `json:"name"`
	Code   int    `json:"code"`
	Header bool   `json:"header"`
	Kind   string `json:"kind"` // "none", "numeric", "text"
	Arity  int    `json:"arity,omitempty"`
}

func kindName(k threespace.ResponseKind) string {
	switch k {
	case threespace.ResponseNumeric:
		return "numeric"
	case threespace.ResponseText:
		return "text"
	}
	return "none"
}

// CommandDebugHandler serves one CommandDebugSession per websocket connection.
func CommandDebugHandler(client *threespace.Client, clk clock.Clock, logger *zap.SugaredLogger) http.HandlerFunc {
	var busy sync.Mutex
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("command_debug: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		busy.Lock()
		defer busy.Unlock()
		session := &CommandDebugSession{Conn: conn, client: client, clk: clk, logger: logger}
		session.sendCommandMap()
		session.Serve()
	}
}

// Serve handles requests until the client goes away.
func (s *CommandDebugSession) Serve() {
	for {
		var cmd CommandCmd
		if err := s.Conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warnf("command_debug: websocket error: %v", err)
			}
			return
		}
		s.Handle(cmd)
	}
}

// Handle answers one request.
func (s *CommandDebugSession) Handle(cmd CommandCmd) {
	switch cmd.Action {
	case "get_map":
		s.sendCommandMap()
	case "read":
		s.handleRead(cmd)
	case "read_all":
		s.handleReadAll()
	case "write":
		s.handleWrite(cmd)
	default:
		s.sendError("unknown action: " + cmd.Action)
	}
}

func (s *CommandDebugSession) lookup(name string) (threespace.Command, bool) {
	c, ok := threespace.ParseCommand(name)
	if !ok {
		s.sendError("unknown command: " + name)
	}
	return c, ok
}

func (s *CommandDebugSession) handleRead(cmd CommandCmd) {
	c, ok := s.lookup(cmd.Command)
	if !ok {
		return
	}
	resp := CommandResponse{
		Type:      "command_data",
		Command:   c.String(),
		Wire:      threespace.Encode(c, cmd.Args...),
		Timestamp: s.clk.Now().Format(time.RFC3339Nano),
	}
	var err error
	switch c.Response().Kind {
	case threespace.ResponseNumeric:
		resp.Values, err = s.client.Exec(c, cmd.Args...)
	case threespace.ResponseText:
		resp.Text, err = s.client.Query(c)
	default:
		s.sendError(c.String() + " has no response, use write")
		return
	}
	if err != nil {
		s.sendError("read error: " + err.Error())
		return
	}
	s.Conn.WriteJSON(resp)
}

// handleReadAll runs every numeric query that takes no arguments.
func (s *CommandDebugSession) handleReadAll() {
	all := map[string][]float64{}
	for _, c := range threespace.Commands() {
		if c.Response().Kind != threespace.ResponseNumeric {
			continue
		}
		values, err := s.client.Exec(c)
		if err != nil {
			s.sendError("read all error: " + err.Error())
			return
		}
		all[c.String()] = values
	}
	s.Conn.WriteJSON(CommandResponse{
		Type:      "command_data",
		All:       all,
		Timestamp: s.clk.Now().Format(time.RFC3339Nano),
	})
}

func (s *CommandDebugSession) handleWrite(cmd CommandCmd) {
	c, ok := s.lookup(cmd.Command)
	if !ok {
		return
	}
	if c.Response().Kind != threespace.ResponseNone {
		s.sendError(c.String() + " answers, use read")
		return
	}
	if err := s.client.Send(c, cmd.Args...); err != nil {
		s.sendError("write error: " + err.Error())
		return
	}
	s.Conn.WriteJSON(CommandResponse{
		Type:    "status",
		Command: c.String(),
		Wire:    threespace.Encode(c, cmd.Args...),
		Message: "written",
	})
}

func (s *CommandDebugSession) sendCommandMap() {
	var infos []CommandInfo
	for _, c := range threespace.Commands() {
		spec := c.Response()
		infos = append(infos, CommandInfo{
			Name:   c.String(),
			Code:   c.Code(),
			Header: c.Header(),
			Kind:   kindName(spec.Kind),
			Arity:  spec.Arity,
		})
	}
	s.Conn.WriteJSON(CommandResponse{Type: "command_map", CommandMap: infos})
}

func (s *CommandDebugSession) sendError(message string) {
	s.Conn.WriteJSON(CommandResponse{
		Type:    "error",
		Message: message,
	})
}
