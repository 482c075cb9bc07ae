// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package probe performs single TCP connect attempts with an optional
// bounded evidence read against one (host, port) pair.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// MaxEvidence caps the sanitized evidence string length.
const MaxEvidence = 200

// readBufferSize caps how many raw bytes one evidence read may pull.
const readBufferSize = 256

// Status is the outcome kind of a single probe.
type Status uint8

const (
	// StatusOpen means the TCP connect succeeded.
	StatusOpen Status = iota
	// StatusClosed means the target actively refused the connection.
	StatusClosed
	// StatusFiltered means the connect attempt timed out.
	StatusFiltered
	// StatusError covers all other I/O failures.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusFiltered:
		return "filtered"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so reports serialize the
// status name rather than its numeric value.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MarshalYAML mirrors MarshalText for YAML reports.
func (s Status) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so serialized reports
// round-trip.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "open":
		*s = StatusOpen
	case "closed":
		*s = StatusClosed
	case "filtered":
		*s = StatusFiltered
	case "error":
		*s = StatusError
	default:
		return fmt.Errorf("unknown probe status %q", text)
	}
	return nil
}

// Task is one immutable unit of probe work.
type Task struct {
	Host            string
	Port            int
	Timeout         time.Duration
	CollectEvidence bool
}

// Outcome is the result of running one Task. Evidence is only ever set for
// open ports; Reason is only ever set for error outcomes.
type Outcome struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Status   Status `json:"status"`
	Evidence string `json:"evidence,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Run executes a single TCP connect attempt. Connect and the optional
// evidence read share one deadline: the task's timeout bounds the whole
// probe, never each step independently. A single attempt is authoritative,
// there are no retries.
func Run(ctx context.Context, task Task) Outcome {
	out := Outcome{Host: task.Host, Port: task.Port}
	deadline := time.Now().Add(task.Timeout)

	dialer := net.Dialer{Deadline: deadline}
	addr := net.JoinHostPort(task.Host, strconv.Itoa(task.Port))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		out.Status = classifyDialError(err)
		if out.Status == StatusError {
			out.Reason = shortReason(err)
		}
		return out
	}
	defer conn.Close()

	out.Status = StatusOpen
	if task.CollectEvidence {
		out.Evidence = readEvidence(conn, task, deadline)
	}
	return out
}

// classifyDialError maps a dial failure onto the closed/filtered/error
// variants. Timeouts read as filtered, an active refusal as closed.
func classifyDialError(err error) Status {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusFiltered
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusFiltered
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return StatusClosed
	}
	return StatusError
}

// readEvidence performs one bounded read for service identification. On
// common HTTP ports a minimal HEAD request is sent first to elicit a
// response, since HTTP servers do not talk first. A read failure or timeout
// leaves the outcome open with empty evidence.
func readEvidence(conn net.Conn, task Task, deadline time.Time) string {
	if err := conn.SetDeadline(deadline); err != nil {
		return ""
	}

	if isHTTPPort(task.Port) {
		req := fmt.Sprintf("HEAD / HTTP/1.0\r\nHost: %s\r\nUser-Agent: vulnfinder\r\nConnection: close\r\n\r\n", task.Host)
		if _, err := conn.Write([]byte(req)); err != nil {
			return ""
		}
	}

	buf := make([]byte, readBufferSize)
	n, _ := conn.Read(buf)
	if n <= 0 {
		return ""
	}
	return Sanitize(string(buf[:n]))
}

func isHTTPPort(port int) bool {
	switch port {
	case 80, 443, 8000, 8080, 8443:
		return true
	default:
		return false
	}
}

// Sanitize renders raw banner bytes as a single printable line: CR/LF become
// spaces, other control bytes are dropped, and the result is capped at
// MaxEvidence characters.
func Sanitize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			b.WriteByte(' ')
		case r < 0x20 || r == 0x7f:
			// drop control bytes
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	if len(s) > MaxEvidence {
		s = s[:MaxEvidence]
	}
	return s
}

func shortReason(err error) string {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	return err.Error()
}
