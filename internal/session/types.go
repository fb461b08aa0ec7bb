package session

import (
	"context"
	"time"
)

// Mode selects the transport a session is driven over.
type Mode string

const (
	ModeHTTP Mode = "http"
	ModeWS   Mode = "ws"
)

// ErrorKind categorizes a failed session.
type ErrorKind string

const (
	ErrConnect  ErrorKind = "connect_failure"
	ErrTimeout  ErrorKind = "timeout"
	ErrProtocol ErrorKind = "protocol_error"
	ErrServer   ErrorKind = "server_error"
)

// Result is one session's outcome. Produced exactly once per attempt,
// immutable afterwards. Latencies are in seconds to keep the JSONL
// records directly comparable across tools.
type Result struct {
	RequestID int    `json:"request_id"`
	Mode      Mode   `json:"mode"`
	Timestamp string `json:"timestamp"`

	WaitRequested float64 `json:"wait_requested"`
	BatchSize     int     `json:"batch_size"`

	ConnectLatency float64 `json:"connect_latency"`
	ResetLatency   float64 `json:"reset_latency"`
	StepLatency    float64 `json:"step_latency"`
	TotalLatency   float64 `json:"total_latency"`

	WaitedSeconds float64 `json:"waited_seconds"`
	PID           int     `json:"pid"`
	SessionHash   string  `json:"session_hash"`
	HostURL       string  `json:"host_url"`

	Success      bool      `json:"success"`
	ErrorType    ErrorKind `json:"error_type,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Driver executes one full session lifecycle against the target.
// Failures come back inside the Result, never as an error value.
type Driver interface {
	Run(ctx context.Context, requestID int, wait time.Duration) Result
	Mode() Mode
}

// Config is shared by both driver variants.
type Config struct {
	Target  string
	Timeout time.Duration
}

// Observation is the payload the server attaches to reset/step replies.
type Observation struct {
	WaitedSeconds float64 `json:"waited_seconds"`
	PID           int     `json:"pid"`
	SessionHash   string  `json:"session_hash"`
	HostURL       string  `json:"host_url"`
	StepCount     int     `json:"step_count"`
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
