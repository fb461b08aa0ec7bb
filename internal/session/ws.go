package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WSDriver runs sessions over a persistent WebSocket connection: one
// dial, then reset and step as frames on the same socket. The server
// binds an isolated environment instance to each connection, so this
// mode measures true per-session capacity.
type WSDriver struct {
	cfg    Config
	wsURL  string
	dialer *websocket.Dialer
}

func NewWSDriver(cfg Config) *WSDriver {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = cfg.Timeout
	return &WSDriver{
		cfg:    cfg,
		wsURL:  WebSocketURL(cfg.Target),
		dialer: &d,
	}
}

func (d *WSDriver) Mode() Mode {
	return ModeWS
}

// WebSocketURL converts an http(s) target into the ws(s) endpoint the
// server exposes for streaming sessions.
func WebSocketURL(target string) string {
	u := strings.TrimRight(target, "/")
	switch {
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://") + "/ws"
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://") + "/ws"
	case strings.HasPrefix(u, "ws://"), strings.HasPrefix(u, "wss://"):
		if strings.HasSuffix(u, "/ws") {
			return u
		}
		return u + "/ws"
	}
	return "ws://" + u + "/ws"
}

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wsStepData struct {
	WaitSeconds float64 `json:"wait_seconds"`
}

type wsReplyData struct {
	Observation Observation `json:"observation"`
	Message     string      `json:"message,omitempty"`
}

// Run dials, resets, steps and closes one streaming session, timing
// each phase separately. The context deadline covers the whole
// lifecycle; expiry mid-phase is reported as a timeout with the phase
// durations measured so far.
func (d *WSDriver) Run(ctx context.Context, requestID int, wait time.Duration) Result {
	res := Result{
		RequestID:     requestID,
		Mode:          ModeWS,
		Timestamp:     nowISO(),
		WaitRequested: wait.Seconds(),
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	t0 := time.Now()

	tConnect := time.Now()
	conn, _, err := d.dialer.DialContext(ctx, d.wsURL, nil)
	if err != nil {
		return failed(ctx, res, t0, err)
	}
	defer conn.Close()
	res.ConnectLatency = time.Since(tConnect).Seconds()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	tReset := time.Now()
	if _, err := roundTrip(conn, wsMessage{Type: "reset", Data: json.RawMessage("{}")}); err != nil {
		return failed(ctx, res, t0, err)
	}
	res.ResetLatency = time.Since(tReset).Seconds()

	data, err := json.Marshal(wsStepData{WaitSeconds: wait.Seconds()})
	if err != nil {
		return failed(ctx, res, t0, err)
	}

	tStep := time.Now()
	reply, err := roundTrip(conn, wsMessage{Type: "step", Data: data})
	if err != nil {
		return failed(ctx, res, t0, err)
	}
	res.StepLatency = time.Since(tStep).Seconds()

	// Best effort: the session is already measured, a failed close
	// frame is not a session failure.
	conn.WriteJSON(wsMessage{Type: "close"})

	res.TotalLatency = time.Since(t0).Seconds()

	obs := reply.Observation
	res.WaitedSeconds = obs.WaitedSeconds
	res.PID = obs.PID
	res.SessionHash = obs.SessionHash
	res.HostURL = obs.HostURL
	res.Success = true
	return res
}

func roundTrip(conn *websocket.Conn, msg wsMessage) (*wsReplyData, error) {
	if err := conn.WriteJSON(msg); err != nil {
		return nil, err
	}

	var reply wsMessage
	if err := conn.ReadJSON(&reply); err != nil {
		return nil, err
	}
	if reply.Type == "error" {
		return nil, &serverError{msg: fmt.Sprintf("%s rejected: %s", msg.Type, string(reply.Data))}
	}

	var data wsReplyData
	if len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, &data); err != nil {
			return nil, &protocolError{msg: fmt.Sprintf("decode %s reply: %v", msg.Type, err)}
		}
	}
	return &data, nil
}

// NewDriver picks the driver variant for a mode.
func NewDriver(mode Mode, cfg Config) Driver {
	if mode == ModeWS {
		return NewWSDriver(cfg)
	}
	return NewHTTPDriver(cfg)
}
