package session

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDriver runs sessions as plain request/response round trips:
// reset and step are separate POSTs, no persistent per-session
// connection. Connect latency is reported as zero; the TCP handshake is
// folded into the first round trip.
type HTTPDriver struct {
	cfg    Config
	client *http.Client
}

// NewHTTPDriver builds a driver around a single shared client. The
// transport limits are raised well past the default so the harness
// itself does not serialize large batches.
func NewHTTPDriver(cfg Config) *HTTPDriver {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &HTTPDriver{
		cfg: cfg,
		client: &http.Client{
			Transport: t,
		},
	}
}

func (d *HTTPDriver) Mode() Mode {
	return ModeHTTP
}

type stepRequest struct {
	Action struct {
		WaitSeconds float64 `json:"wait_seconds"`
	} `json:"action"`
}

type envReply struct {
	Observation Observation `json:"observation"`
}

// Run performs reset then step against the target. All failures land
// in the Result; the method never returns an error.
func (d *HTTPDriver) Run(ctx context.Context, requestID int, wait time.Duration) Result {
	res := Result{
		RequestID:     requestID,
		Mode:          ModeHTTP,
		Timestamp:     nowISO(),
		WaitRequested: wait.Seconds(),
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	base := strings.TrimRight(d.cfg.Target, "/")
	t0 := time.Now()

	tReset := time.Now()
	if _, err := d.post(ctx, base+"/reset", nil); err != nil {
		return failed(ctx, res, t0, err)
	}
	res.ResetLatency = time.Since(tReset).Seconds()

	var req stepRequest
	req.Action.WaitSeconds = wait.Seconds()
	body, err := json.Marshal(req)
	if err != nil {
		return failed(ctx, res, t0, err)
	}

	tStep := time.Now()
	reply, err := d.post(ctx, base+"/step", body)
	if err != nil {
		return failed(ctx, res, t0, err)
	}
	res.StepLatency = time.Since(tStep).Seconds()
	res.TotalLatency = time.Since(t0).Seconds()

	obs := reply.Observation
	res.WaitedSeconds = obs.WaitedSeconds
	res.PID = obs.PID
	res.SessionHash = obs.SessionHash
	res.HostURL = obs.HostURL
	res.Success = true
	return res
}

func (d *HTTPDriver) post(ctx context.Context, url string, body []byte) (*envReply, error) {
	if body == nil {
		body = []byte("{}")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}

	var reply envReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, &protocolError{msg: fmt.Sprintf("decode response: %v", err)}
	}
	return &reply, nil
}

// failed stamps the taxonomy onto the result with whatever phase
// durations were recorded before the error.
func failed(ctx context.Context, res Result, start time.Time, err error) Result {
	res.TotalLatency = time.Since(start).Seconds()
	res.Success = false
	res.ErrorType = classify(ctx, err)
	res.ErrorMessage = err.Error()
	return res
}
