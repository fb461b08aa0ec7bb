// Package dummy is a local stand-in for the environment server the
// harness measures. It mimics the real endpoint surface: HTTP /reset,
// /step and /health, plus /ws for streaming sessions. Each step sleeps
// for the requested wait, which is what makes concurrency measurable.
package dummy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"envbench/internal/session"
)

type Options struct {
	Port int

	// Hosts, when set, round-robins host_url labels across responses
	// so distribution checks can be exercised against one process.
	Hosts []string
}

// environment mirrors the benchmark environment's semantics: a stable
// session hash, the serving pid, and a step counter. WS connections
// each own one; the HTTP endpoints share one, which is exactly the
// shared-state behavior the harness's request/response mode measures.
type environment struct {
	mu          sync.Mutex
	sessionHash string
	pid         int
	stepCount   int
}

func newEnvironment() *environment {
	id := uuid.New().String()
	sum := sha256.Sum256([]byte(id))
	return &environment{
		sessionHash: hex.EncodeToString(sum[:])[:12],
		pid:         os.Getpid(),
	}
}

func (e *environment) reset(host string) session.Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepCount = 0
	return session.Observation{
		PID:         e.pid,
		SessionHash: e.sessionHash,
		HostURL:     host,
	}
}

func (e *environment) step(host string, waitSeconds float64) session.Observation {
	e.mu.Lock()
	e.stepCount++
	count := e.stepCount
	e.mu.Unlock()

	if waitSeconds > 0 {
		time.Sleep(time.Duration(waitSeconds * float64(time.Second)))
	}

	return session.Observation{
		WaitedSeconds: waitSeconds,
		PID:           e.pid,
		SessionHash:   e.sessionHash,
		HostURL:       host,
		StepCount:     count,
	}
}

type server struct {
	opts    Options
	httpEnv *environment
	counter uint64
}

// NewHandler builds the full endpoint surface. Tests wrap it in
// httptest.NewServer; the dummy subcommand serves it on a real port.
func NewHandler(opts Options) http.Handler {
	s := &server{
		opts:    opts,
		httpEnv: newEnvironment(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("/step", s.handleStep)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *server) host() string {
	if len(s.opts.Hosts) > 0 {
		n := atomic.AddUint64(&s.counter, 1)
		return s.opts.Hosts[int(n-1)%len(s.opts.Hosts)]
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", hostname, s.opts.Port)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	obs := s.httpEnv.reset(s.host())
	writeJSON(w, map[string]interface{}{"observation": obs})
}

type stepPayload struct {
	Action struct {
		WaitSeconds float64 `json:"wait_seconds"`
	} `json:"action"`
}

func (s *server) handleStep(w http.ResponseWriter, r *http.Request) {
	var payload stepPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}
	obs := s.httpEnv.step(s.host(), payload.Action.WaitSeconds)
	writeJSON(w, map[string]interface{}{"observation": obs})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// handleWS gives every connection its own environment instance, so
// streaming sessions are isolated from each other.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	env := newEnvironment()
	host := s.host()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "reset":
			replyObservation(conn, "reset_result", env.reset(host))
		case "step":
			var data struct {
				WaitSeconds float64 `json:"wait_seconds"`
			}
			if len(msg.Data) > 0 {
				if err := json.Unmarshal(msg.Data, &data); err != nil {
					replyError(conn, fmt.Sprintf("bad step payload: %v", err))
					continue
				}
			}
			replyObservation(conn, "step_result", env.step(host, data.WaitSeconds))
		case "close":
			return
		default:
			replyError(conn, fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

func replyObservation(conn *websocket.Conn, typ string, obs session.Observation) {
	data, _ := json.Marshal(map[string]interface{}{"observation": obs})
	conn.WriteJSON(wsMessage{Type: typ, Data: data})
}

func replyError(conn *websocket.Conn, msg string) {
	data, _ := json.Marshal(map[string]string{"message": msg})
	conn.WriteJSON(wsMessage{Type: "error", Data: data})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Start runs the server in the background: print where it is
// listening and return.
func Start(opts Options) {
	addr := fmt.Sprintf(":%d", opts.Port)
	fmt.Printf("👻 Dummy environment server on http://localhost%s\n", addr)
	fmt.Println("   Endpoints: /reset, /step, /health, /ws")

	srv := &http.Server{
		Addr:    addr,
		Handler: NewHandler(opts),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server failed: %v\n", err)
		}
	}()
}
