// Package httpapi exposes the §4.6 loopback HTTP side-channel: the same
// pipelines the MCP tool surface drives, reachable over
// 127.0.0.1:<claimed-port> for sibling processes and liveness sweeps.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shshalom/voicesmith-mcp/internal/dispatcher"
)

// Server is the background-thread net/http listener. Handlers bridge to
// the dispatcher's runtime (§4.6: "posting work to the dispatcher's
// runtime so that all mic/lock invariants remain process-global") rather
// than touching pipelines directly from a second owner.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	httpServer *http.Server

	// lastPingAt, if non-nil, is called on every GET /status.
	lastPingAt func()
}

// New builds a Server bound to 127.0.0.1:port, grounded on the teacher's
// stdlib net/http + ServeMux handler-method convention.
func New(d *dispatcher.Dispatcher, port int, onPing func()) *Server {
	s := &Server{dispatcher: d, lastPingAt: onPing}
	mux := s.mux()

	s.httpServer = &http.Server{
		Addr:         "127.0.0.1:" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// mux builds the route table; split out so tests can drive it through
// httptest without binding a real socket.
func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/listen", s.listenHandler)
	mux.HandleFunc("/speak", s.speakHandler)
	mux.HandleFunc("/session", s.sessionHandler)
	mux.HandleFunc("/inject", s.injectHandler)
	return mux
}

// Start runs the accept loop; it returns once Shutdown is called.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.lastPingAt != nil {
		s.lastPingAt()
	}
	writeJSON(w, s.dispatcher.Status())
}

func (s *Server) listenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Timeout          float64 `json:"timeout"`
		SilenceThreshold float64 `json:"silence_threshold"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	timeout := durationOrDefault(body.Timeout, 15*time.Second)
	silence := durationOrDefault(body.SilenceThreshold, 1500*time.Millisecond)
	writeJSON(w, s.dispatcher.ListenNoCue(r.Context(), timeout, silence))
}

func (s *Server) speakHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Name  string  `json:"name"`
		Text  string  `json:"text"`
		Speed float64 `json:"speed"`
		Block *bool   `json:"block"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	speed := body.Speed
	if speed <= 0 {
		speed = 1.0
	}
	block := true
	if body.Block != nil {
		block = *body.Block
	}
	writeJSON(w, s.dispatcher.Speak(body.Name, body.Text, speed, block))
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.dispatcher.AttachSessionID(body.SessionID))
}

// injectHandler is the SUPPLEMENTED item 4 endpoint: the wake-word
// router on a sibling process posts the transcribed (and possibly
// name-stripped) text here instead of shelling out to this process's
// tmux pane directly.
func (s *Server) injectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.dispatcher.Inject(body.Text))
}

func writeJSON(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func durationOrDefault(seconds float64, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds * float64(time.Second))
}
