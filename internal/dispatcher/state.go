// Package dispatcher owns the single process-global ServerState (§9's
// explicit guidance) and wires it into the MCP tool surface of §4.6.
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shshalom/voicesmith-mcp/internal/config"
	"github.com/shshalom/voicesmith-mcp/internal/engine/stt"
	"github.com/shshalom/voicesmith-mcp/internal/engine/tts"
	"github.com/shshalom/voicesmith-mcp/internal/engine/vad"
	"github.com/shshalom/voicesmith-mcp/internal/listen"
	"github.com/shshalom/voicesmith-mcp/internal/logging"
	"github.com/shshalom/voicesmith-mcp/internal/session"
	"github.com/shshalom/voicesmith-mcp/internal/speech"
	"github.com/shshalom/voicesmith-mcp/internal/voice"
	"github.com/shshalom/voicesmith-mcp/internal/wake"
)

// ServerState is the single struct every pipeline receives a reference
// to, instead of free-floating singletons.
type ServerState struct {
	Config *config.Config
	Log    *logging.Logger

	VoiceRegistry *voice.Registry
	Sessions      *session.Registry

	TTS tts.Provider
	STT stt.Provider
	VAD vad.Provider

	Speech *speech.Pipeline
	Listen *listen.Pipeline
	// ListenNoCue is the same mic arbiter/detector/transcriber wired a
	// second time with SkipReadyCue set, for the HTTP side-channel's
	// POST /listen (§4.6: "skips the ready-cue prelude" — the caller
	// already gave its own cue).
	ListenNoCue *listen.Pipeline
	Wake        *wake.Listener // nil when wake-word is disabled

	StartedAt time.Time

	mu           sync.Mutex
	muted        atomic.Bool
	self         session.Entry
	listenCancel context.CancelFunc
}

// NewState constructs an empty ServerState; callers fill in the
// pipeline fields once the engine adapters and registries are built.
func NewState(cfg *config.Config, log *logging.Logger) *ServerState {
	return &ServerState{
		Config:    cfg,
		Log:       log,
		StartedAt: time.Now(),
	}
}

// Self returns this process's own session-registry entry.
func (s *ServerState) Self() session.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// SetSelf records this process's session-registry entry, updated on
// register and on every attach_session_id/rename.
func (s *ServerState) SetSelf(e session.Entry) {
	s.mu.Lock()
	s.self = e
	s.mu.Unlock()
}

// SessionName/SessionVoice satisfy the function-valued fields
// speech.Pipeline needs for its name-occupied guard.
func (s *ServerState) SessionName() string  { return s.Self().Name }
func (s *ServerState) SessionVoice() string { return s.Self().VoiceID }

// Muted reports the atomic mute flag (§5: "an atomic boolean").
func (s *ServerState) Muted() bool { return s.muted.Load() }

// SetMuted sets the mute flag, returning the new value.
func (s *ServerState) SetMuted(v bool) bool {
	s.muted.Store(v)
	return v
}

// trackListen registers cancel as the in-flight listen's cancellation
// source, so the stop tool can reach it; returns a cleanup to call when
// the listen returns.
func (s *ServerState) trackListen(cancel context.CancelFunc) func() {
	s.mu.Lock()
	s.listenCancel = cancel
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if s.listenCancel != nil {
			s.listenCancel = nil
		}
		s.mu.Unlock()
	}
}

// Stop implements the `stop` tool (§4.6): cancels any in-flight listen,
// kills the current playback subprocess, and drains the speech queue.
func (s *ServerState) Stop() (stoppedPlayback bool, cancelledListen bool) {
	s.mu.Lock()
	cancel := s.listenCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		cancelledListen = true
	}

	if s.Speech != nil {
		stoppedPlayback = s.Speech.Stop()
		s.Speech.Queue.Drain()
	}
	return stoppedPlayback, cancelledListen
}
