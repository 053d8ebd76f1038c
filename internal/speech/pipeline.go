package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shshalom/voicesmith-mcp/internal/audio"
	"github.com/shshalom/voicesmith-mcp/internal/engine/tts"
	"github.com/shshalom/voicesmith-mcp/internal/voice"
)

// Result is §6's `speak` response shape, success and failure cases
// both represented in one struct so the dispatcher can translate it
// directly into the tool response.
type Result struct {
	Success      bool
	Voice        string
	AutoAssigned bool
	DurationMs   float64
	SynthesisMs  float64
	Queued       bool
	Cancelled    bool
	Error        string
	SessionName  string
	SessionVoice string
	Message      string
}

// Pipeline implements §4.3: voice resolution, the name-occupied guard,
// mute short-circuit, chunked synthesis, and cross-process-locked
// playback.
type Pipeline struct {
	VoiceRegistry *voice.Registry
	Synthesizer   tts.Provider
	AudioLock     *audio.PlaybackLock
	Player        *audio.Player
	Queue         *Queue

	// SessionName/SessionVoice report this process's own registered
	// identity (§4.2) for the name-occupied comparison.
	SessionName  func() string
	SessionVoice func() string
	Muted        func() bool
}

// NewPipeline wires a Queue whose worker calls back into this
// pipeline's synthesize-then-play loop.
func NewPipeline(registry *voice.Registry, synth tts.Provider, lock *audio.PlaybackLock, player *audio.Player, sessionName, sessionVoice func() string, muted func() bool) *Pipeline {
	p := &Pipeline{
		VoiceRegistry: registry,
		Synthesizer:   synth,
		AudioLock:     lock,
		Player:        player,
		SessionName:   sessionName,
		SessionVoice:  sessionVoice,
		Muted:         muted,
	}
	p.Queue = NewQueue(p.process)
	return p
}

// Speak implements the public `speak(agent_name, text, speed, block)`
// operation.
func (p *Pipeline) Speak(agentName, text string, speed float64, block bool) Result {
	if !strings.EqualFold(agentName, p.SessionName()) {
		name, voiceID := p.SessionName(), p.SessionVoice()
		return Result{
			Success:      false,
			Error:        "name_occupied",
			SessionName:  name,
			SessionVoice: voiceID,
			Message:      fmt.Sprintf("this session speaks as %q (%s), not %q", name, voiceID, agentName),
		}
	}

	voiceID, autoAssigned := p.VoiceRegistry.Resolve(agentName)

	if p.Muted != nil && p.Muted() {
		return Result{Success: true, Voice: voiceID, AutoAssigned: autoAssigned}
	}

	req := &request{
		agentName:    agentName,
		voiceID:      voiceID,
		autoAssigned: autoAssigned,
		text:         text,
		speed:        speed,
	}
	if block {
		req.resultCh = make(chan Result, 1)
	}
	p.Queue.enqueue(req)

	if !block {
		return Result{Success: true, Voice: voiceID, AutoAssigned: autoAssigned, Queued: true}
	}
	return <-req.resultCh
}

// Stop kills the in-flight playback subprocess, if any.
func (p *Pipeline) Stop() bool {
	return p.Player.Stop()
}

func millis(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

// process is the worker's per-request body (§4.3 steps 1-3): chunk,
// synthesize, lock, play.
func (p *Pipeline) process(req *request) {
	chunks := Chunk(req.text, MaxChunkLength)
	if len(chunks) == 0 {
		deliver(req, Result{
			Success: false,
			Voice:   req.voiceID, AutoAssigned: req.autoAssigned,
			Error: "synthesis_failed", Message: "empty text",
		})
		return
	}

	start := time.Now()
	var synthesisMs float64

	for _, chunk := range chunks {
		synthStart := time.Now()
		synthesized, err := p.Synthesizer.Synthesize(context.Background(), req.voiceID, chunk, req.speed)
		synthesisMs += millis(time.Since(synthStart))
		if err != nil {
			deliver(req, Result{
				Success: false,
				Voice:   req.voiceID, AutoAssigned: req.autoAssigned,
				Error: "engine_unavailable", Message: err.Error(),
			})
			return
		}

		release, err := p.AudioLock.Acquire(context.Background())
		if err != nil {
			deliver(req, Result{
				Success: false,
				Voice:   req.voiceID, AutoAssigned: req.autoAssigned,
				Error: "engine_unavailable", Message: err.Error(),
			})
			return
		}
		playback, err := p.Player.Play(synthesized.PCM, synthesized.SampleRate)
		release()
		if err != nil {
			deliver(req, Result{
				Success: false,
				Voice:   req.voiceID, AutoAssigned: req.autoAssigned,
				Error: "engine_unavailable", Message: err.Error(),
			})
			return
		}
		if !playback.Success {
			deliver(req, Result{
				Success: false,
				Voice:   req.voiceID, AutoAssigned: req.autoAssigned,
				Error: "engine_unavailable", Message: playback.Error,
			})
			return
		}
	}

	deliver(req, Result{
		Success:      true,
		Voice:        req.voiceID,
		AutoAssigned: req.autoAssigned,
		DurationMs:   millis(time.Since(start)),
		SynthesisMs:  synthesisMs,
	})
}

func deliver(req *request, res Result) {
	if req.resultCh != nil {
		req.resultCh <- res
	}
}
