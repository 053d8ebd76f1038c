package dispatcher

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/shshalom/voicesmith-mcp/internal/listen"
	"github.com/shshalom/voicesmith-mcp/internal/voice"
	"github.com/shshalom/voicesmith-mcp/internal/wake"
)

// Dispatcher routes §4.6's tool surface onto the pipelines held by a
// ServerState, translating results into the §6 response shapes.
type Dispatcher struct {
	state *ServerState
}

func New(state *ServerState) *Dispatcher {
	return &Dispatcher{state: state}
}

// requestID tags every handler invocation for the logger, the way the
// teacher's handlers correlate a request across log lines.
func requestID() string { return uuid.NewString() }

// Speak implements the `speak` tool.
func (d *Dispatcher) Speak(agentName, text string, speed float64, block bool) map[string]any {
	rid := requestID()
	d.state.Log.Info("dispatcher", "speak", map[string]interface{}{"request_id": rid, "name": agentName})

	res := d.state.Speech.Speak(agentName, text, speed, block)
	if res.Cancelled {
		return newToolError(errCancelled, "speech was cancelled by stop before it played").asMap()
	}
	if !res.Success && res.Error != "" {
		return toolError{Error: res.Error, Message: res.Message, Context: map[string]any{
			"session_name":  res.SessionName,
			"session_voice": res.SessionVoice,
		}}.asMap()
	}

	out := map[string]any{
		"success":       true,
		"voice":         res.Voice,
		"auto_assigned": res.AutoAssigned,
	}
	if res.Queued {
		out["queued"] = true
	} else {
		out["duration_ms"] = res.DurationMs
		out["synthesis_ms"] = res.SynthesisMs
	}
	return out
}

// Listen implements the `listen` tool.
func (d *Dispatcher) Listen(ctx context.Context, timeout, silenceThreshold time.Duration) map[string]any {
	ctx, cancel := context.WithCancel(ctx)
	cleanup := d.state.trackListen(cancel)
	defer cleanup()
	defer cancel()

	res, outcome, err := d.state.Listen.Listen(ctx, timeout, silenceThreshold)
	return listenResponse(res, outcome, err)
}

// ListenNoCue implements the HTTP side-channel's POST /listen, which
// skips the ready-cue beep because the caller already gave its own.
func (d *Dispatcher) ListenNoCue(ctx context.Context, timeout, silenceThreshold time.Duration) map[string]any {
	ctx, cancel := context.WithCancel(ctx)
	cleanup := d.state.trackListen(cancel)
	defer cleanup()
	defer cancel()

	res, outcome, err := d.state.ListenNoCue.Listen(ctx, timeout, silenceThreshold)
	return listenResponse(res, outcome, err)
}

func listenResponse(res listen.Result, outcome listen.Outcome, err error) map[string]any {
	if err != nil {
		return newToolError(errCancelled, err.Error()).asMap()
	}
	switch outcome {
	case listen.MicBusy:
		return newToolError(errMicBusy, "another listen is already in flight").asMap()
	case listen.Muted:
		return newToolError(errMuted, "the server is muted").asMap()
	case listen.TimedOut:
		return newToolError(errTimeout, "no speech detected before timeout").asMap()
	case listen.Cancelled:
		return newToolError(errCancelled, "listen was cancelled").asMap()
	}
	return map[string]any{
		"success":          true,
		"text":             res.Text,
		"confidence":       res.Confidence,
		"duration_ms":      res.DurationMs,
		"transcription_ms": res.TranscriptionMs,
	}
}

// SpeakThenListen implements §4.4's sequential composition: speak, then
// listen, nudging once by voice if the listen times out. It never
// retries listen internally.
func (d *Dispatcher) SpeakThenListen(ctx context.Context, agentName, text string, speed float64, timeout, silenceThreshold time.Duration) map[string]any {
	speakResult := d.Speak(agentName, text, speed, true)

	listenResult := d.Listen(ctx, timeout, silenceThreshold)
	if listenResult["error"] == errTimeout {
		nudge := d.Speak(agentName, "I didn't catch that.", speed, true)
		_ = nudge
		listenResult["nudge_spoken"] = true
	}

	return map[string]any{
		"speak":  speakResult,
		"listen": listenResult,
	}
}

// SetVoice implements `set_voice`: §4.1's explicit set plus §4.2's
// rename, keeping the session's name and spoken voice aligned.
func (d *Dispatcher) SetVoice(name, voiceID string) map[string]any {
	if !voice.IsValid(voiceID) {
		return newToolError(errInvalidVoice, fmt.Sprintf("%q is not a known voice id", voiceID)).asMap()
	}

	self := d.state.Self()
	previousName := self.Name

	if name != previousName {
		entry, err := d.state.Sessions.Rename(self.PID, name)
		if err != nil {
			return newToolError(errNameOccupied, fmt.Sprintf("name %q is already held by a live session", name)).asMap()
		}
		d.state.VoiceRegistry.Rename(previousName, name)
		self = entry
	}

	if err := d.state.VoiceRegistry.Set(name, voiceID); err != nil {
		return newToolError(errInvalidVoice, err.Error()).asMap()
	}
	self.VoiceID = voiceID
	d.state.SetSelf(self)

	out := map[string]any{"success": true, "name": name, "voice": voiceID}
	if previousName != name {
		out["previous_name"] = previousName
	}
	return out
}

// GetVoiceRegistry implements `get_voice_registry`.
func (d *Dispatcher) GetVoiceRegistry() map[string]any {
	snap := d.state.VoiceRegistry.Snapshot()
	return map[string]any{
		"registry":        snap.Registry,
		"available_pool":  snap.AvailablePool,
		"total_assigned":  snap.TotalAssigned,
		"total_available": snap.TotalAvailable,
	}
}

// ListVoices implements `list_voices`.
func (d *Dispatcher) ListVoices() map[string]any {
	list := make([]map[string]any, 0, len(voice.Catalogue))
	for _, v := range voice.Catalogue {
		list = append(list, map[string]any{"id": v.ID, "gender": v.Gender, "accent": v.Accent})
	}
	return map[string]any{"voices": list, "total": len(list)}
}

// Mute/Unmute implement the mute-state toggle tools.
func (d *Dispatcher) Mute() map[string]any   { return map[string]any{"success": true, "muted": d.state.SetMuted(true)} }
func (d *Dispatcher) Unmute() map[string]any { return map[string]any{"success": true, "muted": d.state.SetMuted(false)} }

// Stop implements `stop`.
func (d *Dispatcher) Stop() map[string]any {
	stoppedPlayback, cancelledListen := d.state.Stop()
	return map[string]any{
		"success":           true,
		"stopped_playback":  stoppedPlayback,
		"cancelled_listen":  cancelledListen,
	}
}

// Status implements `status`, aggregating engine, mute, uptime, queue
// depth, registry sizes, and this session's own entry.
func (d *Dispatcher) Status() map[string]any {
	self := d.state.Self()
	out := map[string]any{
		"tts":           providerName(d.state.TTS),
		"stt":           providerName(d.state.STT),
		"vad":           d.state.VAD != nil,
		"muted":         d.state.Muted(),
		"uptime_s":      time.Since(d.state.StartedAt).Seconds(),
		"registry_size": d.state.VoiceRegistry.Size(),
		"session": map[string]any{
			"name": self.Name,
			"voice": self.VoiceID,
			"port":  self.Port,
			"pid":   self.PID,
		},
	}
	if d.state.Speech != nil {
		out["queue_depth"] = d.state.Speech.Queue.Depth()
	}
	if d.state.Wake != nil {
		out["wake_word"] = map[string]any{
			"enabled":   d.state.Wake.State() != wake.Disabled,
			"listening": d.state.Wake.State() == wake.Listening,
			"model":     d.state.Config.Wake.ModelID,
		}
	}
	return out
}

// WakeEnable/WakeDisable implement §4.5's transitions.
func (d *Dispatcher) WakeEnable() map[string]any {
	if d.state.Wake == nil {
		return newToolError(errEngineUnavailable, "wake-word listener was not configured at startup").asMap()
	}
	d.state.Wake.Start()
	return map[string]any{"success": true, "listening": d.state.Wake.State() == wake.Listening}
}

func (d *Dispatcher) WakeDisable() map[string]any {
	if d.state.Wake == nil {
		return map[string]any{"success": true, "listening": false}
	}
	d.state.Wake.Stop()
	return map[string]any{"success": true, "listening": false}
}

// AttachSessionID implements the HTTP side-channel's POST /session:
// §4.2's attach_session_id, adopting a live sibling's identity when the
// editor hands over a logical session id on resume.
func (d *Dispatcher) AttachSessionID(sessionID string) map[string]any {
	self := d.state.Self()
	entry, previousName, adopted, err := d.state.Sessions.AttachSessionID(self.PID, sessionID)
	if err != nil {
		return newToolError(errEngineUnavailable, err.Error()).asMap()
	}
	if adopted && previousName != entry.Name {
		d.state.VoiceRegistry.Release(previousName)
	}
	d.state.SetSelf(entry)
	return map[string]any{
		"success":    true,
		"name":       entry.Name,
		"voice":      entry.VoiceID,
		"port":       entry.Port,
		"pid":        entry.PID,
		"session_id": entry.SessionID,
	}
}

// Inject implements the SUPPLEMENTED item 4 receiving end of
// wake-word text routing: only the process that owns a tmux pane may
// shell out to it, so the sender POSTs here instead of invoking tmux
// itself.
func (d *Dispatcher) Inject(text string) map[string]any {
	self := d.state.Self()
	if self.TmuxSession == "" {
		return newToolError(errEngineUnavailable, "this session has no tmux pane to inject into").asMap()
	}
	if err := injectTmux(self.TmuxSession, text); err != nil {
		return newToolError(errEngineUnavailable, err.Error()).asMap()
	}
	return map[string]any{"success": true}
}

func injectTmux(tmuxSession, text string) error {
	if err := exec.Command("tmux", "send-keys", "-t", tmuxSession, "-l", text).Run(); err != nil {
		return err
	}
	return exec.Command("tmux", "send-keys", "-t", tmuxSession, "Enter").Run()
}

func providerName(p interface{ Name() string }) string {
	if p == nil {
		return ""
	}
	return p.Name()
}
