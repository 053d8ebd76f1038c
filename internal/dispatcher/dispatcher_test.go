package dispatcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shshalom/voicesmith-mcp/internal/audio"
	"github.com/shshalom/voicesmith-mcp/internal/capture"
	"github.com/shshalom/voicesmith-mcp/internal/config"
	"github.com/shshalom/voicesmith-mcp/internal/engine/stt"
	"github.com/shshalom/voicesmith-mcp/internal/engine/tts"
	"github.com/shshalom/voicesmith-mcp/internal/engine/vad"
	"github.com/shshalom/voicesmith-mcp/internal/listen"
	"github.com/shshalom/voicesmith-mcp/internal/logging"
	"github.com/shshalom/voicesmith-mcp/internal/session"
	"github.com/shshalom/voicesmith-mcp/internal/speech"
	"github.com/shshalom/voicesmith-mcp/internal/voice"
)

func newTestState(t *testing.T) *ServerState {
	log, err := logging.New(logging.DefaultConfig())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	state := NewState(cfg, log)

	voiceRegistry := voice.New(filepath.Join(t.TempDir(), "config.json"))
	sessions := session.New(filepath.Join(t.TempDir(), "sessions.json"))
	entry, err := sessions.Register("Eric", "am_eric", 7865, "")
	require.NoError(t, err)

	state.VoiceRegistry = voiceRegistry
	state.Sessions = sessions
	state.SetSelf(entry)

	state.TTS = tts.NewFake()
	state.STT = stt.NewFake()
	state.VAD = vad.NewFake()

	lock := audio.NewPlaybackLock(filepath.Join(t.TempDir(), "audio.lock"))
	player := audio.NewPlayer("true")

	state.Speech = speech.NewPipeline(voiceRegistry, state.TTS, lock, player, state.SessionName, state.SessionVoice, state.Muted)
	state.Speech.Queue.Start()

	arbiter := &listen.Arbiter{}
	state.Listen = &listen.Pipeline{
		Arbiter:     arbiter,
		Detector:    state.VAD,
		Transcriber: state.STT,
		Player:      player,
		SampleRate:  16000,
		FrameSize:   vad.FrameSize,
		Muted:       state.Muted,
		NewSource: func() (capture.Source, error) {
			frames := [][]float32{loudFrame(vad.FrameSize), silentFrame(vad.FrameSize), silentFrame(vad.FrameSize)}
			return capture.NewFakeSource(16000, frames), nil
		},
	}
	state.ListenNoCue = &listen.Pipeline{
		Arbiter:      arbiter,
		Detector:     state.VAD,
		Transcriber:  state.STT,
		Player:       player,
		SampleRate:   16000,
		FrameSize:    vad.FrameSize,
		Muted:        state.Muted,
		SkipReadyCue: true,
		NewSource:    state.Listen.NewSource,
	}

	t.Cleanup(func() { state.Speech.Queue.Stop() })
	return state
}

func silentFrame(n int) []float32 { return make([]float32, n) }
func loudFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.9
	}
	return f
}

func TestSpeakSucceedsForOwnSessionName(t *testing.T) {
	d := New(newTestState(t))
	res := d.Speak("Eric", "hello there", 1.0, true)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "am_eric", res["voice"])
}

func TestSpeakRejectsOtherName(t *testing.T) {
	d := New(newTestState(t))
	res := d.Speak("Adam", "hello", 1.0, true)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, errNameOccupied, res["error"])
	assert.Equal(t, "Eric", res["session_name"])
}

func TestListenCompletesWithTranscription(t *testing.T) {
	d := New(newTestState(t))
	res := d.Listen(context.Background(), time.Second, 5*time.Millisecond)
	assert.Equal(t, true, res["success"])
	assert.NotEmpty(t, res["text"])
}

func TestListenReturnsMicBusyWhenArbiterHeld(t *testing.T) {
	state := newTestState(t)
	require.True(t, state.Listen.Arbiter.TryAcquire())
	d := New(state)
	res := d.Listen(context.Background(), time.Second, 5*time.Millisecond)
	assert.Equal(t, errMicBusy, res["error"])
}

func TestMuteThenUnmuteIsIdempotent(t *testing.T) {
	d := New(newTestState(t))
	assert.Equal(t, true, d.Mute()["muted"])
	assert.Equal(t, true, d.Mute()["muted"])
	assert.Equal(t, false, d.Unmute()["muted"])
}

func TestSetVoiceRejectsUnknownVoice(t *testing.T) {
	d := New(newTestState(t))
	res := d.SetVoice("Eric", "nonexistent")
	assert.Equal(t, errInvalidVoice, res["error"])
}

func TestSetVoiceUpdatesSelfEntry(t *testing.T) {
	d := New(newTestState(t))
	res := d.SetVoice("Eric", "am_adam")
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "am_adam", d.state.Self().VoiceID)
}

func TestStatusReportsSessionAndUptime(t *testing.T) {
	d := New(newTestState(t))
	res := d.Status()
	session := res["session"].(map[string]any)
	assert.Equal(t, "Eric", session["name"])
	assert.GreaterOrEqual(t, res["uptime_s"], 0.0)
}

func TestStopWithNothingInFlightReportsNothingStopped(t *testing.T) {
	d := New(newTestState(t))
	res := d.Stop()
	assert.Equal(t, true, res["success"])
	assert.Equal(t, false, res["stopped_playback"])
	assert.Equal(t, false, res["cancelled_listen"])
}

func TestWakeEnableWithoutListenerReportsEngineUnavailable(t *testing.T) {
	d := New(newTestState(t))
	res := d.WakeEnable()
	assert.Equal(t, errEngineUnavailable, res["error"])
}
