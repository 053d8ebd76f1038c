package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shshalom/voicesmith-mcp/internal/audio"
	"github.com/shshalom/voicesmith-mcp/internal/capture"
	"github.com/shshalom/voicesmith-mcp/internal/config"
	"github.com/shshalom/voicesmith-mcp/internal/dispatcher"
	"github.com/shshalom/voicesmith-mcp/internal/engine/stt"
	"github.com/shshalom/voicesmith-mcp/internal/engine/tts"
	"github.com/shshalom/voicesmith-mcp/internal/engine/vad"
	"github.com/shshalom/voicesmith-mcp/internal/listen"
	"github.com/shshalom/voicesmith-mcp/internal/logging"
	"github.com/shshalom/voicesmith-mcp/internal/session"
	"github.com/shshalom/voicesmith-mcp/internal/speech"
	"github.com/shshalom/voicesmith-mcp/internal/voice"
)

// newTestServer builds a Server on top of a fake-backed dispatcher, the
// same harness shape as the dispatcher package's own tests, reached over
// httptest instead of a real listening socket.
func newTestServer(t *testing.T) (*httptest.Server, *int) {
	log, err := logging.New(logging.DefaultConfig())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	state := dispatcher.NewState(cfg, log)

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
	newSource := func() (capture.Source, error) {
		frames := [][]float32{loudFrame(vad.FrameSize), silentFrame(vad.FrameSize), silentFrame(vad.FrameSize)}
		return capture.NewFakeSource(16000, frames), nil
	}
	state.Listen = &listen.Pipeline{
		Arbiter: arbiter, Detector: state.VAD, Transcriber: state.STT, Player: player,
		SampleRate: 16000, FrameSize: vad.FrameSize, Muted: state.Muted, NewSource: newSource,
	}
	state.ListenNoCue = &listen.Pipeline{
		Arbiter: arbiter, Detector: state.VAD, Transcriber: state.STT, Player: player,
		SampleRate: 16000, FrameSize: vad.FrameSize, Muted: state.Muted,
		SkipReadyCue: true, NewSource: newSource,
	}

	t.Cleanup(func() { state.Speech.Queue.Stop() })

	d := dispatcher.New(state)
	pings := 0
	srv := &Server{dispatcher: d, lastPingAt: func() { pings++ }}
	ts := httptest.NewServer(srv.mux())
	t.Cleanup(ts.Close)
	return ts, &pings
}

func silentFrame(n int) []float32 { return make([]float32, n) }
func loudFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.9
	}
	return f
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) map[string]any {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestStatusHandlerReportsSessionAndPings(t *testing.T) {
	ts, pings := newTestServer(t)
	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	session := out["session"].(map[string]any)
	assert.Equal(t, "Eric", session["name"])
	assert.Equal(t, 1, *pings)
}

func TestSpeakHandlerDefaultsSpeedAndBlock(t *testing.T) {
	ts, _ := newTestServer(t)
	out := postJSON(t, ts, "/speak", map[string]any{"name": "Eric", "text": "hello"})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "am_eric", out["voice"])
}

func TestListenHandlerSkipsReadyCue(t *testing.T) {
	ts, _ := newTestServer(t)
	out := postJSON(t, ts, "/listen", map[string]any{"timeout": 1.0, "silence_threshold": 0.005})
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["text"])
}

func TestSessionHandlerAttachesSessionID(t *testing.T) {
	ts, _ := newTestServer(t)
	out := postJSON(t, ts, "/session", map[string]any{"session_id": "abc-123"})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "abc-123", out["session_id"])
}

func TestInjectHandlerReportsEngineUnavailableWithoutTmux(t *testing.T) {
	ts, _ := newTestServer(t)
	out := postJSON(t, ts, "/inject", map[string]any{"text": "hi"})
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "engine_unavailable", out["error"])
}

func TestStatusHandlerRejectsNonGet(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/status", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
