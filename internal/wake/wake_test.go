package wake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shshalom/voicesmith-mcp/internal/capture"
	"github.com/shshalom/voicesmith-mcp/internal/engine/stt"
	"github.com/shshalom/voicesmith-mcp/internal/engine/vad"
	"github.com/shshalom/voicesmith-mcp/internal/engine/wakeword"
	"github.com/shshalom/voicesmith-mcp/internal/session"
)

func silent(n int) []float32 { return make([]float32, n) }
func loud(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.9
	}
	return f
}

func newTestListener(t *testing.T) *Listener {
	emptyPath := seedSessionsFile(t, nil)

	l := NewListener()
	l.ModelID = "hey_jarvis"
	l.SampleRate = 16000
	l.WakeFrameSize = 1280
	l.ListenFrameSize = vad.FrameSize
	l.RecordingTimeout = 2 * time.Second
	l.SilenceThreshold = 20 * time.Millisecond
	l.Detector = vad.NewFake()
	l.Transcriber = stt.NewFake()
	l.Router = NewRouter(session.New(emptyPath))
	l.Log = zerolog.Nop()
	l.LoadModel = func(modelID string) (wakeword.Provider, error) {
		return wakeword.NewFake(modelID, 1), nil
	}
	l.NewWakeSource = func() (capture.Source, error) {
		return capture.NewFakeSource(16000, [][]float32{silent(1280)}), nil
	}
	l.NewRecordSource = func() (capture.Source, error) {
		frames := [][]float32{loud(vad.FrameSize), loud(vad.FrameSize), silent(vad.FrameSize), silent(vad.FrameSize)}
		return capture.NewFakeSource(16000, frames), nil
	}
	return l
}

func TestListenerStartsInListeningState(t *testing.T) {
	l := newTestListener(t)
	l.Start()
	defer l.Stop()
	assert.Eventually(t, func() bool { return l.State() == Listening }, time.Second, 5*time.Millisecond)
}

func TestListenerStopReturnsToDisabled(t *testing.T) {
	l := newTestListener(t)
	l.Start()
	l.Stop()
	assert.Equal(t, Disabled, l.State())
}

func TestRequestYieldAndReclaim(t *testing.T) {
	l := newTestListener(t)
	l.Start()
	defer l.Stop()

	require.Eventually(t, func() bool { return l.State() == Listening }, time.Second, 5*time.Millisecond)

	yielded := l.RequestYield()
	assert.True(t, yielded)
	assert.Equal(t, Yielded, l.State())

	l.Reclaim()
	assert.Eventually(t, func() bool { return l.State() == Listening }, time.Second, 5*time.Millisecond)
}

func seedSessionsFile(t *testing.T, entries []session.Entry) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	data, err := json.Marshal(map[string]any{"sessions": entries})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRouterDeliversToSoleLiveSession(t *testing.T) {
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Text string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		received = body.Text
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	parsed, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	path := seedSessionsFile(t, []session.Entry{
		{Name: "Eric", VoiceID: "am_eric", Port: port, PID: os.Getpid(), TmuxSession: "main", StartedAt: time.Now()},
	})

	router := NewRouter(session.New(path))
	err = router.Route("hello there")
	require.NoError(t, err)
	assert.Equal(t, "hello there", received)
}
