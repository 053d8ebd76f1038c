package sweep

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shshalom/voicesmith-mcp/internal/logging"
	"github.com/shshalom/voicesmith-mcp/internal/session"
	"github.com/shshalom/voicesmith-mcp/internal/voice"
)

func newTestSweeper(t *testing.T) (*Sweeper, *session.Registry, *voice.Registry) {
	log, err := logging.New(logging.DefaultConfig())
	require.NoError(t, err)

	sessions := session.New(filepath.Join(t.TempDir(), "sessions.json"))
	voiceRegistry := voice.New(filepath.Join(t.TempDir(), "config.json"))

	return New(sessions, voiceRegistry, log), sessions, voiceRegistry
}

func listenerPort(t *testing.T, srv *httptest.Server) int {
	port, err := strconv.Atoi(srv.URL[len("http://127.0.0.1:"):])
	require.NoError(t, err)
	return port
}

func TestRunOnceLeavesRespondingSiblingAlone(t *testing.T) {
	s, sessions, voiceRegistry := newTestSweeper(t)
	voiceRegistry.Set("Eric", "am_eric")

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	entry, err := sessions.Register("Eric", "am_eric", listenerPort(t, ok), "")
	require.NoError(t, err)
	s.selfPID = entry.PID + 1 // pretend this sweeper runs in a different process

	s.runOnce()

	remaining, err := sessions.Snapshot()
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestRunOnceGivesNewlyFailingSiblingAGracePeriod(t *testing.T) {
	s, sessions, voiceRegistry := newTestSweeper(t)
	voiceRegistry.Set("Eric", "am_eric")

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	port := listenerPort(t, down)
	down.Close() // no longer answers

	entry, err := sessions.Register("Eric", "am_eric", port, "")
	require.NoError(t, err)
	s.selfPID = entry.PID + 1

	s.runOnce()

	remaining, err := sessions.Snapshot()
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "first failed ping should only start the stale clock")
}

func TestRunOnceRemovesSiblingPastOrphanThreshold(t *testing.T) {
	s, sessions, voiceRegistry := newTestSweeper(t)
	voiceRegistry.Set("Eric", "am_eric")

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	port := listenerPort(t, down)
	down.Close()

	entry, err := sessions.Register("Eric", "am_eric", port, "")
	require.NoError(t, err)
	s.selfPID = entry.PID + 1

	s.runOnce()
	s.mu.Lock()
	s.staleSince[entry.PID] = time.Now().Add(-OrphanThreshold - time.Second)
	s.mu.Unlock()
	s.runOnce()

	remaining, err := sessions.Snapshot()
	require.NoError(t, err)
	assert.Len(t, remaining, 0)

	snap := voiceRegistry.Snapshot()
	assert.NotContains(t, snap.Registry, "Eric")
}

func TestRunOnceSavesVoiceRegistry(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	log, err := logging.New(logging.DefaultConfig())
	require.NoError(t, err)
	sessions := session.New(filepath.Join(t.TempDir(), "sessions.json"))
	voiceRegistry := voice.New(configPath)
	voiceRegistry.Set("Eric", "am_eric")

	s := New(sessions, voiceRegistry, log)
	s.runOnce()

	reloaded := voice.New(configPath)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, "am_eric", reloaded.Snapshot().Registry["Eric"])
}
