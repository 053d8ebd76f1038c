package session

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spawnAliveProcess starts a genuinely separate, long-running process and
// returns its PID, so liveness checks that shell out to `ps` against a
// real sibling PID have something true to find. Killed on test cleanup.
func spawnAliveProcess(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return cmd.Process.Pid
}

func newTestRegistry(t *testing.T, selfPID int) *Registry {
	t.Helper()
	r := New(filepath.Join(t.TempDir(), "sessions.json"))
	r.selfPID = selfPID
	r.RetryDelay = time.Millisecond
	return r
}

func TestRegisterFreshStart(t *testing.T) {
	r := newTestRegistry(t, os.Getpid())

	entry, err := r.Register("Eric", "am_eric", 7865, "")
	require.NoError(t, err)
	assert.Equal(t, "Eric", entry.Name)
	assert.Equal(t, "am_eric", entry.VoiceID)
	assert.Equal(t, 7865, entry.Port)
}

func TestRegisterNameCollisionAssignsNextPriorityName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	holderPID := spawnAliveProcess(t)
	r1 := New(path)
	r1.selfPID = holderPID
	r1.RetryDelay = time.Millisecond
	held, err := r1.Register("Eric", "am_eric", 7865, "")
	require.NoError(t, err)
	require.Equal(t, "Eric", held.Name)

	r2 := New(path)
	r2.selfPID = os.Getpid()
	r2.RetryDelay = time.Millisecond

	entry, err := r2.Register("Eric", "am_eric", 7866, "")
	require.NoError(t, err)
	assert.Equal(t, "Adam", entry.Name, "Eric is held by a live sibling, so the next priority name should be assigned")
	assert.Equal(t, "am_adam", entry.VoiceID)
}

func TestUnregisterAfterRegisterLeavesEmptyFile(t *testing.T) {
	r := newTestRegistry(t, os.Getpid())

	entry, err := r.Register("Eric", "am_eric", 7865, "")
	require.NoError(t, err)

	require.NoError(t, r.Unregister(entry.PID))

	remaining, err := r.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestAttachSessionIDAdoptsSiblingIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	rA := New(path)
	rA.selfPID = os.Getpid()
	rA.RetryDelay = time.Millisecond
	entryA, err := rA.Register("Eric", "am_eric", 7865, "")
	require.NoError(t, err)

	// A genuinely separate, alive sibling process already carries the
	// shared session id that A is about to attach.
	siblingPID := spawnAliveProcess(t)
	sessions, err := rA.readLocked()
	require.NoError(t, err)
	sessions = append(sessions, Entry{
		Name: "Adam", VoiceID: "am_adam", Port: 7866,
		PID: siblingPID, SessionID: "shared-session", StartedAt: time.Now().UTC(),
	})
	require.NoError(t, rA.writeLocked(sessions))

	final, previousName, adopted, err := rA.AttachSessionID(entryA.PID, "shared-session")
	require.NoError(t, err)
	assert.True(t, adopted)
	assert.Equal(t, "Eric", previousName)
	assert.Equal(t, "Adam", final.Name)
	assert.Equal(t, "am_adam", final.VoiceID)

	got, err := rA.Snapshot()
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, e := range got {
		if e.PID == entryA.PID {
			assert.Equal(t, "Adam", e.Name, "A's persisted entry should reflect the adopted identity")
			assert.Equal(t, "shared-session", e.SessionID)
		}
	}
}

func TestMostRecentlyStarted(t *testing.T) {
	now := time.Now().UTC()
	entries := []Entry{
		{Name: "Eric", StartedAt: now.Add(-time.Hour)},
		{Name: "Adam", StartedAt: now},
	}
	best, ok := MostRecentlyStarted(entries)
	require.True(t, ok)
	assert.Equal(t, "Adam", best.Name)
}

func TestFindAvailableNameSkipsTakenAndFollowsPriority(t *testing.T) {
	taken := map[string]bool{"Eric": true}
	name, voiceID := findAvailableName(taken, "Eric", "am_eric")
	assert.Equal(t, "Adam", name)
	assert.Equal(t, "am_adam", voiceID)
}
