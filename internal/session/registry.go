package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/shshalom/voicesmith-mcp/internal/voice"
)

// Registry is the cross-process, file-locked session registry (§4.2).
type Registry struct {
	path       string
	lock       *flock.Flock
	RetryDelay time.Duration // grace period before retrying a contested name; default 2s

	// selfPID is overridable for tests.
	selfPID int

	mu sync.Mutex
}

// New creates a Registry backed by the sessions.json file at path.
func New(path string) *Registry {
	return &Registry{
		path:       path,
		lock:       flock.New(path + ".lock"),
		RetryDelay: 2 * time.Second,
		selfPID:    os.Getpid(),
	}
}

type priorityName struct {
	name    string
	voiceID string
}

// priorityNames is built from the voice catalogue tiers (American male,
// American female, British, other) in the same priority order as §4.1's
// resolve() policy, so session-name fallback and voice assignment stay
// aligned.
var priorityNames = buildPriorityNames()

func buildPriorityNames() []priorityName {
	var out []priorityName
	for _, tier := range []voice.Tier{voice.TierAmericanMale, voice.TierAmericanFemale, voice.TierBritish, voice.TierOther} {
		for _, id := range voice.TierPool(tier) {
			v, _ := voice.Lookup(id)
			_ = v
			suffix := id[strings.Index(id, "_")+1:]
			out = append(out, priorityName{name: capitalize(suffix), voiceID: id})
		}
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (r *Registry) readLocked() ([]Entry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var shape fileShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, nil
	}
	return shape.Sessions, nil
}

func (r *Registry) writeLocked(sessions []Entry) error {
	if err := os.MkdirAll(parentDir(r.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileShape{Sessions: sessions}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0644)
}

func parentDir(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

// cleanStale drops dead or orphaned entries (§9 SUPPLEMENTED item 1).
func (r *Registry) cleanStale(sessions []Entry) []Entry {
	out := make([]Entry, 0, len(sessions))
	for _, e := range sessions {
		if healthy(e, r.selfPID) {
			out = append(out, e)
		}
	}
	return out
}

func findAvailableName(taken map[string]bool, preferred, preferredVoice string) (string, string) {
	lower := strings.ToLower(preferred)
	if !taken[preferred] {
		if id, ok := voice.MatchName(lower); ok {
			return preferred, id
		}
	}
	for _, p := range priorityNames {
		if !taken[p.name] {
			return p.name, p.voiceID
		}
	}
	if id, ok := voice.MatchName(lower); ok {
		return preferred, id
	}
	return preferred, preferredVoice
}

func findAvailablePort(sessions []Entry, basePort int) int {
	used := make(map[int]bool, len(sessions))
	for _, e := range sessions {
		used[e.Port] = true
	}
	port := basePort
	for used[port] {
		port++
	}
	return port
}

// Register implements §4.2's register operation, including the bounded
// retry-after-contention behaviour (§9 SUPPLEMENTED item 5).
func (r *Registry) Register(preferredName, preferredVoice string, basePort int, tmuxSession string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lock.Lock(); err != nil {
		return Entry{}, fmt.Errorf("lock sessions file: %w", err)
	}
	defer r.lock.Unlock()

	sessions, err := r.readLocked()
	if err != nil {
		return Entry{}, err
	}
	sessions = r.cleanStale(sessions)

	taken := takenNames(sessions)
	if taken[preferredName] {
		r.lock.Unlock()
		time.Sleep(r.RetryDelay)
		if err := r.lock.Lock(); err != nil {
			return Entry{}, err
		}
		sessions, err = r.readLocked()
		if err != nil {
			return Entry{}, err
		}
		sessions = r.cleanStale(sessions)
		if err := r.writeLocked(sessions); err != nil {
			return Entry{}, err
		}
		taken = takenNames(sessions)
	}

	var name, voiceID string
	if taken[preferredName] {
		name, voiceID = findAvailableName(taken, preferredName, preferredVoice)
	} else {
		name, voiceID = preferredName, preferredVoice
	}

	port := findAvailablePort(sessions, basePort)

	entry := Entry{
		Name:        name,
		VoiceID:     voiceID,
		Port:        port,
		PID:         r.selfPID,
		TmuxSession: tmuxSession,
		StartedAt:   time.Now().UTC(),
	}
	sessions = append(sessions, entry)
	if err := r.writeLocked(sessions); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func takenNames(sessions []Entry) map[string]bool {
	out := make(map[string]bool, len(sessions))
	for _, e := range sessions {
		out[e.Name] = true
	}
	return out
}

// AttachSessionID implements §4.2's attach_session_id: adopts a living
// sibling's name/voice if one exists, else stamps session_id unchanged.
// Returns the final entry and, if a sibling's identity was adopted, the
// name this process previously held (so the caller can release that
// name's voice back to the pool).
func (r *Registry) AttachSessionID(pid int, sessionID string) (final Entry, previousName string, adopted bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err = r.lock.Lock(); err != nil {
		return
	}
	defer r.lock.Unlock()

	sessions, rerr := r.readLocked()
	if rerr != nil {
		err = rerr
		return
	}
	sessions = r.cleanStale(sessions)

	idx := -1
	for i := range sessions {
		if sessions[i].PID == pid {
			idx = i
			break
		}
	}
	if idx < 0 {
		err = fmt.Errorf("no session entry for pid %d", pid)
		return
	}

	previousName = sessions[idx].Name
	sessions[idx].SessionID = sessionID

	for i := range sessions {
		if i == idx {
			continue
		}
		sib := sessions[i]
		if sib.SessionID == sessionID && sib.PID != pid && pidAlive(sib.PID) {
			if sib.Name != sessions[idx].Name {
				sessions[idx].Name = sib.Name
				sessions[idx].VoiceID = sib.VoiceID
				adopted = true
			}
			break
		}
	}

	final = sessions[idx]
	err = r.writeLocked(sessions)
	return
}

// Rename implements §4.2's rename operation.
func (r *Registry) Rename(pid int, newName string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lock.Lock(); err != nil {
		return Entry{}, err
	}
	defer r.lock.Unlock()

	sessions, err := r.readLocked()
	if err != nil {
		return Entry{}, err
	}
	sessions = r.cleanStale(sessions)

	idx := -1
	for i := range sessions {
		if sessions[i].PID == pid {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Entry{}, fmt.Errorf("no session entry for pid %d", pid)
	}

	for i := range sessions {
		if i == idx {
			continue
		}
		if sessions[i].Name == newName && sessions[i].SessionID != sessions[idx].SessionID {
			return Entry{}, ErrNameOccupied
		}
	}

	sessions[idx].Name = newName
	if err := r.writeLocked(sessions); err != nil {
		return Entry{}, err
	}
	return sessions[idx], nil
}

// Unregister implements §4.2's unregister operation.
func (r *Registry) Unregister(pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lock.Lock(); err != nil {
		return err
	}
	defer r.lock.Unlock()

	sessions, err := r.readLocked()
	if err != nil {
		return err
	}
	out := make([]Entry, 0, len(sessions))
	for _, e := range sessions {
		if e.PID != pid {
			out = append(out, e)
		}
	}
	return r.writeLocked(out)
}

// Sweep implements §4.2's sweep operation (PID-liveness half; the HTTP
// orphan-threshold half lives in internal/sweep, which calls RemoveDead).
func (r *Registry) Sweep() ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lock.Lock(); err != nil {
		return nil, err
	}
	defer r.lock.Unlock()

	sessions, err := r.readLocked()
	if err != nil {
		return nil, err
	}
	alive := r.cleanStale(sessions)
	if len(alive) != len(sessions) {
		if err := r.writeLocked(alive); err != nil {
			return nil, err
		}
	}
	sortEntries(alive)
	return alive, nil
}

// Snapshot is a read-only view with an inline sweep, per §4.2.
func (r *Registry) Snapshot() ([]Entry, error) {
	return r.Sweep()
}

// RemoveDead deletes pid's entry unconditionally — used by the periodic
// sweep when an entry's HTTP side-channel has been silent past the
// orphan threshold (§4.2).
func (r *Registry) RemoveDead(pid int) error {
	return r.Unregister(pid)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}

// MostRecentlyStarted returns the live entry with the latest StartedAt,
// implementing SPEC_FULL's wake-word routing fallback.
func MostRecentlyStarted(entries []Entry) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.StartedAt.After(best.StartedAt) {
			best = e
		}
	}
	return best, true
}
