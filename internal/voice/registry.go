package voice

import (
	"encoding/json"
	"hash/fnv"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// Registry maps agent names to voice ids, with the §4.1 assignment
// policy and best-effort disk persistence merged into the process's
// config.json under the "voice_registry" key.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]string
	configPath string
	lock       *flock.Flock

	Log zerolog.Logger
}

// New creates an empty registry persisted at configPath.
func New(configPath string) *Registry {
	return &Registry{
		entries:    make(map[string]string),
		configPath: configPath,
		lock:       flock.New(configPath + ".lock"),
		Log:        zerolog.Nop(),
	}
}

// Seed pre-populates the registry, e.g. from config.json's
// voice_registry key at startup. Entries with an invalid voice id are
// skipped.
func (r *Registry) Seed(preset map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, id := range preset {
		if IsValid(id) {
			r.entries[name] = id
		}
	}
}

// Resolve implements §4.1's resolve(agent_name) -> (voice_id, newly_assigned).
func (r *Registry) Resolve(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.entries[name]; ok {
		return id, false
	}

	if id, ok := MatchName(name); ok {
		if !r.isAssignedLocked(id) {
			r.entries[name] = id
			return id, true
		}
	}

	for _, tier := range []Tier{TierAmericanMale, TierAmericanFemale, TierBritish, TierOther} {
		pool := r.unassignedLocked(TierPool(tier))
		if len(pool) == 0 {
			continue
		}
		id := pool[stableIndex(name, len(pool))]
		r.entries[name] = id
		return id, true
	}

	// Pool exhausted: hash into the full catalogue, aliasing an existing
	// agent.
	all := AllIDsSorted()
	id := all[stableIndex(name, len(all))]
	r.entries[name] = id
	r.Log.Warn().Str("agent", name).Str("voice", id).Msg("voice pool exhausted, aliasing existing agent's voice")
	return id, true
}

// Set implements §4.1's set(agent_name, voice_id); rejects unknown voice
// ids.
func (r *Registry) Set(name, voiceID string) error {
	if !IsValid(voiceID) {
		return ErrInvalidVoice
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = voiceID
	return nil
}

// Rename implements §4.1's rename(old, new): atomic swap of the map
// entry, rejecting when new is already registered to a different voice.
func (r *Registry) Rename(oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.entries[oldName]
	if !ok {
		return ErrUnknownAgent
	}
	if existing, taken := r.entries[newName]; taken && existing != id {
		return ErrNameOccupied
	}
	delete(r.entries, oldName)
	r.entries[newName] = id
	return nil
}

// Release removes name's entry, returning its voice to the unassigned
// pool (used when a sibling reconciliation drops a previously-held
// name/voice pair).
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Snapshot is the §4.1 snapshot() operation, used by get_voice_registry.
type Snapshot struct {
	Registry       map[string]string
	AvailablePool  []string
	TotalAssigned  int
	TotalAvailable int
}

// Snapshot returns a point-in-time copy of the registry and the pool of
// voices not currently bound to any agent name.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	pool := r.unassignedLocked(AllIDsSorted())

	return Snapshot{
		Registry:       out,
		AvailablePool:  pool,
		TotalAssigned:  len(out),
		TotalAvailable: len(pool),
	}
}

// Size returns the number of registered agent names.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) isAssignedLocked(voiceID string) bool {
	for _, v := range r.entries {
		if v == voiceID {
			return true
		}
	}
	return false
}

func (r *Registry) unassignedLocked(candidates []string) []string {
	assigned := make(map[string]bool, len(r.entries))
	for _, v := range r.entries {
		assigned[v] = true
	}
	out := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if !assigned[id] {
			out = append(out, id)
		}
	}
	return out
}

// stableIndex hashes name into [0, n) with a hash that is stable across
// process restarts, unlike Python's hash() under PYTHONHASHSEED — this is
// the §8 testable property that resolve() must be "stable across
// restarts."
func stableIndex(name string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int(h.Sum32() % uint32(n))
}

// persisted is the on-disk shape merged into config.json.
type persisted struct {
	VoiceRegistry map[string]string `json:"voice_registry"`
}

// Save merges the in-memory registry into the config.json file under the
// "voice_registry" key, taking the file lock for the read-modify-write
// cycle per §9's snapshot-validate-reacquire guidance.
func (r *Registry) Save() error {
	if err := r.lock.Lock(); err != nil {
		return err
	}
	defer r.lock.Unlock()

	raw := map[string]interface{}{}
	if data, err := os.ReadFile(r.configPath); err == nil {
		_ = json.Unmarshal(data, &raw)
	}

	r.mu.RLock()
	snap := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		snap[k] = v
	}
	r.mu.RUnlock()

	raw["voice_registry"] = snap

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.configPath, data, 0644)
}

// Load re-hydrates the registry from config.json, treating a missing or
// malformed file as an empty registry.
func (r *Registry) Load() error {
	if err := r.lock.Lock(); err != nil {
		return err
	}
	defer r.lock.Unlock()

	data, err := os.ReadFile(r.configPath)
	if err != nil {
		return nil // missing file -> empty registry
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil // malformed -> empty registry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, id := range p.VoiceRegistry {
		if IsValid(id) {
			r.entries[name] = id
		}
	}
	return nil
}
