// Package sweep runs the periodic maintenance job §4.2's sweep()
// describes: drop dead-PID entries, drop entries whose HTTP side-channel
// has gone quiet past the orphan threshold, and persist the voice
// registry — on the same cron scheduling idiom the gateway uses for its
// own periodic jobs.
package sweep

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shshalom/voicesmith-mcp/internal/logging"
	"github.com/shshalom/voicesmith-mcp/internal/session"
	"github.com/shshalom/voicesmith-mcp/internal/voice"
)

// OrphanThreshold is §4.2's "unresponsive for longer than" bound: an
// alive process whose HTTP side-channel has stopped answering is
// considered stale even though its PID is still running.
const OrphanThreshold = 5 * time.Minute

// Sweeper owns the cron schedule and the per-PID last-responsive clock
// used to detect HTTP orphans.
type Sweeper struct {
	Sessions      *session.Registry
	VoiceRegistry *voice.Registry
	Log           *logging.Logger

	client *http.Client
	cron   *cron.Cron
	selfPID int

	mu        sync.Mutex
	lastSeen  map[int]time.Time
	staleSince map[int]time.Time
}

// New builds a Sweeper; Start schedules it to run every interval via
// cron's "@every" descriptor.
func New(sessions *session.Registry, registry *voice.Registry, log *logging.Logger) *Sweeper {
	return &Sweeper{
		Sessions:      sessions,
		VoiceRegistry: registry,
		Log:           log,
		client:        &http.Client{Timeout: 2 * time.Second},
		cron:          cron.New(),
		selfPID:       os.Getpid(),
		lastSeen:      make(map[int]time.Time),
		staleSince:    make(map[int]time.Time),
	}
}

// Start schedules the periodic sweep every interval (§4.7: "60 s") and
// starts the cron scheduler's goroutine.
func (s *Sweeper) Start(interval time.Duration) error {
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop drains the scheduler, waiting for any in-flight run to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// runOnce performs one sweep pass: PID-liveness sweep (inline in
// Snapshot), HTTP-orphan detection across siblings, and a voice-registry
// save.
func (s *Sweeper) runOnce() {
	entries, err := s.Sessions.Snapshot()
	if err != nil {
		s.Log.Error("sweep", "snapshot failed", err, nil)
		return
	}

	now := time.Now()
	alive := make(map[int]bool, len(entries))
	for _, e := range entries {
		alive[e.PID] = true
	}

	for _, e := range entries {
		if e.PID == s.selfPID || s.pingStatus(e.Port) {
			s.markResponsive(e.PID, now)
			continue
		}
		if s.orphaned(e.PID, now) {
			if err := s.Sessions.RemoveDead(e.PID); err != nil {
				s.Log.Error("sweep", "remove orphan failed", err, map[string]interface{}{"pid": e.PID})
				continue
			}
			s.VoiceRegistry.Release(e.Name)
			s.forget(e.PID)
			s.Log.Info("sweep", "removed http-orphaned session", map[string]interface{}{"pid": e.PID, "name": e.Name})
		}
	}
	s.forgetDead(alive)

	if err := s.VoiceRegistry.Save(); err != nil {
		s.Log.Error("sweep", "save voice registry failed", err, nil)
	}
}

func (s *Sweeper) pingStatus(port int) bool {
	resp, err := s.client.Get(fmt.Sprintf("http://127.0.0.1:%d/status", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// markResponsive records a successful ping and clears any stale-since
// clock, so a process that recovers mid-grace-period is never removed.
func (s *Sweeper) markResponsive(pid int, at time.Time) {
	s.mu.Lock()
	s.lastSeen[pid] = at
	delete(s.staleSince, pid)
	s.mu.Unlock()
}

func (s *Sweeper) forget(pid int) {
	s.mu.Lock()
	delete(s.lastSeen, pid)
	delete(s.staleSince, pid)
	s.mu.Unlock()
}

// forgetDead drops tracking state for PIDs no longer in the live set at
// all, so a reused PID doesn't inherit a stale clock.
func (s *Sweeper) forgetDead(alive map[int]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pid := range s.lastSeen {
		if !alive[pid] {
			delete(s.lastSeen, pid)
		}
	}
	for pid := range s.staleSince {
		if !alive[pid] {
			delete(s.staleSince, pid)
		}
	}
}

// orphaned reports whether pid's HTTP side-channel has been unresponsive
// for longer than OrphanThreshold. The first failed ping only starts the
// clock (a newly-registered sibling's HTTP server may not be up yet);
// only sustained failure past the threshold counts.
func (s *Sweeper) orphaned(pid int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	since, tracked := s.staleSince[pid]
	if !tracked {
		s.staleSince[pid] = now
		return false
	}
	return now.Sub(since) > OrphanThreshold
}
