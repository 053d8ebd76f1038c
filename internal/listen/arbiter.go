package listen

import "sync"

// Arbiter guards against two concurrent `listen` operations within one
// process (the Listen request's "at most one in flight" invariant,
// §3). Mutual exclusion against the wake-word worker's physical device
// ownership is handled separately by YieldCoordinator, since the
// wake-word worker cooperates by releasing its own stream rather than
// contending on this same lock.
type Arbiter struct {
	mu     sync.Mutex
	active bool
}

// TryAcquire reports whether this call became the sole holder.
func (a *Arbiter) TryAcquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active {
		return false
	}
	a.active = true
	return true
}

func (a *Arbiter) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = false
}

// YieldCoordinator is implemented by the wake-word worker so the
// listen pipeline can ask it to release the physical microphone
// without either package importing the other.
type YieldCoordinator interface {
	// RequestYield asks the wake-word worker to pause and blocks until
	// it has (observable as the Yielded state) or the bound elapses.
	// Returns true if the worker yielded in time.
	RequestYield() bool
	// Reclaim clears the yield request, letting the worker resume.
	Reclaim()
}
