package audio

import (
	"context"
	"time"

	"github.com/gofrs/flock"
)

// PlaybackLock is the cross-process advisory lock that serializes audio
// playback across every sibling voicesmith-mcp process sharing a
// machine, grounded on the same gofrs/flock approach used for the
// session registry: one file, one process plays at a time.
type PlaybackLock struct {
	lock *flock.Flock
}

func NewPlaybackLock(path string) *PlaybackLock {
	return &PlaybackLock{lock: flock.New(path)}
}

// Acquire blocks until the lock is held or ctx is done.
func (p *PlaybackLock) Acquire(ctx context.Context) (func(), error) {
	for {
		ok, err := p.lock.TryLock()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { _ = p.lock.Unlock() }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}
