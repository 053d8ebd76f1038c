package capture

import "time"

// FakeSource replays a fixed sequence of frames, then closes — useful
// for driving the state machine deterministically in tests.
type FakeSource struct {
	rate   int
	ch     chan []float32
	closed chan struct{}
}

// NewFakeSource starts delivering frames immediately on a goroutine;
// the channel closes once all frames are sent or Close is called.
func NewFakeSource(sampleRate int, frames [][]float32) *FakeSource {
	return NewFakeSourceWithDelay(sampleRate, frames, 0)
}

// NewFakeSourceWithDelay is NewFakeSource but pauses delay between
// each frame send, letting tests exercise wall-clock timeout paths
// deterministically.
func NewFakeSourceWithDelay(sampleRate int, frames [][]float32, delay time.Duration) *FakeSource {
	s := &FakeSource{
		rate:   sampleRate,
		ch:     make(chan []float32),
		closed: make(chan struct{}),
	}
	go func() {
		defer close(s.ch)
		for _, f := range frames {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-s.closed:
					return
				}
			}
			select {
			case s.ch <- f:
			case <-s.closed:
				return
			}
		}
	}()
	return s
}

func (s *FakeSource) Frames() <-chan []float32 { return s.ch }
func (s *FakeSource) SampleRate() int          { return s.rate }
func (s *FakeSource) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}
