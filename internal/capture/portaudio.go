package capture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortaudioSource streams mono float32 frames from the default input
// device, grounded on the gordonklaus/portaudio indirect dependency
// pulled in by the pack's Yuki933293-D11_APP module — the only real,
// fetchable Go microphone-capture binding the retrieved pack names.
type PortaudioSource struct {
	stream     *portaudio.Stream
	buf        []float32
	sampleRate int
	frames     chan []float32

	mu     sync.Mutex
	closed bool
}

// NewPortaudioSource opens the default input device at sampleRate,
// delivering frameSize-sample mono buffers.
func NewPortaudioSource(sampleRate, frameSize int) (*PortaudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("engine_unavailable: portaudio init: %w", err)
	}

	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("engine_unavailable: opening input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("engine_unavailable: starting input stream: %w", err)
	}

	s := &PortaudioSource{
		stream:     stream,
		buf:        buf,
		sampleRate: sampleRate,
		frames:     make(chan []float32),
	}
	go s.pump()
	return s, nil
}

func (s *PortaudioSource) pump() {
	defer close(s.frames)
	for {
		if err := s.stream.Read(); err != nil {
			return
		}
		frame := make([]float32, len(s.buf))
		copy(frame, s.buf)

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.frames <- frame
	}
}

func (s *PortaudioSource) Frames() <-chan []float32 { return s.frames }

func (s *PortaudioSource) SampleRate() int { return s.sampleRate }

func (s *PortaudioSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.stream.Stop()
	if cerr := s.stream.Close(); cerr != nil && err == nil {
		err = cerr
	}
	portaudio.Terminate()
	return err
}
