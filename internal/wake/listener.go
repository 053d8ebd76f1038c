// Package wake implements the background wake-word worker of §4.5: a
// dedicated goroutine that owns the microphone while idle-listening,
// yields it cooperatively to the listen pipeline on request, and on
// trigger records, transcribes, and routes text to a sibling session.
package wake

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shshalom/voicesmith-mcp/internal/audio"
	"github.com/shshalom/voicesmith-mcp/internal/capture"
	"github.com/shshalom/voicesmith-mcp/internal/engine/stt"
	"github.com/shshalom/voicesmith-mcp/internal/engine/vad"
	"github.com/shshalom/voicesmith-mcp/internal/engine/wakeword"
)

// State is one of §4.5's five worker states.
type State int

const (
	Disabled State = iota
	Listening
	Recording
	Injecting
	Yielded
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Recording:
		return "recording"
	case Injecting:
		return "injecting"
	case Yielded:
		return "yielded"
	default:
		return "disabled"
	}
}

// Listener is the wake-word worker. Construct with its dependencies
// wired, then Start/Stop.
type Listener struct {
	// ModelID selects the wake-word model. There is no separate
	// sensitivity knob: the underlying microwakeword model's
	// ProcessStreaming reports a bare detected/not-detected boolean, with
	// its trigger sensitivity baked into the model itself rather than
	// exposed as a runtime-adjustable score threshold.
	ModelID          string
	SampleRate       int
	WakeFrameSize    int // 1280 samples = 80ms at 16kHz, per §4.5
	ListenFrameSize  int // 512, same as §4.4
	RecordingTimeout time.Duration
	NoSpeechTimeout  time.Duration
	SilenceThreshold time.Duration

	Detector    vad.Provider
	Transcriber stt.Provider
	Player      *audio.Player
	Router      *Router
	Log         zerolog.Logger

	NewWakeSource   func() (capture.Source, error)
	NewRecordSource func() (capture.Source, error)
	LoadModel       func(modelID string) (wakeword.Provider, error)

	mu             sync.Mutex
	state          State
	provider       wakeword.Provider
	stopCh         chan struct{}
	wg             sync.WaitGroup
	yieldRequested bool
	yieldCond      *sync.Cond
}

func NewListener() *Listener {
	l := &Listener{state: Disabled}
	l.yieldCond = sync.NewCond(&l.mu)
	return l
}

func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Start spawns the listen loop if it is not already running.
func (l *Listener) Start() {
	l.mu.Lock()
	if l.state != Disabled {
		l.mu.Unlock()
		return
	}
	l.state = Listening
	l.stopCh = make(chan struct{})
	l.mu.Unlock()

	l.wg.Add(1)
	go l.run()
}

// Stop halts the worker and releases its stream.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.state == Disabled {
		l.mu.Unlock()
		return
	}
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()
	l.setState(Disabled)
}

// RequestYield implements listen.YieldCoordinator: it asks the worker
// to release the mic and waits up to 500ms for the Yielded state to
// become observable.
func (l *Listener) RequestYield() bool {
	l.mu.Lock()
	if l.state == Disabled {
		l.mu.Unlock()
		return true
	}
	l.yieldRequested = true
	l.yieldCond.Broadcast()
	deadline := time.Now().Add(500 * time.Millisecond)
	for l.state != Yielded && time.Now().Before(deadline) {
		l.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		l.mu.Lock()
	}
	yielded := l.state == Yielded
	l.mu.Unlock()
	return yielded
}

// Reclaim implements listen.YieldCoordinator: it clears the yield
// request, letting the worker resume listening.
func (l *Listener) Reclaim() {
	l.mu.Lock()
	l.yieldRequested = false
	l.yieldCond.Broadcast()
	l.mu.Unlock()
}

func (l *Listener) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		l.mu.Lock()
		if l.yieldRequested {
			l.state = Yielded
			for l.yieldRequested {
				l.yieldCond.Wait()
				select {
				case <-l.stopCh:
					l.mu.Unlock()
					return
				default:
				}
			}
			l.state = Listening
		}
		l.mu.Unlock()

		if l.provider == nil {
			provider, err := l.LoadModel(l.ModelID)
			if err != nil {
				l.Log.Error().Err(err).Msg("wake word model load failed")
				l.setState(Disabled)
				return
			}
			l.provider = provider
		}

		src, err := l.NewWakeSource()
		if err != nil {
			l.Log.Error().Err(err).Msg("opening wake-word stream failed")
			time.Sleep(time.Second)
			continue
		}

		detected := l.listenForWake(src)
		src.Close()
		if !detected {
			continue
		}

		l.handleWakeDetected()
	}
}

// listenForWake reads frames until the wake model fires, a yield is
// requested, or the worker is stopped.
func (l *Listener) listenForWake(src capture.Source) bool {
	for {
		l.mu.Lock()
		yieldNow := l.yieldRequested
		l.mu.Unlock()
		if yieldNow {
			return false
		}

		select {
		case <-l.stopCh:
			return false
		case frame, ok := <-src.Frames():
			if !ok {
				return false
			}
			hit, err := l.provider.ProcessStreaming(toInt16LE(frame))
			if err != nil {
				l.Log.Error().Err(err).Msg("wake word scoring failed")
				l.setState(Disabled)
				return false
			}
			if hit {
				return true
			}
		}
	}
}

// handleWakeDetected implements §4.5's Listening→Recording→Injecting
// edge, consolidated onto the shared internal/capture state machine
// (SUPPLEMENTED item 3) instead of the original's duplicated loop.
func (l *Listener) handleWakeDetected() {
	l.setState(Recording)

	if l.Player != nil {
		_, _ = l.Player.Play(audio.Beep(120, 1046, l.SampleRate), l.SampleRate)
	}

	src, err := l.NewRecordSource()
	if err != nil {
		l.Log.Error().Err(err).Msg("opening recording stream failed")
		l.setState(Listening)
		return
	}
	defer src.Close()

	result, err := capture.Record(context.Background(), src, l.Detector, capture.Options{
		Threshold:        0.3,
		SilenceThreshold: l.SilenceThreshold,
		RecordingTimeout: l.RecordingTimeout,
		NoSpeechTimeout:  l.NoSpeechTimeout,
	})
	if err != nil || result.Outcome != capture.Completed {
		l.setState(Listening)
		return
	}

	transcription, err := l.Transcriber.Transcribe(context.Background(), result.PCM, l.SampleRate)
	if err != nil {
		l.Log.Error().Err(err).Msg("wake-word transcription failed")
		l.setState(Listening)
		return
	}
	if transcription.Text == "" {
		l.setState(Listening)
		return
	}

	l.setState(Injecting)
	if err := l.Router.Route(transcription.Text); err != nil {
		l.Log.Warn().Err(err).Msg("routing wake-word transcription failed")
	}
	l.setState(Listening)
}

// toInt16LE converts a float32 frame in [-1,1] to little-endian 16-bit
// PCM bytes, the wire shape §6 specifies for the wake-word adapter.
func toInt16LE(frame []float32) []byte {
	out := make([]byte, len(frame)*2)
	for i, s := range frame {
		v := s
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return out
}
