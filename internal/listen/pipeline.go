package listen

import (
	"context"
	"math"
	"time"

	"github.com/shshalom/voicesmith-mcp/internal/audio"
	"github.com/shshalom/voicesmith-mcp/internal/capture"
	"github.com/shshalom/voicesmith-mcp/internal/engine/stt"
	"github.com/shshalom/voicesmith-mcp/internal/engine/vad"
)

// Outcome is how a Listen call ended, matching §6's listen error kinds.
type Outcome int

const (
	Completed Outcome = iota
	TimedOut
	Cancelled
	MicBusy
	Muted
)

// Result carries the successful-transcription shape of §6's `listen`
// response.
type Result struct {
	Text            string
	Confidence      float64
	DurationMs      float64
	TranscriptionMs float64
}

// Pipeline implements §4.4: mic arbiter acquisition, wake-word yield
// negotiation, a ready cue, the shared capture state machine, and
// transcription.
type Pipeline struct {
	Arbiter     *Arbiter
	Wake        YieldCoordinator // nil when wake-word is disabled
	Detector    vad.Provider
	Transcriber stt.Provider
	Player      *audio.Player
	SampleRate  int
	FrameSize   int

	// Muted reports the current process-wide mute flag.
	Muted func() bool
	// NewSource opens a fresh capture source for one listen call.
	NewSource func() (capture.Source, error)
	// SkipReadyCue suppresses the beep — used by the HTTP push-to-talk
	// endpoint, which already gave its own cue (§4.4 step 4).
	SkipReadyCue bool
}

// Listen runs one §4.4 operation end to end.
func (p *Pipeline) Listen(ctx context.Context, timeout, silenceThreshold time.Duration) (Result, Outcome, error) {
	if p.Muted != nil && p.Muted() {
		return Result{}, Muted, nil
	}
	if !p.Arbiter.TryAcquire() {
		return Result{}, MicBusy, nil
	}
	defer p.Arbiter.Release()

	if p.Wake != nil {
		p.Wake.RequestYield()
		defer p.Wake.Reclaim()
	}

	if !p.SkipReadyCue && p.Player != nil {
		_, _ = p.Player.Play(audio.Beep(120, 880, p.SampleRate), p.SampleRate)
	}

	src, err := p.NewSource()
	if err != nil {
		return Result{}, Cancelled, err
	}
	defer src.Close()

	start := time.Now()
	captured, err := capture.Record(ctx, src, p.Detector, capture.Options{
		Threshold:        0.3,
		SilenceThreshold: silenceThreshold,
		RecordingTimeout: timeout,
	})
	if err != nil {
		return Result{}, Cancelled, err
	}

	switch captured.Outcome {
	case capture.Timeout, capture.NoSpeech:
		return Result{}, TimedOut, nil
	case capture.Cancelled:
		return Result{}, Cancelled, nil
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0

	transcribeStart := time.Now()
	transcription, err := p.Transcriber.Transcribe(ctx, captured.PCM, p.SampleRate)
	if err != nil {
		return Result{}, Cancelled, err
	}
	transcriptionMs := float64(time.Since(transcribeStart).Microseconds()) / 1000.0

	confidence := math.Exp(transcription.AvgLogProb)
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return Result{
		Text:            transcription.Text,
		Confidence:      confidence,
		DurationMs:      durationMs,
		TranscriptionMs: transcriptionMs,
	}, Completed, nil
}
