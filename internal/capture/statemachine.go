package capture

import (
	"context"
	"time"

	"github.com/shshalom/voicesmith-mcp/internal/engine/vad"
)

// Outcome is how a Record call ended.
type Outcome int

const (
	Completed Outcome = iota
	Timeout
	NoSpeech
	Cancelled
)

// Result is the concatenated capture plus how it ended.
type Result struct {
	PCM            []float32
	SpeechDetected bool
	Outcome        Outcome
}

// Options parameterises the shared WaitingForSpeech/Recording/
// Finalising state machine for its two callers: the listen pipeline
// (no NoSpeechTimeout — §4.4's single `timeout` covers
// WaitingForSpeech) and the wake-word listener's post-trigger
// recording (both RecordingTimeout and NoSpeechTimeout, per
// wake_listener.py's _handle_wake_detected).
type Options struct {
	// Threshold is the VAD probability at which WaitingForSpeech
	// switches to Recording.
	Threshold float64
	// SilenceThreshold is how long a run of sub-threshold frames after
	// speech has started triggers Finalising.
	SilenceThreshold time.Duration
	// RecordingTimeout bounds the whole operation from the first
	// frame, whether or not speech has started.
	RecordingTimeout time.Duration
	// NoSpeechTimeout, if non-zero, aborts early with NoSpeech if no
	// speech has been detected by this elapsed time — strictly
	// tighter than RecordingTimeout.
	NoSpeechTimeout time.Duration
}

type phase int

const (
	waitingForSpeech phase = iota
	recording
	finalising
)

// Record drives src through the VAD-gated capture state machine until
// it finalises, times out, detects no speech, or ctx is cancelled.
func Record(ctx context.Context, src Source, detector vad.Provider, opts Options) (Result, error) {
	detector.Reset()

	var (
		buf             []float32
		carry           []float32
		ph              = waitingForSpeech
		speechDetected  bool
		silenceDuration time.Duration
		start           = time.Now()
	)

	frameDuration := func(n int) time.Duration {
		return time.Duration(float64(n)/float64(src.SampleRate())*1000) * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			return Result{PCM: buf, SpeechDetected: speechDetected, Outcome: Cancelled}, nil
		case frame, ok := <-src.Frames():
			if !ok {
				return Result{PCM: buf, SpeechDetected: speechDetected, Outcome: Cancelled}, nil
			}

			elapsed := time.Since(start)
			if elapsed >= opts.RecordingTimeout {
				if !speechDetected {
					return Result{Outcome: Timeout}, nil
				}
				return Result{PCM: buf, SpeechDetected: true, Outcome: Completed}, nil
			}
			if ph == waitingForSpeech && opts.NoSpeechTimeout > 0 && elapsed >= opts.NoSpeechTimeout {
				return Result{Outcome: NoSpeech}, nil
			}

			probability, nextCarry, err := detector.Process(frame, carry)
			if err != nil {
				return Result{}, err
			}
			carry = nextCarry

			isSpeech := probability >= opts.Threshold

			switch ph {
			case waitingForSpeech:
				if isSpeech {
					ph = recording
					speechDetected = true
					buf = append(buf, frame...)
				}
			case recording:
				buf = append(buf, frame...)
				if isSpeech {
					silenceDuration = 0
				} else {
					silenceDuration += frameDuration(len(frame))
					if silenceDuration >= opts.SilenceThreshold {
						ph = finalising
					}
				}
			}

			if ph == finalising {
				return Result{PCM: buf, SpeechDetected: true, Outcome: Completed}, nil
			}
		}
	}
}
