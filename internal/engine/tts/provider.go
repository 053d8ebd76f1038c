// Package tts defines the synthesis engine adapter contract (§6): given
// (voice id, text, speed) produce a PCM buffer and sample rate.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when Synthesize is called with empty text, per
// §6's "must tolerate empty text by raising an error."
var ErrEmptyText = errors.New("empty text")

// Result is the synthesis output.
type Result struct {
	PCM        []float32
	SampleRate int
}

// Provider is the narrow synthesis trait. Two implementations exist:
// Fake (deterministic, used by every pipeline test) and the real exec-
// shelling adapter in exec.go.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, voiceID, text string, speed float64) (Result, error)
	Close() error
}
