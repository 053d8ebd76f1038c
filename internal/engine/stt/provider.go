// Package stt defines the transcription engine adapter contract (§6):
// given a float PCM buffer at 16kHz, return text and a confidence
// scalar.
package stt

import "context"

// Result is the transcription output. AvgLogProb is the raw model
// average log-probability (−∞, 0]; Confidence is exp(AvgLogProb) clamped
// to [0,1], computed by the caller per §4.4 step 7.
type Result struct {
	Text       string
	AvgLogProb float64
}

// Provider is the narrow transcription trait.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, pcm []float32, sampleRate int) (Result, error)
	Close() error
}
