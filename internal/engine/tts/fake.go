package tts

import "context"

// Fake is a deterministic in-memory synthesis engine used by tests: it
// never touches disk or a subprocess, and its output length is a pure
// function of the input text so assertions about "played audio equals
// the concatenation of per-chunk syntheses" (§8) can be made exactly.
type Fake struct {
	SampleRate int // defaults to 24000 if zero
}

// NewFake returns a Fake with the default Kokoro-matching sample rate.
func NewFake() *Fake {
	return &Fake{SampleRate: 24000}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Synthesize(_ context.Context, _ string, text string, speed float64) (Result, error) {
	if text == "" {
		return Result{}, ErrEmptyText
	}
	if speed <= 0 {
		speed = 1.0
	}
	rate := f.SampleRate
	if rate == 0 {
		rate = 24000
	}
	// One sample per input character, scaled inversely by speed so a
	// faster request yields proportionally less audio, matching the
	// real contract's "honour speed as a multiplicative rate."
	n := int(float64(len(text)) / speed)
	if n == 0 {
		n = 1
	}
	pcm := make([]float32, n)
	for i := range pcm {
		pcm[i] = float32(text[i%len(text)]) / 255.0
	}
	return Result{PCM: pcm, SampleRate: rate}, nil
}

func (f *Fake) Close() error { return nil }
