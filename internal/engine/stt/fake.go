package stt

import (
	"context"
	"fmt"
)

// Fake is a deterministic transcription engine used by tests: it reports
// the number of samples it received as its "text," which lets tests
// assert exactly what the listen pipeline handed it without any audio
// decoding machinery.
type Fake struct {
	// FixedText, if non-empty, is returned verbatim instead of the
	// sample-count placeholder.
	FixedText  string
	AvgLogProb float64
}

func NewFake() *Fake {
	return &Fake{AvgLogProb: -0.1}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(_ context.Context, pcm []float32, _ int) (Result, error) {
	text := f.FixedText
	if text == "" {
		text = fmt.Sprintf("<%d samples>", len(pcm))
	}
	return Result{Text: text, AvgLogProb: f.AvgLogProb}, nil
}

func (f *Fake) Close() error { return nil }
