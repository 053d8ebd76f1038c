package vad

import "math"

// RMS is a pure-Go, energy-based real VAD adapter: no model weights, no
// cgo. Grounded on the teacher's internal/audio/vad.go RMS approach and
// other_examples/NeboLoop-nebo's hysteresis-based RMSVAD. Chosen over a
// Silero/ONNX binding because the only such binding anywhere in the
// retrieved pack (maxhawkins/go-webrtc-vad) is wired through a local
// `replace` directive to a vendored tree that does not exist outside its
// source repo — fabricating that dependency here would defeat the
// purpose; this adapter is real, fetchable, and compiles standalone.
type RMS struct {
	threshold  float64
	sampleRate int
	smoothed   float64
}

// NewRMS returns an RMS VAD adapter at the given threshold in [0,1] and
// sample rate (16000 per the listen-pipeline contract).
func NewRMS(threshold float64, sampleRate int) *RMS {
	return &RMS{threshold: threshold, sampleRate: sampleRate}
}

func (r *RMS) Process(frame []float32, carry []float32) (float64, []float32, error) {
	combined := make([]float32, 0, len(carry)+len(frame))
	combined = append(combined, carry...)
	combined = append(combined, frame...)

	var sumSq float64
	for _, s := range combined {
		sumSq += float64(s) * float64(s)
	}
	rms := 0.0
	if len(combined) > 0 {
		rms = math.Sqrt(sumSq / float64(len(combined)))
	}

	// Exponential smoothing to avoid single-frame spikes flipping state,
	// mirroring the teacher's smoothing-history approach without keeping
	// an unbounded ring buffer.
	const alpha = 0.3
	r.smoothed = alpha*rms + (1-alpha)*r.smoothed

	probability := r.smoothed / (r.threshold * 2)
	if probability > 1 {
		probability = 1
	}
	if probability < 0 {
		probability = 0
	}

	var nextCarry []float32
	if len(frame) >= CarrySize {
		nextCarry = append([]float32(nil), frame[len(frame)-CarrySize:]...)
	} else {
		nextCarry = append([]float32(nil), frame...)
	}

	return probability, nextCarry, nil
}

func (r *RMS) Reset()                         { r.smoothed = 0 }
func (r *RMS) Close() error                   { return nil }
func (r *RMS) SetThreshold(threshold float64) { r.threshold = threshold }
func (r *RMS) SampleRate() int                { return r.sampleRate }
