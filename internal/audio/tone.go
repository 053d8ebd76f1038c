package audio

import "math"

// Beep synthesises a short sine-wave cue used as the listen pipeline's
// ready sound (§4.4 step 4) and the wake-word worker's post-trigger
// cue (§4.5), replacing the original's dependency on a bundled/system
// sound file that is not guaranteed to exist on every platform.
func Beep(durationMs, freqHz, sampleRate int) []float32 {
	n := sampleRate * durationMs / 1000
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = float32(0.2 * math.Sin(2*math.Pi*float64(freqHz)*t))
	}
	return samples
}
