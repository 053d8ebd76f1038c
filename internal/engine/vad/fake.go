package vad

// Fake is a deterministic VAD used by tests: probability is 1 whenever
// any sample in the frame exceeds FixedThreshold in magnitude, else 0.
type Fake struct {
	FixedThreshold float64
	SampleRateHz   int
	resetCount     int
}

func NewFake() *Fake {
	return &Fake{FixedThreshold: 0.1, SampleRateHz: 16000}
}

func (f *Fake) Process(frame []float32, carry []float32) (float64, []float32, error) {
	speech := false
	for _, s := range frame {
		v := float64(s)
		if v < 0 {
			v = -v
		}
		if v > f.FixedThreshold {
			speech = true
			break
		}
	}

	var nextCarry []float32
	if len(frame) >= CarrySize {
		nextCarry = append([]float32(nil), frame[len(frame)-CarrySize:]...)
	} else {
		nextCarry = append([]float32(nil), frame...)
	}

	if speech {
		return 1, nextCarry, nil
	}
	return 0, nextCarry, nil
}

func (f *Fake) Reset()                         { f.resetCount++ }
func (f *Fake) Close() error                   { return nil }
func (f *Fake) SetThreshold(threshold float64) { f.FixedThreshold = threshold }
func (f *Fake) SampleRate() int                { return f.SampleRateHz }
