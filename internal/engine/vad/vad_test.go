package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentFrame(n int) []float32 { return make([]float32, n) }

func loudFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.9
	}
	return f
}

func TestFakeSilenceScoresZero(t *testing.T) {
	v := NewFake()
	prob, carry, err := v.Process(silentFrame(FrameSize), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, prob)
	assert.Len(t, carry, CarrySize)
}

func TestFakeSpeechScoresOne(t *testing.T) {
	v := NewFake()
	prob, _, err := v.Process(loudFrame(FrameSize), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, prob)
}

func TestRMSRisesWithEnergy(t *testing.T) {
	v := NewRMS(0.3, 16000)
	silentProb, carry, err := v.Process(silentFrame(FrameSize), nil)
	require.NoError(t, err)

	loudProb, _, err := v.Process(loudFrame(FrameSize), carry)
	require.NoError(t, err)

	assert.Greater(t, loudProb, silentProb)
}

func TestRMSProbabilityStaysInUnitRange(t *testing.T) {
	v := NewRMS(0.05, 16000)
	carry := []float32(nil)
	for i := 0; i < 5; i++ {
		prob, nextCarry, err := v.Process(loudFrame(FrameSize), carry)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, prob, 0.0)
		assert.LessOrEqual(t, prob, 1.0)
		carry = nextCarry
	}
}

func TestRMSResetClearsSmoothing(t *testing.T) {
	v := NewRMS(0.3, 16000)
	_, carry, _ := v.Process(loudFrame(FrameSize), nil)
	v.Reset()
	resetProb, _, err := v.Process(silentFrame(FrameSize), carry)
	require.NoError(t, err)
	assert.Less(t, resetProb, 0.05)
}

func TestSampleRateReportsConfiguredValue(t *testing.T) {
	v := NewRMS(0.3, 16000)
	assert.Equal(t, 16000, v.SampleRate())
}
