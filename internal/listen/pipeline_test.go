package listen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shshalom/voicesmith-mcp/internal/capture"
	"github.com/shshalom/voicesmith-mcp/internal/engine/stt"
	"github.com/shshalom/voicesmith-mcp/internal/engine/vad"
)

func silent(n int) []float32 { return make([]float32, n) }
func loud(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.9
	}
	return f
}

func newTestPipeline(frames [][]float32, muted bool) *Pipeline {
	return &Pipeline{
		Arbiter:     &Arbiter{},
		Detector:    vad.NewFake(),
		Transcriber: stt.NewFake(),
		SampleRate:  16000,
		FrameSize:   vad.FrameSize,
		Muted:       func() bool { return muted },
		NewSource: func() (capture.Source, error) {
			return capture.NewFakeSource(16000, frames), nil
		},
	}
}

func TestListenReturnsMutedWhenMuted(t *testing.T) {
	p := newTestPipeline(nil, true)
	_, outcome, err := p.Listen(context.Background(), time.Second, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Muted, outcome)
}

func TestListenReturnsMicBusyWhenAlreadyActive(t *testing.T) {
	p := newTestPipeline(nil, false)
	require.True(t, p.Arbiter.TryAcquire())

	_, outcome, err := p.Listen(context.Background(), time.Second, time.Second)
	require.NoError(t, err)
	assert.Equal(t, MicBusy, outcome)
}

func TestListenCompletesWithTranscription(t *testing.T) {
	frames := [][]float32{
		silent(vad.FrameSize),
		loud(vad.FrameSize),
		loud(vad.FrameSize),
		silent(vad.FrameSize),
		silent(vad.FrameSize),
	}
	p := newTestPipeline(frames, false)

	result, outcome, err := p.Listen(context.Background(), 5*time.Second, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Completed, outcome)
	assert.NotEmpty(t, result.Text)
	assert.False(t, p.Arbiter.active)
}

func TestListenTimesOutWithNoSpeech(t *testing.T) {
	frames := make([][]float32, 0)
	for i := 0; i < 5; i++ {
		frames = append(frames, silent(vad.FrameSize))
	}
	p := newTestPipeline(nil, false)
	p.NewSource = func() (capture.Source, error) {
		return capture.NewFakeSourceWithDelay(16000, frames, 5*time.Millisecond), nil
	}

	_, outcome, err := p.Listen(context.Background(), 1*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, TimedOut, outcome)
}
