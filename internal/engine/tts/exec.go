package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
)

// ExecAdapter shells out to a configured external synthesis binary, the
// same way the original implementation wraps the third-party kokoro-onnx
// model behind a thin process boundary — the model's internals are
// explicitly out of scope (§1); only the (voice_id, text, speed) ->
// (pcm, sample_rate) contract matters here.
//
// Wire protocol: the binary receives text on stdin and the arguments
// "--voice <id> --speed <speed> --model <model_path> --voices
// <voices_path>"; it writes a 4-byte little-endian sample rate followed
// by raw 32-bit little-endian float PCM samples to stdout.
type ExecAdapter struct {
	Command    string
	ModelPath  string
	VoicesPath string
}

// NewExecAdapter returns a real synthesis adapter bound to an external
// command.
func NewExecAdapter(command, modelPath, voicesPath string) *ExecAdapter {
	return &ExecAdapter{Command: command, ModelPath: modelPath, VoicesPath: voicesPath}
}

func (e *ExecAdapter) Name() string { return "kokoro-exec" }

func (e *ExecAdapter) Synthesize(ctx context.Context, voiceID, text string, speed float64) (Result, error) {
	if text == "" {
		return Result{}, ErrEmptyText
	}
	if e.Command == "" {
		return Result{}, fmt.Errorf("engine_unavailable: no synthesis command configured")
	}

	cmd := exec.CommandContext(ctx, e.Command,
		"--voice", voiceID,
		"--speed", fmt.Sprintf("%.3f", speed),
		"--model", e.ModelPath,
		"--voices", e.VoicesPath,
	)
	cmd.Stdin = bytes.NewReader([]byte(text))

	out, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("synthesis failed: %w", err)
	}
	if len(out) < 4 {
		return Result{}, fmt.Errorf("synthesis failed: short output")
	}

	sampleRate := binary.LittleEndian.Uint32(out[:4])
	body := out[4:]
	n := len(body) / 4
	pcm := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(body[i*4 : i*4+4])
		pcm[i] = math.Float32frombits(bits)
	}
	return Result{PCM: pcm, SampleRate: int(sampleRate)}, nil
}

func (e *ExecAdapter) Close() error { return nil }
