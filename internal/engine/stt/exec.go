package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os/exec"
)

// ExecAdapter shells out to a configured external transcription binary,
// mirroring the way the original implementation wraps faster-whisper
// behind a thin process boundary. PCM is written to stdin as a 4-byte
// little-endian sample rate followed by raw 32-bit little-endian float
// samples; the binary writes a single JSON object {"text":...,
// "avg_logprob":...} to stdout.
type ExecAdapter struct {
	Command   string
	ModelPath string
	Language  string
}

func NewExecAdapter(command, modelPath, language string) *ExecAdapter {
	return &ExecAdapter{Command: command, ModelPath: modelPath, Language: language}
}

func (e *ExecAdapter) Name() string { return "whisper-exec" }

type execOutput struct {
	Text       string  `json:"text"`
	AvgLogProb float64 `json:"avg_logprob"`
}

func (e *ExecAdapter) Transcribe(ctx context.Context, pcm []float32, sampleRate int) (Result, error) {
	if e.Command == "" {
		return Result{}, fmt.Errorf("engine_unavailable: no transcription command configured")
	}

	var buf bytes.Buffer
	var rateBuf [4]byte
	binary.LittleEndian.PutUint32(rateBuf[:], uint32(sampleRate))
	buf.Write(rateBuf[:])
	if err := binary.Write(&buf, binary.LittleEndian, pcm); err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, e.Command, "--model", e.ModelPath, "--language", e.Language)
	cmd.Stdin = &buf

	out, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("transcription failed: %w", err)
	}

	var parsed execOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Result{}, fmt.Errorf("transcription failed: %w", err)
	}
	return Result{Text: parsed.Text, AvgLogProb: parsed.AvgLogProb}, nil
}

func (e *ExecAdapter) Close() error { return nil }
