package wakeword

import (
	"fmt"

	"github.com/pmdroid/microwakeword"
)

// wakeWordModel is the subset of microwakeword's returned model type
// this adapter depends on, kept narrow so it is assignable without
// naming the library's concrete struct.
type wakeWordModel interface {
	ProcessStreaming(audioBytes []byte) (bool, error)
}

// Microwakeword wraps the real github.com/pmdroid/microwakeword builtin
// model set, grounded directly on
// other_examples/pmdroid-microwakeword__mic.go's FromBuiltin/
// ProcessStreaming usage.
type Microwakeword struct {
	modelID string
	model   wakeWordModel
}

func NewMicrowakeword(modelID string) (*Microwakeword, error) {
	model, err := microwakeword.FromBuiltin(modelID, microwakeword.DefaultRefractory)
	if err != nil {
		return nil, fmt.Errorf("engine_unavailable: loading wake word model %q: %w", modelID, err)
	}
	return &Microwakeword{modelID: modelID, model: model}, nil
}

func (m *Microwakeword) Name() string { return m.modelID }

func (m *Microwakeword) ProcessStreaming(frame []byte) (bool, error) {
	return m.model.ProcessStreaming(frame)
}

func (m *Microwakeword) Close() error { return nil }
