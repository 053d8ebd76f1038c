// Package wakeword defines the wake-word detection adapter contract
// (§6): feed it raw 16-bit PCM frames, get back a single streaming
// boolean hit once the configured phrase is recognized.
package wakeword

// Provider is the narrow wake-word trait.
type Provider interface {
	// Name identifies the wake-word model in use (e.g. "okay_nabu").
	Name() string
	// ProcessStreaming feeds one frame of little-endian 16-bit PCM and
	// reports whether the wake phrase was just detected.
	ProcessStreaming(frame []byte) (bool, error)
	Close() error
}
