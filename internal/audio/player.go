package audio

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PlaybackResult mirrors the original's PlaybackResult: success plus
// timing, or an error string for a non-zero player exit code.
type PlaybackResult struct {
	Success    bool
	DurationMs float64
	Error      string
}

// Player plays float32 PCM samples through an external player process
// (mpv, afplay, aplay), the same externally-delegated approach the
// original's AudioPlayer takes rather than linking an in-process audio
// output library.
type Player struct {
	command string

	mu      sync.Mutex
	process *os.Process
}

// NewPlayer resolves preferredCommand to an available player binary,
// falling back by platform the way the original does when the
// configured command is not on PATH.
func NewPlayer(preferredCommand string) *Player {
	command := preferredCommand
	if !commandExists(command) {
		switch runtime.GOOS {
		case "darwin":
			command = "afplay"
		case "linux":
			command = "aplay"
		}
	}
	return &Player{command: command}
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

func buildArgs(command, path string) []string {
	switch command {
	case "mpv":
		return []string{"--no-terminal", "--no-video", path}
	default:
		return []string{path}
	}
}

// Play writes samples to a temporary WAV file and blocks until the
// player process exits.
func (p *Player) Play(samples []float32, sampleRate int) (PlaybackResult, error) {
	tmpPath, err := writeTempWAV(samples, sampleRate)
	if err != nil {
		return PlaybackResult{}, fmt.Errorf("audio_error: %w", err)
	}
	defer os.Remove(tmpPath)

	cmd := exec.Command(p.command, buildArgs(p.command, tmpPath)...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return PlaybackResult{}, fmt.Errorf("audio_error: starting %s: %w", p.command, err)
	}

	p.mu.Lock()
	p.process = cmd.Process
	p.mu.Unlock()

	waitErr := cmd.Wait()
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0

	p.mu.Lock()
	p.process = nil
	p.mu.Unlock()

	if waitErr != nil {
		return PlaybackResult{
			Success:    false,
			DurationMs: durationMs,
			Error:      waitErr.Error(),
		}, nil
	}
	return PlaybackResult{Success: true, DurationMs: durationMs}, nil
}

// Stop kills any in-flight playback, returning true if something was
// actually stopped.
func (p *Player) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.process == nil {
		return false
	}
	_ = p.process.Kill()
	p.process = nil
	return true
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.process != nil
}

func writeTempWAV(samples []float32, sampleRate int) (string, error) {
	f, err := os.CreateTemp("", "voicesmith-*.wav")
	if err != nil {
		return "", err
	}
	path := f.Name()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	ints := make([]int, len(samples))
	for i, s := range samples {
		v := s
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		ints[i] = int(v * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
