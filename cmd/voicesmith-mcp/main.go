// Command voicesmith-mcp is the long-running per-editor-session voice
// coordination process: it registers itself in the cross-process session
// registry, wires the speech/listen/wake-word pipelines around whichever
// engine adapters are configured, and serves §4.6's tool surface over
// line-delimited JSON-RPC on stdio while a loopback HTTP side-channel
// answers liveness pings and sibling routing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shshalom/voicesmith-mcp/internal/audio"
	"github.com/shshalom/voicesmith-mcp/internal/capture"
	"github.com/shshalom/voicesmith-mcp/internal/config"
	"github.com/shshalom/voicesmith-mcp/internal/dispatcher"
	"github.com/shshalom/voicesmith-mcp/internal/engine/stt"
	"github.com/shshalom/voicesmith-mcp/internal/engine/tts"
	"github.com/shshalom/voicesmith-mcp/internal/engine/vad"
	"github.com/shshalom/voicesmith-mcp/internal/engine/wakeword"
	"github.com/shshalom/voicesmith-mcp/internal/httpapi"
	"github.com/shshalom/voicesmith-mcp/internal/listen"
	"github.com/shshalom/voicesmith-mcp/internal/logging"
	"github.com/shshalom/voicesmith-mcp/internal/session"
	"github.com/shshalom/voicesmith-mcp/internal/speech"
	"github.com/shshalom/voicesmith-mcp/internal/sweep"
	"github.com/shshalom/voicesmith-mcp/internal/voice"
	"github.com/shshalom/voicesmith-mcp/internal/wake"
)

const sweepInterval = 60 * time.Second

func main() {
	log, err := logging.New(logging.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("main", "starting voicesmith-mcp", nil)

	cfg, err := config.Load()
	if err != nil {
		log.Warn("main", "failed to load configuration, using defaults", map[string]interface{}{"error": err.Error()})
	}

	state := dispatcher.NewState(cfg, log)

	ttsProvider, sttProvider, err := buildEngineAdapters(cfg, log)
	if err != nil {
		log.Error("main", "no usable speech engines", err, nil)
		os.Exit(1)
	}
	state.TTS = ttsProvider
	state.STT = sttProvider
	state.VAD = vad.NewRMS(cfg.Audio.VADThreshold, cfg.Audio.SampleRate)

	stateDir, err := config.StateDir()
	if err != nil {
		log.Error("main", "failed to resolve state directory", err, nil)
		os.Exit(1)
	}
	configPath := filepath.Join(stateDir, "config.json")
	state.VoiceRegistry = voice.New(configPath)
	state.VoiceRegistry.Log = log.Component("voice")
	state.VoiceRegistry.Seed(cfg.VoiceRegistry)
	if err := state.VoiceRegistry.Load(); err != nil {
		log.Warn("main", "failed to load voice registry", map[string]interface{}{"error": err.Error()})
	}

	sessionsPath, err := config.SessionsPath()
	if err != nil {
		log.Error("main", "failed to resolve sessions path", err, nil)
		os.Exit(1)
	}
	state.Sessions = session.New(sessionsPath)

	preferredName := cfg.Main.LastVoiceName
	if preferredName == "" {
		preferredName = cfg.Main.AgentName
	}
	preferredVoice, _ := state.VoiceRegistry.Resolve(preferredName)
	tmuxSession := os.Getenv("VOICESMITH_TMUX")

	entry, err := state.Sessions.Register(preferredName, preferredVoice, cfg.HTTP.BasePort, tmuxSession)
	if err != nil {
		log.Error("main", "failed to register session", err, nil)
		os.Exit(1)
	}
	state.SetSelf(entry)
	if err := state.VoiceRegistry.Set(entry.Name, entry.VoiceID); err != nil {
		log.Warn("main", "failed to bind session voice", map[string]interface{}{"error": err.Error()})
	}
	log.Info("main", "registered session", map[string]interface{}{"name": entry.Name, "voice": entry.VoiceID, "port": entry.Port, "pid": entry.PID})

	lock := audio.NewPlaybackLock(config.AudioLockPath())
	player := audio.NewPlayer(cfg.Audio.PlayerCommand)

	state.Speech = speech.NewPipeline(state.VoiceRegistry, state.TTS, lock, player, state.SessionName, state.SessionVoice, state.Muted)
	state.Speech.Queue.Start()

	arbiter := &listen.Arbiter{}
	newListenSource := func() (capture.Source, error) {
		return capture.NewPortaudioSource(cfg.Audio.SampleRate, cfg.Audio.FrameSize)
	}

	var yieldCoordinator listen.YieldCoordinator
	var wakeListener *wake.Listener
	if cfg.Wake.Enabled {
		wakeListener = buildWakeListener(cfg, state, player, log)
		yieldCoordinator = wakeListener
		state.Wake = wakeListener
	}

	state.Listen = &listen.Pipeline{
		Arbiter: arbiter, Wake: yieldCoordinator, Detector: state.VAD, Transcriber: state.STT, Player: player,
		SampleRate: cfg.Audio.SampleRate, FrameSize: cfg.Audio.FrameSize, Muted: state.Muted, NewSource: newListenSource,
	}
	state.ListenNoCue = &listen.Pipeline{
		Arbiter: arbiter, Wake: yieldCoordinator, Detector: state.VAD, Transcriber: state.STT, Player: player,
		SampleRate: cfg.Audio.SampleRate, FrameSize: cfg.Audio.FrameSize, Muted: state.Muted,
		SkipReadyCue: true, NewSource: newListenSource,
	}

	d := dispatcher.New(state)

	httpSrv := httpapi.New(d, entry.Port, func() {})
	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("main", "http side-channel exited", err, nil)
		}
	}()

	sweeper := sweep.New(state.Sessions, state.VoiceRegistry, log)
	if err := sweeper.Start(sweepInterval); err != nil {
		log.Warn("main", "failed to start sweep", map[string]interface{}{"error": err.Error()})
	}

	watcher, err := config.NewWatcher(configPath, log)
	if err != nil {
		log.Warn("main", "failed to build config watcher", map[string]interface{}{"error": err.Error()})
	} else {
		watcher.OnChange(func(updated *config.Config) {
			state.VAD.SetThreshold(updated.Audio.VADThreshold)
			log.Info("main", "applied reloaded vad threshold", map[string]interface{}{"threshold": updated.Audio.VADThreshold})
		})
		if err := watcher.Start(); err != nil {
			log.Warn("main", "failed to start config watcher", map[string]interface{}{"error": err.Error()})
			watcher = nil
		}
	}

	if wakeListener != nil {
		wakeListener.Start()
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("main", "received shutdown signal", nil)
		cancel()
	}()

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- dispatcher.Serve(state) }()

	select {
	case err := <-serveErrCh:
		if err != nil {
			log.Warn("main", "mcp serve loop exited", map[string]interface{}{"error": err.Error()})
		}
	case <-shutdownCtx.Done():
	}

	shutdown(state, httpSrv, sweeper, watcher, wakeListener, log)
}

// buildEngineAdapters wires the real exec-shelling TTS/STT adapters when
// a command is configured, and falls back to the deterministic Fake
// otherwise (§4.7: "missing TTS or STT degrades but does not abort;
// failing both aborts").
func buildEngineAdapters(cfg *config.Config, log *logging.Logger) (tts.Provider, stt.Provider, error) {
	var ttsProvider tts.Provider
	var sttProvider stt.Provider

	if cfg.TTS.Command != "" {
		ttsProvider = tts.NewExecAdapter(cfg.TTS.Command, cfg.TTS.ModelPath, cfg.TTS.VoicesPath)
	} else {
		log.Warn("main", "no tts command configured, using fake synthesis", nil)
		ttsProvider = tts.NewFake()
	}

	if cfg.STT.Command != "" {
		sttProvider = stt.NewExecAdapter(cfg.STT.Command, cfg.STT.ModelPath, cfg.STT.Language)
	} else {
		log.Warn("main", "no stt command configured, using fake transcription", nil)
		sttProvider = stt.NewFake()
	}

	if cfg.TTS.Command == "" && cfg.STT.Command == "" {
		return nil, nil, fmt.Errorf("engine_unavailable: neither a synthesis nor a transcription command is configured")
	}
	return ttsProvider, sttProvider, nil
}

// buildWakeListener wires §4.5's worker: its own wake-phrase stream
// (float32 frames converted to 16-bit PCM for the model), a float32
// recording stream shared with the listen pipeline's format, lazy model loading, and the sibling-routing Router.
func buildWakeListener(cfg *config.Config, state *dispatcher.ServerState, player *audio.Player, log *logging.Logger) *wake.Listener {
	l := wake.NewListener()
	l.ModelID = cfg.Wake.ModelID
	l.SampleRate = cfg.Audio.SampleRate
	l.WakeFrameSize = 1280
	l.ListenFrameSize = cfg.Audio.FrameSize
	l.RecordingTimeout = cfg.STT.RecordingTimeout
	l.NoSpeechTimeout = cfg.STT.NoSpeechTimeout
	l.SilenceThreshold = cfg.Audio.SilenceDuration
	l.Detector = state.VAD
	l.Transcriber = state.STT
	l.Player = player
	l.Router = wake.NewRouter(state.Sessions)
	l.Log = log.Component("wake")

	l.NewWakeSource = func() (capture.Source, error) {
		return capture.NewPortaudioSource(l.SampleRate, l.WakeFrameSize)
	}
	l.NewRecordSource = func() (capture.Source, error) {
		return capture.NewPortaudioSource(l.SampleRate, l.ListenFrameSize)
	}
	l.LoadModel = func(modelID string) (wakeword.Provider, error) {
		return wakeword.NewMicrowakeword(modelID)
	}
	return l
}

// shutdown implements §4.7's graceful-shutdown order: cancel the speech
// worker and any in-flight listen, stop the wake-word listener, save the
// voice registry, unregister from the session registry, exit zero.
func shutdown(state *dispatcher.ServerState, httpSrv *httpapi.Server, sweeper *sweep.Sweeper, watcher *config.Watcher, wakeListener *wake.Listener, log *logging.Logger) {
	state.Stop()
	state.Speech.Queue.Stop()

	if wakeListener != nil {
		wakeListener.Stop()
	}

	if watcher != nil {
		watcher.Stop()
	}

	sweeper.Stop()

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer httpCancel()
	if err := httpSrv.Shutdown(httpCtx); err != nil {
		log.Warn("main", "http side-channel shutdown error", map[string]interface{}{"error": err.Error()})
	}

	if err := state.VoiceRegistry.Save(); err != nil {
		log.Warn("main", "failed to save voice registry", map[string]interface{}{"error": err.Error()})
	}

	if err := state.Sessions.Unregister(state.Self().PID); err != nil {
		log.Warn("main", "failed to unregister session", map[string]interface{}{"error": err.Error()})
	}

	log.Info("main", "shutdown complete", nil)
}
