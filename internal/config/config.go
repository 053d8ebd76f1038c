// Package config provides configuration management for voicesmith-mcp.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Main  MainConfig  `mapstructure:"main"`
	Audio AudioConfig `mapstructure:"audio"`
	STT   STTConfig   `mapstructure:"stt"`
	TTS   TTSConfig   `mapstructure:"tts"`
	Wake  WakeConfig  `mapstructure:"wake_word"`
	HTTP  HTTPConfig  `mapstructure:"http"`

	// VoiceRegistry is an optional pre-seed of agent_name -> voice_id,
	// merged into the live registry on load.
	VoiceRegistry map[string]string `mapstructure:"voice_registry"`
}

// MainConfig identifies the editor-facing agent.
type MainConfig struct {
	AgentName     string `mapstructure:"main_agent"`
	LastVoiceName string `mapstructure:"last_voice_name"`
}

// AudioConfig configures capture/playback and VAD.
type AudioConfig struct {
	SampleRate      int           `mapstructure:"sample_rate"`
	FrameSize       int           `mapstructure:"frame_size"`
	VADThreshold    float64       `mapstructure:"vad_threshold"`
	SilenceDuration time.Duration `mapstructure:"silence_duration"`
	PlayerCommand   string        `mapstructure:"player_command"`
}

// STTConfig configures the transcription engine adapter.
type STTConfig struct {
	Command           string        `mapstructure:"command"`
	ModelPath         string        `mapstructure:"model_path"`
	Language          string        `mapstructure:"language"`
	RecordingTimeout  time.Duration `mapstructure:"recording_timeout"`
	NoSpeechTimeout   time.Duration `mapstructure:"no_speech_timeout"`
}

// TTSConfig configures the synthesis engine adapter.
type TTSConfig struct {
	Command    string  `mapstructure:"command"`
	ModelPath  string  `mapstructure:"model_path"`
	VoicesPath string  `mapstructure:"voices_path"`
	Speed      float64 `mapstructure:"speed"`
}

// WakeConfig configures the wake-word listener. There is no sensitivity
// threshold knob: the underlying model's detection boolean has no score
// to compare against one.
type WakeConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	ModelID   string        `mapstructure:"model_id"`
	YieldWait time.Duration `mapstructure:"yield_wait"`
}

// HTTPConfig configures the loopback side-channel.
type HTTPConfig struct {
	BasePort int `mapstructure:"base_port"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Main: MainConfig{
			AgentName:     "Eric",
			LastVoiceName: "",
		},
		Audio: AudioConfig{
			SampleRate:      16000,
			FrameSize:       512,
			VADThreshold:    0.3,
			SilenceDuration: 1500 * time.Millisecond,
			PlayerCommand:   "",
		},
		STT: STTConfig{
			Command:          "",
			ModelPath:        "",
			Language:         "en",
			RecordingTimeout: 10 * time.Second,
			NoSpeechTimeout:  5 * time.Second,
		},
		TTS: TTSConfig{
			Command:    "",
			ModelPath:  "",
			VoicesPath: "",
			Speed:      1.0,
		},
		Wake: WakeConfig{
			Enabled:   false,
			ModelID:   "hey_voicesmith",
			YieldWait: 500 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			BasePort: 7865,
		},
		VoiceRegistry: map[string]string{},
	}
}

// StateDir returns the per-user state directory, creating it if absent.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".voicesmith-mcp")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// Load reads configuration from <state>/config.json and the environment,
// writing a default file on first run.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	dir, err := StateDir()
	if err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(dir)

	viper.SetEnvPrefix("VOICESMITH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to <state>/config.json.
func Save(cfg *Config) error {
	dir, err := StateDir()
	if err != nil {
		return err
	}

	viper.Set("main", cfg.Main)
	viper.Set("audio", cfg.Audio)
	viper.Set("stt", cfg.STT)
	viper.Set("tts", cfg.TTS)
	viper.Set("wake_word", cfg.Wake)
	viper.Set("http", cfg.HTTP)
	viper.Set("voice_registry", cfg.VoiceRegistry)

	return viper.WriteConfigAs(filepath.Join(dir, "config.json"))
}

// SessionsPath returns the path to the cross-process session registry file.
func SessionsPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.json"), nil
}

// AudioLockPath returns the fixed temp-directory path for the cross-process
// playback lock.
func AudioLockPath() string {
	return filepath.Join(os.TempDir(), "voice-audio.lock")
}
