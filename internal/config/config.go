// Package config provides configuration loading for nila.
//
// Settings are resolved in three layers: built-in defaults, an optional YAML
// file, and environment variables (highest precedence). Provider selectors are
// validated so a typo fails at startup instead of mid-conversation.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Speech recognizer backends.
const (
	SpeechGoogle  = "google"
	SpeechWhisper = "whisper"
)

// Speech synthesizer backends.
const (
	TTSGTTS        = "gtts"
	TTSGoogleCloud = "google-cloud"
	TTSPiper       = "piper"
)

// Settings holds all configuration for the robot process.
type Settings struct {
	LogLevel string `env:"LOG_LEVEL" yaml:"log_level" validate:"oneof=debug info warn error"`

	// API keys
	GoogleAPIKey string `env:"GOOGLE_API_KEY" yaml:"google_api_key" json:"-"`
	LLMAPIKey    string `env:"LLM_API_KEY" yaml:"llm_api_key" json:"-"`

	// Backend selection
	SpeechProvider string `env:"SPEECH_PROVIDER" yaml:"speech_provider" validate:"oneof=google whisper"`
	TTSProvider    string `env:"TTS_PROVIDER" yaml:"tts_provider" validate:"oneof=gtts google-cloud piper"`

	// Speech recognition
	SpeechLanguage  string `env:"SPEECH_LANGUAGE" yaml:"speech_language"`
	WhisperModel    string `env:"WHISPER_MODEL" yaml:"whisper_model"`
	WhisperLanguage string `env:"WHISPER_LANGUAGE" yaml:"whisper_language"`

	// Capture tuning
	EnergyFloor         float64       `env:"ENERGY_FLOOR" yaml:"energy_floor" validate:"gte=1"`
	CalibrationInterval time.Duration `env:"CALIBRATION_INTERVAL" yaml:"calibration_interval"`
	PauseDuration       time.Duration `env:"PAUSE_DURATION" yaml:"pause_duration"`
	ListenTimeout       time.Duration `env:"LISTEN_TIMEOUT" yaml:"listen_timeout"`
	MaxUtterance        time.Duration `env:"MAX_UTTERANCE" yaml:"max_utterance"`

	// Synthesis
	TTSVoiceEnglish   string  `env:"TTS_VOICE_ENGLISH" yaml:"tts_voice_english"`
	TTSVoiceMalayalam string  `env:"TTS_VOICE_MALAYALAM" yaml:"tts_voice_malayalam"`
	TTSSpeakingRate   float64 `env:"TTS_SPEAKING_RATE" yaml:"tts_speaking_rate" validate:"gte=0.25,lte=4"`
	TTSPitch          float64 `env:"TTS_PITCH" yaml:"tts_pitch" validate:"gte=-20,lte=20"`
	TTSLanguage       string  `env:"TTS_LANGUAGE" yaml:"tts_language"`
	PiperBinary       string  `env:"PIPER_BINARY" yaml:"piper_binary"`
	PiperModel        string  `env:"PIPER_MODEL" yaml:"piper_model"`

	// Speech cache
	CacheDir       string  `env:"CACHE_DIR" yaml:"cache_dir"`
	CacheBudgetMB  int64   `env:"CACHE_BUDGET_MB" yaml:"cache_budget_mb" validate:"gte=1"`
	CacheThreshold float64 `env:"CACHE_THRESHOLD" yaml:"cache_threshold" validate:"gt=0,lte=1"`

	// Hardware
	SerialPort string `env:"SERIAL_PORT" yaml:"serial_port"`
	SerialBaud int    `env:"SERIAL_BAUD" yaml:"serial_baud" validate:"gte=300"`

	// Audio devices
	CaptureDevice  string `env:"CAPTURE_DEVICE" yaml:"capture_device"`
	PlaybackDevice string `env:"PLAYBACK_DEVICE" yaml:"playback_device"`

	// Conversation
	LLMBaseURL      string `env:"LLM_BASE_URL" yaml:"llm_base_url"`
	LLMModel        string `env:"LLM_MODEL" yaml:"llm_model"`
	LLMMaxHistory   int    `env:"LLM_MAX_HISTORY" yaml:"llm_max_history" validate:"gte=1"`
	LLMSystemPrompt string `env:"LLM_SYSTEM_PROMPT" yaml:"llm_system_prompt"`
}

// Default returns settings with built-in defaults. Values mirror what the
// robot ships with at exhibitions: Indian English recognition, free gTTS
// voice, ttyUSB0 jaw controller.
func Default() *Settings {
	return &Settings{
		LogLevel: "info",

		SpeechProvider:  SpeechGoogle,
		TTSProvider:     TTSGTTS,
		SpeechLanguage:  "en-IN",
		WhisperModel:    "models/ggml-base.bin",
		WhisperLanguage: "auto",

		EnergyFloor:         300,
		CalibrationInterval: 5 * time.Minute,
		PauseDuration:       700 * time.Millisecond,
		ListenTimeout:       30 * time.Second,
		MaxUtterance:        18 * time.Second,

		TTSVoiceEnglish:   "en-IN-Wavenet-D",
		TTSVoiceMalayalam: "ml-IN-Wavenet-A",
		TTSSpeakingRate:   1.0,
		TTSPitch:          0.0,
		TTSLanguage:       "auto",
		PiperBinary:       "bin/piper",
		PiperModel:        "models/en_US-lessac-medium.onnx",

		CacheDir:       "data/audio",
		CacheBudgetMB:  100,
		CacheThreshold: 0.8,

		SerialPort: "/dev/ttyUSB0",
		SerialBaud: 115200,

		LLMBaseURL:      "https://api.openai.com/v1",
		LLMModel:        "gpt-4o-mini",
		LLMMaxHistory:   10,
		LLMSystemPrompt: "You are a helpful, friendly robot assistant at an exhibition. Keep responses brief and engaging.",
	}
}

// Load resolves settings from defaults, the optional YAML file at path, and
// environment variables, then validates the result. An empty path skips the
// file layer; a missing file at a non-empty path is an error.
func Load(ctx context.Context, path string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(ctx, s); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings against their declared constraints.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// CacheBudgetBytes returns the cache budget in bytes.
func (s *Settings) CacheBudgetBytes() int64 {
	return s.CacheBudgetMB * 1024 * 1024
}
