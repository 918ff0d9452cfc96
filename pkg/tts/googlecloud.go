package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const backendGoogleCloud = "googlecloud"

// GoogleCloud implements Synthesizer using the Google Cloud Text-to-Speech
// REST API. This is the professional voice tier.
type GoogleCloud struct {
	svc      *texttospeech.Service
	language string
	voice    string
	rate     float64
	pitch    float64
	logger   *slog.Logger
}

// GoogleCloudOption configures a GoogleCloud backend.
type GoogleCloudOption func(*GoogleCloud)

// WithCloudVoice sets the voice name (e.g. "en-IN-Wavenet-A").
func WithCloudVoice(voice string) GoogleCloudOption {
	return func(g *GoogleCloud) {
		g.voice = voice
	}
}

// WithCloudLanguage sets the BCP-47 language code.
func WithCloudLanguage(lang string) GoogleCloudOption {
	return func(g *GoogleCloud) {
		g.language = lang
	}
}

// WithCloudSpeakingRate sets the speaking rate (1.0 is normal).
func WithCloudSpeakingRate(rate float64) GoogleCloudOption {
	return func(g *GoogleCloud) {
		g.rate = rate
	}
}

// WithCloudPitch sets the voice pitch in semitones.
func WithCloudPitch(pitch float64) GoogleCloudOption {
	return func(g *GoogleCloud) {
		g.pitch = pitch
	}
}

// WithCloudLogger sets the structured logger.
func WithCloudLogger(logger *slog.Logger) GoogleCloudOption {
	return func(g *GoogleCloud) {
		g.logger = logger.With("component", "tts.googlecloud")
	}
}

// NewGoogleCloud creates a Google Cloud TTS backend.
func NewGoogleCloud(ctx context.Context, apiKey string, opts ...GoogleCloudOption) (*GoogleCloud, error) {
	if apiKey == "" {
		return nil, WrapError(backendGoogleCloud, ErrNoAPIKey)
	}

	svc, err := texttospeech.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, WrapError(backendGoogleCloud, fmt.Errorf("create service: %w", err))
	}

	g := &GoogleCloud{
		svc:      svc,
		language: "en-IN",
		rate:     1.0,
		logger:   slog.Default().With("component", "tts.googlecloud"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Synthesize converts text to MP3 audio via the cloud API.
func (g *GoogleCloud) Synthesize(ctx context.Context, text string) (*Artifact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, WrapError(backendGoogleCloud, ErrEmptyText)
	}

	start := time.Now()

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.language,
			Name:         g.voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  g.rate,
			Pitch:         g.pitch,
		},
	}

	resp, err := g.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, WrapError(backendGoogleCloud, fmt.Errorf("synthesize: %w", err))
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(backendGoogleCloud, fmt.Errorf("decode audio: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"voice", g.voice,
		"latency_ms", latency,
	)

	return &Artifact{
		Audio:     audio,
		Format:    FormatMP3,
		LatencyMs: latency,
	}, nil
}

// Name returns "googlecloud".
func (g *GoogleCloud) Name() string {
	return backendGoogleCloud
}

// Fingerprint encodes the configured language, voice, rate and pitch.
func (g *GoogleCloud) Fingerprint() string {
	return fmt.Sprintf("lang=%s;voice=%s;rate=%g;pitch=%g", g.language, g.voice, g.rate, g.pitch)
}

// Format returns MP3.
func (g *GoogleCloud) Format() Format {
	return FormatMP3
}

// Close releases resources.
func (g *GoogleCloud) Close() error {
	return nil
}

// Verify GoogleCloud implements Synthesizer at compile time.
var _ Synthesizer = (*GoogleCloud)(nil)
