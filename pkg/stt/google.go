package stt

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/mithlajmt/nila/pkg/audioio"
	"github.com/mithlajmt/nila/pkg/capture"
)

const recognizerGoogle = "google"

// Google implements Recognizer using the Google Cloud Speech-to-Text REST
// API. Clips are submitted as base64 LINEAR16, so no transcoding is needed
// on the way out.
type Google struct {
	svc      *speech.Service
	language string
	logger   *slog.Logger
}

// GoogleOption configures a Google recognizer.
type GoogleOption func(*Google)

// WithGoogleLanguage sets the BCP-47 language code sent with each request.
func WithGoogleLanguage(lang string) GoogleOption {
	return func(g *Google) {
		g.language = lang
	}
}

// WithGoogleLogger sets the structured logger.
func WithGoogleLogger(logger *slog.Logger) GoogleOption {
	return func(g *Google) {
		g.logger = logger.With("component", "stt.google")
	}
}

// NewGoogle creates a Google Cloud speech recognizer.
func NewGoogle(ctx context.Context, apiKey string, opts ...GoogleOption) (*Google, error) {
	if apiKey == "" {
		return nil, WrapError(recognizerGoogle, ErrNoAPIKey)
	}

	svc, err := speech.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, WrapError(recognizerGoogle, fmt.Errorf("create service: %w", err))
	}

	g := &Google{
		svc:      svc,
		language: "en-US",
		logger:   slog.Default().With("component", "stt.google"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Recognize transcribes the clip via the cloud API.
func (g *Google) Recognize(ctx context.Context, clip *capture.Clip) (*Result, error) {
	if clip.Empty() {
		return nil, WrapError(recognizerGoogle, ErrEmptyClip)
	}

	start := time.Now()

	samples := clip.Samples
	if clip.Channels == 2 {
		samples = audioio.StereoToMono(samples)
	}

	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(clip.SampleRate),
			LanguageCode:    g.language,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(samples)),
		},
	}

	resp, err := g.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return nil, WrapError(recognizerGoogle, fmt.Errorf("recognize: %w", err))
	}

	// No results means the API heard nothing it could transcribe.
	if len(resp.Results) == 0 || len(resp.Results[0].Alternatives) == 0 {
		g.logger.Debug("no transcript in response", "clip", clip.Duration())
		return &Result{Language: g.language}, nil
	}

	alt := resp.Results[0].Alternatives[0]

	g.logger.Debug("transcribed",
		"chars", len(alt.Transcript),
		"confidence", alt.Confidence,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Text:       alt.Transcript,
		Language:   g.language,
		Confidence: float64(alt.Confidence),
	}, nil
}

// Name returns "google".
func (g *Google) Name() string {
	return recognizerGoogle
}

// Close releases resources. The generated API client holds no connections
// that need explicit shutdown.
func (g *Google) Close() error {
	return nil
}

// Verify Google implements Recognizer at compile time.
var _ Recognizer = (*Google)(nil)
