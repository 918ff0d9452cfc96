package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/mithlajmt/nila/pkg/audioio"
	"github.com/mithlajmt/nila/pkg/capture"
)

const (
	recognizerWhisper = "whisper"

	// whisperSampleRate is the only input rate the model accepts.
	whisperSampleRate = 16000

	// LanguageAuto asks the model to detect the spoken language.
	LanguageAuto = "auto"
)

// Whisper implements Recognizer using the whisper.cpp CGO bindings.
// The model is loaded once at construction; each Recognize call creates a
// fresh inference context because contexts are not thread-safe.
type Whisper struct {
	model    whisperlib.Model
	language string
	logger   *slog.Logger

	// Inference is CPU-bound and contexts share model memory; serialize.
	mu sync.Mutex
}

// WhisperOption configures a Whisper recognizer.
type WhisperOption func(*Whisper)

// WithWhisperLanguage sets the transcription language. Use LanguageAuto to
// let the model detect it per utterance.
func WithWhisperLanguage(lang string) WhisperOption {
	return func(w *Whisper) {
		w.language = lang
	}
}

// WithWhisperLogger sets the structured logger.
func WithWhisperLogger(logger *slog.Logger) WhisperOption {
	return func(w *Whisper) {
		w.logger = logger.With("component", "stt.whisper")
	}
}

// NewWhisper loads the whisper.cpp model from the given path.
func NewWhisper(modelPath string, opts ...WhisperOption) (*Whisper, error) {
	if modelPath == "" {
		return nil, WrapError(recognizerWhisper, ErrNoModel)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, WrapError(recognizerWhisper, fmt.Errorf("%w: %v", ErrNoModel, err))
	}

	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, WrapError(recognizerWhisper, fmt.Errorf("load model %q: %w", modelPath, err))
	}

	w := &Whisper{
		model:    model,
		language: LanguageAuto,
		logger:   slog.Default().With("component", "stt.whisper"),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.logger.Info("whisper model loaded", "path", modelPath, "language", w.language)
	return w, nil
}

// Recognize runs local inference on the clip.
func (w *Whisper) Recognize(ctx context.Context, clip *capture.Clip) (*Result, error) {
	if clip.Empty() {
		return nil, WrapError(recognizerWhisper, ErrEmptyClip)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	samples := clip.Samples
	if clip.Channels == 2 {
		samples = audioio.StereoToMono(samples)
	}
	if clip.SampleRate != whisperSampleRate {
		samples = audioio.Resample(samples, clip.SampleRate, whisperSampleRate)
	}
	pcm := audioio.SamplesToFloat32(samples)

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, WrapError(recognizerWhisper, fmt.Errorf("create context: %w", err))
	}

	if err := wctx.SetLanguage(w.language); err != nil {
		w.logger.Warn("failed to set language, using model default",
			"language", w.language, "error", err)
	}

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return nil, WrapError(recognizerWhisper, fmt.Errorf("process audio: %w", err))
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, WrapError(recognizerWhisper, fmt.Errorf("read segment: %w", err))
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	lang := w.language
	if lang == LanguageAuto {
		if detected := wctx.DetectedLanguage(); detected != "" {
			lang = detected
		}
	}

	text := strings.Join(parts, " ")

	w.logger.Debug("transcribed",
		"chars", len(text),
		"language", lang,
		"clip", clip.Duration(),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Result{Text: text, Language: lang}, nil
}

// Name returns "whisper".
func (w *Whisper) Name() string {
	return recognizerWhisper
}

// Close releases the model.
func (w *Whisper) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}

// Verify Whisper implements Recognizer at compile time.
var _ Recognizer = (*Whisper)(nil)
