package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const backendPiper = "piper"

// Piper implements Synthesizer by shelling out to the piper binary.
// Fully offline: no network, no API key, WAV output.
type Piper struct {
	binary string
	model  string
	logger *slog.Logger
}

// PiperOption configures a Piper backend.
type PiperOption func(*Piper)

// WithPiperLogger sets the structured logger.
func WithPiperLogger(logger *slog.Logger) PiperOption {
	return func(p *Piper) {
		p.logger = logger.With("component", "tts.piper")
	}
}

// NewPiper creates a Piper backend. binary is the piper executable (a bare
// name is resolved via PATH) and model is the .onnx voice file.
func NewPiper(binary, model string, opts ...PiperOption) (*Piper, error) {
	if binary == "" {
		binary = "piper"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, WrapError(backendPiper, fmt.Errorf("%w: %v", ErrNoBinary, err))
	}
	if model == "" {
		return nil, WrapError(backendPiper, ErrNoModel)
	}
	if _, err := os.Stat(model); err != nil {
		return nil, WrapError(backendPiper, fmt.Errorf("%w: %v", ErrNoModel, err))
	}

	p := &Piper{
		binary: path,
		model:  model,
		logger: slog.Default().With("component", "tts.piper"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Synthesize runs the piper subprocess and returns the WAV it produces.
func (p *Piper) Synthesize(ctx context.Context, text string) (*Artifact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, WrapError(backendPiper, ErrEmptyText)
	}

	start := time.Now()

	outFile := filepath.Join(os.TempDir(), "piper-"+uuid.NewString()+".wav")
	defer os.Remove(outFile)

	cmd := exec.CommandContext(ctx, p.binary,
		"--model", p.model,
		"--output_file", outFile,
	)
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, WrapError(backendPiper, fmt.Errorf("run: %w: %s", err, stderr.String()))
	}

	audio, err := os.ReadFile(outFile)
	if err != nil {
		return nil, WrapError(backendPiper, fmt.Errorf("read output: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	p.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
	)

	return &Artifact{
		Audio:     audio,
		Format:    FormatWAV,
		LatencyMs: latency,
	}, nil
}

// Name returns "piper".
func (p *Piper) Name() string {
	return backendPiper
}

// Fingerprint returns the voice model file name. The model fully determines
// the piper voice.
func (p *Piper) Fingerprint() string {
	return "model=" + filepath.Base(p.model)
}

// Format returns WAV.
func (p *Piper) Format() Format {
	return FormatWAV
}

// Close releases resources.
func (p *Piper) Close() error {
	return nil
}

// Verify Piper implements Synthesizer at compile time.
var _ Synthesizer = (*Piper)(nil)
