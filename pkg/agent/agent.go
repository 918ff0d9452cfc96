// Package agent wires the voice pipeline into a conversational loop:
// listen, transcribe, think, speak. One Agent owns one microphone, one
// speaker, and one jaw.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mithlajmt/nila/internal/llm"
	"github.com/mithlajmt/nila/pkg/audioio"
	"github.com/mithlajmt/nila/pkg/capture"
	"github.com/mithlajmt/nila/pkg/player"
	"github.com/mithlajmt/nila/pkg/stt"
	"github.com/mithlajmt/nila/pkg/tts"
)

// DefaultListenTimeout is how long one listening pass waits for speech.
const DefaultListenTimeout = 30 * time.Second

// Agent runs the conversation loop over the assembled pipeline.
// Turns are strictly sequential: the robot never listens to itself.
type Agent struct {
	source      audioio.Source
	segmenter   *capture.Segmenter
	recognizer  stt.Recognizer
	synthesizer tts.Synthesizer
	player      *player.Player
	responder   llm.Responder

	listenTimeout time.Duration
	logger        *slog.Logger
}

// Option is a functional option for configuring an Agent.
type Option func(*Agent)

// WithListenTimeout overrides the per-pass listening timeout.
func WithListenTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.listenTimeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger.With("component", "agent")
	}
}

// New assembles an agent from its pipeline stages.
func New(
	source audioio.Source,
	segmenter *capture.Segmenter,
	recognizer stt.Recognizer,
	synthesizer tts.Synthesizer,
	p *player.Player,
	responder llm.Responder,
	opts ...Option,
) *Agent {
	a := &Agent{
		source:        source,
		segmenter:     segmenter,
		recognizer:    recognizer,
		synthesizer:   synthesizer,
		player:        p,
		responder:     responder,
		listenTimeout: DefaultListenTimeout,
		logger:        slog.Default().With("component", "agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CaptureUtterance listens for one utterance and transcribes it.
// A quiet room or unintelligible audio returns ("", "", nil); the caller
// simply listens again.
func (a *Agent) CaptureUtterance(ctx context.Context) (text, language string, err error) {
	clip, err := a.segmenter.Capture(ctx, a.listenTimeout)
	if err != nil {
		return "", "", err
	}
	if clip.Empty() {
		return "", "", nil
	}

	a.logger.Debug("captured utterance", "duration", clip.Duration())

	result, err := a.recognizer.Recognize(ctx, clip)
	if err != nil {
		return "", "", err
	}
	if result.Empty() {
		a.logger.Debug("utterance was unintelligible")
		return "", result.Language, nil
	}

	a.logger.Info("heard",
		"text", result.Text,
		"language", result.Language,
		"confidence", result.Confidence,
	)
	return result.Text, result.Language, nil
}

// Speak synthesizes and plays the text, returning whether anything was
// actually spoken. Empty text is rejected before any backend is touched.
// Synthesis failures are logged, not fatal: the turn ends silently.
func (a *Agent) Speak(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	artifact, err := a.synthesizer.Synthesize(ctx, text)
	if err != nil {
		a.logger.Error("synthesis failed", "error", err)
		return false
	}

	if err := a.player.Play(ctx, artifact); err != nil {
		if ctx.Err() != nil {
			return false
		}
		a.logger.Error("playback failed", "error", err)
		return false
	}
	return true
}

// Run executes the conversation loop until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("conversation loop started")

	var (
		turns     int
		turnTotal time.Duration
	)
	defer func() {
		avg := time.Duration(0)
		if turns > 0 {
			avg = turnTotal / time.Duration(turns)
		}
		a.logger.Info("conversation loop ended",
			"turns", turns,
			"avg_turn_ms", avg.Milliseconds(),
		)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		turnStart := time.Now()
		turnID := uuid.NewString()[:8]

		text, language, err := a.CaptureUtterance(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("capture failed", "error", err)
			continue
		}
		if text == "" {
			continue
		}

		reply, err := a.responder.Respond(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("responder failed", "error", err)
			continue
		}

		spoke := a.Speak(ctx, reply)

		elapsed := time.Since(turnStart)
		turns++
		turnTotal += elapsed

		a.logger.Info("turn complete",
			"turn_id", turnID,
			"heard_chars", len(text),
			"language", language,
			"reply_chars", len(reply),
			"spoke", spoke,
			"turn_ms", elapsed.Milliseconds(),
		)
	}
}

// Close shuts the pipeline down. The jaw zero happens inside the player and
// actuator link close paths; here we release the capture and backend
// resources.
func (a *Agent) Close() error {
	var first error

	if err := a.recognizer.Close(); err != nil && first == nil {
		first = err
	}
	if err := a.synthesizer.Close(); err != nil && first == nil {
		first = err
	}
	if err := a.source.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
