package player

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mithlajmt/nila/pkg/audioio"
	"github.com/mithlajmt/nila/pkg/tts"
)

// Envelope defaults.
const (
	// DefaultTick is the jaw update period. 50ms reads as natural mouth
	// movement; faster looks jittery on the servo.
	DefaultTick = 50 * time.Millisecond

	// DefaultEnvelopeScale maps RMS amplitude to jaw intensity: an RMS at
	// or above the scale drives the jaw fully open.
	DefaultEnvelopeScale = 3000.0

	// writeChunk is how much audio each sink write carries.
	writeChunk = 100 * time.Millisecond
)

// Jaw drives the mouth actuator. Implemented by actuator.Link.
type Jaw interface {
	SetIntensity(value int) error
}

// Player plays synthesized artifacts on an audio sink while emitting
// amplitude-envelope jaw commands in step with the playback clock.
type Player struct {
	sink   audioio.Sink
	jaw    Jaw
	tick   time.Duration
	scale  float64
	logger *slog.Logger
}

// Option is a functional option for configuring a Player.
type Option func(*Player)

// WithTick overrides the jaw update period.
func WithTick(d time.Duration) Option {
	return func(p *Player) {
		p.tick = d
	}
}

// WithEnvelopeScale overrides the RMS-to-intensity scale.
func WithEnvelopeScale(scale float64) Option {
	return func(p *Player) {
		p.scale = scale
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) {
		p.logger = logger.With("component", "player")
	}
}

// New creates a Player. jaw may be nil, in which case playback proceeds
// without actuation.
func New(sink audioio.Sink, jaw Jaw, opts ...Option) *Player {
	p := &Player{
		sink:   sink,
		jaw:    jaw,
		tick:   DefaultTick,
		scale:  DefaultEnvelopeScale,
		logger: slog.Default().With("component", "player"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play decodes the artifact and plays it, driving the jaw from the live
// amplitude envelope. The jaw is zeroed on every exit path.
//
// An undecodable artifact is not a failed turn: Play logs it, zeroes the
// jaw, and returns nil so the conversation continues. Context cancellation
// aborts playback and returns ctx.Err().
func (p *Player) Play(ctx context.Context, artifact *tts.Artifact) error {
	defer p.zeroJaw()

	samples, rate, err := decode(artifact)
	if err != nil {
		p.logger.Warn("artifact failed to decode, skipping playback", "error", err)
		return nil
	}

	cfg := p.sink.Config()
	if rate != cfg.SampleRate {
		samples = audioio.Resample(samples, rate, cfg.SampleRate)
		rate = cfg.SampleRate
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(rate)
	p.logger.Debug("playing artifact",
		"duration", duration,
		"sample_rate", rate,
		"cached", artifact.Cached,
	)

	if err := p.sink.Start(ctx); err != nil {
		return err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.writeLoop(gctx, samples, rate)
	})
	g.Go(func() error {
		return p.envelopeLoop(gctx, samples, rate, start, duration)
	})

	if err := g.Wait(); err != nil {
		_ = p.sink.Clear()
		return err
	}
	return nil
}

// writeLoop feeds the sink in chunks, then waits for the device to drain.
func (p *Player) writeLoop(ctx context.Context, samples []int16, rate int) error {
	chunkSamples := int(time.Duration(rate) * writeChunk / time.Second)
	if chunkSamples < 1 {
		chunkSamples = len(samples)
	}

	for off := 0; off < len(samples); off += chunkSamples {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := off + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		chunk := audioio.AudioChunk{
			Samples:    samples[off:end],
			SampleRate: rate,
			Channels:   1,
		}
		if err := p.sink.Write(ctx, chunk); err != nil {
			return err
		}
	}

	return p.sink.Flush(ctx)
}

// envelopeLoop emits jaw intensities from the RMS of the window at the
// current wall-clock playback position.
func (p *Player) envelopeLoop(ctx context.Context, samples []int16, rate int, start time.Time, duration time.Duration) error {
	if p.jaw == nil {
		return nil
	}

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	window := int(time.Duration(rate) * p.tick / time.Second)
	if window < 1 {
		window = 1
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pos := time.Since(start)
		if pos >= duration {
			return nil
		}

		idx := int(time.Duration(rate) * pos / time.Second)
		if idx >= len(samples) {
			return nil
		}
		end := idx + window
		if end > len(samples) {
			end = len(samples)
		}

		intensity := p.intensity(audioio.RMS(samples[idx:end]))

		// Actuation failures never interrupt audio.
		if err := p.jaw.SetIntensity(intensity); err != nil {
			p.logger.Debug("jaw command dropped", "error", err)
		}
	}
}

// intensity maps an RMS amplitude to a jaw opening in [0, 100].
func (p *Player) intensity(rms float64) int {
	v := int(rms / p.scale * 100)
	if v > 100 {
		v = 100
	}
	if v < 0 {
		v = 0
	}
	return v
}

// zeroJaw closes the mouth, best-effort.
func (p *Player) zeroJaw() {
	if p.jaw == nil {
		return
	}
	if err := p.jaw.SetIntensity(0); err != nil {
		p.logger.Debug("failed to zero jaw", "error", err)
	}
}
