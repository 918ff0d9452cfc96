package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/mithlajmt/nila/pkg/audioio"
)

// Segmenter defaults.
const (
	// DefaultPause is how much trailing silence ends an utterance.
	DefaultPause = 700 * time.Millisecond
	// DefaultMaxUtterance caps a single utterance so a vacuum cleaner
	// cannot record forever.
	DefaultMaxUtterance = 18 * time.Second
	// DefaultListenTimeout is how long to wait for speech to start.
	DefaultListenTimeout = 30 * time.Second
	// DefaultPreRoll is how much audio from before the detected onset is
	// prepended to the clip, so the first syllable is not clipped.
	DefaultPreRoll = 300 * time.Millisecond
	// DefaultMinPhrase is the least speech-time a capture must contain.
	// Shorter bursts (a cough, a door slam) are discarded as noise.
	DefaultMinPhrase = 250 * time.Millisecond
)

// Segmenter extracts single utterances from a live audio source using
// energy-based voice activity detection.
type Segmenter struct {
	src        audioio.Source
	calibrator *Calibrator
	pause      time.Duration
	maxLen     time.Duration
	preRoll    time.Duration
	minPhrase  time.Duration
	logger     *slog.Logger
}

// SegmenterOption configures a Segmenter.
type SegmenterOption func(*Segmenter)

// WithPause overrides the trailing-silence duration that ends an utterance.
func WithPause(d time.Duration) SegmenterOption {
	return func(s *Segmenter) {
		s.pause = d
	}
}

// WithMaxUtterance overrides the hard cap on utterance length.
func WithMaxUtterance(d time.Duration) SegmenterOption {
	return func(s *Segmenter) {
		s.maxLen = d
	}
}

// WithPreRoll overrides how much pre-onset audio is kept.
func WithPreRoll(d time.Duration) SegmenterOption {
	return func(s *Segmenter) {
		s.preRoll = d
	}
}

// WithMinPhrase overrides the least speech-time a capture must contain.
func WithMinPhrase(d time.Duration) SegmenterOption {
	return func(s *Segmenter) {
		s.minPhrase = d
	}
}

// WithSegmenterLogger sets the structured logger.
func WithSegmenterLogger(logger *slog.Logger) SegmenterOption {
	return func(s *Segmenter) {
		s.logger = logger.With("component", "segmenter")
	}
}

// NewSegmenter creates a segmenter reading from src and thresholding against
// the calibrator's current measurement.
func NewSegmenter(src audioio.Source, calibrator *Calibrator, opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		src:        src,
		calibrator: calibrator,
		pause:      DefaultPause,
		maxLen:     DefaultMaxUtterance,
		preRoll:    DefaultPreRoll,
		minPhrase:  DefaultMinPhrase,
		logger:     slog.Default().With("component", "segmenter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture waits for speech and records one utterance.
//
// It recalibrates first if the ambient measurement has gone stale. Then it
// arms: chunks are compared against the energy threshold and buffered into a
// pre-roll ring until one crosses it. From onset it records until the
// trailing silence exceeds the pause duration or the utterance hits the hard
// cap. The clip includes the pre-roll so onsets are not clipped.
//
// If no speech starts within timeout, Capture returns (nil, nil); the caller
// just listens again. Bursts shorter than the minimum phrase length are
// discarded the same way. Context cancellation returns (nil, ctx.Err()).
func (s *Segmenter) Capture(ctx context.Context, timeout time.Duration) (*Clip, error) {
	if s.calibrator.Current().Stale(s.calibrator.Interval()) {
		s.logger.Info("calibration stale, remeasuring ambient noise")
		s.calibrator.Calibrate(ctx, s.src)
	}
	threshold := s.calibrator.Current().Threshold

	cfg := s.src.Config()
	chunkDur := cfg.BufferDuration
	if chunkDur <= 0 {
		chunkDur = 30 * time.Millisecond
	}

	preRollChunks := int(s.preRoll / chunkDur)
	if preRollChunks < 1 {
		preRollChunks = 1
	}

	var (
		ring      []audioio.AudioChunk
		recording []int16
		recorded  time.Duration
		silence   time.Duration
		speech    time.Duration
		started   = false
		deadline  = time.Now().Add(timeout)
	)

	s.logger.Debug("listening", "threshold", int(threshold), "timeout", timeout)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !started && time.Now().After(deadline) {
			s.logger.Debug("listen timeout, no speech detected")
			return nil, nil
		}

		readDeadline := deadline
		if started {
			readDeadline = time.Now().Add(s.maxLen)
		}
		readCtx, cancel := context.WithDeadline(ctx, readDeadline)
		chunk, err := s.src.Read(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !started {
				return nil, nil
			}
			// Device hiccup mid-utterance: keep what we have.
			s.logger.Warn("read failed mid-utterance", "error", err)
			break
		}

		energy := audioio.RMS(chunk.Samples)

		if !started {
			ring = append(ring, chunk)
			if len(ring) > preRollChunks {
				ring = ring[1:]
			}
			if energy >= threshold {
				started = true
				speech = chunk.Duration()
				for _, c := range ring {
					recording = append(recording, c.Samples...)
					recorded += c.Duration()
				}
				ring = nil
				s.logger.Debug("speech onset", "energy", int(energy))
			}
			continue
		}

		recording = append(recording, chunk.Samples...)
		recorded += chunk.Duration()

		if energy < threshold {
			silence += chunk.Duration()
		} else {
			silence = 0
			speech += chunk.Duration()
		}

		if silence >= s.pause {
			s.logger.Debug("utterance ended on pause", "length", recorded)
			break
		}
		if recorded >= s.maxLen {
			s.logger.Info("utterance hit length cap", "length", recorded)
			break
		}
	}

	if len(recording) == 0 {
		return nil, nil
	}
	if speech < s.minPhrase {
		s.logger.Debug("discarding short burst", "speech", speech)
		return nil, nil
	}

	return &Clip{
		Samples:    recording,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}, nil
}
