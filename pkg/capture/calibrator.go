package capture

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mithlajmt/nila/pkg/audioio"
)

// Calibration defaults. The threshold never drops below the floor so a dead
// quiet room does not make the segmenter trigger on breathing.
const (
	DefaultEnergyFloor     = 300.0
	DefaultThresholdFactor = 1.25
	DefaultSampleWindow    = 1200 * time.Millisecond
	DefaultRecalInterval   = 5 * time.Minute

	// ambientHistorySize is how many past ambient readings feed the average.
	ambientHistorySize = 10
)

// Calibration is a point-in-time measurement of room noise.
type Calibration struct {
	// Threshold is the RMS energy above which audio counts as speech.
	Threshold float64
	// Ambient is the averaged room noise RMS the threshold was derived from.
	Ambient float64
	// MeasuredAt is when the measurement was taken.
	MeasuredAt time.Time
	// Fallback is true when the microphone could not be read and the
	// calibrator substituted safe defaults.
	Fallback bool
}

// Stale reports whether the calibration is older than the given interval.
func (c Calibration) Stale(interval time.Duration) bool {
	return time.Since(c.MeasuredAt) > interval
}

// Calibrator measures ambient noise and maintains a rolling history so a
// single noisy measurement (a door slam during calibration) does not skew
// the threshold.
type Calibrator struct {
	floor    float64
	factor   float64
	window   time.Duration
	interval time.Duration
	logger   *slog.Logger

	history []float64
	current Calibration
}

// CalibratorOption configures a Calibrator.
type CalibratorOption func(*Calibrator)

// WithEnergyFloor overrides the minimum speech threshold.
func WithEnergyFloor(floor float64) CalibratorOption {
	return func(c *Calibrator) {
		c.floor = floor
	}
}

// WithThresholdFactor overrides the ambient-to-threshold multiplier.
func WithThresholdFactor(factor float64) CalibratorOption {
	return func(c *Calibrator) {
		c.factor = factor
	}
}

// WithSampleWindow overrides how long each measurement listens.
func WithSampleWindow(d time.Duration) CalibratorOption {
	return func(c *Calibrator) {
		c.window = d
	}
}

// WithRecalInterval overrides how long a calibration stays fresh.
func WithRecalInterval(d time.Duration) CalibratorOption {
	return func(c *Calibrator) {
		c.interval = d
	}
}

// WithCalibratorLogger sets the structured logger.
func WithCalibratorLogger(logger *slog.Logger) CalibratorOption {
	return func(c *Calibrator) {
		c.logger = logger.With("component", "calibrator")
	}
}

// NewCalibrator creates a calibrator with default tuning.
func NewCalibrator(opts ...CalibratorOption) *Calibrator {
	c := &Calibrator{
		floor:    DefaultEnergyFloor,
		factor:   DefaultThresholdFactor,
		window:   DefaultSampleWindow,
		interval: DefaultRecalInterval,
		logger:   slog.Default().With("component", "calibrator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calibrate listens to the source for the sample window, folds the measured
// ambient RMS into the rolling history, and derives a fresh threshold.
//
// The source must already be started. If the microphone cannot be read the
// calibrator falls back to the energy floor so the pipeline keeps running;
// the returned Calibration has Fallback set.
func (c *Calibrator) Calibrate(ctx context.Context, src audioio.Source) Calibration {
	ambient, err := c.measure(ctx, src)
	if err != nil {
		c.logger.Warn("ambient measurement failed, using defaults", "error", err)
		c.current = Calibration{
			Threshold:  c.floor,
			Ambient:    0,
			MeasuredAt: time.Now(),
			Fallback:   true,
		}
		return c.current
	}

	c.history = append(c.history, ambient)
	if len(c.history) > ambientHistorySize {
		c.history = c.history[len(c.history)-ambientHistorySize:]
	}

	var sum float64
	for _, v := range c.history {
		sum += v
	}
	avg := sum / float64(len(c.history))

	threshold := avg * c.factor
	if threshold < c.floor {
		threshold = c.floor
	}

	c.current = Calibration{
		Threshold:  threshold,
		Ambient:    avg,
		MeasuredAt: time.Now(),
	}

	c.logger.Info("ambient calibration complete",
		"ambient_rms", int(avg),
		"threshold", int(threshold),
		"history", len(c.history),
	)

	return c.current
}

// Current returns the most recent calibration. If none has been taken yet,
// it returns floor defaults with a zero MeasuredAt (always stale).
func (c *Calibrator) Current() Calibration {
	if c.current.MeasuredAt.IsZero() {
		return Calibration{Threshold: c.floor, Fallback: true}
	}
	return c.current
}

// Interval returns the configured recalibration interval.
func (c *Calibrator) Interval() time.Duration {
	return c.interval
}

// measure reads chunks from the source for the sample window and returns the
// RMS of everything heard.
func (c *Calibrator) measure(ctx context.Context, src audioio.Source) (float64, error) {
	deadline := time.Now().Add(c.window)
	var all []int16

	for time.Now().Before(deadline) {
		readCtx, cancel := context.WithDeadline(ctx, deadline)
		chunk, err := src.Read(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && len(all) > 0 {
				break
			}
			return 0, err
		}
		all = append(all, chunk.Samples...)
	}

	if len(all) == 0 {
		return 0, context.DeadlineExceeded
	}
	return audioio.RMS(all), nil
}
