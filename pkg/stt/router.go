package stt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mithlajmt/nila/pkg/capture"
)

// Factory constructs a Recognizer, typically a closure over its config.
type Factory func() (Recognizer, error)

// Build assembles the startup router from two backend factories. The
// preferred backend becomes the primary; when it cannot be constructed the
// other backend is substituted outright and the downgrade logged. When only
// the fallback is missing, the router runs without per-call degrade. When
// neither constructs, Build returns ErrNoRecognizer.
func Build(primary, fallback Factory, primaryName, fallbackName string, logger *slog.Logger) (Recognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p, err := primary()
	if err != nil {
		logger.Warn("speech backend unavailable at startup, substituting",
			"wanted", primaryName, "using", fallbackName, "error", err)
		f, ferr := fallback()
		if ferr != nil {
			return nil, fmt.Errorf("%w: %s: %v, %s: %v",
				ErrNoRecognizer, primaryName, err, fallbackName, ferr)
		}
		return f, nil
	}

	f, ferr := fallback()
	if ferr != nil {
		logger.Info("no fallback speech backend",
			"primary", primaryName, "error", ferr)
		return NewRouter(p, nil), nil
	}
	return NewRouter(p, f), nil
}

// Router implements Recognizer by preferring a primary backend and degrading
// to a fallback when the primary fails. Silence from the primary is a valid
// answer and is never retried against the fallback: the user said nothing,
// asking a second model will not change that.
type Router struct {
	primary  Recognizer
	fallback Recognizer
	logger   *slog.Logger
}

// NewRouter creates a router. fallback may be nil, in which case primary
// failures are returned as-is.
func NewRouter(primary Recognizer, fallback Recognizer) *Router {
	return &Router{
		primary:  primary,
		fallback: fallback,
		logger:   slog.Default().With("component", "stt.router"),
	}
}

// Recognize tries the primary recognizer, then the fallback.
func (r *Router) Recognize(ctx context.Context, clip *capture.Clip) (*Result, error) {
	result, err := r.primary.Recognize(ctx, clip)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if r.fallback == nil {
		return nil, err
	}

	r.logger.Warn("primary recognizer failed, degrading",
		"primary", r.primary.Name(),
		"fallback", r.fallback.Name(),
		"error", err,
	)

	result, ferr := r.fallback.Recognize(ctx, clip)
	if ferr != nil {
		r.logger.Error("fallback recognizer also failed", "error", ferr)
		return nil, WrapError(r.fallback.Name(), ErrAllRecognizersFailed)
	}
	return result, nil
}

// Name identifies the router by its primary backend.
func (r *Router) Name() string {
	return r.primary.Name()
}

// Close closes both recognizers.
func (r *Router) Close() error {
	err := r.primary.Close()
	if r.fallback != nil {
		if ferr := r.fallback.Close(); err == nil {
			err = ferr
		}
	}
	return err
}

// Verify Router implements Recognizer at compile time.
var _ Recognizer = (*Router)(nil)
