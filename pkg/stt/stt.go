// Package stt provides a unified interface for speech-to-text recognizers.
//
// Two backends are supported: Google Cloud Speech (network) and a local
// whisper.cpp model (offline). All recognizers implement the Recognizer
// interface; the Router composes them so a failing backend degrades to the
// other instead of breaking the conversation loop.
//
// Silence is not an error: a recognizer that heard nothing intelligible
// returns a Result with empty Text and a nil error.
package stt

import (
	"context"

	"github.com/mithlajmt/nila/pkg/capture"
)

// Recognizer defines the speech recognition interface.
type Recognizer interface {
	// Recognize transcribes a captured utterance. An unintelligible clip
	// returns an empty-text Result with nil error; errors mean the backend
	// itself failed.
	Recognize(ctx context.Context, clip *capture.Clip) (*Result, error)

	// Name identifies the backend for logging.
	Name() string

	// Close releases any resources held by the recognizer.
	Close() error
}

// Result is the outcome of transcribing one utterance.
type Result struct {
	// Text is the transcript. Empty means silence or unintelligible audio.
	Text string

	// Language is the BCP-47 code of the detected or configured language.
	Language string

	// Confidence is the backend's confidence in [0, 1], 0 if not reported.
	Confidence float64
}

// Empty reports whether the result carries no transcript.
func (r *Result) Empty() bool {
	return r == nil || r.Text == ""
}
