// Package tts provides a unified interface for text-to-speech backends.
//
// Three backends are supported: the free Google Translate endpoint (gtts),
// Google Cloud Text-to-Speech (professional voices), and a local Piper
// subprocess (offline). All backends implement the Synthesizer interface,
// and the Cache wraps any of them with a content-addressed artifact store
// so repeated phrases never hit the backend twice.
package tts

import (
	"context"
	"time"
)

// Synthesizer defines the text-to-speech backend interface.
type Synthesizer interface {
	// Synthesize converts text to a complete audio artifact.
	Synthesize(ctx context.Context, text string) (*Artifact, error)

	// Name identifies the backend for logging and cache partitioning.
	Name() string

	// Fingerprint encodes the voice parameters that shape the audio
	// (language, voice, rate, pitch). The cache folds it into the artifact
	// key so a configuration change never serves audio synthesized under
	// the old parameters.
	Fingerprint() string

	// Format returns the container format this backend produces.
	Format() Format

	// Close releases any resources held by the backend.
	Close() error
}

// Artifact is a complete synthesized utterance.
type Artifact struct {
	// Audio is the encoded audio data.
	Audio []byte

	// Format describes the container encoding.
	Format Format

	// Path is set when the artifact is backed by a cache file.
	Path string

	// Cached is true when the artifact was served from the cache.
	Cached bool

	// LatencyMs is the synthesis time in milliseconds (0 on cache hits).
	LatencyMs int64
}

// Format identifies an audio container format.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatWAV:
		return ".wav"
	default:
		return ".mp3"
	}
}

// EstimateDuration guesses playback length from character count, roughly
// 60ms per character of conversational speech. Used only for log context
// before the artifact is decoded.
func EstimateDuration(text string) time.Duration {
	return time.Duration(len(text)) * 60 * time.Millisecond
}
