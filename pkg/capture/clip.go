// Package capture turns the raw microphone stream into discrete utterances.
//
// It has two halves: a calibrator that measures ambient room noise and
// derives an energy threshold, and a segmenter that uses the threshold to
// detect when someone starts and stops talking. The output of a successful
// capture is a Clip, a self-contained PCM recording of one utterance.
package capture

import "time"

// Clip is a single captured utterance as 16-bit PCM.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip contains no audio.
func (c *Clip) Empty() bool {
	return c == nil || len(c.Samples) == 0
}
