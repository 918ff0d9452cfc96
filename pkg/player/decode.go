// Package player plays synthesized speech while driving the jaw actuator
// with the live amplitude envelope of the audio, so the mouth moves in sync
// with what is heard.
package player

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	wav "github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/mithlajmt/nila/pkg/audioio"
	"github.com/mithlajmt/nila/pkg/tts"
)

// ErrBadArtifact is returned when an artifact cannot be decoded.
var ErrBadArtifact = errors.New("player: undecodable artifact")

// decode converts an artifact to mono int16 PCM and its sample rate.
func decode(artifact *tts.Artifact) ([]int16, int, error) {
	if artifact == nil || len(artifact.Audio) == 0 {
		return nil, 0, ErrBadArtifact
	}

	switch artifact.Format {
	case tts.FormatWAV:
		return decodeWAV(artifact.Audio)
	case tts.FormatMP3:
		return decodeMP3(artifact.Audio)
	default:
		return nil, 0, fmt.Errorf("%w: unknown format %q", ErrBadArtifact, artifact.Format)
	}
}

func decodeWAV(data []byte) ([]int16, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: wav: %v", ErrBadArtifact, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("%w: wav: no audio data", ErrBadArtifact)
	}

	// The envelope math assumes full-scale 16-bit samples. Depths above 16
	// shift down; lower depths are rejected.
	if dec.BitDepth < 16 {
		return nil, 0, fmt.Errorf("%w: wav: unsupported bit depth %d", ErrBadArtifact, dec.BitDepth)
	}
	shift := uint(dec.BitDepth - 16)

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v >> shift)
	}

	if buf.Format.NumChannels == 2 {
		samples = audioio.StereoToMono(samples)
	}
	return samples, buf.Format.SampleRate, nil
}

func decodeMP3(data []byte) ([]int16, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: mp3: %v", ErrBadArtifact, err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: mp3: %v", ErrBadArtifact, err)
	}
	if len(pcm) == 0 {
		return nil, 0, fmt.Errorf("%w: mp3: no audio data", ErrBadArtifact)
	}

	// go-mp3 always outputs 16-bit stereo.
	samples := audioio.StereoToMono(audioio.BytesToSamples(pcm))
	return samples, dec.SampleRate(), nil
}
