package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithlajmt/nila/internal/llm"
	"github.com/mithlajmt/nila/pkg/audioio"
	"github.com/mithlajmt/nila/pkg/capture"
	"github.com/mithlajmt/nila/pkg/player"
	"github.com/mithlajmt/nila/pkg/stt"
	"github.com/mithlajmt/nila/pkg/tts"
)

// speechSource scripts a mock microphone: quiet, one burst of speech, quiet.
func speechSource(t *testing.T) *audioio.MockSource {
	t.Helper()

	cfg := audioio.Config{
		Backend:        audioio.BackendMock,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
	}

	return audioio.NewMockSource(cfg, nil,
		audioio.WithSineWave(440, 0.3),
		audioio.WithEnvelope(func(elapsed time.Duration) float64 {
			if elapsed > 200*time.Millisecond && elapsed < 700*time.Millisecond {
				return 1.0
			}
			return 0.0
		}),
	)
}

func testAgent(t *testing.T, src audioio.Source, rec stt.Recognizer, synth tts.Synthesizer) *Agent {
	t.Helper()

	cal := capture.NewCalibrator(capture.WithSampleWindow(60 * time.Millisecond))
	seg := capture.NewSegmenter(src, cal)

	sink := audioio.NewMockSink(audioio.Config{
		Backend:        audioio.BackendMock,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
	}, nil)

	return New(src, seg, rec, synth,
		player.New(sink, nil),
		llm.NewEcho(),
		WithListenTimeout(3*time.Second),
	)
}

func TestCaptureUtteranceHearsSpeech(t *testing.T) {
	src := speechSource(t)
	require.NoError(t, src.Start(context.Background()))
	defer src.Close()

	a := testAgent(t, src, stt.NewMock("turn on the lights"), tts.NewMock())

	text, lang, err := a.CaptureUtterance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "turn on the lights", text)
	assert.Equal(t, "en", lang)
}

func TestCaptureUtteranceSilenceIsNotAnError(t *testing.T) {
	cfg := audioio.Config{
		Backend:        audioio.BackendMock,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
	}
	src := audioio.NewMockSource(cfg, nil) // silence only
	require.NoError(t, src.Start(context.Background()))
	defer src.Close()

	rec := stt.NewMock("should never be called")
	a := testAgent(t, src, rec, tts.NewMock())
	a.listenTimeout = 300 * time.Millisecond

	text, _, err := a.CaptureUtterance(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 0, rec.CallCount())
}

func TestSpeakEmptyTextTouchesNoBackend(t *testing.T) {
	src := speechSource(t)
	synth := tts.NewMock()
	a := testAgent(t, src, stt.NewMock(""), synth)

	assert.False(t, a.Speak(context.Background(), ""))
	assert.False(t, a.Speak(context.Background(), "   \n\t "))
	assert.Equal(t, 0, synth.CallCount("Synthesize"))
}

func TestSpeakSynthesisFailureEndsTurnQuietly(t *testing.T) {
	src := speechSource(t)
	synth := tts.NewMockError(errors.New("backend down"))
	a := testAgent(t, src, stt.NewMock(""), synth)

	assert.False(t, a.Speak(context.Background(), "hello"))
}

func TestSpeakPlaysSynthesizedAudio(t *testing.T) {
	src := speechSource(t)
	synth := tts.NewMock() // undecodable payload, player skips gracefully
	a := testAgent(t, src, stt.NewMock(""), synth)

	spoke := a.Speak(context.Background(), "hello there")
	assert.True(t, spoke)
	assert.Equal(t, 1, synth.CallCount("Synthesize"))
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := audioio.Config{
		Backend:        audioio.BackendMock,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
	}
	src := audioio.NewMockSource(cfg, nil)
	require.NoError(t, src.Start(context.Background()))
	defer src.Close()

	a := testAgent(t, src, stt.NewMock(""), tts.NewMock())
	a.listenTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	err := a.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
