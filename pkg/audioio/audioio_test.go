package audioio

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Backend:        BackendMock,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.SampleRate = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Channels = -1
	assert.Error(t, bad.Validate())
}

func TestConfigBufferSize(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, 480, cfg.BufferSize())
	assert.Equal(t, 960, cfg.BufferBytes())
}

func TestChunkBytesRoundTrip(t *testing.T) {
	chunk := AudioChunk{
		Samples:    []int16{0, 100, -100, 32767, -32768},
		SampleRate: 16000,
		Channels:   1,
	}

	var back AudioChunk
	back.FromBytes(chunk.Bytes(), 16000, 1)
	assert.Equal(t, chunk.Samples, back.Samples)
}

func TestChunkDuration(t *testing.T) {
	chunk := AudioChunk{Samples: make([]int16, 16000), SampleRate: 16000, Channels: 1}
	assert.Equal(t, time.Second, chunk.Duration())
}

func TestResampleHalvesRate(t *testing.T) {
	in := make([]int16, 1000)
	for i := range in {
		in[i] = int16(i)
	}

	out := Resample(in, 16000, 8000)
	assert.InDelta(t, 500, len(out), 2)

	// Same rate is a no-op.
	same := Resample(in, 16000, 16000)
	assert.Equal(t, in, same)
}

func TestStereoToMono(t *testing.T) {
	stereo := []int16{100, 200, -100, -200}
	mono := StereoToMono(stereo)
	assert.Equal(t, []int16{150, -150}, mono)
}

func TestSamplesToFloat32(t *testing.T) {
	out := SamplesToFloat32([]int16{0, 16384, -32768})
	require.Len(t, out, 3)
	assert.InDelta(t, 0.0, out[0], 1e-6)
	assert.InDelta(t, 0.5, out[1], 1e-3)
	assert.InDelta(t, -1.0, out[2], 1e-6)
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 1000.0, RMS([]int16{1000, -1000, 1000, -1000}), 0.01)
}

func TestMockSourceGeneratesAudio(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithSineWave(440, 0.5))
	require.NoError(t, src.Start(context.Background()))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	chunk, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, chunk.Samples, 480)
	assert.Greater(t, RMS(chunk.Samples), 1000.0)
}

func TestMockSourceEnvelopeScriptsSilence(t *testing.T) {
	src := NewMockSource(testConfig(), nil,
		WithSineWave(440, 0.5),
		WithEnvelope(func(elapsed time.Duration) float64 {
			if elapsed < 60*time.Millisecond {
				return 0
			}
			return 1
		}),
	)
	require.NoError(t, src.Start(context.Background()))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Zero(t, RMS(first.Samples))

	// Later chunks carry the sine wave.
	var loud bool
	for i := 0; i < 10; i++ {
		chunk, err := src.Read(ctx)
		require.NoError(t, err)
		if RMS(chunk.Samples) > 1000 {
			loud = true
			break
		}
	}
	assert.True(t, loud)
}

func TestMockSourceCloseDoesNotRaceGenerator(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithSineWave(440, 0.5))
	require.NoError(t, src.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := src.Read(ctx)
	require.NoError(t, err)

	require.NoError(t, src.Close())

	// The generator owns the stream channel, so draining after Close ends
	// in EOF rather than a send on a closed channel.
	for {
		_, err := src.Read(ctx)
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			return
		}
	}
}

func TestMockSinkTracksWrites(t *testing.T) {
	sink := NewMockSink(testConfig(), nil)
	require.NoError(t, sink.Start(context.Background()))
	defer sink.Close()

	chunk := AudioChunk{Samples: make([]int16, 480), SampleRate: 16000, Channels: 1}
	require.NoError(t, sink.Write(context.Background(), chunk))
	require.NoError(t, sink.Write(context.Background(), chunk))

	stats := sink.Stats()
	assert.Equal(t, int64(2), stats.ChunksWritten)
	assert.Equal(t, int64(960), stats.SamplesWritten)

	require.NoError(t, sink.Flush(context.Background()))
	assert.Zero(t, sink.Stats().BufferedSamples)
}

func TestMatchDeviceName(t *testing.T) {
	names := []string{"Built-in Microphone", "USB PnP Sound Device", "HDMI Output"}

	assert.Equal(t, 1, matchDeviceName(names, "usb"))
	assert.Equal(t, 0, matchDeviceName(names, "built-in"))
	assert.Equal(t, -1, matchDeviceName(names, "bluetooth"))
}

func TestFactorySelectsMock(t *testing.T) {
	src, err := NewSource(testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", src.Name())

	sink, err := NewSink(testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", sink.Name())
}

func TestFactoryRejectsInvalidConfig(t *testing.T) {
	_, err := NewSource(Config{}, nil)
	assert.Error(t, err)
}
