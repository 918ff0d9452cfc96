package stt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithlajmt/nila/pkg/capture"
)

func testClip() *capture.Clip {
	return &capture.Clip{
		Samples:    make([]int16, 16000),
		SampleRate: 16000,
		Channels:   1,
	}
}

func TestRouterPrimarySucceeds(t *testing.T) {
	primary := NewMock("hello there")
	fallback := NewMock("should not be used")
	router := NewRouter(primary, fallback)

	result, err := router.Recognize(context.Background(), testClip())
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, 0, fallback.CallCount())
}

func TestRouterDegradesToFallback(t *testing.T) {
	primary := NewMockError(errors.New("model crashed"))
	fallback := NewMock("rescued transcript")
	router := NewRouter(primary, fallback)

	result, err := router.Recognize(context.Background(), testClip())
	require.NoError(t, err)
	assert.Equal(t, "rescued transcript", result.Text)
	assert.Equal(t, 1, primary.CallCount())
	assert.Equal(t, 1, fallback.CallCount())
}

func TestRouterSilenceIsNotRetried(t *testing.T) {
	primary := NewMock("") // heard nothing, no error
	fallback := NewMock("should not be used")
	router := NewRouter(primary, fallback)

	result, err := router.Recognize(context.Background(), testClip())
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Equal(t, 0, fallback.CallCount())
}

func TestRouterBothFail(t *testing.T) {
	primary := NewMockError(errors.New("down"))
	fallback := NewMockError(errors.New("also down"))
	router := NewRouter(primary, fallback)

	result, err := router.Recognize(context.Background(), testClip())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrAllRecognizersFailed)
}

func TestRouterNoFallback(t *testing.T) {
	wantErr := errors.New("down")
	router := NewRouter(NewMockError(wantErr), nil)

	_, err := router.Recognize(context.Background(), testClip())
	assert.ErrorIs(t, err, wantErr)
}

func TestRouterContextCancellation(t *testing.T) {
	primary := &Mock{
		RecognizeFunc: func(ctx context.Context, clip *capture.Clip) (*Result, error) {
			return nil, ctx.Err()
		},
	}
	fallback := NewMock("should not be used")
	router := NewRouter(primary, fallback)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := router.Recognize(ctx, testClip())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fallback.CallCount())
}

func TestBuildPrefersPrimary(t *testing.T) {
	primary := NewMock("from primary")
	fallback := NewMock("from fallback")

	rec, err := Build(
		func() (Recognizer, error) { return primary, nil },
		func() (Recognizer, error) { return fallback, nil },
		"whisper", "google", nil,
	)
	require.NoError(t, err)

	result, err := rec.Recognize(context.Background(), testClip())
	require.NoError(t, err)
	assert.Equal(t, "from primary", result.Text)
	assert.Equal(t, 0, fallback.CallCount())
}

func TestBuildSubstitutesWhenPrimaryUnavailable(t *testing.T) {
	fallback := NewMock("substituted")

	rec, err := Build(
		func() (Recognizer, error) { return nil, errors.New("model file missing") },
		func() (Recognizer, error) { return fallback, nil },
		"whisper", "google", nil,
	)
	require.NoError(t, err)

	result, err := rec.Recognize(context.Background(), testClip())
	require.NoError(t, err)
	assert.Equal(t, "substituted", result.Text)
}

func TestBuildRunsWithoutFallback(t *testing.T) {
	wantErr := errors.New("primary down")

	rec, err := Build(
		func() (Recognizer, error) { return NewMockError(wantErr), nil },
		func() (Recognizer, error) { return nil, errors.New("no API key") },
		"whisper", "google", nil,
	)
	require.NoError(t, err)

	// Per-call failures surface directly: there is nothing to degrade to.
	_, err = rec.Recognize(context.Background(), testClip())
	assert.ErrorIs(t, err, wantErr)
}

func TestBuildFailsWhenNeitherConstructs(t *testing.T) {
	rec, err := Build(
		func() (Recognizer, error) { return nil, errors.New("model file missing") },
		func() (Recognizer, error) { return nil, errors.New("no API key") },
		"whisper", "google", nil,
	)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrNoRecognizer)
}

func TestRecognizerErrorUnwraps(t *testing.T) {
	err := WrapError("google", ErrNoAPIKey)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	var rerr *RecognizerError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "google", rerr.Recognizer)
	assert.Contains(t, err.Error(), "stt [google]")
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError("google", nil))
}
