package tts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheMissThenHit(t *testing.T) {
	backend := NewMock()
	cache, err := NewCache(backend, t.TempDir())
	require.NoError(t, err)

	first, err := cache.Synthesize(context.Background(), "hello world")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.Path)

	second, err := cache.Synthesize(context.Background(), "hello world")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Audio, second.Audio)

	// The backend was called exactly once for the repeated phrase.
	assert.Equal(t, 1, backend.CallCount("Synthesize"))
}

func TestCacheKeyIsExactText(t *testing.T) {
	backend := NewMock()
	cache, err := NewCache(backend, t.TempDir())
	require.NoError(t, err)

	_, err = cache.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	_, err = cache.Synthesize(context.Background(), "hello!")
	require.NoError(t, err)

	assert.Equal(t, 2, backend.CallCount("Synthesize"))
}

func TestCacheKeyIncludesVoiceFingerprint(t *testing.T) {
	dir := t.TempDir()

	english := NewMock()
	english.FingerprintValue = "lang=en"
	malayalam := NewMock()
	malayalam.FingerprintValue = "lang=ml"

	cacheEN, err := NewCache(english, dir)
	require.NoError(t, err)
	cacheML, err := NewCache(malayalam, dir)
	require.NoError(t, err)

	first, err := cacheEN.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	require.False(t, first.Cached)

	// Same backend name, same text, different language: the second cache
	// must synthesize rather than serve the English artifact.
	second, err := cacheML.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, 1, malayalam.CallCount("Synthesize"))
}

func TestGTTSFingerprintTracksLanguage(t *testing.T) {
	en := NewGTTS(WithGTTSLanguage("en"))
	ml := NewGTTS(WithGTTSLanguage("ml"))
	assert.NotEqual(t, en.Fingerprint(), ml.Fingerprint())
	assert.Equal(t, en.Name(), ml.Name())
}

func TestCacheEmptyTextRejectedBeforeBackend(t *testing.T) {
	backend := NewMock()
	cache, err := NewCache(backend, t.TempDir())
	require.NoError(t, err)

	_, err = cache.Synthesize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, 0, backend.CallCount("Synthesize"))
}

func TestCacheBackendErrorPassesThrough(t *testing.T) {
	wantErr := &APIError{StatusCode: 500, Message: "boom", Backend: "mock"}
	cache, err := NewCache(NewMockError(wantErr), t.TempDir())
	require.NoError(t, err)

	_, err = cache.Synthesize(context.Background(), "hello")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)

	// Nothing was stored for the failed synthesis.
	size, err := cache.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestCacheHitRefreshesRecency(t *testing.T) {
	backend := NewMock()
	dir := t.TempDir()
	cache, err := NewCache(backend, dir)
	require.NoError(t, err)

	artifact, err := cache.Synthesize(context.Background(), "keep me")
	require.NoError(t, err)

	// Age the entry, then hit it.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(artifact.Path, old, old))

	_, err = cache.Synthesize(context.Background(), "keep me")
	require.NoError(t, err)

	info, err := os.Stat(artifact.Path)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), info.ModTime(), time.Minute)
}

func TestCacheEvictsOldestWhenOverBudget(t *testing.T) {
	backend := NewMock()
	dir := t.TempDir()

	// Each artifact is ~11 bytes ("audio:" + text). A 60-byte budget with
	// a 0.5 threshold trips eviction once ~3 entries exist.
	cache, err := NewCache(backend, dir,
		WithCacheBudget(60),
		WithCacheThreshold(0.5),
	)
	require.NoError(t, err)

	oldest, err := cache.Synthesize(context.Background(), "aaaaa")
	require.NoError(t, err)

	// Make the first entry clearly the oldest.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(oldest.Path, old, old))

	_, err = cache.Synthesize(context.Background(), "bbbbb")
	require.NoError(t, err)
	_, err = cache.Synthesize(context.Background(), "ccccc")
	require.NoError(t, err)

	// This miss runs the eviction scan before synthesizing.
	_, err = cache.Synthesize(context.Background(), "ddddd")
	require.NoError(t, err)

	_, statErr := os.Stat(oldest.Path)
	assert.True(t, os.IsNotExist(statErr), "oldest entry should be evicted")
}

func TestCacheSeparatesBackends(t *testing.T) {
	dir := t.TempDir()

	a := NewMock()
	a.NameValue = "alpha"
	b := NewMock()
	b.NameValue = "beta"

	cacheA, err := NewCache(a, dir)
	require.NoError(t, err)
	cacheB, err := NewCache(b, dir)
	require.NoError(t, err)

	artA, err := cacheA.Synthesize(context.Background(), "same text")
	require.NoError(t, err)
	artB, err := cacheB.Synthesize(context.Background(), "same text")
	require.NoError(t, err)

	assert.NotEqual(t, artA.Path, artB.Path)
	assert.Equal(t, "alpha", filepath.Base(filepath.Dir(artA.Path)))
	assert.Equal(t, "beta", filepath.Base(filepath.Dir(artB.Path)))
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want int
	}{
		{"short text single chunk", "hello world", 180, 1},
		{"splits at word boundary", "one two three four", 9, 3},
		{"empty", "", 180, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitText(tt.text, tt.max)
			assert.Len(t, chunks, tt.want)
			for _, c := range chunks {
				assert.LessOrEqual(t, len(c), tt.max)
			}
		})
	}
}
