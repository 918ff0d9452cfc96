package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGTTSSynthesize(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "ml", r.URL.Query().Get("tl"))
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		w.Write([]byte("mp3data"))
	}))
	defer srv.Close()

	g := NewGTTS(
		WithGTTSLanguage("ml"),
		WithGTTSBaseURL(srv.URL),
	)
	defer g.Close()

	artifact, err := g.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3data"), artifact.Audio)
	assert.Equal(t, FormatMP3, artifact.Format)
	assert.Equal(t, int32(1), requests.Load())
}

func TestGTTSSplitsLongText(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.LessOrEqual(t, len(r.URL.Query().Get("q")), gttsMaxChunk)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	g := NewGTTS(WithGTTSBaseURL(srv.URL))
	defer g.Close()

	long := strings.Repeat("word ", 100) // ~500 chars
	artifact, err := g.Synthesize(context.Background(), long)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, requests.Load(), int32(2))
	assert.Equal(t, int(requests.Load()), len(artifact.Audio))
}

func TestGTTSEmptyText(t *testing.T) {
	g := NewGTTS()
	_, err := g.Synthesize(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestGTTSServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGTTS(WithGTTSBaseURL(srv.URL))
	defer g.Close()

	_, err := g.Synthesize(context.Background(), "hello")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimited())
}
