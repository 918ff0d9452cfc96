package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mithlajmt/nila/internal/httpc"
)

const (
	gttsURL     = "https://translate.google.com/translate_tts"
	backendGTTS = "gtts"

	// gttsMaxChunk is the longest text fragment the translate endpoint
	// accepts per request.
	gttsMaxChunk = 180
)

// GTTS implements Synthesizer using the free Google Translate speech
// endpoint. It needs no API key but offers a single robotic voice per
// language and an undocumented rate limit, so it is the fallback tier,
// not the primary one.
type GTTS struct {
	client   *http.Client
	language string
	baseURL  string
	logger   *slog.Logger
}

// GTTSOption configures a GTTS backend.
type GTTSOption func(*GTTS)

// WithGTTSLanguage sets the speech language code (e.g. "en", "ml").
func WithGTTSLanguage(lang string) GTTSOption {
	return func(g *GTTS) {
		g.language = lang
	}
}

// WithGTTSBaseURL overrides the endpoint. Used by tests.
func WithGTTSBaseURL(u string) GTTSOption {
	return func(g *GTTS) {
		g.baseURL = u
	}
}

// WithGTTSLogger sets the structured logger.
func WithGTTSLogger(logger *slog.Logger) GTTSOption {
	return func(g *GTTS) {
		g.logger = logger.With("component", "tts.gtts")
	}
}

// NewGTTS creates a Google Translate speech backend.
func NewGTTS(opts ...GTTSOption) *GTTS {
	g := &GTTS{
		client:   httpc.NewClient(15 * time.Second),
		language: "en",
		baseURL:  gttsURL,
		logger:   slog.Default().With("component", "tts.gtts"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Synthesize converts text to MP3 audio. Long text is split at word
// boundaries and the MP3 frames of each fragment are concatenated, which
// decoders accept.
func (g *GTTS) Synthesize(ctx context.Context, text string) (*Artifact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, WrapError(backendGTTS, ErrEmptyText)
	}

	start := time.Now()

	var audio []byte
	for _, chunk := range splitText(text, gttsMaxChunk) {
		data, err := g.fetch(ctx, chunk)
		if err != nil {
			return nil, err
		}
		audio = append(audio, data...)
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
	)

	return &Artifact{
		Audio:     audio,
		Format:    FormatMP3,
		LatencyMs: latency,
	}, nil
}

func (g *GTTS) fetch(ctx context.Context, text string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", g.language)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, WrapError(backendGTTS, fmt.Errorf("create request: %w", err))
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, WrapError(backendGTTS, fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Backend:    backendGTTS,
		}
	}

	return io.ReadAll(resp.Body)
}

// Name returns "gtts".
func (g *GTTS) Name() string {
	return backendGTTS
}

// Fingerprint returns the language code, the only voice parameter the
// translate endpoint exposes.
func (g *GTTS) Fingerprint() string {
	return "lang=" + g.language
}

// Format returns MP3.
func (g *GTTS) Format() Format {
	return FormatMP3
}

// Close releases resources.
func (g *GTTS) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// splitText breaks text into fragments no longer than max runes, splitting
// at word boundaries where possible.
func splitText(text string, max int) []string {
	words := strings.Fields(text)
	var out []string
	var cur strings.Builder

	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len(w) > max {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// Verify GTTS implements Synthesizer at compile time.
var _ Synthesizer = (*GTTS)(nil)
