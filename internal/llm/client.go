package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mithlajmt/nila/internal/httpc"
)

// Client defaults.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.8
	DefaultTimeout     = 30 * time.Second

	// DefaultHistoryLimit bounds the conversation window (messages, not
	// counting the system prompt) so long sessions do not grow the prompt
	// without bound.
	DefaultHistoryLimit = 20

	// DefaultSystemPrompt keeps replies short enough to speak aloud.
	DefaultSystemPrompt = "You are Nila, a small friendly companion robot. " +
		"Reply in one or two short spoken sentences. Never use markdown, " +
		"lists, or emoji."
)

// Client is an OpenAI-compatible chat completion client with a bounded
// rolling conversation history.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	system      string
	maxTokens   int
	temperature float64
	historyMax  int
	http        *http.Client
	logger      *slog.Logger

	mu      sync.Mutex
	history []Message
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the API base URL (no trailing slash needed).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithModel sets the model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithSystemPrompt replaces the default persona prompt.
func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) {
		c.system = prompt
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithHistoryLimit bounds the rolling conversation window.
func WithHistoryLimit(n int) ClientOption {
	return func(c *Client) {
		c.historyMax = n
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http = httpc.NewClient(d)
	}
}

// WithClientLogger sets the structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With("component", "llm.client")
	}
}

// NewClient creates a chat client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		model:       DefaultModel,
		system:      DefaultSystemPrompt,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		historyMax:  DefaultHistoryLimit,
		http:        httpc.NewClient(DefaultTimeout),
		logger:      slog.Default().With("component", "llm.client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Respond sends the user text with the rolling history and returns the
// assistant reply. Both sides of the exchange are appended to the history
// on success.
func (c *Client) Respond(ctx context.Context, text string) (string, error) {
	start := time.Now()

	c.mu.Lock()
	messages := make([]Message, 0, len(c.history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: c.system})
	messages = append(messages, c.history...)
	messages = append(messages, Message{Role: RoleUser, Content: text})
	c.mu.Unlock()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("llm: API error %d: %s", resp.StatusCode, string(raw))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned")
	}

	reply := strings.TrimSpace(result.Choices[0].Message.Content)

	c.mu.Lock()
	c.history = append(c.history,
		Message{Role: RoleUser, Content: text},
		Message{Role: RoleAssistant, Content: reply},
	)
	if len(c.history) > c.historyMax {
		c.history = c.history[len(c.history)-c.historyMax:]
	}
	c.mu.Unlock()

	c.logger.Debug("chat completion",
		"model", c.model,
		"reply_chars", len(reply),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return reply, nil
}

// Reset clears the conversation history.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

// Verify Client implements Responder at compile time.
var _ Responder = (*Client)(nil)
