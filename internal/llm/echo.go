package llm

import (
	"context"
	"strings"
)

// Echo is the offline fallback responder. It acknowledges what it heard so
// the voice loop stays interactive without any API configured.
type Echo struct{}

// NewEcho creates an echo responder.
func NewEcho() *Echo {
	return &Echo{}
}

// Respond returns a canned acknowledgment built from the user's words.
func (e *Echo) Respond(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "I didn't catch that.", nil
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		return "Hello! I'm listening.", nil
	case strings.Contains(lower, "how are you"):
		return "I'm doing well, thank you for asking.", nil
	case strings.Contains(lower, "bye"):
		return "Goodbye! Talk to you soon.", nil
	default:
		return "You said: " + text, nil
	}
}

// Reset is a no-op.
func (e *Echo) Reset() {}

// Verify Echo implements Responder at compile time.
var _ Responder = (*Echo)(nil)
