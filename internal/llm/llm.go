// Package llm generates the robot's conversational replies.
//
// The Client speaks to any OpenAI-compatible chat completion API (OpenAI,
// Ollama, vLLM, Groq). Echo is the no-network fallback so the voice loop
// still answers when no API is configured.
package llm

import "context"

// Responder produces a reply to one user utterance, carrying whatever
// conversation state it needs between calls.
type Responder interface {
	// Respond returns the assistant reply for the user's text.
	Respond(ctx context.Context, text string) (string, error)

	// Reset clears conversation history.
	Reset()
}

// Role defines message roles in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
