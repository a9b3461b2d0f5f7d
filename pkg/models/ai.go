// Package models contains shared data models used across the ContentPilot codebase.
package models

import "context"

// LLMProvider is the core interface that all language-model integrations must implement.
// Components never call a provider package directly; they take this interface.
type LLMProvider interface {
	// Complete sends a system prompt plus a conversation and returns the raw model text.
	// No schema is enforced on the output.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}

// CompletionRequest is the input to a single model invocation.
type CompletionRequest struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
