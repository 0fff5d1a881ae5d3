package types

import "context"

// Message is one turn of a chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the common lifecycle of all external providers.
type Provider interface {
	Initialize() error
	Cleanup() error
}

// LLMProvider generates text from a message list. Chat returns the full
// completion; Stream delivers deltas over a channel that is closed when the
// completion ends. Implementations must be safe for concurrent use.
type LLMProvider interface {
	Provider
	Chat(ctx context.Context, messages []Message) (string, error)
	Stream(ctx context.Context, messages []Message) (<-chan string, error)
}

// VisionProvider generates text from a prompt plus one base64 image
// delivered as a data URI. Implementations must be safe for concurrent use.
type VisionProvider interface {
	Provider
	ChatWithImage(ctx context.Context, messages []Message, imageDataURI string, text string) (string, error)
}
