package openai

import (
	"context"
	"fmt"

	"lungscan-server-go/src/core/providers/llm"
	"lungscan-server-go/src/core/types"

	"github.com/sashabaranov/go-openai"
)

// Provider is the OpenAI-compatible chat completion provider.
type Provider struct {
	*llm.BaseProvider
	client    *openai.Client
	maxTokens int
}

func init() {
	llm.Register("openai", NewProvider)
}

// NewProvider creates the provider.
func NewProvider(config *llm.Config) (llm.Provider, error) {
	base := llm.NewBaseProvider(config)
	provider := &Provider{
		BaseProvider: base,
		maxTokens:    config.MaxTokens,
	}
	if provider.maxTokens <= 0 {
		provider.maxTokens = 500
	}

	return provider, nil
}

// Initialize builds the API client.
func (p *Provider) Initialize() error {
	config := p.Config()
	if config.APIKey == "" {
		return fmt.Errorf("missing OpenAI API key")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	p.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// Cleanup releases resources.
func (p *Provider) Cleanup() error {
	return nil
}

// Chat runs one completion and returns the full response text.
func (p *Provider) Chat(ctx context.Context, messages []types.Message) (string, error) {
	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       p.Config().ModelName,
			Messages:    convertMessages(messages),
			MaxTokens:   p.maxTokens,
			Temperature: float32(p.Config().Temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", types.ErrUpstream)
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream runs one completion and delivers deltas over a channel.
func (p *Provider) Stream(ctx context.Context, messages []types.Message) (<-chan string, error) {
	stream, err := p.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Model:       p.Config().ModelName,
			Messages:    convertMessages(messages),
			Stream:      true,
			MaxTokens:   p.maxTokens,
			Temperature: float32(p.Config().Temperature),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUpstream, err)
	}

	responseChan := make(chan string, 10)
	go func() {
		defer close(responseChan)
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				break
			}

			if len(response.Choices) > 0 {
				content := response.Choices[0].Delta.Content
				if content != "" {
					responseChan <- content
				}
			}
		}
	}()

	return responseChan, nil
}

func convertMessages(messages []types.Message) []openai.ChatCompletionMessage {
	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return chatMessages
}
