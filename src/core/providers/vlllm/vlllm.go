package vlllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lungscan-server-go/src/core/types"
	"lungscan-server-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

// Config of a vision language model provider.
type Config struct {
	Type        string
	ModelName   string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Provider calls a multimodal chat completion API. The openai type talks to
// any OpenAI-compatible vision endpoint; the ollama type posts to a local
// Ollama /api/chat.
type Provider struct {
	config *Config
	logger *utils.Logger

	openaiClient *openai.Client
	httpClient   *http.Client
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// NewProvider creates the provider.
func NewProvider(config *Config, logger *utils.Logger) (*Provider, error) {
	return &Provider{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Initialize builds the client for the configured type.
func (p *Provider) Initialize() error {
	switch strings.ToLower(p.config.Type) {
	case "openai":
		if p.config.APIKey == "" {
			return fmt.Errorf("OpenAI API key is required")
		}

		clientConfig := openai.DefaultConfig(p.config.APIKey)
		if p.config.BaseURL != "" {
			clientConfig.BaseURL = p.config.BaseURL
		}
		p.openaiClient = openai.NewClientWithConfig(clientConfig)

	case "ollama":
		if p.config.BaseURL == "" {
			p.config.BaseURL = "http://localhost:11434"
		}

	default:
		return fmt.Errorf("unsupported VLLLM type: %s", p.config.Type)
	}

	p.logger.Debug("VLLLM provider initialized", map[string]interface{}{
		"type":       p.config.Type,
		"model_name": p.config.ModelName,
	})

	return nil
}

// Cleanup releases resources.
func (p *Provider) Cleanup() error {
	return nil
}

// ChatWithImage sends one multimodal message (text part plus image part) and
// returns the full response text.
func (p *Provider) ChatWithImage(ctx context.Context, messages []types.Message, imageDataURI string, text string) (string, error) {
	switch strings.ToLower(p.config.Type) {
	case "openai":
		return p.chatOpenAIVision(ctx, messages, imageDataURI, text)
	case "ollama":
		return p.chatOllamaVision(ctx, messages, imageDataURI, text)
	default:
		return "", fmt.Errorf("unsupported VLLLM type: %s", p.config.Type)
	}
}

func (p *Provider) chatOpenAIVision(ctx context.Context, messages []types.Message, imageDataURI string, text string) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	for _, msg := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	chatMessages = append(chatMessages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: text,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: imageDataURI,
				},
			},
		},
	})

	resp, err := p.openaiClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       p.config.ModelName,
			Messages:    chatMessages,
			MaxTokens:   p.config.MaxTokens,
			Temperature: float32(p.config.Temperature),
			TopP:        float32(p.config.TopP),
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: vision completion: %v", types.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty vision completion", types.ErrUpstream)
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) chatOllamaVision(ctx context.Context, messages []types.Message, imageDataURI string, text string) (string, error) {
	ollamaMessages := make([]ollamaMessage, 0, len(messages)+1)
	for _, msg := range messages {
		ollamaMessages = append(ollamaMessages, ollamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	// Ollama wants bare base64 without the data URI prefix.
	base64Image := imageDataURI
	if idx := strings.Index(base64Image, ","); idx >= 0 {
		base64Image = base64Image[idx+1:]
	}
	ollamaMessages = append(ollamaMessages, ollamaMessage{
		Role:    "user",
		Content: text,
		Images:  []string{base64Image},
	})

	request := ollamaRequest{
		Model:    p.config.ModelName,
		Messages: ollamaMessages,
		Stream:   false,
		Options: map[string]interface{}{
			"temperature": p.config.Temperature,
			"top_p":       p.config.TopP,
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %v", err)
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimSuffix(p.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ollama call: %v", types.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: ollama status %d: %s", types.ErrUpstream, resp.StatusCode, string(body))
	}

	var response ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %v", types.ErrUpstream, err)
	}

	return response.Message.Content, nil
}

// GetConfig returns the provider configuration.
func (p *Provider) GetConfig() *Config {
	return p.config
}
