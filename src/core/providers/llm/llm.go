package llm

import (
	"fmt"

	"lungscan-server-go/src/core/types"
)

// Config of one LLM provider instance.
type Config struct {
	Type        string                 `yaml:"type"`
	ModelName   string                 `yaml:"model_name"`
	BaseURL     string                 `yaml:"base_url,omitempty"`
	APIKey      string                 `yaml:"api_key,omitempty"`
	Temperature float64                `yaml:"temperature,omitempty"`
	MaxTokens   int                    `yaml:"max_tokens,omitempty"`
	TopP        float64                `yaml:"top_p,omitempty"`
	Extra       map[string]interface{} `yaml:",inline"`
}

// Provider is the LLM provider interface.
type Provider interface {
	types.LLMProvider
}

// BaseProvider carries the shared config plumbing.
type BaseProvider struct {
	config *Config
}

// Config returns the provider configuration.
func (p *BaseProvider) Config() *Config {
	return p.config
}

// NewBaseProvider creates the shared base.
func NewBaseProvider(config *Config) *BaseProvider {
	return &BaseProvider{
		config: config,
	}
}

// Initialize is a no-op default.
func (p *BaseProvider) Initialize() error {
	return nil
}

// Cleanup is a no-op default.
func (p *BaseProvider) Cleanup() error {
	return nil
}

// Factory creates a provider from config.
type Factory func(config *Config) (Provider, error)

var factories = make(map[string]Factory)

// Register registers a provider factory under a type name.
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create builds and initializes a registered provider.
func Create(name string, config *Config) (Provider, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %s", name)
	}

	provider, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %v", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %v", err)
	}

	return provider, nil
}
