package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"lungscan-server-go/src/core/types"
	"lungscan-server-go/src/core/utils"
)

const generalPreamble = `You are a knowledgeable medical assistant specializing in lung cancer.
Answer the user's question clearly and accurately, and remind them that your
answers do not replace a consultation with a healthcare professional.`

const educationalPreamble = `You are a patient educator explaining lung cancer topics in simple,
accessible language. Avoid jargon, use short sentences, and encourage the
user to discuss specifics with their care team.`

// Service builds prompts for the text LLM and reshapes its answers.
type Service struct {
	provider types.LLMProvider
	logger   *utils.Logger
}

// NewService creates the conversational service.
func NewService(provider types.LLMProvider, logger *utils.Logger) *Service {
	return &Service{
		provider: provider,
		logger:   logger,
	}
}

// Respond answers an open-ended question. The optional context mapping is
// opaque and serialized into the prompt verbatim.
func (s *Service) Respond(ctx context.Context, message string, context_ map[string]interface{}) (string, error) {
	return s.respond(ctx, generalPreamble, message, context_)
}

// RespondEducational answers in the patient-education register.
func (s *Service) RespondEducational(ctx context.Context, message string, context_ map[string]interface{}) (string, error) {
	return s.respond(ctx, educationalPreamble, message, context_)
}

func (s *Service) respond(ctx context.Context, preamble, message string, context_ map[string]interface{}) (string, error) {
	messages := []types.Message{
		{Role: "system", Content: preamble},
		{Role: "user", Content: withContext(message, context_)},
	}

	text, err := s.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}

	return text, nil
}

// StreamChat relays the LLM token stream for the websocket endpoint.
func (s *Service) StreamChat(ctx context.Context, message string, context_ map[string]interface{}) (<-chan string, error) {
	messages := []types.Message{
		{Role: "system", Content: generalPreamble},
		{Role: "user", Content: withContext(message, context_)},
	}

	return s.provider.Stream(ctx, messages)
}

func withContext(message string, context_ map[string]interface{}) string {
	if len(context_) == 0 {
		return message
	}

	serialized, err := json.Marshal(context_)
	if err != nil {
		return message
	}

	return fmt.Sprintf("%s\n\nContext: %s", message, string(serialized))
}
