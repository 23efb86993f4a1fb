package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
)

// OpenAIGenerator implements ReplyGenerator on the OpenAI Chat Completions
// API. The persona prompt becomes the system message; the participant's text
// is the sole user message (conversations are ephemeral, no history is kept).
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator using the given chat model. The
// client reads its API key from the environment.
func NewOpenAIGenerator(model string) *OpenAIGenerator {
	client := openai.NewClient()
	return NewOpenAIGeneratorFromClient(&client, model)
}

// NewOpenAIGeneratorFromClient creates a generator from an existing client
func NewOpenAIGeneratorFromClient(client *openai.Client, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAIGenerator{client: client, model: model}
}

// Generate requests a single short completion for the persona
func (g *OpenAIGenerator) Generate(ctx context.Context, persona domain.AgentPersona, input string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(persona.PersonaPrompt),
			openai.UserMessage(input),
		},
		Temperature:         openai.Float(0.9),
		MaxCompletionTokens: openai.Int(256),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
