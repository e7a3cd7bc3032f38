package models

import (
	"context"
	"fmt"
)

func NewChatProvider(ctx context.Context, provider string, model string) (ChatModel, error) {
	switch provider {
	case "openai":
		return NewOpenAILLM(model), nil
	case "openrouter":
		return NewOpenRouterLLM(model), nil
	case "gemini", "google":
		return NewGeminiLLM(ctx, model)
	case "ollama":
		return NewOllamaLLM(model)
	case "anthropic", "claude":
		return NewAnthropicLLM(model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
