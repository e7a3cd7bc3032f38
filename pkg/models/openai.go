package models

import (
	"context"
	"errors"
	"os"

	"github.com/sashabaranov/go-openai"
)

// OpenRouterBaseURL points the OpenAI-compatible client at the OpenRouter
// gateway, which fronts models from many vendors behind one chat API.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

type OpenAILLM struct {
	Client      *openai.Client
	Model       string
	Temperature float32
}

func NewOpenAILLM(model string) *OpenAILLM {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY") // fallback
	}
	client := openai.NewClient(apiKey)
	return &OpenAILLM{Client: client, Model: model, Temperature: 0.7}
}

// NewOpenRouterLLM reads OPENROUTER_API_KEY from the env and targets the
// OpenRouter endpoint. Model identifiers carry the vendor prefix, e.g.
// "openai/gpt-4o-mini".
func NewOpenRouterLLM(model string) *OpenAILLM {
	cfg := openai.DefaultConfig(os.Getenv("OPENROUTER_API_KEY"))
	cfg.BaseURL = OpenRouterBaseURL
	return &OpenAILLM{Client: openai.NewClientWithConfig(cfg), Model: model, Temperature: 0.7}
}

func (o *OpenAILLM) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.Model,
		Temperature: o.Temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := o.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ ChatModel = (*OpenAILLM)(nil)
