package models

import (
	"context"
)

// Conversation roles shared by every provider's chat wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry in a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatModel is the minimal surface the orchestration loop needs from a
// language model: one blocking multi-turn request, one text response.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
