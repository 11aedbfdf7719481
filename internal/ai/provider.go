package ai

import (
	"context"
	"errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyResponse = errors.New("ai: empty response")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider sends an ordered, alternating user/assistant conversation to the
// model and returns the reply text.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
