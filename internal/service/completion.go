package service

import (
	"context"
	"errors"
)

var (
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrEmptyCompletion = errors.New("empty completion")
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ImagePart is an inline image sent with a multimodal message.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

type Message struct {
	Role    string
	Content string
	Images  []ImagePart
}

type CompletionRequest struct {
	// Model overrides the service default when set.
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON object response.
	JSON bool
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Completion struct {
	Model string
	Text  string
	Usage Usage
}

// Completer is a chat completion backend.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
