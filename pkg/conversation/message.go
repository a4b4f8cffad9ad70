package conversation

import (
	"context"

	"github.com/minhyannv/logos-assistant-go/pkg/tools"
)

// Role is the role for a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is the provider-agnostic chat message DTO.
type Message struct {
	Role    Role
	Content string
	// ToolCalls is set on assistant messages that request tools.
	ToolCalls []ToolCall
	// ToolCallID and Name are set on tool messages.
	ToolCallID string
	Name       string
}

// ToolChoice controls how the model may pick tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// Request is one completion request.
type Request struct {
	Model           string
	Messages        []Message
	Temperature     float64
	MaxTokens       int64
	CompletionCount int64
	Tools           []tools.Definition
	ToolChoice      ToolChoice
}

// Usage reports token accounting for a response.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Choice is one candidate completion.
type Choice struct {
	Index        int
	Message      Message
	FinishReason string
}

// Response is one completion response.
type Response struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

// Backend talks to a chat-completion endpoint.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	ListModels(ctx context.Context) ([]string, error)
}
