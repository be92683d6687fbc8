package llm

import (
	"context"
)

// Response is one model turn: content, or tool calls, or both.
type Response struct {
	Content    []Part
	ToolCalls  []ToolCall
	Usage      *Usage
	StopReason string
}

// Text returns the flattened response content.
func (r *Response) Text() string {
	return FlattenToText(r.Content)
}

// ToolDefinition defines a tool for the model
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Model is the language model capability. Implementations must be safe for
// concurrent use across threads.
type Model interface {
	// Invoke submits the full thread history. A nil tools slice disables tool use.
	Invoke(ctx context.Context, threadID string, messages []Message, tools []ToolDefinition) (*Response, error)
	Name() string
}
